package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"campuschat/internal/models"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type ResponseCacheStore interface {
	Get(ctx context.Context, fingerprint string) (*models.CachedResponse, error)
	Put(ctx context.Context, cached *models.CachedResponse) error
	Delete(ctx context.Context, fingerprint string) error
	DeleteLanguage(ctx context.Context, language string) (int64, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// CacheService deduplicates identical questions. Besides the persistent
// cache it collapses concurrent misses for the same fingerprint into a
// single generation via singleflight.
type CacheService struct {
	store  ResponseCacheStore
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

func NewCacheService(store ResponseCacheStore, ttl time.Duration, logger *zap.Logger) *CacheService {
	return &CacheService{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// Fingerprint keys a cached answer by language and normalized question.
func Fingerprint(language, question string) string {
	sum := md5.Sum([]byte(language + ":" + normalizeQuestion(question)))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached answer for a fingerprint if one exists and has
// not expired. Expired entries are dropped on the way out.
func (s *CacheService) Lookup(ctx context.Context, fingerprint string) (*models.CachedResponse, bool) {
	cached, err := s.store.Get(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("Cache lookup failed", zap.Error(err))
		}
		return nil, false
	}
	if cached.Expired(time.Now()) {
		if err := s.store.Delete(ctx, fingerprint); err != nil {
			s.logger.Warn("Failed to drop expired cache entry", zap.Error(err))
		}
		return nil, false
	}
	return cached, true
}

// GetOrGenerate returns the cached answer or runs generate exactly once per
// fingerprint, no matter how many callers arrive at the same time. The bool
// reports whether the answer came from cache.
func (s *CacheService) GetOrGenerate(ctx context.Context, fingerprint string, generate func() (*models.CachedResponse, error)) (*models.CachedResponse, bool, error) {
	if cached, ok := s.Lookup(ctx, fingerprint); ok {
		return cached, true, nil
	}

	shared := false
	value, err, sharedFlight := s.group.Do(fingerprint, func() (any, error) {
		// A concurrent caller may have filled the cache while we waited.
		if cached, ok := s.Lookup(ctx, fingerprint); ok {
			shared = true
			return cached, nil
		}

		generated, err := generate()
		if err != nil {
			return nil, err
		}
		s.Store(ctx, generated)
		return generated, nil
	})
	if err != nil {
		return nil, false, err
	}

	return value.(*models.CachedResponse), shared || sharedFlight, nil
}

// Store writes an answer to the cache, stamping TTL and creation time.
func (s *CacheService) Store(ctx context.Context, cached *models.CachedResponse) {
	now := time.Now()
	cached.CreatedAt = now
	cached.ExpiresAt = now.Add(s.ttl)

	if err := s.store.Put(ctx, cached); err != nil {
		s.logger.Warn("Failed to store cached response", zap.String("fingerprint", cached.Fingerprint), zap.Error(err))
	}
}

// InvalidateLanguage flushes all cached answers in one language.
func (s *CacheService) InvalidateLanguage(ctx context.Context, language string) error {
	dropped, err := s.store.DeleteLanguage(ctx, language)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache for %s: %w", language, err)
	}
	if dropped > 0 {
		s.logger.Info("Response cache invalidated", zap.String("language", language), zap.Int64("entries", dropped))
	}
	return nil
}

// PurgeExpired removes entries past their TTL. Called periodically from a
// background janitor.
func (s *CacheService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.PurgeExpired(ctx, time.Now())
}
