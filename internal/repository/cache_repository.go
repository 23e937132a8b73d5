package repository

import (
	"context"
	"time"

	"campuschat/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type CacheRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCacheRepository(db *pgxpool.Pool, logger *zap.Logger) *CacheRepository {
	return &CacheRepository{
		db:     db,
		logger: logger,
	}
}

func (r *CacheRepository) Get(ctx context.Context, fingerprint string) (*models.CachedResponse, error) {
	query := squirrel.Select("fingerprint", "question", "language", "answer", "sources", "confidence", "expires_at", "created_at").
		From("response_cache").
		Where(squirrel.Eq{"fingerprint": fingerprint}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var cached models.CachedResponse
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&cached.Fingerprint, &cached.Question, &cached.Language, &cached.Answer, &cached.Sources, &cached.Confidence, &cached.ExpiresAt, &cached.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &cached, nil
}

func (r *CacheRepository) Put(ctx context.Context, cached *models.CachedResponse) error {
	query := squirrel.Insert("response_cache").
		Columns("fingerprint", "question", "language", "answer", "sources", "confidence", "expires_at", "created_at").
		Values(cached.Fingerprint, cached.Question, cached.Language, cached.Answer, cached.Sources, cached.Confidence, cached.ExpiresAt, cached.CreatedAt).
		Suffix("ON CONFLICT (fingerprint) DO UPDATE SET answer = EXCLUDED.answer, sources = EXCLUDED.sources, confidence = EXCLUDED.confidence, expires_at = EXCLUDED.expires_at").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *CacheRepository) Delete(ctx context.Context, fingerprint string) error {
	query := squirrel.Delete("response_cache").
		Where(squirrel.Eq{"fingerprint": fingerprint}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// DeleteLanguage drops every cached answer in one language. Invoked when a
// correction changes, since any of them may now be stale.
func (r *CacheRepository) DeleteLanguage(ctx context.Context, language string) (int64, error) {
	query := squirrel.Delete("response_cache").
		Where(squirrel.Eq{"language": language}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *CacheRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	query := squirrel.Delete("response_cache").
		Where(squirrel.Lt{"expires_at": now}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
