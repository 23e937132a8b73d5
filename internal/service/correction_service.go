package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campuschat/internal/index"
	"campuschat/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// DefaultSemanticThreshold is the relevance bar for semantic corrections
// when a correction does not set its own. Deliberately stricter than the
// document retrieval threshold: a wrong override is worse than no override.
const DefaultSemanticThreshold = 80

type CorrectionStore interface {
	Create(ctx context.Context, correction *models.ManualCorrection) error
	Update(ctx context.Context, correction *models.ManualCorrection) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ManualCorrection, error)
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.ManualCorrection, error)
	FindExact(ctx context.Context, question, language string) (*models.ManualCorrection, error)
}

type CacheInvalidator interface {
	InvalidateLanguage(ctx context.Context, language string) error
}

type CorrectionService struct {
	store  CorrectionStore
	cache  CacheInvalidator
	index  index.Adapter
	logger *zap.Logger
}

func NewCorrectionService(store CorrectionStore, cache CacheInvalidator, idx index.Adapter, logger *zap.Logger) *CorrectionService {
	return &CorrectionService{
		store:  store,
		cache:  cache,
		index:  idx,
		logger: logger,
	}
}

func (s *CorrectionService) Create(ctx context.Context, correction *models.ManualCorrection) error {
	if correction.ID == uuid.Nil {
		correction.ID = uuid.New()
	}
	if correction.MatchRule == "" {
		correction.MatchRule = models.MatchExact
	}
	if correction.MatchRule == models.MatchSemantic && correction.Threshold <= 0 {
		correction.Threshold = DefaultSemanticThreshold
	}
	now := time.Now()
	correction.CreatedAt = now
	correction.UpdatedAt = now

	if err := s.store.Create(ctx, correction); err != nil {
		return fmt.Errorf("failed to save correction: %w", err)
	}
	if err := s.syncIndex(ctx, correction); err != nil {
		return err
	}

	s.invalidate(ctx, correction.Language)
	s.logger.Info("Correction created",
		zap.String("id", correction.ID.String()),
		zap.String("language", correction.Language),
		zap.String("rule", string(correction.MatchRule)),
	)
	return nil
}

func (s *CorrectionService) Update(ctx context.Context, correction *models.ManualCorrection) error {
	existing, err := s.store.GetByID(ctx, correction.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCorrectionNotFound
		}
		return fmt.Errorf("failed to load correction: %w", err)
	}

	if correction.MatchRule == models.MatchSemantic && correction.Threshold <= 0 {
		correction.Threshold = DefaultSemanticThreshold
	}

	ok, err := s.store.Update(ctx, correction)
	if err != nil {
		return fmt.Errorf("failed to update correction: %w", err)
	}
	if !ok {
		return ErrCorrectionNotFound
	}
	if err := s.syncIndex(ctx, correction); err != nil {
		return err
	}

	// A language change must flush both the old and the new language.
	s.invalidate(ctx, correction.Language)
	if existing.Language != correction.Language {
		s.invalidate(ctx, existing.Language)
	}
	return nil
}

func (s *CorrectionService) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCorrectionNotFound
		}
		return fmt.Errorf("failed to load correction: %w", err)
	}

	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete correction: %w", err)
	}
	if !ok {
		return ErrCorrectionNotFound
	}

	if err := s.index.Delete(ctx, index.CollectionCorrections, map[string]string{"correction_id": id.String()}); err != nil {
		s.logger.Warn("Failed to remove correction vector", zap.Error(err))
	}
	s.invalidate(ctx, existing.Language)
	return nil
}

func (s *CorrectionService) Get(ctx context.Context, id uuid.UUID) (*models.ManualCorrection, error) {
	correction, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCorrectionNotFound
		}
		return nil, err
	}
	return correction, nil
}

func (s *CorrectionService) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.ManualCorrection, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.List(ctx, activeOnly, limit, offset)
}

// Match finds the correction overriding an answer for this question, if
// any. Exact rules are checked first, then semantic ones through the vector
// index with each correction's own threshold.
func (s *CorrectionService) Match(ctx context.Context, question, language string) (*models.ManualCorrection, error) {
	correction, err := s.store.FindExact(ctx, normalizeQuestion(question), language)
	if err == nil {
		return correction, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to match correction: %w", err)
	}

	results, err := s.index.Search(ctx, index.CollectionCorrections, question, 3, map[string]string{"lang": language})
	if err != nil {
		return nil, fmt.Errorf("failed to search corrections: %w", err)
	}

	for _, result := range results {
		id, err := uuid.Parse(result.Metadata["correction_id"])
		if err != nil {
			continue
		}
		candidate, err := s.store.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("failed to load correction: %w", err)
		}
		if !candidate.IsActive || candidate.MatchRule != models.MatchSemantic {
			continue
		}
		if result.Similarity*100 >= candidate.Threshold {
			return candidate, nil
		}
	}

	return nil, nil
}

func (s *CorrectionService) syncIndex(ctx context.Context, correction *models.ManualCorrection) error {
	where := map[string]string{"correction_id": correction.ID.String()}

	if correction.MatchRule != models.MatchSemantic || !correction.IsActive {
		if err := s.index.Delete(ctx, index.CollectionCorrections, where); err != nil {
			s.logger.Warn("Failed to remove correction vector", zap.Error(err))
		}
		return nil
	}

	entry := index.Entry{
		ID:   correction.ID.String(),
		Text: correction.Question,
		Metadata: map[string]string{
			"correction_id": correction.ID.String(),
			"lang":          correction.Language,
		},
	}
	if err := s.index.Upsert(ctx, index.CollectionCorrections, []index.Entry{entry}); err != nil {
		return fmt.Errorf("failed to index correction: %w", err)
	}
	return nil
}

func (s *CorrectionService) invalidate(ctx context.Context, language string) {
	if err := s.cache.InvalidateLanguage(ctx, language); err != nil {
		s.logger.Warn("Failed to invalidate response cache", zap.String("language", language), zap.Error(err))
	}
}
