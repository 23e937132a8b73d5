package repository

import (
	"context"

	"campuschat/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type FeedbackRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewFeedbackRepository(db *pgxpool.Pool, logger *zap.Logger) *FeedbackRepository {
	return &FeedbackRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert records a rating, replacing any earlier rating for the same
// response. Users may change their mind.
func (r *FeedbackRepository) Upsert(ctx context.Context, feedback *models.Feedback) error {
	query := squirrel.Insert("feedback").
		Columns("response_id", "rating", "comment", "created_at", "updated_at").
		Values(feedback.ResponseID, feedback.Rating, feedback.Comment, feedback.CreatedAt, feedback.UpdatedAt).
		Suffix("ON CONFLICT (response_id) DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *FeedbackRepository) GetByResponseID(ctx context.Context, responseID uuid.UUID) (*models.Feedback, error) {
	query := squirrel.Select("response_id", "rating", "comment", "created_at", "updated_at").
		From("feedback").
		Where(squirrel.Eq{"response_id": responseID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var feedback models.Feedback
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&feedback.ResponseID, &feedback.Rating, &feedback.Comment, &feedback.CreatedAt, &feedback.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &feedback, nil
}
