package repository

import (
	"context"

	"campuschat/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type AnalyticsRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAnalyticsRepository(db *pgxpool.Pool, logger *zap.Logger) *AnalyticsRepository {
	return &AnalyticsRepository{
		db:     db,
		logger: logger,
	}
}

func (r *AnalyticsRepository) Insert(ctx context.Context, record *models.QueryAnalytics) error {
	query := squirrel.Insert("query_analytics").
		Columns("id", "session_id", "query", "language", "response_time_ms", "was_cached", "confidence", "sources_found", "error_occurred", "created_at").
		Values(record.ID, record.SessionID, record.Query, record.Language, record.ResponseTimeMs, record.WasCached, record.Confidence, record.SourcesFound, record.ErrorOccurred, record.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}
