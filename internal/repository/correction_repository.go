package repository

import (
	"context"

	"campuschat/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type CorrectionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCorrectionRepository(db *pgxpool.Pool, logger *zap.Logger) *CorrectionRepository {
	return &CorrectionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *CorrectionRepository) Create(ctx context.Context, correction *models.ManualCorrection) error {
	query := squirrel.Insert("manual_corrections").
		Columns("id", "question", "answer", "language", "match_rule", "threshold", "is_active", "created_at", "updated_at").
		Values(correction.ID, correction.Question, correction.Answer, correction.Language, correction.MatchRule, correction.Threshold, correction.IsActive, correction.CreatedAt, correction.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *CorrectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ManualCorrection, error) {
	query := squirrel.Select(correctionColumns...).
		From("manual_corrections").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var correction models.ManualCorrection
	err = r.db.QueryRow(ctx, sql, args...).Scan(correctionFields(&correction)...)
	if err != nil {
		return nil, err
	}

	return &correction, nil
}

func (r *CorrectionRepository) Update(ctx context.Context, correction *models.ManualCorrection) (bool, error) {
	query := squirrel.Update("manual_corrections").
		Set("question", correction.Question).
		Set("answer", correction.Answer).
		Set("language", correction.Language).
		Set("match_rule", correction.MatchRule).
		Set("threshold", correction.Threshold).
		Set("is_active", correction.IsActive).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": correction.ID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CorrectionRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	query := squirrel.Delete("manual_corrections").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CorrectionRepository) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.ManualCorrection, error) {
	builder := squirrel.Select(correctionColumns...).
		From("manual_corrections").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(squirrel.Dollar)

	if activeOnly {
		builder = builder.Where(squirrel.Eq{"is_active": true})
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var corrections []*models.ManualCorrection
	for rows.Next() {
		var correction models.ManualCorrection
		if err := rows.Scan(correctionFields(&correction)...); err != nil {
			return nil, err
		}
		corrections = append(corrections, &correction)
	}

	return corrections, rows.Err()
}

// FindExact matches an active exact-rule correction by normalized question
// text. Case folding happens in SQL so the stored question keeps its casing.
func (r *CorrectionRepository) FindExact(ctx context.Context, question, language string) (*models.ManualCorrection, error) {
	query := squirrel.Select(correctionColumns...).
		From("manual_corrections").
		Where(squirrel.Expr("LOWER(question) = LOWER(?)", question)).
		Where(squirrel.Eq{"language": language, "match_rule": models.MatchExact, "is_active": true}).
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var correction models.ManualCorrection
	err = r.db.QueryRow(ctx, sql, args...).Scan(correctionFields(&correction)...)
	if err != nil {
		return nil, err
	}

	return &correction, nil
}

var correctionColumns = []string{
	"id", "question", "answer", "language", "match_rule", "threshold", "is_active", "created_at", "updated_at",
}

func correctionFields(c *models.ManualCorrection) []any {
	return []any{
		&c.ID, &c.Question, &c.Answer, &c.Language, &c.MatchRule, &c.Threshold, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	}
}
