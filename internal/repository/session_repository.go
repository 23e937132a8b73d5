package repository

import (
	"context"
	"time"

	"campuschat/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type SessionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSessionRepository(db *pgxpool.Pool, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.ChatSession) error {
	query := squirrel.Insert("chat_sessions").
		Columns("id", "user_id", "language", "is_active", "total_turns", "created_at", "updated_at").
		Values(session.ID, session.UserID, session.Language, session.IsActive, session.TotalTurns, session.CreatedAt, session.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	query := squirrel.Select("id", "user_id", "language", "is_active", "total_turns", "created_at", "updated_at").
		From("chat_sessions").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var session models.ChatSession
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&session.ID, &session.UserID, &session.Language, &session.IsActive, &session.TotalTurns, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// AppendTurn assigns the next turn number and inserts the turn in one
// transaction. The session row update takes a row lock, so concurrent
// appends to the same session serialize and numbers never collide.
func (r *SessionRepository) AppendTurn(ctx context.Context, turn *models.ConversationTurn) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	updQuery := squirrel.Update("chat_sessions").
		Set("total_turns", squirrel.Expr("total_turns + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": turn.SessionID, "is_active": true}).
		Suffix("RETURNING total_turns").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := updQuery.ToSql()
	if err != nil {
		return err
	}
	if err := tx.QueryRow(ctx, sql, args...).Scan(&turn.TurnNumber); err != nil {
		return err
	}

	insQuery := squirrel.Insert("conversation_turns").
		Columns("id", "session_id", "turn_number", "user_message", "bot_response", "metadata", "created_at").
		Values(turn.ID, turn.SessionID, turn.TurnNumber, turn.UserMessage, turn.BotResponse, turn.Metadata, turn.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err = insQuery.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *SessionRepository) ListTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ConversationTurn, error) {
	builder := squirrel.Select("id", "session_id", "turn_number", "user_message", "bot_response", "metadata", "created_at").
		From("conversation_turns").
		Where(squirrel.Eq{"session_id": sessionID}).
		OrderBy("turn_number DESC").
		PlaceholderFormat(squirrel.Dollar)

	if limit > 0 {
		builder = builder.Limit(uint64(limit))
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

	var turns []*models.ConversationTurn
	for rows.Next() {
		var turn models.ConversationTurn
		if err := rows.Scan(
			&turn.ID, &turn.SessionID, &turn.TurnNumber, &turn.UserMessage, &turn.BotResponse, &turn.Metadata, &turn.CreatedAt,
		); err != nil {
			return nil, err
		}
		turns = append(turns, &turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Oldest first for prompt assembly.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

func (r *SessionRepository) Close(ctx context.Context, id uuid.UUID) (bool, error) {
	query := squirrel.Update("chat_sessions").
		Set("is_active", false).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id, "is_active": true}).
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

// CloseIdle deactivates sessions whose last activity is older than cutoff.
func (r *SessionRepository) CloseIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	query := squirrel.Update("chat_sessions").
		Set("is_active", false).
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.Lt{"updated_at": cutoff}).
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
