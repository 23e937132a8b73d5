package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campuschat/internal/models"
	"campuschat/pkg/config"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type SessionStore interface {
	Create(ctx context.Context, session *models.ChatSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)
	AppendTurn(ctx context.Context, turn *models.ConversationTurn) error
	ListTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ConversationTurn, error)
	Close(ctx context.Context, id uuid.UUID) (bool, error)
	CloseIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

type SessionService struct {
	store  SessionStore
	config *config.SessionConfig
	logger *zap.Logger
}

func NewSessionService(store SessionStore, cfg *config.SessionConfig, logger *zap.Logger) *SessionService {
	return &SessionService{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// Resolve returns the session a request belongs to and whether it had to be
// created. An id that is missing, malformed, unknown or closed starts a
// fresh session instead of failing: clients hold on to expired session ids
// and should silently get a new conversation. Only storage failures error.
func (s *SessionService) Resolve(ctx context.Context, sessionID, userID, language string) (*models.ChatSession, bool, error) {
	if sessionID != "" {
		if id, err := uuid.Parse(sessionID); err == nil {
			session, err := s.store.GetByID(ctx, id)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return nil, false, fmt.Errorf("failed to load session: %w", err)
			}
			if err == nil && session.IsActive {
				return session, false, nil
			}
		}
		s.logger.Info("Stale session id, starting fresh", zap.String("session_id", sessionID))
	}

	now := time.Now()
	session := &models.ChatSession{
		ID:        uuid.New(),
		UserID:    userID,
		Language:  language,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("Session started", zap.String("session_id", session.ID.String()))
	return session, true, nil
}

// History returns a session's turns, oldest first.
func (s *SessionService) History(ctx context.Context, sessionID string, limit int) ([]*models.ConversationTurn, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if _, err := s.store.GetByID(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return s.store.ListTurns(ctx, id, limit)
}

// BuildContext renders the last few turns into the prompt history block.
func (s *SessionService) BuildContext(ctx context.Context, session *models.ChatSession) (string, error) {
	if session.TotalTurns == 0 {
		return "", nil
	}

	turns, err := s.store.ListTurns(ctx, session.ID, s.config.ContextTurns)
	if err != nil {
		return "", fmt.Errorf("failed to load conversation history: %w", err)
	}

	var b strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", turn.UserMessage, turn.BotResponse)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// AppendTurn persists one exchange. Turn numbering is assigned by the
// store inside a transaction, so concurrent appends cannot collide.
func (s *SessionService) AppendTurn(ctx context.Context, session *models.ChatSession, question, answer string, metadata models.TurnMetadata) (*models.ConversationTurn, error) {
	turn := &models.ConversationTurn{
		ID:          uuid.New(),
		SessionID:   session.ID,
		UserMessage: sanitizeUTF8(question),
		BotResponse: sanitizeUTF8(answer),
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}

	if err := s.store.AppendTurn(ctx, turn); err != nil {
		// The turn counter update matches only active sessions.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionClosed
		}
		return nil, fmt.Errorf("failed to record turn: %w", err)
	}

	session.TotalTurns = turn.TurnNumber
	return turn, nil
}

func (s *SessionService) Close(ctx context.Context, sessionID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return ErrSessionNotFound
	}

	ok, err := s.store.Close(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}

	s.logger.Info("Session closed", zap.String("session_id", sessionID))
	return nil
}

// CloseIdle deactivates sessions idle longer than the configured TTL.
func (s *SessionService) CloseIdle(ctx context.Context) (int64, error) {
	return s.store.CloseIdle(ctx, time.Now().Add(-s.config.TTL))
}
