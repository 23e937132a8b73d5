package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatSession is one ongoing conversation. The id is handed to the client as
// an opaque capability token; existence and activity are re-validated on
// every request.
type ChatSession struct {
	ID         uuid.UUID `db:"id"`
	UserID     string    `db:"user_id"`
	Language   string    `db:"language"`
	IsActive   bool      `db:"is_active"`
	TotalTurns int       `db:"total_turns"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// TurnMetadata is stored as jsonb alongside each turn.
type TurnMetadata struct {
	Sources    []Source `json:"sources,omitempty"`
	Confidence float64  `json:"confidence"`
	Cached     bool     `json:"cached,omitempty"`
	Error      bool     `json:"error,omitempty"`
	Partial    bool     `json:"partial,omitempty"`
}

// Source describes one retrieved grounding source of an answer.
type Source struct {
	Title     string  `json:"title"`
	Relevance float64 `json:"relevance"` // 0-100
	Type      string  `json:"type"`      // "document", "correction"
}

// ConversationTurn is one question/answer exchange. Immutable once written;
// turn numbers are strictly increasing per session.
type ConversationTurn struct {
	ID          uuid.UUID    `db:"id"`
	SessionID   uuid.UUID    `db:"session_id"`
	TurnNumber  int          `db:"turn_number"`
	UserMessage string       `db:"user_message"`
	BotResponse string       `db:"bot_response"`
	Metadata    TurnMetadata `db:"metadata"`
	CreatedAt   time.Time    `db:"created_at"`
}
