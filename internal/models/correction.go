package models

import (
	"time"

	"github.com/google/uuid"
)

type MatchRule string

const (
	MatchExact    MatchRule = "exact"
	MatchSemantic MatchRule = "semantic"
)

// ManualCorrection is an admin-authored override. Active corrections take
// precedence over both the response cache and generated answers.
type ManualCorrection struct {
	ID        uuid.UUID `db:"id"`
	Question  string    `db:"question"`
	Answer    string    `db:"answer"`
	Language  string    `db:"language"`
	MatchRule MatchRule `db:"match_rule"`
	Threshold float64   `db:"threshold"` // 0-100, semantic rule only
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
