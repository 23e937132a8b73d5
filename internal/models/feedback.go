package models

import (
	"time"

	"github.com/google/uuid"
)

type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
)

// Feedback is a user's rating of one answer, upsertable per response id.
type Feedback struct {
	ResponseID uuid.UUID `db:"response_id"`
	Rating     Rating    `db:"rating"`
	Comment    string    `db:"comment"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}
