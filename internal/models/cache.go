package models

import "time"

// CachedResponse is a prior answer keyed by the fingerprint of the
// normalized question and language.
type CachedResponse struct {
	Fingerprint string    `db:"fingerprint"`
	Question    string    `db:"question"`
	Language    string    `db:"language"`
	Answer      string    `db:"answer"`
	Sources     []Source  `db:"sources"`
	Confidence  float64   `db:"confidence"`
	ExpiresAt   time.Time `db:"expires_at"`
	CreatedAt   time.Time `db:"created_at"`
}

// Expired reports whether the entry is past its TTL.
func (c *CachedResponse) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
