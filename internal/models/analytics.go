package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryAnalytics is one append-only record per answered query. Written for
// monitoring, never read back into the request path.
type QueryAnalytics struct {
	ID             uuid.UUID `db:"id"`
	SessionID      uuid.UUID `db:"session_id"`
	Query          string    `db:"query"`
	Language       string    `db:"language"`
	ResponseTimeMs int64     `db:"response_time_ms"`
	WasCached      bool      `db:"was_cached"`
	Confidence     float64   `db:"confidence"`
	SourcesFound   bool      `db:"sources_found"`
	ErrorOccurred  bool      `db:"error_occurred"`
	CreatedAt      time.Time `db:"created_at"`
}
