package db

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ResearchRun is one completed pipeline execution persisted for audit
// and retrieval over the HTTP API.
type ResearchRun struct {
	ID             string         `db:"id" json:"id"`
	SessionID      string         `db:"session_id" json:"session_id"`
	UserID         string         `db:"user_id" json:"user_id,omitempty"`
	Question       string         `db:"question" json:"question"`
	FinalAnswer    string         `db:"final_answer" json:"final_answer"`
	CanonicalAnswer string        `db:"canonical_answer" json:"canonical_answer"`
	ClaimCount     int            `db:"claim_count" json:"claim_count"`
	DocumentCount  int            `db:"document_count" json:"document_count"`
	RetryCount     int            `db:"retry_count" json:"retry_count"`
	MissingClaims  types.JSONText `db:"missing_claims" json:"missing_claims,omitempty"`
	Sources        types.JSONText `db:"sources" json:"sources,omitempty"`
	DurationMS     int64          `db:"duration_ms" json:"duration_ms"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}
