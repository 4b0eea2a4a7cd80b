package session

import (
	"errors"
	"time"

	"github.com/parallaxlabs/deepresearch/internal/research"
)

var (
	// ErrNotFound is returned when no checkpoint exists for a session.
	ErrNotFound = errors.New("session checkpoint not found")
)

// Checkpoint is the latest persisted ResearchState for one session.
type Checkpoint struct {
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id,omitempty"`
	State     *research.State `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MemoryEntry is one append-only long-term memory record for a user.
type MemoryEntry struct {
	ID        string                 `json:"id"`
	Value     map[string]interface{} `json:"value"`
	CreatedAt time.Time              `json:"created_at"`
}
