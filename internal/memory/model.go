package memory

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// DefaultMaxTurns bounds a session history when no explicit bound is given.
const DefaultMaxTurns = 10

// Turn is one chat message in a session history.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at,omitempty"`
}

// Store holds bounded, ordered chat histories keyed by an opaque session id.
//
// Append adds the turn at the tail and keeps only the last maxLen turns,
// returning the resulting history. LastN returns up to n of the most recent
// turns, oldest first. Unknown sessions behave as empty. Clear is idempotent.
type Store interface {
	Append(ctx context.Context, sessionID string, turn Turn, maxLen int) ([]Turn, error)
	LastN(ctx context.Context, sessionID string, n int) ([]Turn, error)
	Clear(ctx context.Context, sessionID string) error
}
