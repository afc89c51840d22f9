// Package statestore defines the persistence ports for session and pattern
// state. Engines receive these interfaces instead of touching storage
// directly, so unit tests can run against in-memory stores.
package statestore

import (
	"context"

	"github.com/Strob0t/Sentinel/internal/domain/pattern"
	"github.com/Strob0t/Sentinel/internal/domain/session"
)

// SessionStore persists per-session state. Sessions are single-owner, so
// load/save needs no cross-session locking, but each save must be atomic —
// a torn write must never be observable as valid data.
type SessionStore interface {
	LoadSession(ctx context.Context, id string) (*session.Session, error)
	SaveSession(ctx context.Context, s *session.Session) error
}

// PatternStore persists shared per-pattern state. Metric updates are
// read-modify-write cycles against state shared by all concurrent sessions;
// Update must run fn under mutual exclusion to avoid lost updates.
type PatternStore interface {
	LoadPattern(ctx context.Context, name string) (*pattern.State, error)
	ListPatterns(ctx context.Context) ([]pattern.State, error)

	// Update loads the named pattern (or passes nil if absent), applies fn,
	// and persists the result, all under mutual exclusion. fn may replace a
	// nil state by returning a new one.
	Update(ctx context.Context, name string, fn func(*pattern.State) (*pattern.State, error)) (*pattern.State, error)

	// DeletePattern removes a pattern record (admin reset).
	DeletePattern(ctx context.Context, name string) error
}

// BypassRecord is one audited use of the override capability.
type BypassRecord struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Pattern   string `json:"pattern,omitempty"` // empty for tier-gate overrides
	Kind      string `json:"kind"`
	Target    string `json:"target,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// BypassAudit records override usage. Every override-based allow must
// produce exactly one attributable record.
type BypassAudit interface {
	RecordBypass(ctx context.Context, rec *BypassRecord) error
	ListBypasses(ctx context.Context, sessionID string) ([]BypassRecord, error)
}
