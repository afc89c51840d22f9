// Package session holds the per-session epistemic state: confidence and risk
// scores, the append-only evidence ledger, and the read-target map used for
// diminishing-returns and read-before-write checks.
package session

import (
	"time"

	"github.com/Strob0t/Sentinel/internal/domain/action"
)

// ScoreMax is the upper bound for both confidence and risk.
const ScoreMax = 100

// Evidence is one immutable entry in the session's evidence ledger.
type Evidence struct {
	Turn   int         `json:"turn"`
	Kind   action.Kind `json:"kind"`
	Target string      `json:"target,omitempty"`
	Delta  int         `json:"delta"`
	Reason string      `json:"reason"`
	At     time.Time   `json:"at"`
}

// Session is the per-agent-session state record. It is owned exclusively by
// the session that created it; no cross-session locking is needed.
type Session struct {
	ID            string         `json:"id"`
	Confidence    int            `json:"confidence"`
	Risk          int            `json:"risk"`
	Turn          int            `json:"turn"`
	Evidence      []Evidence     `json:"evidence"`
	Reads         map[string]int `json:"reads"`
	TokenEstimate int            `json:"token_estimate"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// New creates a fresh session with zero confidence and zero risk.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Reads:     make(map[string]int),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ReadCount returns how many times a target has been read this session.
func (s *Session) ReadCount(target string) int {
	return s.Reads[target]
}

// HasRead reports whether the target was read at least once this session.
func (s *Session) HasRead(target string) bool {
	return s.Reads[target] > 0
}

// RecordRead increments the read count for a target and returns the count
// before the increment (used for diminishing-returns computation).
func (s *Session) RecordRead(target string) int {
	if s.Reads == nil {
		s.Reads = make(map[string]int)
	}
	prior := s.Reads[target]
	s.Reads[target] = prior + 1
	return prior
}

// Append adds an evidence entry to the ledger. Entries are appended even for
// zero deltas so every confidence-affecting event stays auditable.
func (s *Session) Append(e Evidence) {
	s.Evidence = append(s.Evidence, e)
}

// AddConfidence applies a delta and clamps the result to [0,100].
// Returns the applied (possibly clipped) delta.
func (s *Session) AddConfidence(delta int) int {
	prev := s.Confidence
	s.Confidence = Clamp(s.Confidence + delta)
	return s.Confidence - prev
}

// AddRisk accumulates risk weight, clamped to [0,100]. Risk never decreases
// on its own within a session.
func (s *Session) AddRisk(weight int) int {
	if weight < 0 {
		weight = 0
	}
	s.Risk = Clamp(s.Risk + weight)
	return s.Risk
}

// Escalated reports whether risk has reached saturation. Once true it stays
// true for the lifetime of the session, like a breaker stuck open.
func (s *Session) Escalated() bool {
	return s.Risk >= ScoreMax
}

// Clamp bounds a score to [0,100].
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > ScoreMax {
		return ScoreMax
	}
	return v
}
