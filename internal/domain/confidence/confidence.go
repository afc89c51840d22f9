// Package confidence implements the epistemic confidence engine. Confidence
// is a bounded [0,100] score representing accumulated justification for
// taking increasingly consequential actions. Gains come from a named table
// of evidence reasons with diminishing returns on repeated observations of
// the same target; violations subtract fixed penalties.
package confidence

import (
	"fmt"
	"math"
	"time"

	"github.com/Strob0t/Sentinel/internal/domain/action"
	"github.com/Strob0t/Sentinel/internal/domain/session"
)

// Gains is the named table of evidence gain weights. Higher-rigor evidence
// (active verification, runtime probes) outweighs passive evidence (reading
// a file); canonical documentation outweighs ordinary source.
type Gains struct {
	Read         int     `yaml:"read"`          // first read of an ordinary source target
	DocRead      int     `yaml:"doc_read"`      // first read of a canonical documentation target
	Research     int     `yaml:"research"`      // external documentation lookup
	Probe        int     `yaml:"probe"`         // live API/endpoint probe
	Verify       int     `yaml:"verify"`        // active state verification
	VCS          int     `yaml:"vcs"`           // version-control inspection
	Test         int     `yaml:"test"`          // authoring a test
	RepeatFactor float64 `yaml:"repeat_factor"` // multiplier applied per repeat observation
}

// Violation names a confidence-penalized policy violation.
type Violation string

const (
	ViolationEditBeforeRead      Violation = "edit-before-read"
	ViolationUnverifiedClaim     Violation = "unverified-claim"
	ViolationUncheckedProduction Violation = "unchecked-production"
)

// Penalties maps violations to fixed subtraction amounts.
type Penalties struct {
	EditBeforeRead      int `yaml:"edit_before_read"`
	UnverifiedClaim     int `yaml:"unverified_claim"`
	UncheckedProduction int `yaml:"unchecked_production"`
}

// Config holds the full confidence engine configuration.
type Config struct {
	Gains       Gains     `yaml:"gains"`
	Penalties   Penalties `yaml:"penalties"`
	DocPatterns []string  `yaml:"doc_patterns"` // glob patterns marking canonical documentation targets
	Tiers       []Band    `yaml:"tiers"`
}

// Default returns the built-in confidence configuration.
func Default() Config {
	return Config{
		Gains: Gains{
			Read:         10,
			DocRead:      15,
			Research:     8,
			Probe:        12,
			Verify:       18,
			VCS:          5,
			Test:         8,
			RepeatFactor: 0.2,
		},
		Penalties: Penalties{
			EditBeforeRead:      15,
			UnverifiedClaim:     20,
			UncheckedProduction: 25,
		},
		DocPatterns: []string{"README*", "**/README*", "docs/**", "**/*.md"},
		Tiers:       DefaultBands(),
	}
}

// Engine computes confidence deltas and derives tiers.
type Engine struct {
	cfg Config
}

// NewEngine creates a confidence engine. The configuration is validated by
// the config loader; invalid tier bands fall back to the defaults so the
// engine never starts in an unusable state.
func NewEngine(cfg Config) *Engine {
	if err := ValidateBands(cfg.Tiers); err != nil {
		cfg.Tiers = DefaultBands()
	}
	return &Engine{cfg: cfg}
}

// Update applies the gain for a completed evidence-producing action, appends
// a ledger entry (even when the delta is zero), and returns the new
// confidence and the applied delta.
func (e *Engine) Update(s *session.Session, kind action.Kind, target string, now time.Time) (newConfidence, delta int) {
	base, reason := e.baseGain(kind, target)

	prior := 0
	if kind.Evidence() {
		prior = s.RecordRead(ledgerKey(kind, target))
	}

	gain := base
	if prior > 0 {
		// Diminishing returns: each repeat observation of the same target
		// is worth RepeatFactor of the previous one.
		gain = int(float64(base) * math.Pow(e.cfg.Gains.RepeatFactor, float64(prior)))
		reason = fmt.Sprintf("repeat %s (observation %d)", reason, prior+1)
	}

	applied := s.AddConfidence(gain)
	s.Append(session.Evidence{
		Turn:   s.Turn,
		Kind:   kind,
		Target: target,
		Delta:  applied,
		Reason: reason,
		At:     now,
	})
	s.UpdatedAt = now
	return s.Confidence, applied
}

// ApplyPenalty subtracts the violation-specific amount, floored at 0, and
// records the event in the ledger.
func (e *Engine) ApplyPenalty(s *session.Session, v Violation, target string, now time.Time) int {
	amount := 0
	switch v {
	case ViolationEditBeforeRead:
		amount = e.cfg.Penalties.EditBeforeRead
	case ViolationUnverifiedClaim:
		amount = e.cfg.Penalties.UnverifiedClaim
	case ViolationUncheckedProduction:
		amount = e.cfg.Penalties.UncheckedProduction
	}

	applied := s.AddConfidence(-amount)
	s.Append(session.Evidence{
		Turn:   s.Turn,
		Target: target,
		Delta:  applied,
		Reason: "penalty: " + string(v),
		At:     now,
	})
	s.UpdatedAt = now
	return s.Confidence
}

// TierFor derives the tier for a confidence score. Pure over the configured
// bands.
func (e *Engine) TierFor(conf int) Tier {
	return tierFor(e.cfg.Tiers, conf)
}

// EffectiveTier derives the tier for a confidence score under the current
// risk. A risk-saturated session is pinned to the lowest tier regardless of
// confidence.
func (e *Engine) EffectiveTier(conf, risk int) Tier {
	if risk >= session.ScoreMax {
		return tierFor(e.cfg.Tiers, 0)
	}
	return tierFor(e.cfg.Tiers, conf)
}

// baseGain returns the first-observation gain and ledger reason for a kind.
func (e *Engine) baseGain(kind action.Kind, target string) (int, string) {
	switch kind {
	case action.KindRead:
		if e.isDoc(target) {
			return e.cfg.Gains.DocRead, "doc-read"
		}
		return e.cfg.Gains.Read, "read"
	case action.KindResearch:
		return e.cfg.Gains.Research, "research"
	case action.KindProbe:
		return e.cfg.Gains.Probe, "probe"
	case action.KindVerify:
		return e.cfg.Gains.Verify, "verify"
	case action.KindVCS:
		return e.cfg.Gains.VCS, "vcs"
	case action.KindTest:
		return e.cfg.Gains.Test, "test-authoring"
	default:
		return 0, string(kind)
	}
}

func (e *Engine) isDoc(target string) bool {
	for _, p := range e.cfg.DocPatterns {
		if action.MatchGlob(p, target) {
			return true
		}
	}
	return false
}

// ledgerKey builds the read-map key. Reads are keyed by bare target so the
// read-before-write check sees them; other evidence kinds are namespaced so
// a probe of X does not satisfy "X was read".
func ledgerKey(kind action.Kind, target string) string {
	if kind == action.KindRead {
		return target
	}
	return string(kind) + ":" + target
}
