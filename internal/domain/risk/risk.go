// Package risk implements the danger-detection engine. Risk is a bounded
// [0,100] one-way accumulator: detected dangerous actions add weight, nothing
// subtracts it, and once the score saturates every further risky attempt
// demands an out-of-band review — a circuit breaker tripped by cumulative
// weight rather than consecutive failures.
package risk

import (
	"fmt"
	"regexp"

	"github.com/Strob0t/Sentinel/internal/domain/session"
)

// Rule is one entry in the declarative catalog of destructive-operation
// signatures. Rules are matched against command-like actions and can be
// tested independently of the engine.
type Rule struct {
	ID      string
	Pattern *regexp.Regexp
	Weight  int
	Message string
}

// Event records a single dangerous-action detection. It is not persisted
// beyond the session's evidence ledger.
type Event struct {
	RuleID string `json:"rule_id"`
	Weight int    `json:"weight"`
	Reason string `json:"reason"`
}

// DefaultRules returns the built-in destructive-operation catalog.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:      "recursive-root-delete",
			Pattern: regexp.MustCompile(`\brm\s+(-[a-zA-Z]*r[a-zA-Z]*f|-[a-zA-Z]*f[a-zA-Z]*r)[a-zA-Z]*\s+(/|/\S*|\$HOME\b|~(/)?($|\s))`),
			Weight:  40,
			Message: "recursive forced deletion rooted at a filesystem root",
		},
		{
			ID:      "raw-device-write",
			Pattern: regexp.MustCompile(`\bdd\b[^|;]*\bof=/dev/\S+`),
			Weight:  40,
			Message: "raw write to a block device",
		},
		{
			ID:      "world-writable-chmod",
			Pattern: regexp.MustCompile(`\bchmod\s+(-[a-zA-Z]+\s+)*(777|a\+rwx?|o\+w)\b`),
			Weight:  25,
			Message: "world-writable permission change",
		},
		{
			ID:      "pipe-fetch-to-shell",
			Pattern: regexp.MustCompile(`\b(curl|wget)\b[^|;]*\|\s*(sudo\s+)?(ba|z|da)?sh\b`),
			Weight:  40,
			Message: "piping a network-fetched payload into a command interpreter",
		},
		{
			ID:      "fork-bomb",
			Pattern: regexp.MustCompile(`:\(\)\s*{\s*:\|:`),
			Weight:  40,
			Message: "fork bomb",
		},
		{
			ID:      "mkfs-on-device",
			Pattern: regexp.MustCompile(`\bmkfs(\.\w+)?\s+/dev/\S+`),
			Weight:  40,
			Message: "filesystem creation over an existing device",
		},
	}
}

// Engine matches commands against the rule catalog and accumulates risk.
type Engine struct {
	rules []Rule
}

// NewEngine creates a risk engine over the given catalog. An empty catalog
// falls back to the defaults.
func NewEngine(rules []Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Engine{rules: rules}
}

// Classify matches a command-like action against the catalog. The first
// matching rule wins; the catalog orders broader signatures last.
func (e *Engine) Classify(command string) (Event, bool) {
	if command == "" {
		return Event{}, false
	}
	for _, r := range e.rules {
		if r.Pattern.MatchString(command) {
			return Event{
				RuleID: r.ID,
				Weight: r.Weight,
				Reason: fmt.Sprintf("%s: %s", r.ID, r.Message),
			}, true
		}
	}
	return Event{}, false
}

// Increment accumulates the event's weight on the session, clamped to
// [0,100]. Returns the new risk score.
func (e *Engine) Increment(s *session.Session, ev Event) int {
	return s.AddRisk(ev.Weight)
}

// Escalated reports whether the risk score has reached saturation. While
// saturated, every risky-action attempt must return the mandatory-escalation
// verdict, even across intervening non-risky actions.
func Escalated(risk int) bool {
	return risk >= session.ScoreMax
}
