package pattern

// Action is what the caller should do about a detection.
type Action string

const (
	ActionNone  Action = "none"  // proceed silently
	ActionWarn  Action = "warn"  // emit advisory, proceed
	ActionBlock Action = "block" // stop the action
)

// ShouldEnforce is a pure function of the pattern's phase and the override
// signal. A nil state (unknown pattern) is a no-op, never an error. An
// override during ENFORCE downgrades the block to an advisory for this call
// only; the persistent phase is unchanged and the caller must record exactly
// one bypass event.
func ShouldEnforce(s *State, override bool) (Action, string) {
	if s == nil {
		return ActionNone, ""
	}
	switch s.Phase {
	case PhaseWarn:
		return ActionWarn, s.advisoryText()
	case PhaseEnforce:
		if override {
			return ActionWarn, s.advisoryText()
		}
		return ActionBlock, "pattern " + s.Name + " is enforced: " + s.advisoryText()
	default:
		return ActionNone, ""
	}
}

func (s *State) advisoryText() string {
	if s.Advisory != "" {
		return s.Advisory
	}
	return "recurring pattern " + s.Name + " detected; consider a different approach"
}

// Catalog maps known pattern names to their advisory text (the suggested
// alternative shown during WARN). Detectors live outside the engine; this
// is only the messaging side.
var Catalog = map[string]string{
	"redundant-fetch":    "this resource was already fetched this session; reuse the earlier result instead of fetching again",
	"shotgun-edit":       "many small edits to the same file in quick succession; batch them into one reviewed change",
	"blind-retry":        "the same failing command is being retried unchanged; inspect the error before retrying",
	"scatter-read":       "wide shallow reads across the tree; narrow the search with a targeted query first",
	"premature-write":    "writing before the surrounding code was explored; read the neighboring modules first",
	"test-skip":          "tests are being bypassed repeatedly; run the suite before the next change",
	"config-thrash":      "configuration rewritten several times in a row; settle the desired end state first",
	"giant-diff":         "single change touching many files; split it into reviewable steps",
	"log-spelunking":     "re-reading the same logs repeatedly; capture the relevant excerpt once",
	"dependency-churn":   "dependencies added and removed in quick succession; decide the dependency set first",
}

// AdvisoryFor returns the catalog advisory for a pattern name, or empty for
// unknown patterns.
func AdvisoryFor(name string) string {
	return Catalog[name]
}
