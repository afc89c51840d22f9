package pattern

import (
	"strings"
	"testing"
	"time"
)

func TestShouldEnforce(t *testing.T) {
	mk := func(phase Phase) *State {
		st := NewState("blind-retry", AdvisoryFor("blind-retry"), DefaultConfig(), 1, time.Now())
		st.Phase = phase
		return st
	}

	if act, _ := ShouldEnforce(nil, false); act != ActionNone {
		t.Fatalf("nil state must be a no-op, got %s", act)
	}
	if act, _ := ShouldEnforce(mk(PhaseObserve), false); act != ActionNone {
		t.Fatalf("observe must be silent, got %s", act)
	}

	act, msg := ShouldEnforce(mk(PhaseWarn), false)
	if act != ActionWarn || msg == "" {
		t.Fatalf("warn must advise, got %s %q", act, msg)
	}

	act, msg = ShouldEnforce(mk(PhaseEnforce), false)
	if act != ActionBlock {
		t.Fatalf("enforce must block, got %s", act)
	}
	if !strings.Contains(msg, "blind-retry") {
		t.Fatalf("block message must name the pattern, got %q", msg)
	}

	// Override downgrades the block to an advisory for this call only.
	st := mk(PhaseEnforce)
	act, _ = ShouldEnforce(st, true)
	if act != ActionWarn {
		t.Fatalf("override must downgrade to warn, got %s", act)
	}
	if st.Phase != PhaseEnforce {
		t.Fatal("override must not change the persistent phase")
	}
}

func TestAdvisoryFallbackText(t *testing.T) {
	st := NewState("novel-pattern", "", DefaultConfig(), 1, time.Now())
	st.Phase = PhaseWarn

	_, msg := ShouldEnforce(st, false)
	if !strings.Contains(msg, "novel-pattern") {
		t.Fatalf("fallback advisory must name the pattern, got %q", msg)
	}
}

func TestCatalogEntriesNonEmpty(t *testing.T) {
	if len(Catalog) == 0 {
		t.Fatal("catalog must not be empty")
	}
	for name, advisory := range Catalog {
		if advisory == "" {
			t.Errorf("catalog entry %q has no advisory", name)
		}
	}
	if AdvisoryFor("not-in-catalog") != "" {
		t.Fatal("unknown patterns have no advisory")
	}
}
