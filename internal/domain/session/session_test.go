package session

import (
	"testing"
	"time"

	"github.com/Strob0t/Sentinel/internal/domain/action"
)

func TestNewSessionDefaults(t *testing.T) {
	now := time.Now()
	s := New("s1", now)
	if s.Confidence != 0 || s.Risk != 0 || s.Turn != 0 {
		t.Fatalf("new session must start at zero, got %+v", s)
	}
	if s.Reads == nil {
		t.Fatal("reads map must be initialized")
	}
}

func TestAddConfidenceClamps(t *testing.T) {
	s := New("s1", time.Now())

	if applied := s.AddConfidence(150); applied != ScoreMax {
		t.Fatalf("expected clipped delta %d, got %d", ScoreMax, applied)
	}
	if s.Confidence != ScoreMax {
		t.Fatalf("confidence must clamp at %d, got %d", ScoreMax, s.Confidence)
	}

	if applied := s.AddConfidence(-250); applied != -ScoreMax {
		t.Fatalf("expected clipped delta %d, got %d", -ScoreMax, applied)
	}
	if s.Confidence != 0 {
		t.Fatalf("confidence must floor at 0, got %d", s.Confidence)
	}
}

func TestAddRiskIsOneWay(t *testing.T) {
	s := New("s1", time.Now())

	s.AddRisk(40)
	s.AddRisk(-30) // negative weights are ignored
	if s.Risk != 40 {
		t.Fatalf("risk must never decrease, got %d", s.Risk)
	}

	s.AddRisk(500)
	if s.Risk != ScoreMax {
		t.Fatalf("risk must clamp at %d, got %d", ScoreMax, s.Risk)
	}
}

func TestEscalatedIsSticky(t *testing.T) {
	s := New("s1", time.Now())
	s.AddRisk(ScoreMax)
	if !s.Escalated() {
		t.Fatal("expected escalation at saturation")
	}
	// No API lowers risk, so escalation can only persist.
	s.AddRisk(0)
	if !s.Escalated() {
		t.Fatal("escalation must be sticky")
	}
}

func TestRecordRead(t *testing.T) {
	s := New("s1", time.Now())

	if prior := s.RecordRead("a.go"); prior != 0 {
		t.Fatalf("first read should report prior 0, got %d", prior)
	}
	if prior := s.RecordRead("a.go"); prior != 1 {
		t.Fatalf("second read should report prior 1, got %d", prior)
	}
	if !s.HasRead("a.go") || s.HasRead("b.go") {
		t.Fatal("read tracking is per target")
	}
	if s.ReadCount("a.go") != 2 {
		t.Fatalf("expected 2 reads, got %d", s.ReadCount("a.go"))
	}
}

func TestAppendKeepsZeroDeltaEntries(t *testing.T) {
	s := New("s1", time.Now())
	s.Append(Evidence{Turn: 1, Kind: action.KindRead, Delta: 0, Reason: "read"})
	s.Append(Evidence{Turn: 2, Kind: action.KindVerify, Delta: 18, Reason: "verify"})
	if len(s.Evidence) != 2 {
		t.Fatalf("ledger must keep zero-delta entries, got %d", len(s.Evidence))
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ in, want int }{
		{-5, 0}, {0, 0}, {50, 50}, {100, 100}, {101, 100},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
