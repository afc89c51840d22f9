package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/Sentinel/internal/domain"
	"github.com/Strob0t/Sentinel/internal/domain/action"
	"github.com/Strob0t/Sentinel/internal/domain/confidence"
	"github.com/Strob0t/Sentinel/internal/domain/pattern"
)

func TestReportRequiresSessionID(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.Report(context.Background(), &action.Outcome{Kind: action.KindRead})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReportSuccessfulReadGainsConfidence(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	sess, err := svc.Report(context.Background(), &action.Outcome{
		SessionID: "s1", Kind: action.KindRead, Target: "internal/app.go", Success: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := confidence.Default().Gains.Read
	if sess.Confidence != want {
		t.Fatalf("expected confidence %d after first read, got %d", want, sess.Confidence)
	}
	if !sess.HasRead("internal/app.go") {
		t.Fatal("read target not recorded")
	}
	if len(sess.Evidence) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(sess.Evidence))
	}
}

func TestReportRepeatReadDiminishes(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	out := &action.Outcome{SessionID: "s1", Kind: action.KindRead, Target: "a.go", Success: true}
	first, err := svc.Report(ctx, out)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Report(ctx, out)
	if err != nil {
		t.Fatal(err)
	}

	firstGain := first.Evidence[0].Delta
	secondGain := second.Evidence[1].Delta
	if secondGain >= firstGain {
		t.Fatalf("repeat gain %d should be below first gain %d", secondGain, firstGain)
	}
}

func TestReportFailureGainsNothing(t *testing.T) {
	svc := newTestService(newMemStore())

	sess, err := svc.Report(context.Background(), &action.Outcome{
		SessionID: "s1", Kind: action.KindRead, Target: "a.go", Success: false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Confidence != 0 {
		t.Fatalf("failed action must not gain confidence, got %d", sess.Confidence)
	}
}

func TestReportViolationPenalty(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	// Build up some confidence first.
	for _, target := range []string{"a.go", "b.go", "c.go"} {
		if _, err := svc.Report(ctx, &action.Outcome{
			SessionID: "s1", Kind: action.KindVerify, Target: target, Success: true,
		}); err != nil {
			t.Fatal(err)
		}
	}
	before := store.sessions["s1"].Confidence

	sess, err := svc.Report(ctx, &action.Outcome{
		SessionID: "s1", Kind: action.KindEdit, Target: "d.go", Success: true,
		Violation: string(confidence.ViolationEditBeforeRead),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := before - confidence.Default().Penalties.EditBeforeRead
	if want < 0 {
		want = 0
	}
	if sess.Confidence != want {
		t.Fatalf("expected confidence %d after penalty, got %d", want, sess.Confidence)
	}
}

func TestReportPenaltyFloorsAtZero(t *testing.T) {
	svc := newTestService(newMemStore())

	sess, err := svc.Report(context.Background(), &action.Outcome{
		SessionID: "s1", Kind: action.KindEdit, Success: true,
		Violation: string(confidence.ViolationUncheckedProduction),
	})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Confidence != 0 {
		t.Fatalf("confidence must floor at zero, got %d", sess.Confidence)
	}
}

func TestReportUnknownViolationIgnored(t *testing.T) {
	svc := newTestService(newMemStore())

	sess, err := svc.Report(context.Background(), &action.Outcome{
		SessionID: "s1", Kind: action.KindRead, Target: "a.go", Success: true,
		Violation: "made-up",
	})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Confidence != confidence.Default().Gains.Read {
		t.Fatalf("unknown violation must not penalize, got %d", sess.Confidence)
	}
}

func TestReportCorrectionConfirmsPattern(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	st := pattern.NewState("blind-retry", "", pattern.DefaultConfig(), 1, time.Now())
	st.RecordDetection(1, time.Now())
	store.patterns["blind-retry"] = st

	_, err := svc.Report(context.Background(), &action.Outcome{
		SessionID: "s1", Kind: action.KindEdit, Target: "a.go", Success: true,
		Corrected: []string{"blind-retry", "never-seen"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := store.patterns["blind-retry"].Metrics.Corrected; got != 1 {
		t.Fatalf("expected 1 correction, got %d", got)
	}
	if _, ok := store.patterns["never-seen"]; ok {
		t.Fatal("corrections must not create patterns")
	}
}
