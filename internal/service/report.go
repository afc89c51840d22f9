package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/Sentinel/internal/adapter/otel"
	"github.com/Strob0t/Sentinel/internal/domain"
	"github.com/Strob0t/Sentinel/internal/domain/action"
	"github.com/Strob0t/Sentinel/internal/domain/confidence"
	"github.com/Strob0t/Sentinel/internal/domain/pattern"
	"github.com/Strob0t/Sentinel/internal/domain/session"
)

// Report records the outcome of a completed action. Confidence moves only
// here: evidence gains for successful evidence-producing actions, penalties
// for reported violations. A denied action never reaches Report, so it
// cannot change confidence.
func (g *GateService) Report(ctx context.Context, out *action.Outcome) (*session.Session, error) {
	if out == nil || out.SessionID == "" {
		return nil, fmt.Errorf("gate report: session_id is required: %w", domain.ErrValidation)
	}

	ctx, span := otel.StartReportSpan(ctx, out.SessionID, string(out.Kind))
	defer span.End()

	sess, _ := g.loadSession(ctx, out.SessionID)
	now := g.now()

	if out.Success && out.Kind.Evidence() {
		_, delta := g.conf.Update(sess, out.Kind, out.Target, now)
		slog.DebugContext(ctx, "confidence gain",
			"session_id", sess.ID, "kind", out.Kind, "target", out.Target, "delta", delta)
	}

	if v, ok := parseViolation(out.Violation); ok {
		g.conf.ApplyPenalty(sess, v, out.Target, now)
		slog.InfoContext(ctx, "violation penalty applied",
			"session_id", sess.ID, "violation", out.Violation,
			"confidence", sess.Confidence)
	} else if out.Violation != "" {
		slog.WarnContext(ctx, "unknown violation ignored",
			"session_id", sess.ID, "violation", out.Violation)
	}

	g.recordCorrections(ctx, out.Corrected, now)

	if out.TokenEstimate > 0 {
		sess.TokenEstimate = out.TokenEstimate
	}
	sess.UpdatedAt = now

	g.persistSession(ctx, sess)
	return sess, nil
}

// recordCorrections confirms detections as true positives. Each named
// pattern must already exist; corrections for unknown patterns are dropped.
func (g *GateService) recordCorrections(ctx context.Context, names []string, now time.Time) {
	for _, name := range names {
		_, err := g.patterns.Update(ctx, name, func(cur *pattern.State) (*pattern.State, error) {
			if cur == nil {
				return nil, nil
			}
			cur.RecordCorrection(now)
			return cur, nil
		})
		if err != nil {
			slog.WarnContext(ctx, "correction record failed", "pattern", name, "error", err)
		}
	}
}

func parseViolation(s string) (confidence.Violation, bool) {
	switch v := confidence.Violation(s); v {
	case confidence.ViolationEditBeforeRead,
		confidence.ViolationUnverifiedClaim,
		confidence.ViolationUncheckedProduction:
		return v, true
	}
	return "", false
}
