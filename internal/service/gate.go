package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/Sentinel/internal/adapter/otel"
	"github.com/Strob0t/Sentinel/internal/adapter/ws"
	"github.com/Strob0t/Sentinel/internal/domain"
	"github.com/Strob0t/Sentinel/internal/domain/action"
	"github.com/Strob0t/Sentinel/internal/domain/confidence"
	"github.com/Strob0t/Sentinel/internal/domain/gate"
	"github.com/Strob0t/Sentinel/internal/domain/pattern"
	"github.com/Strob0t/Sentinel/internal/domain/risk"
	"github.com/Strob0t/Sentinel/internal/domain/session"
	"github.com/Strob0t/Sentinel/internal/port/broadcast"
	"github.com/Strob0t/Sentinel/internal/port/cache"
	"github.com/Strob0t/Sentinel/internal/port/eventbus"
	"github.com/Strob0t/Sentinel/internal/port/statestore"
	"github.com/Strob0t/Sentinel/internal/resilience"
)

// GateService orchestrates one gate evaluation: session state, the risk and
// confidence engines, the tier gate, and pattern enforcement. It owns
// persistence, caching, audit, and event fan-out around the pure domain logic.
type GateService struct {
	gate  *gate.Gate
	conf  *confidence.Engine
	risk  *risk.Engine
	tuner pattern.Config

	sessions statestore.SessionStore
	patterns statestore.PatternStore
	audit    statestore.BypassAudit
	cache    cache.Cache         // optional session snapshot cache
	bus      eventbus.Publisher  // optional audit event bus
	caster   broadcast.Broadcaster
	breaker  *resilience.Breaker
	metrics  *otel.Metrics

	cacheTTL time.Duration
	group    singleflight.Group
	now      func() time.Time

	// In-memory fallback sessions served while the store is unavailable.
	// Decisions from these are marked non-durable.
	memMu sync.Mutex
	mem   map[string]*session.Session
}

// GateDeps bundles the injected dependencies for NewGateService. Cache, bus,
// caster, and metrics may be nil; the service degrades to synchronous
// store-only operation.
type GateDeps struct {
	Gate     *gate.Gate
	Conf     *confidence.Engine
	Risk     *risk.Engine
	Tuner    pattern.Config
	Sessions statestore.SessionStore
	Patterns statestore.PatternStore
	Audit    statestore.BypassAudit
	Cache    cache.Cache
	Bus      eventbus.Publisher
	Caster   broadcast.Broadcaster
	Breaker  *resilience.Breaker
	Metrics  *otel.Metrics
	CacheTTL time.Duration
}

// NewGateService creates the gate orchestration service.
func NewGateService(deps GateDeps) *GateService {
	return &GateService{
		gate:     deps.Gate,
		conf:     deps.Conf,
		risk:     deps.Risk,
		tuner:    deps.Tuner,
		sessions: deps.Sessions,
		patterns: deps.Patterns,
		audit:    deps.Audit,
		cache:    deps.Cache,
		bus:      deps.Bus,
		caster:   deps.Caster,
		breaker:  deps.Breaker,
		metrics:  deps.Metrics,
		cacheTTL: deps.CacheTTL,
		now:      time.Now,
		mem:      make(map[string]*session.Session),
	}
}

// Check evaluates a proposed action and returns the decision. The session's
// turn counter and risk state advance here; confidence gains do not, they are
// applied when the action's completion is reported.
func (g *GateService) Check(ctx context.Context, req *action.Request) (*gate.Decision, error) {
	start := g.now()
	if req == nil || req.SessionID == "" {
		return nil, fmt.Errorf("gate check: session_id is required: %w", domain.ErrValidation)
	}

	ctx, span := otel.StartCheckSpan(ctx, req.SessionID, string(req.Kind))
	defer span.End()

	sess, durable := g.loadSession(ctx, req.SessionID)
	sess.Turn++

	// Danger detection runs before gating so the risk increment lands even
	// when the verdict below is a deny.
	var danger *risk.Event
	if req.Kind.Class() == action.ClassCommand {
		if ev, ok := g.risk.Classify(req.Command); ok {
			g.risk.Increment(sess, ev)
			sess.Append(session.Evidence{
				Turn:   sess.Turn,
				Kind:   req.Kind,
				Target: req.Target,
				Reason: "danger: " + ev.Reason,
				At:     g.now(),
			})
			danger = &ev
		}
	}

	tier := g.conf.EffectiveTier(sess.Confidence, sess.Risk)
	d := g.gate.Evaluate(sess, tier, *req, danger)

	var bypassedPattern string
	if d.Verdict != gate.VerdictDeny && len(req.Patterns) > 0 {
		bypassedPattern = g.applyPatterns(ctx, sess, req, &d)
	}

	if d.Overridden {
		g.recordBypass(ctx, &statestore.BypassRecord{
			SessionID: req.SessionID,
			Pattern:   bypassedPattern,
			Kind:      string(req.Kind),
			Target:    req.Target,
			Reason:    string(d.Code),
		})
	}

	if req.TokenEstimate > 0 {
		sess.TokenEstimate = req.TokenEstimate
	}

	if !g.persistSession(ctx, sess) {
		durable = false
	}
	d.Durable = durable
	d.Confidence = sess.Confidence
	d.Risk = sess.Risk

	g.publishVerdict(ctx, req, &d)
	g.observeCheck(ctx, start, req, &d, sess)
	return &d, nil
}

// applyPatterns runs the enforcement framework over the detected patterns.
// Detections are always recorded; phase transitions and re-tuning happen
// inside the store's read-modify-write cycle. Returns the name of the first
// enforced pattern that the override bypassed, if any.
func (g *GateService) applyPatterns(ctx context.Context, sess *session.Session, req *action.Request, d *gate.Decision) string {
	bypassed := ""
	for _, name := range req.Patterns {
		var transition *ws.TransitionEvent
		var prePhase pattern.Phase
		st, err := g.patterns.Update(ctx, name, func(cur *pattern.State) (*pattern.State, error) {
			if cur == nil {
				cur = pattern.NewState(name, pattern.AdvisoryFor(name), g.tuner, sess.Turn, g.now())
			}
			cur.RecordDetection(g.tuner.InterruptionCost, g.now())
			prePhase = cur.Phase
			// An override on a warned or enforced pattern is the negative
			// feedback signal. It must land before the transition rules run
			// so a routinely overridden advisory cannot promote to enforce
			// on a bypass rate that never saw its own overrides.
			if req.Override && cur.Phase != pattern.PhaseObserve {
				cur.RecordBypass(g.now())
			}
			if from, changed := cur.Advance(g.tuner, sess.Turn); changed {
				transition = &ws.TransitionEvent{
					Pattern: name,
					From:    string(from),
					To:      string(cur.Phase),
				}
			}
			cur.Retune(g.tuner, sess.Turn)
			return cur, nil
		})
		if err != nil {
			slog.WarnContext(ctx, "pattern update failed", "pattern", name, "error", err)
			continue
		}
		if g.metrics != nil {
			g.metrics.PatternDetections.Add(ctx, 1)
		}
		if transition != nil {
			g.announceTransition(ctx, transition)
		}

		act, msg := pattern.ShouldEnforce(st, req.Override)
		switch act {
		case pattern.ActionWarn:
			d.Advisories = append(d.Advisories, msg)
			if d.Verdict == gate.VerdictAllow {
				d.Verdict = gate.VerdictAdvise
			}
			if prePhase == pattern.PhaseEnforce && req.Override && bypassed == "" {
				bypassed = name
			}
			if g.caster != nil {
				g.caster.BroadcastEvent(ctx, ws.EventAdvisory, ws.AdvisoryEvent{
					SessionID: sess.ID,
					Pattern:   name,
					Message:   msg,
				})
			}
		case pattern.ActionBlock:
			d.Verdict = gate.VerdictDeny
			d.Code = gate.ReasonPatternEnforced
			d.Message = msg
			return bypassed
		case pattern.ActionNone:
		}
	}
	return bypassed
}

// announceTransition publishes a phase transition on the bus and to
// connected dashboards. Best effort on both paths.
func (g *GateService) announceTransition(ctx context.Context, ev *ws.TransitionEvent) {
	slog.InfoContext(ctx, "pattern phase transition",
		"pattern", ev.Pattern, "from", ev.From, "to", ev.To)
	if g.metrics != nil {
		g.metrics.PatternTransitions.Add(ctx, 1)
	}
	if g.bus != nil {
		if data, err := json.Marshal(ev); err == nil {
			subject := eventbus.SubjectTransition + "." + ev.Pattern
			if err := g.publish(ctx, subject, data); err != nil {
				slog.WarnContext(ctx, "transition publish failed", "pattern", ev.Pattern, "error", err)
			}
		}
	}
	if g.caster != nil {
		g.caster.BroadcastEvent(ctx, ws.EventTransition, *ev)
	}
}

// recordBypass persists one override audit record. A failed audit write is
// logged loudly but does not retract the allow; the verdict was already
// legitimate under the override capability.
func (g *GateService) recordBypass(ctx context.Context, rec *statestore.BypassRecord) {
	if g.metrics != nil {
		g.metrics.Overrides.Add(ctx, 1)
	}
	if err := g.audit.RecordBypass(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "bypass audit write failed",
			"session_id", rec.SessionID, "kind", rec.Kind, "error", err)
		return
	}
	if g.bus != nil {
		if data, err := json.Marshal(rec); err == nil {
			subject := eventbus.SubjectBypass + "." + rec.SessionID
			if err := g.publish(ctx, subject, data); err != nil {
				slog.WarnContext(ctx, "bypass publish failed", "session_id", rec.SessionID, "error", err)
			}
		}
	}
}

// loadSession returns the session and whether it came from durable state.
// Missing sessions start fresh; corrupt sessions are replaced with
// conservative defaults; an unavailable store serves an in-memory session.
func (g *GateService) loadSession(ctx context.Context, id string) (*session.Session, bool) {
	if g.cache != nil {
		if data, ok, err := g.cache.Get(ctx, sessionKey(id)); err == nil && ok {
			var s session.Session
			if err := json.Unmarshal(data, &s); err == nil {
				if s.Reads == nil {
					s.Reads = make(map[string]int)
				}
				return &s, true
			}
		}
	}

	v, err, _ := g.group.Do(id, func() (any, error) {
		return g.sessions.LoadSession(ctx, id)
	})
	switch {
	case err == nil:
		return v.(*session.Session), true
	case errors.Is(err, domain.ErrNotFound):
		return session.New(id, g.now()), true
	case errors.Is(err, domain.ErrStateCorrupt):
		// Corrupt state must never grant standing: restart from the most
		// conservative defaults and persist over the bad record.
		slog.WarnContext(ctx, "session state corrupt, resetting to defaults", "session_id", id)
		return session.New(id, g.now()), true
	default:
		slog.ErrorContext(ctx, "session store unavailable, serving in-memory state",
			"session_id", id, "error", err)
		g.memMu.Lock()
		defer g.memMu.Unlock()
		s, ok := g.mem[id]
		if !ok {
			s = session.New(id, g.now())
			g.mem[id] = s
		}
		return s, false
	}
}

// persistSession saves through the circuit breaker and refreshes the cache.
// Returns false when the save did not reach durable storage.
func (g *GateService) persistSession(ctx context.Context, sess *session.Session) bool {
	save := func() error { return g.sessions.SaveSession(ctx, sess) }

	var err error
	if g.breaker != nil {
		err = g.breaker.Execute(save)
	} else {
		err = save()
	}
	if err != nil {
		slog.ErrorContext(ctx, "session save failed", "session_id", sess.ID, "error", err)
		g.memMu.Lock()
		g.mem[sess.ID] = sess
		g.memMu.Unlock()
		return false
	}

	g.memMu.Lock()
	delete(g.mem, sess.ID)
	g.memMu.Unlock()

	if g.cache != nil {
		if data, err := json.Marshal(sess); err == nil {
			if err := g.cache.Set(ctx, sessionKey(sess.ID), data, g.cacheTTL); err != nil {
				slog.DebugContext(ctx, "session cache set failed", "session_id", sess.ID, "error", err)
			}
		}
	}
	return true
}

// publish sends one audit event through the breaker guarding bus writes.
func (g *GateService) publish(ctx context.Context, subject string, data []byte) error {
	if g.breaker != nil {
		return g.breaker.Execute(func() error { return g.bus.Publish(ctx, subject, data) })
	}
	return g.bus.Publish(ctx, subject, data)
}

func (g *GateService) publishVerdict(ctx context.Context, req *action.Request, d *gate.Decision) {
	ev := ws.VerdictEvent{
		SessionID:  req.SessionID,
		Kind:       string(req.Kind),
		Target:     req.Target,
		Verdict:    string(d.Verdict),
		Code:       string(d.Code),
		Tier:       d.Tier,
		Confidence: d.Confidence,
		Risk:       d.Risk,
		Overridden: d.Overridden,
	}
	if g.bus != nil {
		if data, err := json.Marshal(ev); err == nil {
			subject := eventbus.SubjectVerdict + "." + req.SessionID
			if err := g.publish(ctx, subject, data); err != nil {
				slog.WarnContext(ctx, "verdict publish failed", "session_id", req.SessionID, "error", err)
			}
		}
	}
	if g.caster != nil {
		g.caster.BroadcastEvent(ctx, ws.EventVerdict, ev)
	}
}

func (g *GateService) observeCheck(ctx context.Context, start time.Time, req *action.Request, d *gate.Decision, sess *session.Session) {
	slog.InfoContext(ctx, "gate check",
		"session_id", req.SessionID,
		"kind", req.Kind,
		"target", req.Target,
		"verdict", d.Verdict,
		"code", d.Code,
		"tier", d.Tier,
		"confidence", d.Confidence,
		"risk", d.Risk,
		"durable", d.Durable,
	)
	if g.metrics == nil {
		return
	}
	g.metrics.Checks.Add(ctx, 1)
	switch d.Verdict {
	case gate.VerdictDeny:
		g.metrics.Denials.Add(ctx, 1)
	case gate.VerdictAdvise:
		g.metrics.Advisories.Add(ctx, 1)
	case gate.VerdictAllow:
	}
	g.metrics.CheckDuration.Record(ctx, g.now().Sub(start).Seconds())
	g.metrics.Confidence.Record(ctx, int64(sess.Confidence))
	g.metrics.Risk.Record(ctx, int64(sess.Risk))
}

func sessionKey(id string) string {
	return "session:" + id
}
