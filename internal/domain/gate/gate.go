// Package gate implements the tier-based action gate: the decision table
// combining the session's confidence tier, risk state, and prior-read history
// into an allow / allow-with-advisory / deny verdict for a proposed action.
package gate

import (
	"fmt"

	"github.com/Strob0t/Sentinel/internal/domain/action"
	"github.com/Strob0t/Sentinel/internal/domain/confidence"
	"github.com/Strob0t/Sentinel/internal/domain/risk"
	"github.com/Strob0t/Sentinel/internal/domain/session"
)

// Verdict is the outcome of a gate evaluation.
type Verdict string

const (
	VerdictAllow  Verdict = "allow"
	VerdictAdvise Verdict = "allow_with_advisory"
	VerdictDeny   Verdict = "deny"
)

// ReasonCode is the machine-readable reason attached to every decision.
// Callers branch on the code; humans read the message.
type ReasonCode string

const (
	ReasonOK              ReasonCode = "OK"
	ReasonOverride        ReasonCode = "OVERRIDE_USED"
	ReasonInvalidAction   ReasonCode = "INVALID_ACTION"
	ReasonReadBeforeWrite ReasonCode = "READ_BEFORE_WRITE"
	ReasonTierTooLow      ReasonCode = "TIER_TOO_LOW"
	ReasonProductionTier  ReasonCode = "PRODUCTION_TOP_TIER_REQUIRED"
	ReasonDeleteTier      ReasonCode = "DELETE_TOP_TIER_REQUIRED"
	ReasonRiskEscalated   ReasonCode = "RISK_ESCALATED"
	ReasonMandatoryReview ReasonCode = "MANDATORY_REVIEW"
	ReasonDangerDetected  ReasonCode = "DANGER_DETECTED"
	ReasonPatternEnforced ReasonCode = "PATTERN_ENFORCED"
)

// Decision is the structured result of one gate evaluation.
type Decision struct {
	Verdict    Verdict    `json:"verdict"`
	Code       ReasonCode `json:"code"`
	Message    string     `json:"message"`
	Tier       string     `json:"tier"`
	Confidence int        `json:"confidence"`
	Risk       int        `json:"risk"`
	Overridden bool       `json:"overridden,omitempty"`
	Advisories []string   `json:"advisories,omitempty"`

	// Durable is false when the decision could not be recorded in the
	// state store and was served from in-memory state only.
	Durable bool `json:"durable"`
}

// Gate evaluates proposed actions against session state. Transitions of the
// underlying scores are driven by the confidence and risk engines, not by
// the gate itself.
type Gate struct {
	classifier *action.Classifier
}

// New creates a Gate with the given target classifier.
func New(classifier *action.Classifier) *Gate {
	return &Gate{classifier: classifier}
}

// Evaluate runs the decision table for a proposed action. danger is non-nil
// when the risk engine matched the action against its catalog; the risk
// increment has already been applied to the session.
func (g *Gate) Evaluate(s *session.Session, tier confidence.Tier, req action.Request, danger *risk.Event) Decision {
	d := Decision{
		Verdict:    VerdictAllow,
		Code:       ReasonOK,
		Tier:       tier.Name,
		Confidence: s.Confidence,
		Risk:       s.Risk,
		Durable:    true,
	}

	class := req.Kind.Class()

	// Ambiguous descriptors fail closed: a false allow on a destructive
	// action costs far more than a false deny on a benign one.
	if class == action.ClassUnknown {
		d.Verdict = VerdictDeny
		d.Code = ReasonInvalidAction
		d.Message = fmt.Sprintf("action kind %q is not recognized; denying because it may be destructive", req.Kind)
		return d
	}

	// Risky command at saturation: mandatory out-of-band review, sticky
	// across intervening non-risky actions. The review requirement cannot
	// be overridden; only the review itself clears it.
	if danger != nil && s.Escalated() {
		d.Verdict = VerdictDeny
		d.Code = ReasonMandatoryReview
		d.Message = fmt.Sprintf("risk saturated at %d: %s; a multi-perspective review is required before any further risky action", s.Risk, danger.Reason)
		return d
	}

	// The override capability bypasses exactly one evaluation. The caller
	// records the bypass audit event.
	if req.Override {
		d.Code = ReasonOverride
		d.Overridden = true
		d.Message = "override capability supplied; gate bypassed for this action"
		return d
	}

	// Read-class actions are evidence-producing and never denied for lack
	// of confidence.
	if class == action.ClassRead {
		d.Message = "read-class action permitted"
		return d
	}

	// While escalated, everything that can mutate state is blocked until
	// the review is satisfied (enforced here, performed elsewhere).
	if s.Escalated() {
		d.Verdict = VerdictDeny
		d.Code = ReasonRiskEscalated
		d.Message = fmt.Sprintf("risk score %d has saturated; write, edit, delete and command actions are blocked pending review", s.Risk)
		return d
	}

	switch class {
	case action.ClassMutate:
		return g.evaluateMutation(s, tier, req, d)
	case action.ClassDelete:
		// Deletion is irreversible, so it is asymmetrically stricter than
		// writes: top tier required, no disposable-target exception.
		if !tier.Top {
			d.Verdict = VerdictDeny
			d.Code = ReasonDeleteTier
			d.Message = fmt.Sprintf("delete requires the top tier; current tier is %q (confidence %d)", tier.Name, s.Confidence)
			return d
		}
		d.Message = "delete permitted at top tier"
		return d
	case action.ClassCommand:
		if !tier.Allows(action.ClassCommand) {
			d.Verdict = VerdictDeny
			d.Code = ReasonTierTooLow
			d.Message = fmt.Sprintf("tier %q does not permit command execution", tier.Name)
			return d
		}
		if danger != nil {
			d.Verdict = VerdictAdvise
			d.Code = ReasonDangerDetected
			d.Message = fmt.Sprintf("dangerous pattern detected (%s); risk raised to %d", danger.Reason, s.Risk)
			return d
		}
		d.Message = "command permitted"
		return d
	}

	d.Verdict = VerdictDeny
	d.Code = ReasonInvalidAction
	d.Message = fmt.Sprintf("unhandled action class %q", class)
	return d
}

// evaluateMutation gates write/edit actions. The read-before-write check
// runs before the tier check and cannot be satisfied by confidence alone.
func (g *Gate) evaluateMutation(s *session.Session, tier confidence.Tier, req action.Request, d Decision) Decision {
	if req.TargetExists && !s.HasRead(req.Target) {
		d.Verdict = VerdictDeny
		d.Code = ReasonReadBeforeWrite
		d.Message = fmt.Sprintf("target %q exists but was never read in this session; read it before modifying it", req.Target)
		return d
	}

	if g.classifier.Classify(req.Target) == action.TargetProduction {
		if !tier.Top {
			d.Verdict = VerdictDeny
			d.Code = ReasonProductionTier
			d.Message = fmt.Sprintf("target %q is production-classified; modifications require the top tier, current tier is %q", req.Target, tier.Name)
			return d
		}
		d.Message = "production modification permitted at top tier"
		return d
	}

	if !tier.Allows(action.ClassMutate) {
		d.Verdict = VerdictDeny
		d.Code = ReasonTierTooLow
		d.Message = fmt.Sprintf("tier %q does not yet permit modifications; gather more evidence first", tier.Name)
		return d
	}
	d.Message = "disposable-target modification permitted"
	return d
}
