// Package pattern implements the per-pattern enforcement lifecycle and the
// auto-tuning feedback controller. Each named behavioral pattern moves
// through OBSERVE → WARN → ENFORCE as evidence accumulates that acting on it
// pays off, and backs off by exactly one step when overrides signal that the
// heuristic is over-firing.
package pattern

import (
	"time"
)

// Phase describes how strongly a pattern's detections affect behavior.
type Phase string

const (
	PhaseObserve Phase = "observe" // record silently
	PhaseWarn    Phase = "warn"    // emit advisory, action proceeds
	PhaseEnforce Phase = "enforce" // block unless overridden
)

// Metrics are the aggregate signals driving phase transitions and re-tuning.
type Metrics struct {
	Detections int     `json:"detections"`
	Corrected  int     `json:"corrected"` // detections followed by a corrective action
	Bypasses   int     `json:"bypasses"`  // manual overrides of warnings/blocks
	Cost       float64 `json:"cost"`      // cumulative estimated cost of the pattern
}

// State is the persistent, process-wide record for one named pattern. It is
// shared across all concurrent sessions and must only be mutated through the
// store's read-modify-write cycle.
type State struct {
	Name          string             `json:"name"`
	Phase         Phase              `json:"phase"`
	Thresholds    map[string]float64 `json:"thresholds"`
	Metrics       Metrics            `json:"metrics"`
	Advisory      string             `json:"advisory,omitempty"`
	FirstSeenTurn int                `json:"first_seen_turn"`
	LastTunedTurn int                `json:"last_tuned_turn"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Config holds the tuner's configured thresholds. These are deliberately
// configuration, not constants.
type Config struct {
	MinTurnWindow    int     `yaml:"min_turn_window"`   // turns before OBSERVE may promote
	MinDetections    int     `yaml:"min_detections"`    // detections before OBSERVE may promote
	ROIMultiple      float64 `yaml:"roi_multiple"`      // cost multiple justifying ENFORCE
	FPCeiling        float64 `yaml:"fp_ceiling"`        // bypass-rate ceiling
	FPFloor          float64 `yaml:"fp_floor"`          // "very low" false-positive boundary
	RetuneInterval   int     `yaml:"retune_interval"`   // turns between re-tuning passes
	MinSample        int     `yaml:"min_sample"`        // detections needed to trust the FP estimate
	InterruptionCost float64 `yaml:"interruption_cost"` // cost of one enforcement interruption
	ThresholdStep    float64 `yaml:"threshold_step"`    // proportional controller step
	ThresholdMin     float64 `yaml:"threshold_min"`
	ThresholdMax     float64 `yaml:"threshold_max"`
}

// DefaultConfig returns the built-in tuner configuration.
func DefaultConfig() Config {
	return Config{
		MinTurnWindow:    10,
		MinDetections:    3,
		ROIMultiple:      3.0,
		FPCeiling:        0.25,
		FPFloor:          0.05,
		RetuneInterval:   25,
		MinSample:        10,
		InterruptionCost: 1.0,
		ThresholdStep:    1.0,
		ThresholdMin:     1.0,
		ThresholdMax:     10.0,
	}
}

// ThresholdMinCount is the tunable detection threshold key: the minimum
// repetition count detectors should require before flagging the pattern.
const ThresholdMinCount = "min_count"

// NewState creates a pattern state in the OBSERVE phase, the safest and
// least disruptive starting point.
func NewState(name, advisory string, cfg Config, turn int, now time.Time) *State {
	return &State{
		Name:  name,
		Phase: PhaseObserve,
		Thresholds: map[string]float64{
			ThresholdMinCount: float64(cfg.MinDetections),
		},
		Advisory:      advisory,
		FirstSeenTurn: turn,
		LastTunedTurn: turn,
		UpdatedAt:     now,
	}
}

// BypassRate is the fraction of detections that were overridden — the
// negative feedback signal (observed false-positive rate).
func (s *State) BypassRate() float64 {
	if s.Metrics.Detections == 0 {
		return 0
	}
	return float64(s.Metrics.Bypasses) / float64(s.Metrics.Detections)
}

// ROI is the cumulative estimated cost of the pattern divided by the cost of
// one enforcement interruption — the positive feedback signal.
func (s *State) ROI(cfg Config) float64 {
	if cfg.InterruptionCost <= 0 {
		return 0
	}
	return s.Metrics.Cost / cfg.InterruptionCost
}

// RecordDetection counts one detection and its estimated cost.
func (s *State) RecordDetection(cost float64, now time.Time) {
	s.Metrics.Detections++
	s.Metrics.Cost += cost
	s.UpdatedAt = now
}

// RecordBypass counts one manual override of this pattern's warning or block.
func (s *State) RecordBypass(now time.Time) {
	s.Metrics.Bypasses++
	s.UpdatedAt = now
}

// RevokeBypass retracts one recorded bypass, used when an operator withdraws
// a false-positive observation. Reports whether there was one to retract.
func (s *State) RevokeBypass(now time.Time) bool {
	if s.Metrics.Bypasses == 0 {
		return false
	}
	s.Metrics.Bypasses--
	s.UpdatedAt = now
	return true
}

// RecordCorrection counts a detection that was followed by a corrective
// action, confirming the heuristic.
func (s *State) RecordCorrection(now time.Time) {
	s.Metrics.Corrected++
	s.UpdatedAt = now
}

// Advance applies the phase transition rules for the current turn and
// returns the previous phase and whether a transition happened. Phases move
// at most one step per call, in either direction.
func (s *State) Advance(cfg Config, turn int) (from Phase, changed bool) {
	from = s.Phase
	switch s.Phase {
	case PhaseObserve:
		// Promote only after both a minimum observation window and a
		// minimum detection count, so the learning process does not
		// disturb behavior before there is enough data.
		if turn-s.FirstSeenTurn >= cfg.MinTurnWindow && s.Metrics.Detections > cfg.MinDetections {
			s.Phase = PhaseWarn
		}
	case PhaseWarn:
		// Promote when enforcement pays for itself and the advisory is
		// being heeded, not routinely overridden.
		if s.ROI(cfg) >= cfg.ROIMultiple && s.BypassRate() < cfg.FPCeiling {
			s.Phase = PhaseEnforce
		}
	case PhaseEnforce:
		// The one permitted backward transition: a surge of overrides is
		// evidence the heuristic over-fires. Never regresses to OBSERVE.
		if s.BypassRate() > cfg.FPCeiling {
			s.Phase = PhaseWarn
		}
	}
	return from, s.Phase != from
}

// Retune runs the periodic proportional controller over the detection
// threshold: looser when the false-positive rate is high, stricter when it
// is very low and the sample is large enough to trust. Returns true when a
// pass ran (whether or not the threshold moved).
func (s *State) Retune(cfg Config, turn int) bool {
	if turn-s.LastTunedTurn < cfg.RetuneInterval {
		return false
	}
	s.LastTunedTurn = turn

	cur := s.Thresholds[ThresholdMinCount]
	if cur == 0 {
		cur = float64(cfg.MinDetections)
	}

	fp := s.BypassRate()
	switch {
	case fp > cfg.FPCeiling:
		cur += cfg.ThresholdStep
	case fp < cfg.FPFloor && s.Metrics.Detections >= cfg.MinSample:
		cur -= cfg.ThresholdStep
	}

	if cur < cfg.ThresholdMin {
		cur = cfg.ThresholdMin
	}
	if cur > cfg.ThresholdMax {
		cur = cfg.ThresholdMax
	}
	if s.Thresholds == nil {
		s.Thresholds = make(map[string]float64)
	}
	s.Thresholds[ThresholdMinCount] = cur
	return true
}
