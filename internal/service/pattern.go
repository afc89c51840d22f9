package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/Sentinel/internal/domain"
	"github.com/Strob0t/Sentinel/internal/domain/pattern"
	"github.com/Strob0t/Sentinel/internal/port/statestore"
)

// PatternService exposes the enforcement framework's shared state for status
// and admin surfaces. Phase changes made here follow the same persistence
// path as organic transitions, so operator intervention stays auditable in
// the state record itself.
type PatternService struct {
	store statestore.PatternStore
	tuner pattern.Config
	now   func() time.Time
}

// NewPatternService creates the pattern admin service.
func NewPatternService(store statestore.PatternStore, tuner pattern.Config) *PatternService {
	return &PatternService{store: store, tuner: tuner, now: time.Now}
}

// ListPatterns returns all tracked patterns ordered by name.
func (p *PatternService) ListPatterns(ctx context.Context) ([]pattern.State, error) {
	return p.store.ListPatterns(ctx)
}

// Get returns one pattern's state.
func (p *PatternService) Get(ctx context.Context, name string) (*pattern.State, error) {
	if name == "" {
		return nil, fmt.Errorf("pattern name is required: %w", domain.ErrValidation)
	}
	return p.store.LoadPattern(ctx, name)
}

// ForcePhase pins a pattern to the given phase, bypassing the promotion
// criteria. The pattern must already exist; forcing a phase on an untracked
// name would fabricate metrics.
func (p *PatternService) ForcePhase(ctx context.Context, name string, phase pattern.Phase) (*pattern.State, error) {
	switch phase {
	case pattern.PhaseObserve, pattern.PhaseWarn, pattern.PhaseEnforce:
	default:
		return nil, fmt.Errorf("unknown phase %q: %w", phase, domain.ErrValidation)
	}

	st, err := p.store.Update(ctx, name, func(cur *pattern.State) (*pattern.State, error) {
		if cur == nil {
			return nil, fmt.Errorf("pattern %s: %w", name, domain.ErrNotFound)
		}
		cur.Phase = phase
		cur.UpdatedAt = p.now()
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "pattern phase forced", "pattern", name, "phase", phase)
	return st, nil
}

// Reset deletes a pattern's accumulated state. The next detection recreates
// it in the observe phase with default thresholds.
func (p *PatternService) Reset(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("pattern name is required: %w", domain.ErrValidation)
	}
	if err := p.store.DeletePattern(ctx, name); err != nil {
		return err
	}
	slog.InfoContext(ctx, "pattern state reset", "pattern", name)
	return nil
}

// RecordFalsePositive marks one detection as spurious. It counts as a
// bypass so a persistently noisy pattern regresses out of enforcement
// through the normal feedback loop.
func (p *PatternService) RecordFalsePositive(ctx context.Context, name string) (*pattern.State, error) {
	return p.store.Update(ctx, name, func(cur *pattern.State) (*pattern.State, error) {
		if cur == nil {
			return nil, fmt.Errorf("pattern %s: %w", name, domain.ErrNotFound)
		}
		cur.RecordBypass(p.now())
		return cur, nil
	})
}

// RevokeFalsePositive withdraws one recorded false-positive observation,
// for when an operator marked a detection spurious by mistake.
func (p *PatternService) RevokeFalsePositive(ctx context.Context, name string) (*pattern.State, error) {
	return p.store.Update(ctx, name, func(cur *pattern.State) (*pattern.State, error) {
		if cur == nil {
			return nil, fmt.Errorf("pattern %s: %w", name, domain.ErrNotFound)
		}
		if !cur.RevokeBypass(p.now()) {
			return nil, fmt.Errorf("pattern %s has no false-positive observations to revoke: %w", name, domain.ErrValidation)
		}
		return cur, nil
	})
}
