package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Strob0t/Sentinel/internal/domain"
	"github.com/Strob0t/Sentinel/internal/domain/session"
	"github.com/Strob0t/Sentinel/internal/port/statestore"
)

// Inspect returns the current state of a session for status surfaces. It
// reads through the same fallback chain as Check, so a session being served
// from memory during an outage is still inspectable.
func (g *GateService) Inspect(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("inspect: session id is required: %w", domain.ErrValidation)
	}

	sess, err := g.sessions.LoadSession(ctx, id)
	if err == nil {
		return sess, nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrStateCorrupt) {
		return nil, fmt.Errorf("inspect %s: %w", id, domain.ErrNotFound)
	}

	g.memMu.Lock()
	defer g.memMu.Unlock()
	if s, ok := g.mem[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("inspect %s: %w", id, err)
}

// Bypasses returns the override audit trail for a session, oldest first.
func (g *GateService) Bypasses(ctx context.Context, sessionID string) ([]statestore.BypassRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("bypasses: session id is required: %w", domain.ErrValidation)
	}
	return g.audit.ListBypasses(ctx, sessionID)
}
