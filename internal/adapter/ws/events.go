package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventVerdict    = "gate.verdict"
	EventAdvisory   = "gate.advisory"
	EventTransition = "pattern.transition"
)

// VerdictEvent is broadcast for every gate decision, so dashboards can
// follow a session's confidence and risk in real time.
type VerdictEvent struct {
	SessionID  string `json:"session_id"`
	Kind       string `json:"kind"`
	Target     string `json:"target,omitempty"`
	Verdict    string `json:"verdict"`
	Code       string `json:"code"`
	Tier       string `json:"tier"`
	Confidence int    `json:"confidence"`
	Risk       int    `json:"risk"`
	Overridden bool   `json:"overridden,omitempty"`
}

// AdvisoryEvent is broadcast when a warned pattern fires.
type AdvisoryEvent struct {
	SessionID string `json:"session_id"`
	Pattern   string `json:"pattern"`
	Message   string `json:"message"`
}

// TransitionEvent is broadcast when a pattern changes enforcement phase.
type TransitionEvent struct {
	Pattern string `json:"pattern"`
	From    string `json:"from"`
	To      string `json:"to"`
	Reason  string `json:"reason,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
