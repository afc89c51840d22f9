package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Strob0t/Sentinel/internal/adapter/ws"
	"github.com/Strob0t/Sentinel/internal/domain/action"
	"github.com/Strob0t/Sentinel/internal/domain/pattern"
	"github.com/Strob0t/Sentinel/internal/service"
)

// maxBodySize limits gate request bodies. Requests carry identifiers and
// short command strings, never file contents.
const maxBodySize = 1 << 20

// Handlers bundles the HTTP handler dependencies.
type Handlers struct {
	Gate     *service.GateService
	Patterns *service.PatternService
	Hub      *ws.Hub

	// Ping reports durable-store reachability for the health endpoint.
	Ping func(ctx context.Context) error
	// BreakerState reports the store write breaker state, empty when unset.
	BreakerState func() string

	Version string
	started time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(gate *service.GateService, patterns *service.PatternService, hub *ws.Hub) *Handlers {
	return &Handlers{
		Gate:     gate,
		Patterns: patterns,
		Hub:      hub,
		Version:  "0.1.0",
		started:  time.Now(),
	}
}

// CheckAction handles POST /api/v1/gate/check.
func (h *Handlers) CheckAction(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[action.Request](w, r, maxBodySize)
	if !ok {
		return
	}
	req.Kind = action.ParseKind(string(req.Kind))

	d, err := h.Gate.Check(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "gate check failed")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ReportOutcome handles POST /api/v1/gate/report.
func (h *Handlers) ReportOutcome(w http.ResponseWriter, r *http.Request) {
	out, ok := readJSON[action.Outcome](w, r, maxBodySize)
	if !ok {
		return
	}
	out.Kind = action.ParseKind(string(out.Kind))

	sess, err := h.Gate.Report(r.Context(), &out)
	if err != nil {
		writeDomainError(w, err, "gate report failed")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// GetSession handles GET /api/v1/sessions/{id}.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Gate.Inspect(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// ListSessionBypasses handles GET /api/v1/sessions/{id}/bypasses.
func (h *Handlers) ListSessionBypasses(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Gate.Bypasses(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "bypass audit unavailable")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// ListPatterns handles GET /api/v1/patterns.
func (h *Handlers) ListPatterns(w http.ResponseWriter, r *http.Request) {
	states, err := h.Patterns.ListPatterns(r.Context())
	if err != nil {
		writeDomainError(w, err, "patterns unavailable")
		return
	}
	if states == nil {
		states = []pattern.State{}
	}
	writeJSON(w, http.StatusOK, states)
}

// GetPattern handles GET /api/v1/patterns/{name}.
func (h *Handlers) GetPattern(w http.ResponseWriter, r *http.Request) {
	st, err := h.Patterns.Get(r.Context(), urlParam(r, "name"))
	if err != nil {
		writeDomainError(w, err, "pattern not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type forcePhaseRequest struct {
	Phase string `json:"phase"`
}

// ForcePatternPhase handles POST /api/v1/admin/patterns/{name}/phase.
func (h *Handlers) ForcePatternPhase(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[forcePhaseRequest](w, r, maxBodySize)
	if !ok {
		return
	}

	st, err := h.Patterns.ForcePhase(r.Context(), urlParam(r, "name"), pattern.Phase(req.Phase))
	if err != nil {
		writeDomainError(w, err, "pattern not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ResetPattern handles DELETE /api/v1/admin/patterns/{name}.
func (h *Handlers) ResetPattern(w http.ResponseWriter, r *http.Request) {
	if err := h.Patterns.Reset(r.Context(), urlParam(r, "name")); err != nil {
		writeDomainError(w, err, "pattern not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordFalsePositive handles POST /api/v1/admin/patterns/{name}/false-positive.
func (h *Handlers) RecordFalsePositive(w http.ResponseWriter, r *http.Request) {
	st, err := h.Patterns.RecordFalsePositive(r.Context(), urlParam(r, "name"))
	if err != nil {
		writeDomainError(w, err, "pattern not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// RevokeFalsePositive handles DELETE /api/v1/admin/patterns/{name}/false-positive.
func (h *Handlers) RevokeFalsePositive(w http.ResponseWriter, r *http.Request) {
	st, err := h.Patterns.RevokeFalsePositive(r.Context(), urlParam(r, "name"))
	if err != nil {
		writeDomainError(w, err, "pattern not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleWS upgrades to a WebSocket for live verdict and transition events.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	h.Hub.HandleWS(w, r)
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	UptimeSec   int64  `json:"uptime_sec"`
	Store       string `json:"store"`
	Breaker     string `json:"breaker,omitempty"`
	Connections int    `json:"ws_connections"`
}

// Healthz handles GET /healthz. Degraded storage is reported but does not
// fail the probe; the gate keeps answering on in-memory state.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Version:   h.Version,
		UptimeSec: int64(time.Since(h.started).Seconds()),
		Store:     "ok",
	}
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Store = "unavailable"
		}
	}
	if h.BreakerState != nil {
		resp.Breaker = h.BreakerState()
	}
	if h.Hub != nil {
		resp.Connections = h.Hub.ConnectionCount()
	}
	writeJSON(w, http.StatusOK, resp)
}
