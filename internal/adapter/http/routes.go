package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/Sentinel/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router. adminToken
// guards the mutating pattern routes; an empty token disables them rather
// than leaving them open.
func MountRoutes(r chi.Router, h *Handlers, adminToken string) {
	r.Get("/healthz", h.Healthz)
	r.Get("/ws", h.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"` + h.Version + `"}`))
		})

		r.Post("/gate/check", h.CheckAction)
		r.Post("/gate/report", h.ReportOutcome)

		r.Get("/sessions/{id}", h.GetSession)
		r.Get("/sessions/{id}/bypasses", h.ListSessionBypasses)

		r.Get("/patterns", h.ListPatterns)
		r.Get("/patterns/{name}", h.GetPattern)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.BearerToken(adminToken))
			r.Post("/patterns/{name}/phase", h.ForcePatternPhase)
			r.Post("/patterns/{name}/false-positive", h.RecordFalsePositive)
			r.Delete("/patterns/{name}/false-positive", h.RevokeFalsePositive)
			r.Delete("/patterns/{name}", h.ResetPattern)
		})
	})
}
