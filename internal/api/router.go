package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/occupancy-dashboard/internal/metrics"
	"github.com/nerrad567/occupancy-dashboard/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Dashboard panel (embedded via go:embed)
	r.Handle("/panel/*", http.StripPrefix("/panel", panel.Handler(s.panelDir)))
	r.Handle("/panel", http.RedirectHandler("/panel/", http.StatusMovedPermanently))
	r.Handle("/", http.RedirectHandler("/panel/", http.StatusFound))

	// Prometheus exposition
	r.Handle("/metrics", metrics.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/range", func(r chi.Router) {
			r.Get("/", s.handleGetRange)
			r.Put("/", s.handleSetRange)
			r.Post("/reset", s.handleResetRange)
		})

		r.Post("/refetch", s.handleRefetch)
		r.Get("/series", s.handleGetSeries)
		r.Get("/chart", s.handleGetChart)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports server, backend and cache status.
// The status is "degraded" with 503 while the backend check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Active()

	resp := map[string]any{
		"status":      "ok",
		"version":     s.version,
		"range_hours": int(snap.Key),
		"cache":       snap.Status.String(),
	}
	code := http.StatusOK

	if s.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), backendCheckTimeout)
		defer cancel()

		if err := s.backend.HealthCheck(ctx); err != nil {
			s.logger.Warn("backend health check failed", "error", err)
			resp["status"] = "degraded"
			resp["backend"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			resp["backend"] = "ok"
		}
	}

	writeJSON(w, code, resp)
}
