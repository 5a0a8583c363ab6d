// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/Sharnabh/LMS-sub002/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.tracingService,
		EnableLogging:         true,
	})

	s.registerPublicRoutes(r)
	r.Route("/api/v1", s.registerV1Routes)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { writeNotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

func (s *Server) registerPublicRoutes(r chi.Router) {
	r.Get("/healthz", s.healthManager.ServeHealth)
	r.Get("/readyz", s.healthManager.ServeReady)
	r.Handle("/metrics", promhttp.Handler())
}

func (s *Server) registerV1Routes(r chi.Router) {
	r.Get("/announcements", s.handleListAnnouncements)
	r.Get("/books", s.handleListBooks)
	r.Post("/books", s.handleUpsertBook)
	r.With(middleware.RefreshRateLimit(s.refreshRateLimit)).
		Post("/refresh/{store}", s.handleRefresh)
	r.Get("/lifecycle", s.handleGetLifecycle)
	r.Post("/lifecycle/{phase}", s.handleSetLifecycle)
}
