package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/osc-bridge/internal/entity"
)

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)
			r.Get("/{name}", s.handleGetEntity)
		})

		r.Get("/registrations", s.handleListRegistrations)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth runs every component check. Any failure makes the response
// 503 with status "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: s.version}
	status := http.StatusOK

	if len(s.checks) > 0 {
		resp.Components = make(map[string]string, len(s.checks))
	}
	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check.HealthCheck(ctx)
		cancel()

		if err != nil {
			resp.Components[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}

	writeJSON(w, status, resp)
}

// handleListEntities returns every mapping, sorted by address.
//
// Query parameters:
//   - component: switch or number
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	mappings := s.entities.Entities()

	if c := r.URL.Query().Get("component"); c != "" {
		component := entity.Component(c)
		if component != entity.ComponentSwitch && component != entity.ComponentNumber {
			writeBadRequest(w, "component must be switch or number")
			return
		}
		filtered := mappings[:0]
		for _, m := range mappings {
			if m.Entity.Component == component {
				filtered = append(filtered, m)
			}
		}
		mappings = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entities": mappings,
		"count":    len(mappings),
	})
}

// handleGetEntity returns the mapping whose entity name matches {name}.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, m := range s.entities.Entities() {
		if m.Entity.Name == name {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeNotFound(w, "entity not found")
}
