// Package api provides the HTTP server for the crossroads voting engine.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crossroads-network/crossroads/internal/infra/ballot"
	"github.com/crossroads-network/crossroads/internal/infra/outcome"
	"github.com/crossroads-network/crossroads/internal/infra/resolve"
)

// Version is the engine version reported by /api/version.
const Version = "0.1.0"

// Server is the crossroads HTTP API server.
type Server struct {
	scenarios      *ballot.Scenarios
	ledger         *ballot.Ledger
	closer         *resolve.Closer
	tracker        *outcome.Tracker
	metricsEnabled bool
}

// NewServer creates a new API server over the voting engine components.
func NewServer(scenarios *ballot.Scenarios, ledger *ballot.Ledger, closer *resolve.Closer, tracker *outcome.Tracker) *Server {
	return &Server{
		scenarios: scenarios,
		ledger:    ledger,
		closer:    closer,
		tracker:   tracker,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": Version,
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/scenario", s.handleCurrentScenario)
		r.Post("/votes", s.handleCastVote)
		r.Route("/scenario/{id}", func(r chi.Router) {
			r.Post("/close", s.handleClose)
			r.Get("/status", s.handleStatus)
			r.Get("/tally", s.handleTally)
		})
		r.Get("/users/{id}/stats", s.handleUserStats)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}
