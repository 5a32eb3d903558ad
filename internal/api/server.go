// Package api exposes the HTTP introspection interface for the fetch worker:
// health, Prometheus metrics, the in-flight source table, and the last report.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aeropoint/aqfetch/internal/fetch"
	"github.com/aeropoint/aqfetch/internal/orchestrator"
)

// StatusSource provides the live data the endpoints read. The worker loop
// satisfies it.
type StatusSource interface {
	Status() *orchestrator.StatusTable
	LastReport() *fetch.Report
}

// Server wires the read-only HTTP handlers.
type Server struct {
	router chi.Router
	source StatusSource
	logger *zap.Logger
}

// NewServer constructs a Server with its routes.
func NewServer(source StatusSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{source: source, logger: logger}

	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Get("/status", s.status)
	r.Get("/report", s.report)
	r.Handle("/metrics", promhttp.Handler())
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// status reports the phase of every source seen this process plus the subset
// currently in flight.
func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	table := s.source.Status()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sources":  table.Snapshot(),
		"inFlight": table.InFlight(),
	})
}

// report returns the most recently completed fetch report, or 404 before the
// first job finishes.
func (s *Server) report(w http.ResponseWriter, _ *http.Request) {
	report := s.source.LastReport()
	if report == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no report yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}
