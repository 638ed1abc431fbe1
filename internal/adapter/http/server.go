// Package http serves health, readiness, and Prometheus metrics endpoints
// so a long-running join can be observed while it streams. The readiness
// body carries join progress alongside the verdict.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second

	// readinessProbeTimeout bounds the readiness check independently of the
	// probe's own deadline.
	readinessProbeTimeout = 2 * time.Second
)

// JoinProgress is what the readiness endpoint knows about the pipeline:
// whether it has made progress, and how far along it is.
type JoinProgress interface {
	CheckReadiness(ctx context.Context) error
	Progress() (indexEntries int, flights int64)
}

// Server exposes /healthz, /readyz, and /metrics.
type Server struct {
	srv    *http.Server
	join   JoinProgress
	logger *slog.Logger
}

// NewServer creates the observability HTTP server for one join run.
func NewServer(addr string, join JoinProgress, logger *slog.Logger) *Server {
	s := &Server{join: join, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("metrics server starting", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.srv.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessProbeTimeout)
	defer cancel()

	entries, flights := s.join.Progress()
	body := map[string]any{
		"status":            "ready",
		"index_entries":     entries,
		"flights_processed": flights,
	}

	if err := s.join.CheckReadiness(ctx); err != nil {
		body["status"] = "not ready"
		body["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
