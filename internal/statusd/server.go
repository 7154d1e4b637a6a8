// Package statusd exposes a small HTTP surface for local inspection:
// health, an engine status snapshot, and Prometheus metrics. It is off
// unless a bind address is configured.
package statusd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// StatsFunc returns the JSON-serializable status snapshot. Kept as a plain
// function so this package stays independent of the engine's types.
type StatsFunc func() any

// Server is the status HTTP server.
type Server struct {
	bind   string
	source StatsFunc
	reg    *prometheus.Registry
	logger *slog.Logger
	http   *http.Server
}

// New creates a server listening on bind.
func New(bind string, source StatsFunc, reg *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		bind:   bind,
		source: source,
		reg:    reg,
		logger: logger.With("component", "statusd"),
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.bind,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server failed", "error", err)
		}
	}()
	s.logger.Info("status server listening", "bind", s.bind)
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth())
	r.Get("/status", s.handleStatus())
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.source()); err != nil {
			s.logger.Warn("status encode failed", "error", err)
		}
	}
}
