// Package engine wires the compression subsystem together and exposes the
// typed interface the host runtime drives. The host owns the transcript and
// decides when to trigger compaction; the engine reacts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/packrat-ai/packrat/internal/config"
	"github.com/packrat-ai/packrat/internal/metrics"
	"github.com/packrat-ai/packrat/internal/normalize"
	"github.com/packrat-ai/packrat/internal/provider"
	"github.com/packrat-ai/packrat/internal/statusd"
	"github.com/packrat-ai/packrat/internal/swap"
	"github.com/packrat-ai/packrat/internal/unit"
)

// Engine-level sentinel errors.
var (
	// ErrDisabled: the master switch is off; every request is a benign
	// cancellation.
	ErrDisabled = errors.New("engine: disabled")

	// ErrNoSession: a turn or compaction event arrived before session start.
	ErrNoSession = errors.New("engine: no active session")
)

// SessionStart is delivered when the host opens or switches a session.
type SessionStart struct {
	SessionID     string
	WorkspaceRoot string
}

// TurnEvent carries the full unit list of one completed turn.
type TurnEvent struct {
	SessionID string
	Units     []unit.Unit
}

// CompactionRequest carries the transcript-entry window since the previous
// compaction point and the host-reported pre-compaction token count. The
// ctx passed alongside carries the host's cancellation signal.
type CompactionRequest struct {
	SessionID    string
	Units        []unit.Unit
	TokensBefore int
}

// Host is the interface the host runtime invokes. The direction of control
// is inverted: the host drives, the engine reacts.
type Host interface {
	OnSessionStarted(ctx context.Context, ev SessionStart) error
	OnTurnCompleted(ctx context.Context, ev TurnEvent)
	OnCompactionRequested(ctx context.Context, req CompactionRequest) (*swap.Result, error)
}

// Engine is the host-facing implementation. Safe for the host's usage
// pattern: one awaited compaction call at a time, turn events in between.
type Engine struct {
	cfg       *config.Config
	completer provider.Completer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	registry  *prometheus.Registry

	mu      sync.Mutex
	session *Session
	status  *statusd.Server

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// Compile-time interface guard.
var _ Host = (*Engine)(nil)

// New creates an engine. completer may be nil for a fully offline engine
// (the swap path will cancel with ErrServiceUnavailable).
func New(cfg *config.Config, completer provider.Completer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:       cfg,
		completer: completer,
		logger:    logger,
		metrics:   metrics.New(registry),
		registry:  registry,
		bgCtx:     ctx,
		bgCancel:  cancel,
	}

	// A disabled engine ignores host events and must not bind a port
	// either.
	if cfg.Enabled && cfg.StatusBind != "" {
		e.status = statusd.New(cfg.StatusBind, func() any { return e.Stats() }, registry, logger)
		if err := e.status.Start(); err != nil {
			logger.Warn("status server not started", "error", err)
			e.status = nil
		}
	}
	return e
}

// Registry exposes the engine's Prometheus registry for the status server.
func (e *Engine) Registry() *prometheus.Registry { return e.registry }

// OnSessionStarted implements Host. Any previous session is flushed and
// closed first; engine state is strictly session-scoped.
func (e *Engine) OnSessionStarted(_ context.Context, ev SessionStart) error {
	if !e.cfg.Enabled {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		if err := e.session.Close(); err != nil {
			e.logger.Warn("closing previous session", "error", err)
		}
	}

	session, err := newSession(e.cfg, ev.SessionID, ev.WorkspaceRoot, e.completer, e.metrics, e.logger)
	if err != nil {
		return fmt.Errorf("engine: session start: %w", err)
	}
	e.session = session
	e.logger.Info("session started", "session", ev.SessionID, "workspace", ev.WorkspaceRoot)
	return nil
}

// OnTurnCompleted implements Host. The handler queues background work,
// block compression into the cache plus a narrative update, and returns
// without awaiting it. Background failures are captured and logged; they
// only affect future cache-hit rates, never correctness.
func (e *Engine) OnTurnCompleted(_ context.Context, ev TurnEvent) {
	if !e.cfg.Enabled {
		return
	}

	e.mu.Lock()
	session := e.session
	e.mu.Unlock()
	if session == nil {
		e.logger.Warn("turn event before session start", "session", ev.SessionID)
		return
	}

	units := normalize.Apply(ev.Units)

	e.spawn("pipeline", func(ctx context.Context) error {
		return session.runPipeline(ctx, units)
	})
	e.spawn("narrative", func(ctx context.Context) error {
		session.narrative.Update(ctx, units)
		return nil
	})
}

// OnCompactionRequested implements Host. This is the one path the host
// awaits; ctx carries the host's cancellation signal. A nil result with a
// typed error is the cancellation marker; the engine never returns a
// lossy fallback.
func (e *Engine) OnCompactionRequested(ctx context.Context, req CompactionRequest) (*swap.Result, error) {
	if !e.cfg.Enabled {
		return nil, ErrDisabled
	}

	e.mu.Lock()
	session := e.session
	e.mu.Unlock()
	if session == nil {
		return nil, ErrNoSession
	}

	return session.controller.Compact(ctx, swap.Request{
		Units:        normalize.Apply(req.Units),
		TokensBefore: req.TokensBefore,
	})
}

// Stats returns a snapshot for the status server and CLI.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return Stats{Enabled: e.cfg.Enabled}
	}
	return e.session.stats(e.cfg.Enabled)
}

// Close flushes and closes the active session and stops background work.
func (e *Engine) Close() error {
	e.bgCancel()
	e.bgWG.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.status != nil {
		errs = append(errs, e.status.Stop(context.Background()))
		e.status = nil
	}
	if e.session != nil {
		errs = append(errs, e.session.Close())
		e.session = nil
	}
	return errors.Join(errs...)
}

// spawn runs fn as an explicit background task. Failures are logged with
// the task name rather than propagating into process-wide unhandled state.
func (e *Engine) spawn(name string, fn func(ctx context.Context) error) {
	e.bgWG.Add(1)
	go func() {
		defer e.bgWG.Done()
		if err := fn(e.bgCtx); err != nil {
			e.logger.Warn("background task failed", "task", name, "error", err)
		}
	}()
}
