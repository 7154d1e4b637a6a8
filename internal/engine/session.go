package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/packrat-ai/packrat/internal/archive"
	"github.com/packrat-ai/packrat/internal/blockcache"
	"github.com/packrat-ai/packrat/internal/compress"
	"github.com/packrat-ai/packrat/internal/config"
	"github.com/packrat-ai/packrat/internal/history"
	"github.com/packrat-ai/packrat/internal/journal"
	"github.com/packrat-ai/packrat/internal/maintenance"
	"github.com/packrat-ai/packrat/internal/metrics"
	"github.com/packrat-ai/packrat/internal/narrative"
	"github.com/packrat-ai/packrat/internal/provider"
	"github.com/packrat-ai/packrat/internal/redact"
	"github.com/packrat-ai/packrat/internal/segment"
	"github.com/packrat-ai/packrat/internal/storage"
	"github.com/packrat-ai/packrat/internal/swap"
	"github.com/packrat-ai/packrat/internal/unit"
)

// Stats is a point-in-time snapshot of engine state for the status server
// and CLI.
type Stats struct {
	Enabled        bool      `json:"enabled"`
	SessionID      string    `json:"session_id,omitempty"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	HistoryEntries int       `json:"history_entries"`
	VisibleTokens  int       `json:"visible_tokens"`
	CacheEntries   int       `json:"cache_entries"`
	Phase          string    `json:"phase,omitempty"`
}

// Session is the explicit session-scoped context object: every piece of
// state the engine mutates lives here, created on session start and
// discarded on session switch.
type Session struct {
	id    string
	paths storage.Paths
	cfg   *config.Config

	cache      *blockcache.Cache
	hist       *history.History
	arc        *archive.Archive
	adapter    *compress.Adapter
	pool       *compress.Pool
	controller *swap.Controller
	narrative  *narrative.Tracker
	journal    *journal.Journal
	sched      *maintenance.Scheduler
	metrics    *metrics.Metrics
	logger     *slog.Logger
	logFile    *os.File
	startedAt  time.Time
}

func newSession(cfg *config.Config, id, workspace string, completer provider.Completer,
	m *metrics.Metrics, baseLogger *slog.Logger) (*Session, error) {
	paths := storage.NewPaths(workspace)
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}

	// The session log stream appends to the workspace log file as well as
	// wherever the base logger writes.
	logFile, err := os.OpenFile(paths.LogFile(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log stream: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stderr, logFile), &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})).With("session", id)

	cache := blockcache.New(paths.CacheFile(), paths.LegacyCacheFile(), 0)
	if err := cache.Load(); err != nil {
		logger.Warn("cache load failed, starting empty", "error", err)
	}

	hist := history.New(paths.HistoryFile(id))
	if err := hist.Load(); err != nil {
		logger.Warn("history load failed, starting empty", "error", err)
	}

	arc := archive.New(paths.RawArchiveDir(), paths.EvictedArchiveDir())

	redactor := redact.New()
	redactor.AddLiteral(cfg.APIKey)
	redactor.AddLiteral(os.Getenv("ANTHROPIC_API_KEY"))

	adapter := compress.NewAdapter(completer, cfg.CompressionModel, redactor, m)
	pool := compress.NewPool(adapter, cfg.MaxParallelCompressions)

	jnl, err := journal.Open(paths.JournalFile())
	if err != nil {
		// The journal is bookkeeping only; the engine runs without it.
		logger.Warn("journal unavailable", "error", err)
		jnl = nil
	}

	var rec journal.Recorder
	if jnl != nil {
		rec = jnl
	}

	controller := swap.New(swap.Config{
		CompressTrigger:  cfg.CompressTrigger,
		EvictTrigger:     cfg.EvictTrigger,
		BlockSize:        cfg.BlockSize,
		MinCompressChars: cfg.MinCompressChars,
		MinSwapTokens:    cfg.MinSwapTokens,
	}, id, cache, arc, hist, adapter, pool, rec, m, logger)

	tracker := narrative.New(completer, cfg.NarrativeModel, paths.NarrativeFile(),
		cfg.NarrativeWordBudget, redactor, logger)

	s := &Session{
		id:         id,
		paths:      paths,
		cfg:        cfg,
		cache:      cache,
		hist:       hist,
		arc:        arc,
		adapter:    adapter,
		pool:       pool,
		controller: controller,
		narrative:  tracker,
		journal:    jnl,
		metrics:    m,
		logger:     logger,
		logFile:    logFile,
		startedAt:  time.Now(),
	}

	if err := s.startMaintenance(); err != nil {
		logger.Warn("maintenance scheduler not started", "error", err)
	}
	return s, nil
}

func (s *Session) startMaintenance() error {
	sched := maintenance.NewScheduler(s.logger)
	if cronExpr := s.cfg.Maintenance.CacheFlush; cronExpr != "" {
		if err := sched.RegisterJob(&maintenance.CacheFlushJob{Cache: s.cache, Cron: cronExpr}); err != nil {
			return err
		}
	}
	if cronExpr := s.cfg.Maintenance.JournalVacuum; cronExpr != "" && s.journal != nil {
		if err := sched.RegisterJob(&maintenance.JournalVacuumJob{Journal: s.journal, Cron: cronExpr}); err != nil {
			return err
		}
	}
	if err := sched.Start(); err != nil {
		return err
	}
	s.sched = sched
	return nil
}

// runPipeline is the background half of the turn flow: segment the turn,
// archive raw blocks, and warm the cache so the next swap hits instead of
// compressing on demand.
func (s *Session) runPipeline(ctx context.Context, units []unit.Unit) error {
	canCompress := s.adapter.Available()

	var errs []error
	for _, b := range segment.Segment(units, s.cfg.BlockSize) {
		if err := s.arc.StoreRaw(b.Hash, b.Text); err != nil {
			errs = append(errs, err)
		} else {
			s.metrics.RecordArchivedBytes(len(b.Text))
		}

		if _, ok := s.cache.Lookup(b.Hash); ok {
			s.metrics.RecordCacheLookup(true)
			continue
		}
		s.metrics.RecordCacheLookup(false)

		if len(b.Text) < s.cfg.MinCompressChars {
			s.cache.Store(b.Hash, blockcache.Entry{
				Compressed:       b.Text,
				RawTokens:        b.Tokens,
				CompressedTokens: b.Tokens,
			})
			continue
		}
		if !canCompress {
			// No service: the block stays an honest cache miss.
			continue
		}

		res, err := s.pool.Compress(ctx, b.Text)
		if err != nil {
			// A miss today is a cache miss at swap time, not data loss.
			errs = append(errs, err)
			continue
		}
		s.cache.Store(b.Hash, blockcache.Entry{
			Compressed:       res.Compressed,
			RawTokens:        res.RawTokens,
			CompressedTokens: res.CompressedTokens,
		})
	}

	if err := s.cache.Flush(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Session) stats(enabled bool) Stats {
	return Stats{
		Enabled:        enabled,
		SessionID:      s.id,
		StartedAt:      s.startedAt,
		HistoryEntries: s.hist.Len(),
		VisibleTokens:  s.hist.VisibleTokens(),
		CacheEntries:   s.cache.Len(),
		Phase:          string(s.controller.Phase()),
	}
}

// Close stops maintenance, flushes durable state, and releases resources.
func (s *Session) Close() error {
	var errs []error
	if s.sched != nil {
		errs = append(errs, s.sched.Stop(context.Background()))
	}
	errs = append(errs, s.cache.Flush(), s.hist.Flush())
	if s.journal != nil {
		errs = append(errs, s.journal.Close())
	}
	errs = append(errs, s.logFile.Close())
	return errors.Join(errs...)
}
