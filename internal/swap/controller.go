// Package swap implements the compaction swap controller: it reacts to a
// host-issued compaction request, decides which old blocks to replace with
// compressed versions, assembles the new compacted view, and returns a
// cut-point to the host.
//
// The controller moves through Idle → Evaluating → Swapping → Settled, or
// exits early to Cancelled. Every failure on this path surfaces as a typed
// cancellation, never as a degraded or lossy result: permanent information
// loss is worse than temporarily exceeding the trigger threshold.
package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/packrat-ai/packrat/internal/archive"
	"github.com/packrat-ai/packrat/internal/blockcache"
	"github.com/packrat-ai/packrat/internal/compress"
	"github.com/packrat-ai/packrat/internal/history"
	"github.com/packrat-ai/packrat/internal/journal"
	"github.com/packrat-ai/packrat/internal/metrics"
	"github.com/packrat-ai/packrat/internal/segment"
	"github.com/packrat-ai/packrat/internal/unit"
)

// uncachedSavingsRatio is the fixed discount estimate used for blocks with
// no cached compressed form during the savings walk. Deliberately an
// independent guess, not derived from the adapter's expansion threshold or
// from observed history.
const uncachedSavingsRatio = 0.70

// Cancellation reasons. All are benign from the host's point of view: the
// transcript stays untouched and the host may retry later.
var (
	// ErrServiceUnavailable: no usable completion credential or model.
	ErrServiceUnavailable = errors.New("swap: completion service unavailable")

	// ErrEmptyWindow: nothing worth compacting in the window.
	ErrEmptyWindow = errors.New("swap: empty window")

	// ErrInsufficientSavings: the host fired before the trigger threshold.
	ErrInsufficientSavings = errors.New("swap: insufficient savings")

	// ErrDeferred: swapping would leave no raw block; retry once the window
	// has grown past the remembered floor.
	ErrDeferred = errors.New("swap: deferred until more content exists")

	// ErrNoCutPoint: the first kept raw unit has no transcript identifier.
	ErrNoCutPoint = errors.New("swap: cut-point identifier unavailable")

	// ErrAborted: the host's cancellation signal fired.
	ErrAborted = errors.New("swap: aborted")
)

// Phase labels the controller state machine for logging and status.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseEvaluating Phase = "evaluating"
	PhaseSwapping   Phase = "swapping"
	PhaseSettled    Phase = "settled"
	PhaseCancelled  Phase = "cancelled"
)

// Config holds the controller's tuning knobs.
type Config struct {
	// CompressTrigger is the token threshold that makes a swap worthwhile.
	CompressTrigger int

	// EvictTrigger is the token budget of the visible compressed history.
	EvictTrigger int

	// BlockSize is the block token ceiling for segmentation.
	BlockSize int

	// MinCompressChars: text shorter than this is cached verbatim.
	MinCompressChars int

	// MinSwapTokens: blocks below this estimate are not worth swapping.
	MinSwapTokens int
}

// Request is one host-issued compaction event.
type Request struct {
	// Units is the normalized transcript window since the previous
	// compaction point, with transcript identifiers attached.
	Units []unit.Unit

	// TokensBefore is the host-reported pre-compaction token count.
	TokensBefore int
}

// Result is a settled swap.
type Result struct {
	// Document is the fully assembled compressed-history view: all history
	// entries rendered as labeled blocks.
	Document string

	// KeepFromID identifies the first unit that must remain raw in the
	// host's transcript.
	KeepFromID string

	// TokensBefore echoes the request for host bookkeeping.
	TokensBefore int

	BlocksSwapped int
	SavedTokens   int
	Evicted       int
}

// Controller exclusively owns the ordering of compaction-history entries
// for its session. One awaited Compact call per host event; not safe for
// concurrent Compact calls.
type Controller struct {
	cfg     Config
	session string

	cache   *blockcache.Cache
	arc     *archive.Archive
	hist    *history.History
	pool    *compress.Pool
	adapter *compress.Adapter
	journal journal.Recorder
	metrics *metrics.Metrics
	logger  *slog.Logger

	phase Phase

	// deferredMinBlocks is the remembered retry floor after ErrDeferred, so
	// the controller does not re-evaluate every time the host re-fires
	// before enough new content exists.
	deferredMinBlocks int
}

// New creates a controller for one session. journal and metrics may be nil.
func New(cfg Config, session string, cache *blockcache.Cache, arc *archive.Archive,
	hist *history.History, adapter *compress.Adapter, pool *compress.Pool,
	rec journal.Recorder, m *metrics.Metrics, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:     cfg,
		session: session,
		cache:   cache,
		arc:     arc,
		hist:    hist,
		adapter: adapter,
		pool:    pool,
		journal: rec,
		metrics: m,
		logger:  logger.With("component", "swap"),
		phase:   PhaseIdle,
	}
}

// Phase returns the last observed controller phase.
func (c *Controller) Phase() Phase { return c.phase }

// Compact runs one swap. ctx carries the host's cancellation signal; it is
// honored between every batch of on-demand compression calls. On
// cancellation no new history entry or cache write is committed.
// Cancellation stops advancement; it never rolls back durable state.
func (c *Controller) Compact(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	c.phase = PhaseEvaluating

	if !c.adapter.Available() {
		return c.cancel(ErrServiceUnavailable)
	}

	blocks := segment.Segment(req.Units, c.cfg.BlockSize)
	if !c.worthSwapping(blocks) {
		return c.cancel(ErrEmptyWindow)
	}
	if c.deferredMinBlocks > 0 && len(blocks) < c.deferredMinBlocks {
		return c.cancel(ErrDeferred)
	}

	overflow := req.TokensBefore - c.cfg.CompressTrigger
	if overflow <= 0 {
		return c.cancel(ErrInsufficientSavings)
	}

	blocksToSwap := c.selectBlocks(blocks, overflow)

	// At least one block must remain raw. If honoring that would mean
	// swapping nothing, defer until the window has grown.
	if blocksToSwap >= len(blocks) {
		blocksToSwap = len(blocks) - 1
	}
	if blocksToSwap == 0 {
		c.deferredMinBlocks = len(blocks) + 1
		return c.cancel(ErrDeferred)
	}

	keepFromID := blocks[blocksToSwap].FirstUnitID
	if keepFromID == "" {
		return c.cancel(ErrNoCutPoint)
	}

	c.phase = PhaseSwapping
	selected := blocks[:blocksToSwap]

	// Raw text goes to the immutable archive before anything else: the
	// durable copy must exist before the raw form leaves the transcript.
	for _, b := range selected {
		if err := c.arc.StoreRaw(b.Hash, b.Text); err != nil {
			return c.cancel(fmt.Errorf("swap: archive raw block: %w", err))
		}
		c.metrics.RecordArchivedBytes(len(b.Text))
	}

	entries, hits, misses, err := c.resolveCompressed(ctx, selected)
	if err != nil {
		return c.cancel(err)
	}

	// All compressed forms are in hand; from here on the swap commits.
	c.seedFromPriorSummaries(req.Units)

	entry := assembleEntry(selected, entries, time.Now().UTC())
	c.hist.Append(entry)

	evicted, err := c.hist.Evict(c.arc, c.cfg.EvictTrigger, time.Now())
	if err != nil {
		// The entry that failed to archive stays in the history; nothing is
		// lost, eviction just retries after the next swap.
		c.logger.Warn("eviction stopped early", "error", err)
	}
	for _, ev := range evicted {
		c.metrics.RecordEviction(len(ev.Compressed))
	}

	if err := c.cache.Flush(); err != nil {
		c.logger.Warn("cache flush failed", "error", err)
	}
	if err := c.hist.Flush(); err != nil {
		c.logger.Warn("history flush failed", "error", err)
	}

	c.deferredMinBlocks = 0
	c.phase = PhaseSettled
	c.metrics.RecordSwap(time.Since(started).Seconds())

	result := &Result{
		Document:      c.hist.Render(),
		KeepFromID:    keepFromID,
		TokensBefore:  req.TokensBefore,
		BlocksSwapped: blocksToSwap,
		SavedTokens:   entry.RawTokens - entry.CompressedTokens,
		Evicted:       len(evicted),
	}

	c.recordJournal(ctx, req, result, hits, misses, time.Since(started))
	c.logger.Info("swap settled",
		"blocks", blocksToSwap,
		"saved_tokens", result.SavedTokens,
		"evicted", len(evicted),
		"cache_hits", hits,
		"cache_misses", misses,
	)
	return result, nil
}

// worthSwapping reports whether the window holds at least one block at or
// above the minimum-swap floor. Sub-floor blocks are still carried along
// inside a swapped prefix (dropping them mid-window would lose content);
// the floor only decides whether the window is worth acting on.
func (c *Controller) worthSwapping(blocks []segment.Block) bool {
	for _, b := range blocks {
		if b.Tokens >= c.cfg.MinSwapTokens {
			return true
		}
	}
	return false
}

// selectBlocks walks blocks oldest-first accumulating estimated savings
// until they cover the overflow, and returns how many blocks that took.
// Cached blocks contribute their real savings; uncached ones the fixed
// discount estimate.
func (c *Controller) selectBlocks(blocks []segment.Block, overflow int) int {
	savings := 0
	for i, b := range blocks {
		if entry, ok := c.cache.Lookup(b.Hash); ok {
			savings += b.Tokens - entry.CompressedTokens
		} else {
			savings += int(float64(b.Tokens) * uncachedSavingsRatio)
		}
		if savings >= overflow {
			return i + 1
		}
	}
	return len(blocks)
}

// resolveCompressed returns a cache entry for every selected block,
// compressing misses on demand in bounded batches. No cache write is
// committed until every block has a result, so an abort mid-way mutates
// nothing.
func (c *Controller) resolveCompressed(ctx context.Context, selected []segment.Block) (map[string]blockcache.Entry, int, int, error) {
	resolved := make(map[string]blockcache.Entry, len(selected))
	pending := make(map[string]blockcache.Entry)
	var tasks []compress.Task
	hits, misses := 0, 0

	for _, b := range selected {
		if entry, ok := c.cache.Lookup(b.Hash); ok {
			c.metrics.RecordCacheLookup(true)
			resolved[b.Hash] = entry
			hits++
			continue
		}
		c.metrics.RecordCacheLookup(false)
		misses++

		if len(b.Text) < c.cfg.MinCompressChars {
			// Trivially small content: a compression round trip wastes a
			// network call and risks expansion. Stored verbatim.
			pending[b.Hash] = blockcache.Entry{
				Compressed:       b.Text,
				RawTokens:        b.Tokens,
				CompressedTokens: b.Tokens,
			}
			continue
		}
		tasks = append(tasks, compress.Task{Hash: b.Hash, Raw: b.Text})
	}

	if len(tasks) > 0 {
		results, err := c.pool.CompressAll(ctx, tasks)
		if err != nil {
			if errors.Is(err, compress.ErrAborted) {
				return nil, 0, 0, ErrAborted
			}
			return nil, 0, 0, err
		}
		for hash, res := range results {
			pending[hash] = blockcache.Entry{
				Compressed:       res.Compressed,
				RawTokens:        res.RawTokens,
				CompressedTokens: res.CompressedTokens,
			}
		}
	}

	for hash, entry := range pending {
		c.cache.Store(hash, entry)
		resolved[hash] = entry
	}
	return resolved, hits, misses, nil
}

// seedFromPriorSummaries preserves an older pre-existing compacted summary
// across a controller restart: on the very first swap of a session, summary
// units found in the host's transcript become the history's first entry.
func (c *Controller) seedFromPriorSummaries(units []unit.Unit) {
	if c.hist.Len() != 0 {
		return
	}
	summaries := segment.SummaryUnits(units)
	if len(summaries) == 0 {
		return
	}

	var text string
	for i, u := range summaries {
		if i > 0 {
			text += "\n\n"
		}
		text += u.Text
	}
	tokens := segment.EstimateTokens(text)
	c.hist.Append(history.Entry{
		Compressed:       text,
		RawTokens:        tokens,
		CompressedTokens: tokens,
		CreatedAt:        time.Now().UTC(),
	})
	c.logger.Info("seeded history from pre-existing summary", "tokens", tokens)
}

// assembleEntry concatenates the compressed forms of the swapped blocks,
// oldest first, into one history entry.
func assembleEntry(selected []segment.Block, entries map[string]blockcache.Entry, now time.Time) history.Entry {
	var text string
	rawTokens, compressedTokens := 0, 0
	for i, b := range selected {
		e := entries[b.Hash]
		if i > 0 {
			text += "\n\n"
		}
		text += e.Compressed
		rawTokens += e.RawTokens
		compressedTokens += e.CompressedTokens
	}
	return history.Entry{
		Compressed:       text,
		RawTokens:        rawTokens,
		CompressedTokens: compressedTokens,
		CreatedAt:        now,
	}
}

func (c *Controller) cancel(reason error) (*Result, error) {
	c.phase = PhaseCancelled
	c.metrics.RecordSwapCancelled()
	c.logger.Info("swap cancelled", "reason", reason)
	return nil, reason
}

func (c *Controller) recordJournal(ctx context.Context, req Request, res *Result, hits, misses int, took time.Duration) {
	if c.journal == nil {
		return
	}
	ev := journal.Event{
		SessionID:     c.session,
		Kind:          journal.KindSwap,
		TokensBefore:  req.TokensBefore,
		TokensAfter:   req.TokensBefore - res.SavedTokens,
		BlocksSwapped: res.BlocksSwapped,
		CacheHits:     hits,
		CacheMisses:   misses,
		Duration:      took,
	}
	if err := c.journal.Record(ctx, ev); err != nil {
		c.logger.Warn("journal record failed", "error", err)
	}
}
