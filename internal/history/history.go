// Package history owns the ordered queue of already-swapped-in compressed
// segments. The sequence of entries is the compressed memory currently
// visible to the host; eviction migrates the oldest entries to the
// permanent archive once the token budget is exceeded.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/packrat-ai/packrat/internal/archive"
	"github.com/packrat-ai/packrat/internal/segment"
	"github.com/packrat-ai/packrat/internal/storage"
)

const (
	// PerEntryOverhead accounts for the label and framing tokens each
	// rendered entry adds to the visible document.
	PerEntryOverhead = 50

	// BaseOverhead accounts for the document header.
	BaseOverhead = 200
)

// Entry is one already-swapped-in compressed segment.
type Entry struct {
	Compressed       string    `json:"compressed"`
	RawTokens        int       `json:"raw_tokens"`
	CompressedTokens int       `json:"compressed_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// History is the ordered entry queue for one session. The swap controller
// is its only mutator; it is not safe for concurrent mutation.
type History struct {
	path    string
	entries []Entry
}

// New creates a history persisted at path.
func New(path string) *History {
	return &History{path: path}
}

// Append adds a new entry at the end of the queue.
func (h *History) Append(e Entry) {
	h.entries = append(h.entries, e)
}

// Entries returns the entries in creation order.
func (h *History) Entries() []Entry {
	return h.entries
}

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// VisibleTokens is the token footprint of the rendered document: compressed
// tokens plus fixed per-entry overhead plus the base overhead.
func (h *History) VisibleTokens() int {
	if len(h.entries) == 0 {
		return 0
	}
	total := BaseOverhead
	for _, e := range h.entries {
		total += e.CompressedTokens + PerEntryOverhead
	}
	return total
}

// Evict pops oldest entries while the visible-token total exceeds
// evictTrigger, writing each popped entry's full compressed content to the
// permanent archive before removal. Removal is never a delete of the
// underlying data. Returns the evicted entries.
func (h *History) Evict(arc *archive.Archive, evictTrigger int, now time.Time) ([]Entry, error) {
	var evicted []Entry
	for h.VisibleTokens() > evictTrigger && len(h.entries) > 0 {
		oldest := h.entries[0]
		hash := segment.HashText(oldest.Compressed)
		if err := arc.StoreEvicted(now, hash, oldest.Compressed); err != nil {
			// Stop rather than drop: without the archive copy the entry
			// would be lost.
			return evicted, fmt.Errorf("history: archive before evict: %w", err)
		}
		h.entries = h.entries[1:]
		evicted = append(evicted, oldest)
	}
	return evicted, nil
}

// Render assembles the host-visible compressed-history document: every
// entry rendered as a labeled block, oldest first.
func (h *History) Render() string {
	var b strings.Builder
	b.WriteString("# Compressed conversation memory\n")
	b.WriteString("Older conversation segments, compressed. Newer segments are further down.\n")
	for i, e := range h.entries {
		fmt.Fprintf(&b, "\n## Segment %d — %s (raw %d → %d tokens)\n",
			i+1, e.CreatedAt.UTC().Format("2006-01-02 15:04"), e.RawTokens, e.CompressedTokens)
		b.WriteString(e.Compressed)
		b.WriteString("\n")
	}
	return b.String()
}

// persisted is the on-disk document shape.
type persisted struct {
	Entries []Entry `json:"entries"`
}

// Load reads the history document. A missing file is an empty history.
func (h *History) Load() error {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("history: read %s: %w", h.path, err)
	}
	var doc persisted
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("history: parse %s: %w", h.path, err)
	}
	h.entries = doc.Entries
	return nil
}

// Flush persists the history document atomically.
func (h *History) Flush() error {
	data, err := json.MarshalIndent(persisted{Entries: h.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}
	if err := storage.WriteFileAtomic(h.path, data); err != nil {
		return fmt.Errorf("history: flush: %w", err)
	}
	return nil
}
