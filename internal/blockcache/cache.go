// Package blockcache maps block content hashes to their previously computed
// compressed forms. The cache is persisted across restarts and bounded in
// size. Content addressing makes concurrent writes safe: the hash determines
// the value, so last-writer-wins on identical content loses nothing.
package blockcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/packrat-ai/packrat/internal/storage"
)

// DefaultMaxEntries is the hard capacity before oldest-inserted pruning.
const DefaultMaxEntries = 2000

// Entry is the cached compressed form of one block.
type Entry struct {
	Compressed       string `json:"compressed"`
	RawTokens        int    `json:"raw_tokens"`
	CompressedTokens int    `json:"compressed_tokens"`
}

// Cache is a content-addressable block cache. Safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]Entry
	order      []string // insertion order, for bounded pruning
	maxEntries int
	path       string
	legacyPath string
	dirty      bool
}

// New creates a cache persisted at path. legacyPath, when non-empty, is an
// older on-disk filename recognized at load time and migrated forward.
func New(path, legacyPath string, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:    make(map[string]Entry),
		maxEntries: maxEntries,
		path:       path,
		legacyPath: legacyPath,
	}
}

// Lookup returns the entry for hash, if present.
func (c *Cache) Lookup(hash string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[hash]
	return e, ok
}

// Store records an entry under hash. Storing the same hash twice is
// idempotent by content; the insertion position is kept from the first
// store so pruning order stays stable.
func (c *Cache) Store(hash string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[hash]; !exists {
		c.order = append(c.order, hash)
	}
	c.entries[hash] = e
	c.dirty = true
	c.pruneLocked()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// pruneLocked drops oldest-inserted entries beyond capacity. Not a strict
// LRU: lookups do not refresh position.
func (c *Cache) pruneLocked() {
	for len(c.entries) > c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// persisted is the on-disk document shape.
type persisted struct {
	Entries map[string]Entry `json:"entries"`
	Order   []string         `json:"order"`
}

// Load reads the cache document from disk. A missing file is not an error.
// When only the legacy filename exists, it is read and rewritten under the
// current name on the next Flush.
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) && c.legacyPath != "" {
		data, err = os.ReadFile(c.legacyPath)
		if err == nil {
			c.dirty = true // migrate to the current filename on flush
		}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("blockcache: read %s: %w", c.path, err)
	}

	var doc persisted
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("blockcache: parse %s: %w", c.path, err)
	}

	c.entries = doc.Entries
	if c.entries == nil {
		c.entries = make(map[string]Entry)
	}
	c.order = doc.Order
	// Repair order if the document predates order tracking. Insertion
	// order is gone at this point; sort so pruning stays reproducible
	// across loads.
	if len(c.order) != len(c.entries) {
		c.order = c.order[:0]
		for hash := range c.entries {
			c.order = append(c.order, hash)
		}
		sort.Strings(c.order)
	}
	c.pruneLocked()
	return nil
}

// Flush persists the cache if it changed since the last flush.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}
	data, err := json.MarshalIndent(persisted{Entries: c.entries, Order: c.order}, "", "  ")
	if err != nil {
		return fmt.Errorf("blockcache: marshal: %w", err)
	}
	if err := storage.WriteFileAtomic(c.path, data); err != nil {
		return fmt.Errorf("blockcache: flush: %w", err)
	}
	c.dirty = false
	return nil
}
