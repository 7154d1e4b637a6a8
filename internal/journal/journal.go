// Package journal records compaction activity in a local SQLite database:
// one row per settled swap or eviction pass. The journal is bookkeeping for
// inspection tooling; engine correctness never depends on it.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5000 // ms

// Event kinds.
const (
	KindSwap     = "swap"
	KindEviction = "eviction"
)

// Event is one journal row.
type Event struct {
	ID            string
	SessionID     string
	Kind          string
	TokensBefore  int
	TokensAfter   int
	BlocksSwapped int
	CacheHits     int
	CacheMisses   int
	Duration      time.Duration
	CreatedAt     time.Time
}

// Recorder persists events. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
	List(ctx context.Context, limit int) ([]Event, error)
	Close() error
}

// Journal is the SQLite-backed Recorder.
type Journal struct {
	db *sql.DB
}

// Compile-time interface guard.
var _ Recorder = (*Journal)(nil)

// Open opens (or creates) the journal database at path. WAL mode, a busy
// timeout, and a single connection (SQLite serialises writes).
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("journal: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: set busy_timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Record inserts an event. A zero ID or CreatedAt is filled in.
func (j *Journal) Record(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO events
			(id, session_id, kind, tokens_before, tokens_after,
			 blocks_swapped, cache_hits, cache_misses, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.SessionID, ev.Kind, ev.TokensBefore, ev.TokensAfter,
		ev.BlocksSwapped, ev.CacheHits, ev.CacheMisses,
		ev.Duration.Milliseconds(), createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal: record event: %w", err)
	}
	return nil
}

// List returns the most recent events, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session_id, kind, tokens_before, tokens_after,
		       blocks_swapped, cache_hits, cache_misses, duration_ms, created_at
		FROM events
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var ev Event
		var durationMS int64
		var createdAt string
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Kind,
			&ev.TokensBefore, &ev.TokensAfter,
			&ev.BlocksSwapped, &ev.CacheHits, &ev.CacheMisses,
			&durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("journal: scan event: %w", err)
		}
		ev.Duration = time.Duration(durationMS) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			ev.CreatedAt = t
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Vacuum reclaims unused pages. Run from maintenance, never on a hot path.
func (j *Journal) Vacuum(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("journal: vacuum: %w", err)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
