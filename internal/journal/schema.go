package journal

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order. All use IF NOT EXISTS so
// migration is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id             TEXT    PRIMARY KEY,
		session_id     TEXT    NOT NULL,
		kind           TEXT    NOT NULL,
		tokens_before  INTEGER NOT NULL DEFAULT 0,
		tokens_after   INTEGER NOT NULL DEFAULT 0,
		blocks_swapped INTEGER NOT NULL DEFAULT 0,
		cache_hits     INTEGER NOT NULL DEFAULT 0,
		cache_misses   INTEGER NOT NULL DEFAULT 0,
		duration_ms    INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, created_at)`,
}

func migrate(db *sql.DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("journal: create schema_version: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("journal: migrate: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx,
		"INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("journal: record schema version: %w", err)
	}
	return nil
}
