// Package storage defines the workspace-relative on-disk layout and the
// atomic file-write primitive shared by every persisted document.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	rootDirName     = ".packrat"
	cacheFileName   = "block-cache.json"
	legacyCacheName = "compression-cache.json"
	journalFileName = "journal.db"
	logFileName     = "engine.log"
	configFileName  = "config.yaml"
	rawArchiveDir   = "archive/raw"
	evictedDir      = "archive/evicted"

	// narrativeFileName lives at the workspace root, not under the storage
	// root, because the narrative document must survive independently of
	// engine state.
	narrativeFileName = "working-memory.md"
)

// Paths resolves every persisted location under a workspace root.
type Paths struct {
	Workspace string
}

// NewPaths returns the path layout for a workspace. The storage root is not
// created until EnsureDirs is called.
func NewPaths(workspace string) Paths {
	return Paths{Workspace: workspace}
}

// Root returns the engine storage root.
func (p Paths) Root() string { return filepath.Join(p.Workspace, rootDirName) }

// CacheFile is the block cache document.
func (p Paths) CacheFile() string { return filepath.Join(p.Root(), cacheFileName) }

// LegacyCacheFile is the pre-rename cache document, recognized at load for
// migration.
func (p Paths) LegacyCacheFile() string { return filepath.Join(p.Root(), legacyCacheName) }

// HistoryFile is the compaction-history document for a session.
func (p Paths) HistoryFile(sessionID string) string {
	return filepath.Join(p.Root(), fmt.Sprintf("history-%s.json", sessionID))
}

// RawArchiveDir holds write-once raw blocks keyed by content hash.
func (p Paths) RawArchiveDir() string { return filepath.Join(p.Root(), rawArchiveDir) }

// EvictedArchiveDir holds write-once evicted compressed blocks keyed by
// date+hash.
func (p Paths) EvictedArchiveDir() string { return filepath.Join(p.Root(), evictedDir) }

// JournalFile is the SQLite compaction-event journal.
func (p Paths) JournalFile() string { return filepath.Join(p.Root(), journalFileName) }

// LogFile is the append-only engine log stream.
func (p Paths) LogFile() string { return filepath.Join(p.Root(), logFileName) }

// ConfigFile is the engine configuration document.
func (p Paths) ConfigFile() string { return filepath.Join(p.Root(), configFileName) }

// NarrativeFile is the evolving working-memory document.
func (p Paths) NarrativeFile() string { return filepath.Join(p.Workspace, narrativeFileName) }

// EnsureDirs creates the storage root and archive directories.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.Root(), p.RawArchiveDir(), p.EvictedArchiveDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("storage: create %s: %w", dir, err)
		}
	}
	return nil
}

// WriteFileAtomic writes data to path via a temporary file and rename, so a
// crash mid-write never leaves a truncated document behind.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("storage: create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: rename %s: %w", path, err)
	}
	return nil
}
