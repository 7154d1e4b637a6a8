// Package archive is permanent, write-once, content-addressed storage.
// Records are never overwritten and never deleted by the engine: eviction
// from the visible history relies on the archive copy being the durable
// record.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/packrat-ai/packrat/internal/segment"
)

// Archive writes raw and evicted-compressed records under two directories.
type Archive struct {
	rawDir     string
	evictedDir string
}

// New creates an archive over the given directories. The directories must
// already exist (storage.Paths.EnsureDirs creates them).
func New(rawDir, evictedDir string) *Archive {
	return &Archive{rawDir: rawDir, evictedDir: evictedDir}
}

// StoreRaw writes a raw block keyed by its content hash. Idempotent: if the
// record already exists it is left untouched.
func (a *Archive) StoreRaw(hash, text string) error {
	return writeOnce(filepath.Join(a.rawDir, segment.ShortHash(hash)+".md"), text)
}

// StoreEvicted writes an evicted compressed block keyed by date+hash.
func (a *Archive) StoreEvicted(now time.Time, hash, text string) error {
	name := fmt.Sprintf("%s-%s.md", now.UTC().Format("2006-01-02"), segment.ShortHash(hash))
	return writeOnce(filepath.Join(a.evictedDir, name), text)
}

// HasRaw reports whether a raw record exists for hash.
func (a *Archive) HasRaw(hash string) bool {
	_, err := os.Stat(filepath.Join(a.rawDir, segment.ShortHash(hash)+".md"))
	return err == nil
}

// ReadRaw returns the archived raw text for hash.
func (a *Archive) ReadRaw(hash string) (string, error) {
	data, err := os.ReadFile(filepath.Join(a.rawDir, segment.ShortHash(hash)+".md"))
	if err != nil {
		return "", fmt.Errorf("archive: read raw %s: %w", segment.ShortHash(hash), err)
	}
	return string(data), nil
}

// writeOnce creates the file only if it does not already exist. An existing
// record is authoritative and must not be rewritten.
func writeOnce(path, text string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if os.IsExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", path, err)
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return fmt.Errorf("archive: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("archive: close %s: %w", path, err)
	}
	return nil
}
