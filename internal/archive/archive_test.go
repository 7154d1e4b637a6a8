package archive_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/packrat-ai/packrat/internal/archive"
	"github.com/packrat-ai/packrat/internal/segment"
)

func newArchive(t *testing.T) (*archive.Archive, string, string) {
	t.Helper()
	dir := t.TempDir()
	rawDir := filepath.Join(dir, "raw")
	evictedDir := filepath.Join(dir, "evicted")
	for _, d := range []string{rawDir, evictedDir} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			t.Fatal(err)
		}
	}
	return archive.New(rawDir, evictedDir), rawDir, evictedDir
}

func TestStoreRawRoundTrip(t *testing.T) {
	t.Parallel()

	arc, _, _ := newArchive(t)
	hash := segment.HashText("block text")

	if arc.HasRaw(hash) {
		t.Fatal("HasRaw reported a record before any store")
	}
	if err := arc.StoreRaw(hash, "block text"); err != nil {
		t.Fatalf("StoreRaw() error: %v", err)
	}
	if !arc.HasRaw(hash) {
		t.Fatal("HasRaw false after store")
	}
	got, err := arc.ReadRaw(hash)
	if err != nil {
		t.Fatalf("ReadRaw() error: %v", err)
	}
	if got != "block text" {
		t.Errorf("ReadRaw() = %q", got)
	}
}

// TestStoreRawWriteOnce verifies that an existing record is never
// overwritten: the first write is authoritative.
func TestStoreRawWriteOnce(t *testing.T) {
	t.Parallel()

	arc, _, _ := newArchive(t)
	hash := segment.HashText("original")

	if err := arc.StoreRaw(hash, "original"); err != nil {
		t.Fatalf("first StoreRaw() error: %v", err)
	}
	if err := arc.StoreRaw(hash, "attempted rewrite"); err != nil {
		t.Fatalf("second StoreRaw() error: %v", err)
	}

	got, err := arc.ReadRaw(hash)
	if err != nil {
		t.Fatalf("ReadRaw() error: %v", err)
	}
	if got != "original" {
		t.Errorf("record was rewritten: got %q", got)
	}
}

func TestStoreEvictedFilename(t *testing.T) {
	t.Parallel()

	arc, _, evictedDir := newArchive(t)
	hash := segment.HashText("evicted content")
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	if err := arc.StoreEvicted(now, hash, "evicted content"); err != nil {
		t.Fatalf("StoreEvicted() error: %v", err)
	}

	want := filepath.Join(evictedDir, "2026-03-14-"+segment.ShortHash(hash)+".md")
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("expected record at %s: %v", want, err)
	}
	if string(data) != "evicted content" {
		t.Errorf("record content = %q", data)
	}
}

func TestReadRawMissing(t *testing.T) {
	t.Parallel()

	arc, _, _ := newArchive(t)
	if _, err := arc.ReadRaw(segment.HashText("never stored")); err == nil {
		t.Fatal("ReadRaw on a missing record returned no error")
	}
}
