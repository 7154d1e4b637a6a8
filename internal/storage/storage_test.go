package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/packrat-ai/packrat/internal/storage"
)

func TestPathsLayout(t *testing.T) {
	t.Parallel()

	p := storage.NewPaths("/ws")

	tests := []struct {
		got  string
		want string
	}{
		{p.Root(), "/ws/.packrat"},
		{p.CacheFile(), "/ws/.packrat/block-cache.json"},
		{p.LegacyCacheFile(), "/ws/.packrat/compression-cache.json"},
		{p.HistoryFile("sess-1"), "/ws/.packrat/history-sess-1.json"},
		{p.RawArchiveDir(), "/ws/.packrat/archive/raw"},
		{p.EvictedArchiveDir(), "/ws/.packrat/archive/evicted"},
		{p.JournalFile(), "/ws/.packrat/journal.db"},
		{p.LogFile(), "/ws/.packrat/engine.log"},
		{p.ConfigFile(), "/ws/.packrat/config.yaml"},
		{p.NarrativeFile(), "/ws/working-memory.md"},
	}
	for _, tt := range tests {
		if tt.got != filepath.FromSlash(tt.want) {
			t.Errorf("path = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEnsureDirs(t *testing.T) {
	t.Parallel()

	p := storage.NewPaths(t.TempDir())
	if err := p.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error: %v", err)
	}
	// Idempotent.
	if err := p.EnsureDirs(); err != nil {
		t.Fatalf("second EnsureDirs() error: %v", err)
	}
	for _, dir := range []string{p.Root(), p.RawArchiveDir(), p.EvictedArchiveDir()} {
		fi, err := os.Stat(dir)
		if err != nil || !fi.IsDir() {
			t.Errorf("missing directory %s: %v", dir, err)
		}
	}
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")

	if err := storage.WriteFileAtomic(path, []byte("first")); err != nil {
		t.Fatalf("WriteFileAtomic() error: %v", err)
	}
	if err := storage.WriteFileAtomic(path, []byte("second")); err != nil {
		t.Fatalf("overwrite WriteFileAtomic() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q", data)
	}

	// No stray temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries after atomic writes, want 1", len(entries))
	}
}
