package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/packrat-ai/packrat/internal/config"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	if !cfg.Enabled {
		t.Error("default config is disabled")
	}
	if cfg.CompressTrigger != 40000 {
		t.Errorf("CompressTrigger = %d", cfg.CompressTrigger)
	}
	if cfg.EvictTrigger != 80000 {
		t.Errorf("EvictTrigger = %d", cfg.EvictTrigger)
	}
	if cfg.BlockSize != 4000 {
		t.Errorf("BlockSize = %d", cfg.BlockSize)
	}
	if cfg.MinCompressChars != 1000 {
		t.Errorf("MinCompressChars = %d", cfg.MinCompressChars)
	}
	if cfg.MinSwapTokens != 200 {
		t.Errorf("MinSwapTokens = %d", cfg.MinSwapTokens)
	}
	if cfg.CompressionModel != "claude-haiku-4-5" {
		t.Errorf("CompressionModel = %q", cfg.CompressionModel)
	}
	if cfg.NarrativeModel != cfg.CompressionModel {
		t.Errorf("NarrativeModel = %q, want compression model", cfg.NarrativeModel)
	}
	if cfg.MaxParallelCompressions != 3 {
		t.Errorf("MaxParallelCompressions = %d", cfg.MaxParallelCompressions)
	}
	if cfg.NarrativeWordBudget != 600 {
		t.Errorf("NarrativeWordBudget = %d", cfg.NarrativeWordBudget)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config fails validation: %v", err)
	}
}

func TestLoadMissingFileYieldsDefault(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.CompressTrigger != 40000 {
		t.Errorf("CompressTrigger = %d, want default", cfg.CompressTrigger)
	}
}

func TestLoadAppliesDocumentAndDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
compress_trigger: 20000
block_size: 2000
log_level: debug
maintenance:
  cache_flush: "*/5 * * * *"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.CompressTrigger != 20000 {
		t.Errorf("CompressTrigger = %d, want 20000", cfg.CompressTrigger)
	}
	if cfg.BlockSize != 2000 {
		t.Errorf("BlockSize = %d, want 2000", cfg.BlockSize)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Maintenance.CacheFlush != "*/5 * * * *" {
		t.Errorf("Maintenance.CacheFlush = %q", cfg.Maintenance.CacheFlush)
	}
	// Unset fields still get defaults.
	if cfg.EvictTrigger != 80000 {
		t.Errorf("EvictTrigger = %d, want default", cfg.EvictTrigger)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
api_key: ${PACKRAT_TEST_KEY}
base_url: ${PACKRAT_TEST_URL:-https://api.anthropic.com}
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PACKRAT_TEST_KEY", "sk-test")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.BaseURL != "https://api.anthropic.com" {
		t.Errorf("BaseURL = %q, want the fallback default", cfg.BaseURL)
	}
}

func TestLoadUnresolvedVariable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "api_key: ${PACKRAT_DEFINITELY_UNSET_VAR}\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := config.Load(path)
	if err == nil {
		t.Fatal("Load() accepted an unresolved variable")
	}
	if !strings.Contains(err.Error(), "PACKRAT_DEFINITELY_UNSET_VAR") {
		t.Errorf("error does not name the variable: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*config.Config) {},
		},
		{
			name:    "negative_compress_trigger",
			mutate:  func(c *config.Config) { c.CompressTrigger = -1 },
			wantErr: "compress_trigger",
		},
		{
			name:    "zero_block_size",
			mutate:  func(c *config.Config) { c.BlockSize = 0 },
			wantErr: "block_size",
		},
		{
			name:    "bad_log_level",
			mutate:  func(c *config.Config) { c.LogLevel = "loud" },
			wantErr: "log_level",
		},
		{
			name:    "zero_parallelism",
			mutate:  func(c *config.Config) { c.MaxParallelCompressions = 0 },
			wantErr: "max_parallel_compressions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() accepted an invalid config")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
