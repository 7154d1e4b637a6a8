// Package config handles YAML configuration loading, environment variable
// expansion, and validation for the engine.
package config

import (
	"errors"
	"fmt"
	"log/slog"
)

// Config is the engine configuration document.
type Config struct {
	// Enabled is the master switch. A disabled engine ignores every host
	// event.
	Enabled bool `yaml:"enabled"`

	// CompressTrigger is the token threshold that causes a swap to be
	// attempted.
	CompressTrigger int `yaml:"compress_trigger"`

	// EvictTrigger is the token threshold that causes history eviction.
	EvictTrigger int `yaml:"evict_trigger"`

	// BlockSize is the target block token ceiling.
	BlockSize int `yaml:"block_size"`

	// MinCompressChars: text below this is stored verbatim, uncompressed.
	MinCompressChars int `yaml:"min_compress_chars"`

	// MinSwapTokens: blocks below this are skipped during swap selection.
	MinSwapTokens int `yaml:"min_swap_tokens"`

	// CompressionModel is the service model used for block compression.
	CompressionModel string `yaml:"compression_model"`

	// NarrativeModel is the service model used for narrative updates.
	NarrativeModel string `yaml:"narrative_model"`

	// MaxParallelCompressions caps concurrent compression calls.
	MaxParallelCompressions int `yaml:"max_parallel_compressions"`

	// NarrativeWordBudget caps the working-memory document size.
	NarrativeWordBudget int `yaml:"narrative_word_budget"`

	// StatusBind enables the HTTP status server when non-empty
	// (e.g. "127.0.0.1:9380").
	StatusBind string `yaml:"status_bind"`

	// Maintenance holds the periodic job schedules.
	Maintenance MaintenanceConfig `yaml:"maintenance"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// APIKey overrides the ANTHROPIC_API_KEY environment variable.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL overrides the completion service endpoint.
	BaseURL string `yaml:"base_url,omitempty"`
}

// MaintenanceConfig holds cron expressions for periodic jobs.
type MaintenanceConfig struct {
	// CacheFlush persists and prunes the block cache. Empty disables.
	CacheFlush string `yaml:"cache_flush"`

	// JournalVacuum compacts the event journal. Empty disables.
	JournalVacuum string `yaml:"journal_vacuum"`
}

// Default returns the configuration used when no document exists.
func Default() *Config {
	cfg := &Config{Enabled: true}
	cfg.defaults()
	return cfg
}

// defaults fills zero-valued fields.
func (c *Config) defaults() {
	if c.CompressTrigger == 0 {
		c.CompressTrigger = 40000
	}
	if c.EvictTrigger == 0 {
		c.EvictTrigger = 80000
	}
	if c.BlockSize == 0 {
		c.BlockSize = 4000
	}
	if c.MinCompressChars == 0 {
		c.MinCompressChars = 1000
	}
	if c.MinSwapTokens == 0 {
		c.MinSwapTokens = 200
	}
	if c.CompressionModel == "" {
		c.CompressionModel = "claude-haiku-4-5"
	}
	if c.NarrativeModel == "" {
		c.NarrativeModel = c.CompressionModel
	}
	if c.MaxParallelCompressions == 0 {
		c.MaxParallelCompressions = 3
	}
	if c.NarrativeWordBudget == 0 {
		c.NarrativeWordBudget = 600
	}
	if c.Maintenance.CacheFlush == "" {
		c.Maintenance.CacheFlush = "*/10 * * * *"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	var errs []error
	if c.CompressTrigger <= 0 {
		errs = append(errs, errors.New("compress_trigger must be positive"))
	}
	if c.EvictTrigger <= 0 {
		errs = append(errs, errors.New("evict_trigger must be positive"))
	}
	if c.BlockSize <= 0 {
		errs = append(errs, errors.New("block_size must be positive"))
	}
	if c.MaxParallelCompressions <= 0 {
		errs = append(errs, errors.New("max_parallel_compressions must be positive"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
