// Package config handles InboxPilot configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/inboxpilot/inboxpilot/internal/core"
)

// Config holds all configuration
type Config struct {
	// Paths
	DataDir string `json:"data_dir"`

	// Engine
	Engine EngineConfig `json:"engine"`

	// Features
	Features FeatureConfig `json:"features"`
}

// EngineConfig controls the batch evaluation runs
type EngineConfig struct {
	// BatchSize bounds how many emails are evaluated per account per run.
	BatchSize int `json:"batch_size"`

	// AccountParallelism bounds how many accounts run concurrently.
	AccountParallelism int `json:"account_parallelism"`

	// Interval between evaluation runs in daemon mode.
	Interval Duration `json:"interval"`

	// CacheTTL bounds how long per-user rules and config stay cached.
	CacheTTL Duration `json:"cache_ttl"`
}

// FeatureConfig for feature flags
type FeatureConfig struct {
	EnableScheduler bool `json:"enable_scheduler"`
	DebugMode       bool `json:"debug_mode"`
}

// Duration wraps time.Duration with JSON string encoding ("5m", "1h").
type Duration time.Duration

// MarshalJSON encodes the duration as its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or nanosecond number.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		DataDir: filepath.Join(home, ".inboxpilot"),
		Engine: EngineConfig{
			BatchSize:          200,
			AccountParallelism: 4,
			Interval:           Duration(5 * time.Minute),
			CacheTTL:           Duration(10 * time.Minute),
		},
		Features: FeatureConfig{
			EnableScheduler: true,
			DebugMode:       false,
		},
	}
}

// Load loads config from file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.json")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrMalformedConfig, path, err)
	}

	cfg.sanitize()
	return cfg, nil
}

// Save saves config to file
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(c.DataDir, "config.json")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// sanitize pulls out-of-range engine settings back to their defaults.
func (c *Config) sanitize() {
	def := Default()
	if c.Engine.BatchSize <= 0 {
		c.Engine.BatchSize = def.Engine.BatchSize
	}
	if c.Engine.AccountParallelism <= 0 {
		c.Engine.AccountParallelism = def.Engine.AccountParallelism
	}
	if c.Engine.Interval <= 0 {
		c.Engine.Interval = def.Engine.Interval
	}
	if c.Engine.CacheTTL <= 0 {
		c.Engine.CacheTTL = def.Engine.CacheTTL
	}
}
