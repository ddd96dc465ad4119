// Package config provides configuration loading for patternbank.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Store   StoreConfig   `koanf:"store"`
	Engine  EngineConfig  `koanf:"engine"`
	Loop    LoopConfig    `koanf:"loop"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// StoreConfig holds pattern store settings.
type StoreConfig struct {
	// SnapshotPath is the JSON snapshot file. Empty disables persistence.
	SnapshotPath string `koanf:"snapshot_path"`

	// IndexConsistency is "eager" or "lazy".
	IndexConsistency string `koanf:"index_consistency"`

	// RebuildInterval bounds index staleness in lazy mode.
	RebuildInterval time.Duration `koanf:"rebuild_interval"`
}

// EngineConfig holds learning engine tuning.
type EngineConfig struct {
	LearningThreshold float64       `koanf:"learning_threshold"`
	FeedbackWeight    float64       `koanf:"feedback_weight"`
	MinSimilarity     float64       `koanf:"min_similarity"`
	MaxResults        int           `koanf:"max_results"`
	CacheSize         int           `koanf:"cache_size"`
	PatternLifetime   time.Duration `koanf:"pattern_lifetime"`
	MinEffectiveness  float64       `koanf:"min_effectiveness"`
	MaxPatterns       int           `koanf:"max_patterns"`
	KeepMinimum       int           `koanf:"keep_minimum"`
}

// LoopConfig holds learning-loop controller settings.
type LoopConfig struct {
	// Enabled turns the analyzer-issue ingestion loop on.
	Enabled bool `koanf:"enabled"`

	// WatchDir is the directory watched for analyzer issue reports.
	WatchDir string `koanf:"watch_dir"`

	// CleanupInterval schedules periodic store cleanup. Zero disables.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the hardcoded defaults, the lowest precedence layer.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8750,
		},
		Store: StoreConfig{
			SnapshotPath:     "",
			IndexConsistency: "eager",
			RebuildInterval:  30 * time.Second,
		},
		Engine: EngineConfig{
			LearningThreshold: 0.1,
			FeedbackWeight:    0.3,
			MinSimilarity:     0.3,
			MaxResults:        10,
			CacheSize:         100,
			PatternLifetime:   90 * 24 * time.Hour,
			MinEffectiveness:  0.3,
			MaxPatterns:       1000,
			KeepMinimum:       10,
		},
		Loop: LoopConfig{
			Enabled:         false,
			CleanupInterval: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks ranges and enum fields.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Store.IndexConsistency != "eager" && c.Store.IndexConsistency != "lazy" {
		return fmt.Errorf("invalid index consistency %q (want eager or lazy)", c.Store.IndexConsistency)
	}
	if c.Engine.FeedbackWeight <= 0 || c.Engine.FeedbackWeight > 1 {
		return fmt.Errorf("feedback weight must be in (0, 1], got %v", c.Engine.FeedbackWeight)
	}
	if c.Engine.MinSimilarity < 0 || c.Engine.MinSimilarity > 1 {
		return fmt.Errorf("min similarity must be in [0, 1], got %v", c.Engine.MinSimilarity)
	}
	if c.Engine.MinEffectiveness < 0 || c.Engine.MinEffectiveness > 1 {
		return fmt.Errorf("min effectiveness must be in [0, 1], got %v", c.Engine.MinEffectiveness)
	}
	if c.Engine.KeepMinimum < 0 {
		return fmt.Errorf("keep minimum cannot be negative")
	}
	if c.Engine.MaxPatterns > 0 && c.Engine.KeepMinimum > c.Engine.MaxPatterns {
		return fmt.Errorf("keep minimum %d exceeds max patterns %d",
			c.Engine.KeepMinimum, c.Engine.MaxPatterns)
	}
	if c.Loop.Enabled && c.Loop.WatchDir == "" {
		return fmt.Errorf("loop enabled but watch_dir is empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}
	return nil
}
