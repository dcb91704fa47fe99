// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/okian/wheelsmith/pkg/logger"
)

// Job store kinds.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the verification queue; submissions beyond it are
	// rejected with backpressure.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of concurrent verification workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the remembered submission request ids.
	DedupeSize int `koanf:"dedupe_size"`

	// JobStore is memory or badger; JobStorePath is the badger directory.
	JobStore     string `koanf:"job_store"`
	JobStorePath string `koanf:"job_store_path"`

	// JobRetentionSeconds is how long finished jobs stay pollable. 0 keeps them.
	JobRetentionSeconds int `koanf:"job_retention_seconds"`

	// DefaultEffort is the candidate count used when a build request has none.
	DefaultEffort int `koanf:"default_effort"`

	// MaxSteps caps greedy iterations per build.
	MaxSteps int `koanf:"max_steps"`

	// ProgressInterval is the number of subsets between verification checkpoints.
	ProgressInterval int `koanf:"progress_interval"`

	// SampleLimit caps the uncovered subsets reported per verification.
	SampleLimit int `koanf:"sample_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		QueueSize:           1024,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		JobStore:            StoreMemory,
		JobStorePath:        "data/jobs",
		JobRetentionSeconds: 3600,
		DefaultEffort:       50,
		MaxSteps:            200_000,
		ProgressInterval:    50_000,
		SampleLimit:         50,
	}
}

// JobRetention returns JobRetentionSeconds as a duration.
func (c *Config) JobRetention() time.Duration {
	return time.Duration(c.JobRetentionSeconds) * time.Second
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !validLevel(c.LogLevel):
		return fmt.Errorf("%w: log_level must be debug, info, warn or error, got %q", ErrInvalidConfig, c.LogLevel)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.JobStore != StoreMemory && c.JobStore != StoreBadger:
		return fmt.Errorf("%w: job_store must be %s or %s, got %q", ErrInvalidConfig, StoreMemory, StoreBadger, c.JobStore)
	case c.JobStore == StoreBadger && c.JobStorePath == "":
		return fmt.Errorf("%w: job_store_path is required for the badger store", ErrInvalidConfig)
	case c.JobRetentionSeconds < 0:
		return fmt.Errorf("%w: job_retention_seconds must not be negative", ErrInvalidConfig)
	case c.ProgressInterval <= 0:
		return fmt.Errorf("%w: progress_interval must be positive", ErrInvalidConfig)
	case c.SampleLimit < 0:
		return fmt.Errorf("%w: sample_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

func validLevel(level string) bool {
	_, err := logger.ParseLevel(level)
	return err == nil
}
