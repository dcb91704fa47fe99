package repository

import (
	"time"

	"github.com/okian/wheelsmith/pkg/logger"
)

const (
	defaultSweepInterval = time.Minute
	defaultGCInterval    = 5 * time.Minute
)

type storeConfig struct {
	retention     time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	log           logger.Logger
	inMemory      bool
}

// Option configures a Store implementation.
type Option func(*storeConfig)

// WithRetention sets how long a job is kept after its last update. Zero keeps
// jobs forever.
func WithRetention(d time.Duration) Option {
	return func(c *storeConfig) {
		if d >= 0 {
			c.retention = d
		}
	}
}

// WithSweepInterval sets how often the memory store evicts expired jobs and
// how often the badger store runs value log GC.
func WithSweepInterval(d time.Duration) Option {
	return func(c *storeConfig) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(c *storeConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// WithInMemory runs the badger store without touching disk.
func WithInMemory() Option {
	return func(c *storeConfig) {
		c.inMemory = true
	}
}

func newStoreConfig(opts []Option, sweep time.Duration) *storeConfig {
	c := &storeConfig{sweepInterval: sweep, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("repository")
	}
	return c
}
