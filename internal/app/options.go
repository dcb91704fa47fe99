package service

import (
	"time"

	"github.com/okian/wheelsmith/internal/adapters/repository"
	"github.com/okian/wheelsmith/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of verification workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the verification queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many request ids are remembered for idempotent
// submission.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultEffort sets the candidate count used when a build request
// leaves effort at zero.
func WithDefaultEffort(effort int) Option {
	return func(s *Service) {
		if effort > 0 {
			s.defaultEffort = effort
		}
	}
}

// WithMaxSteps sets the greedy step ceiling.
func WithMaxSteps(steps int) Option {
	return func(s *Service) {
		if steps > 0 {
			s.maxSteps = steps
		}
	}
}

// WithProgressInterval sets how many subsets a verification examines
// between progress updates.
func WithProgressInterval(n uint64) Option {
	return func(s *Service) {
		if n > 0 {
			s.progressInterval = n
		}
	}
}

// WithSampleLimit caps the uncovered subsets reported per verification.
func WithSampleLimit(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.sampleLimit = n
		}
	}
}

// WithJobRetention sets how long finished jobs stay pollable.
func WithJobRetention(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// WithBadgerStore keeps job records in a badger database at path instead of
// in memory.
func WithBadgerStore(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.badgerPath = path
		}
	}
}

// WithStore injects a job store. The service does not close injected stores.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.ownsStore = false
		}
	}
}
