// Package service wires the wheel engine, the job store and the verification
// worker pool behind the operations the HTTP API and the CLI call.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/wheelsmith/internal/adapters/mq/queue"
	"github.com/okian/wheelsmith/internal/adapters/mq/worker"
	"github.com/okian/wheelsmith/internal/adapters/repository"
	"github.com/okian/wheelsmith/internal/domain/coverage"
	"github.com/okian/wheelsmith/internal/domain/dedupe"
	"github.com/okian/wheelsmith/internal/domain/model"
	"github.com/okian/wheelsmith/internal/domain/wheel"
	"github.com/okian/wheelsmith/pkg/logger"
	"github.com/okian/wheelsmith/pkg/metrics"
)

// Service implements the API dependencies for wheel building and
// asynchronous coverage verification.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	ownsStore bool
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	verifier  *coverage.Verifier
	pool      *worker.Pool

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	defaultEffort    int
	maxSteps         int
	progressInterval uint64
	sampleLimit      int
	retention        time.Duration
	badgerPath       string

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
	now    func() time.Time
}

// New constructs a Service with default configuration. Nothing runs until
// Start is called.
func New(opts ...Option) *Service {
	s := &Service{
		ownsStore:        true,
		workerCount:      runtime.NumCPU(),
		queueSize:        1024,
		dedupeSize:       50_000,
		defaultEffort:    50,
		maxSteps:         wheel.DefaultMaxSteps,
		progressInterval: coverage.DefaultCheckpointInterval,
		sampleLimit:      coverage.DefaultSampleLimit,
		retention:        time.Hour,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.verifier = coverage.New(
		coverage.WithLogger(s.logger.Named("verifier")),
		coverage.WithCheckpointInterval(s.progressInterval),
		coverage.WithSampleLimit(s.sampleLimit),
	)
	return s
}

// Start opens the job store and starts the worker pool. The pool stops when
// ctx is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	if s.ownsStore {
		store, err := s.openStore(runCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("open job store: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.verifier, s.store,
		worker.WithLogger(s.logger.Named("worker")))
	s.pool.Start(runCtx)

	s.cancel = cancel
	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.String("store", s.storeKind()))
	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	opts := []repository.Option{
		repository.WithRetention(s.retention),
		repository.WithLogger(s.logger.Named("store")),
	}
	if s.badgerPath != "" {
		return repository.NewBadgerStore(ctx, s.badgerPath, opts...)
	}
	return repository.NewMemoryStore(ctx, opts...), nil
}

func (s *Service) storeKind() string {
	if s.badgerPath != "" && s.ownsStore {
		return "badger"
	}
	if !s.ownsStore {
		return "external"
	}
	return "memory"
}

// Stop shuts down the worker pool, failing any verification that has not
// finished, then closes the job store if the service opened it.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown workers: %w", err))
	}
	s.cancel()
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close job store: %w", err))
		}
		s.store = nil
	}
	s.logger.Info(ctx, "service stopped")
	return errors.Join(errs...)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"maxSteps":     s.maxSteps,
		"jobRetention": s.retention.String(),
	}
	if s.started {
		queueLen := s.queue.Len(ctx)
		jobs := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["jobs"] = jobs
		stats["requestIds"] = s.deduper.Size()
		stats["store"] = s.storeKind()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateStoreJobs(jobs)
	}
	return stats
}

// kindLabel maps an engine error to a metrics label.
func kindLabel(err error) string {
	switch model.KindOf(err) {
	case model.ErrInvalidParameters:
		return "invalid_parameters"
	case model.ErrInfeasibleConstraints:
		return "infeasible_constraints"
	case model.ErrCapacityExceeded:
		return "capacity_exceeded"
	case model.ErrJobNotFound:
		return "job_not_found"
	case model.ErrBackpressure:
		return "backpressure"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "internal"
}
