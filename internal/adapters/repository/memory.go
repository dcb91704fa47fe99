package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/wheelsmith/internal/domain/model"
	"github.com/okian/wheelsmith/pkg/logger"
	"github.com/okian/wheelsmith/pkg/metrics"
)

// MemoryStore keeps jobs in a map. Terminal jobs idle for longer than the
// retention are evicted by a background sweep.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
	cfg  *storeConfig

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMemoryStore creates a store and, when retention is set, starts the
// sweeper. The sweeper stops with ctx or Close.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		jobs: make(map[string]model.Job),
		cfg:  newStoreConfig(opts, defaultSweepInterval),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if s.cfg.retention > 0 {
		go s.sweepLoop(ctx)
	} else {
		close(s.done)
	}
	return s
}

func (s *MemoryStore) sweepLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.Sweep(ctx); n > 0 {
				s.cfg.log.Debug(ctx, "expired jobs evicted", logger.Int("count", n))
			}
		}
	}
}

// Sweep evicts terminal jobs whose last update is older than the retention
// and returns how many were dropped.
func (s *MemoryStore) Sweep(ctx context.Context) int {
	if s.cfg.retention <= 0 {
		return 0
	}
	cutoff := s.cfg.now().Add(-s.cfg.retention)
	s.mu.Lock()
	n := 0
	for id, j := range s.jobs {
		if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	left := len(s.jobs)
	s.mu.Unlock()
	if n > 0 {
		metrics.RecordStoreEvictions(n)
		metrics.UpdateStoreJobs(left)
	}
	return n
}

func (s *MemoryStore) Create(_ context.Context, job model.Job) error {
	start := time.Now()
	defer observe("create", start)

	now := s.cfg.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return ErrAlreadyExists
	}
	s.jobs[job.ID] = job
	metrics.UpdateStoreJobs(len(s.jobs))
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*model.Job)) (model.Job, error) {
	start := time.Now()
	defer observe("update", start)

	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Job{}, ErrNotFound
	}
	fn(&j)
	j.ID = id
	j.UpdatedAt = s.cfg.now()
	s.jobs[id] = j
	return j, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Job, error) {
	start := time.Now()
	defer observe("get", start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return j, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	start := time.Now()
	defer observe("delete", start)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	metrics.UpdateStoreJobs(len(s.jobs))
	return nil
}

func (s *MemoryStore) Count(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Close stops the sweeper and waits for it to exit.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}
