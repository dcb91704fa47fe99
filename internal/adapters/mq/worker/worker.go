// Package worker runs queued verification tasks and records their outcome in
// the job store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/wheelsmith/internal/adapters/mq/queue"
	"github.com/okian/wheelsmith/internal/domain/coverage"
	"github.com/okian/wheelsmith/internal/domain/model"
	"github.com/okian/wheelsmith/pkg/logger"
	"github.com/okian/wheelsmith/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Verifier runs one coverage check.
type Verifier interface {
	Verify(ctx context.Context, req model.VerifyRequest, onProgress coverage.ProgressFunc) (*model.CoverageResult, error)
}

// JobStore is the part of the repository workers write to.
type JobStore interface {
	Update(ctx context.Context, id string, fn func(*model.Job)) (model.Job, error)
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) (queue.Task, bool)
}

// Worker consumes tasks until its queue closes or it is shut down.
type Worker interface {
	Run(ctx context.Context)
	// Shutdown cancels the task in flight and waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker. A task's job record is written only by
// the worker running it.
type InMemoryWorker struct {
	queue    Queue
	verifier Verifier
	store    JobStore
	name     string
	logger   logger.Logger

	shutdownOnce sync.Once
	shutdown     chan struct{}
	done         chan struct{}
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, v Verifier, s JobStore, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		verifier: v,
		store:    s,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named("worker")
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes tasks until ctx is cancelled, Shutdown is called, or the
// queue is closed and drained.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	for ctx.Err() == nil {
		t, ok := w.queue.Dequeue(ctx)
		if !ok {
			return
		}
		if err := w.process(ctx, t); err != nil {
			w.logger.Error(ctx, "verification failed", logger.String("job_id", t.JobID), logger.Error(err))
		}
	}
}

func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one verification. Failures end up in the job record; the
// returned error is only for logging.
func (w *InMemoryWorker) process(ctx context.Context, t queue.Task) error {
	start := time.Now()
	metrics.AddWorkerActive(1)
	metrics.AddVerificationsInFlight(1)
	defer func() {
		metrics.AddWorkerActive(-1)
		metrics.AddVerificationsInFlight(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if _, err := w.store.Update(ctx, t.JobID, func(j *model.Job) {
		j.Status = model.JobProcessing
	}); err != nil {
		metrics.RecordErrorByComponent("worker", "job_missing")
		return fmt.Errorf("mark job %s processing: %w", t.JobID, err)
	}

	var reported uint64
	res, err := w.verifier.Verify(ctx, t.Request, func(ctx context.Context, progress, total uint64) {
		metrics.RecordSubsetsExamined(progress - reported)
		reported = progress
		if _, err := w.store.Update(ctx, t.JobID, func(j *model.Job) {
			j.Status = model.JobProcessing
			j.Progress = progress
			j.Total = total
		}); err != nil {
			w.logger.Warn(ctx, "progress update failed", logger.String("job_id", t.JobID), logger.Error(err))
		}
	})

	// The run context may already be cancelled; the final write must land anyway.
	wctx := context.WithoutCancel(ctx)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "verification_error")
		metrics.RecordVerificationFinished("error", elapsed)
		if _, uerr := w.store.Update(wctx, t.JobID, func(j *model.Job) {
			j.Status = model.JobError
			j.Error = err.Error()
		}); uerr != nil {
			return fmt.Errorf("record failure of job %s: %w", t.JobID, uerr)
		}
		return err
	}

	metrics.RecordSubsetsExamined(res.RawTotal - reported)
	outcome := "fail"
	if res.Pass {
		outcome = "pass"
	}
	metrics.RecordVerificationFinished(outcome, elapsed)
	if _, err := w.store.Update(wctx, t.JobID, func(j *model.Job) {
		j.Status = model.JobCompleted
		j.Progress = res.RawTotal
		j.Total = res.RawTotal
		j.Result = res
	}); err != nil {
		return fmt.Errorf("record result of job %s: %w", t.JobID, err)
	}
	w.logger.Debug(ctx, "verification completed",
		logger.String("job_id", t.JobID),
		logger.Bool("pass", res.Pass),
		logger.Uint64("uncovered", res.UncoveredCount))
	return nil
}

// Pool manages multiple workers reading one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	store   JobStore
	logger  logger.Logger
}

// NewPool creates workerCount workers. A non-positive count uses one worker
// per CPU. opts apply to every worker.
func NewPool(workerCount int, q Queue, v Verifier, s JobStore, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		store:   s,
		logger:  logger.Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, v, s, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, cancels running verifications and waits for the
// workers. Tasks still queued are marked as failed.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	dropped := 0
	for {
		t, ok := p.queue.Dequeue(shutdownCtx)
		if !ok {
			break
		}
		dropped++
		_, _ = p.store.Update(context.WithoutCancel(ctx), t.JobID, func(j *model.Job) {
			j.Status = model.JobError
			j.Error = "service stopped before the job started"
		})
	}
	if dropped > 0 {
		p.logger.Warn(ctx, "queued verifications abandoned", logger.Int("count", dropped))
	}
	return firstErr
}
