// Package queue holds verification tasks between submission and the workers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/wheelsmith/internal/domain/model"
	"github.com/okian/wheelsmith/pkg/metrics"
)

const defaultCapacity = 1024

// Task is the payload flowing through the queue.
type Task = model.VerificationTask

// Queue provides non-blocking enqueue and blocking dequeue.
type Queue interface {
	// Enqueue adds a task without blocking. Returns ErrFull when at capacity
	// and ErrClosed after Close.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue blocks until a task is available. It returns false once the
	// queue is closed and drained, or when ctx is done.
	Dequeue(ctx context.Context) (Task, bool)

	Len(ctx context.Context) int

	// Close stops accepting tasks. Queued tasks can still be dequeued.
	Close() error
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.publish()
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}
	select {
	case q.tasks <- t:
		metrics.RecordQueueEnqueue()
		q.publish()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (Task, bool) {
	if ctx.Err() != nil {
		return Task{}, false
	}
	select {
	case t, ok := <-q.tasks:
		if !ok {
			return Task{}, false
		}
		metrics.RecordQueueDequeue()
		q.publish()
		return t, true
	case <-ctx.Done():
		return Task{}, false
	}
}

func (q *InMemoryQueue) Len(context.Context) int {
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) publish() {
	size := len(q.tasks)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
