package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/wheelsmith/internal/domain/model"
)

func task(id string) Task {
	return Task{JobID: id, Request: model.VerifyRequest{Pool: []int{1, 2, 3}, K: 2, M: 1}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if err := q.Enqueue(ctx, task("job1")); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got, ok := q.Dequeue(ctx)
	if !ok || got.JobID != "job1" {
		t.Errorf("expected job1, got %q (ok=%v)", got.JobID, ok)
	}
	if got.Request.K != 2 {
		t.Errorf("expected request to travel with the task, got k=%d", got.Request.K)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, task(fmt.Sprintf("job%d", i))); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := q.Enqueue(ctx, task("overflow")); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
}

func TestInMemoryQueue_FIFO(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(ctx, task(fmt.Sprintf("job%d", i))); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		got, ok := q.Dequeue(ctx)
		if !ok {
			t.Fatalf("dequeue %d failed", i)
		}
		if want := fmt.Sprintf("job%d", i); got.JobID != want {
			t.Errorf("expected %s, got %s", want, got.JobID)
		}
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	if err := q.Enqueue(ctx, task("pending")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if err := q.Enqueue(ctx, task("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Queued work drains before the closed signal.
	if got, ok := q.Dequeue(ctx); !ok || got.JobID != "pending" {
		t.Errorf("expected pending task, got %q (ok=%v)", got.JobID, ok)
	}
	if _, ok := q.Dequeue(ctx); ok {
		t.Error("expected dequeue to report a closed queue")
	}
}

func TestInMemoryQueue_DequeueHonorsContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, ok := q.Dequeue(ctx); ok {
		t.Fatal("expected no task from an empty queue")
	}
	if time.Since(start) > time.Second {
		t.Error("dequeue did not return when the context expired")
	}
}

func TestInMemoryQueue_EnqueueCancelled(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, task("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
