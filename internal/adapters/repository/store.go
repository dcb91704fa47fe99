// Package repository stores verification job records.
package repository

import (
	"context"

	"github.com/okian/wheelsmith/internal/domain/model"
)

// Store provides create/update/read access to job records. Reads return
// copies; a stored CoverageResult is never mutated after it is set.
type Store interface {
	// Create inserts a new job. Returns ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, job model.Job) error

	// Update applies fn to the stored job atomically and returns the result.
	// Returns ErrNotFound if the id is unknown.
	Update(ctx context.Context, id string, fn func(*model.Job)) (model.Job, error)

	// Get returns a snapshot of the job. Returns ErrNotFound if the id is unknown.
	Get(ctx context.Context, id string) (model.Job, error)

	// Delete removes a job. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// Count returns the number of jobs held.
	Count(ctx context.Context) int

	Close() error
}
