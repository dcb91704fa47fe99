package model

import "time"

// JobStatus is the lifecycle state of a verification job.
type JobStatus string

// Job states. Completed and Error are terminal.
const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// Terminal reports whether no further updates will follow.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// CoverageResult is the outcome of an exhaustive coverage check.
type CoverageResult struct {
	Pass           bool    `json:"pass"`
	UncoveredCount uint64  `json:"uncovered_count"`
	Samples        [][]int `json:"samples"`
	Total          uint64  `json:"total"`
	RawTotal       uint64  `json:"raw_total"`
}

// Job is the record of one verification, keyed by ID.
type Job struct {
	ID        string          `json:"id"`
	Status    JobStatus       `json:"status"`
	Progress  uint64          `json:"progress"`
	Total     uint64          `json:"total"`
	Result    *CoverageResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// VerifyRequest carries the inputs of a coverage verification. RequestID,
// when set, makes resubmission return the original job.
type VerifyRequest struct {
	RequestID   string            `json:"request_id,omitempty"`
	Pool        []int             `json:"pool"`
	K           int               `json:"k"`
	M           int               `json:"m"`
	Tickets     [][]int           `json:"tickets"`
	Constraints []GroupConstraint `json:"constraints,omitempty"`
	Fixed       []int             `json:"fixed,omitempty"`
}

// VerificationTask is what flows through the job queue.
type VerificationTask struct {
	JobID   string
	Request VerifyRequest
}
