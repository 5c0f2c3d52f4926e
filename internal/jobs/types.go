// Package jobs defines the contracts for asynchronous batch ingestion: a
// submitted file returns a job handle immediately and is processed by a
// background worker running the same pipeline the synchronous path uses.
package jobs

import (
	"context"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
)

// IngestJob tracks one background CSV ingestion. Source is either a local
// file path or a gs:// URI. The result counters are filled in by the worker
// when the run finishes; on failure they report how far the run got, since
// rows committed before the failure stay committed and are never retried
// automatically.
type IngestJob struct {
	JobID  string    `json:"job_id"`
	Source string    `json:"source"`
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	Accepted   int `json:"accepted"`
	Rejected   int `json:"rejected"`
	Duplicates int `json:"duplicates"`
	Processed  int `json:"processed"`
}

// Publisher defines the interface for publishing ingest jobs to a queue.
// This abstraction allows for different queue implementations (in-memory,
// Cloud Tasks, Pub/Sub).
type Publisher interface {
	// PublishIngest publishes a batch ingestion job.
	PublishIngest(ctx context.Context, job *IngestJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one ingest job. It may mutate the job's result
// counters; the queue persists the job after the handler returns. A non-nil
// error marks the job failed.
type JobHandler func(ctx context.Context, job *IngestJob) error

// JobStore defines the interface for storing and retrieving job status so
// submitters can poll a job handle.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *IngestJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*IngestJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
