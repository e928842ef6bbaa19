// Package jobx is a small background job queue. The engine uses it to push
// slow side work (notification sends) off the request path; jobs survive a
// process restart because the backend is durable.
package jobx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vantak/gatehouse/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("JOBX")

var (
	CodeJobNotFound    = ErrRegistry.Register("JOB_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Job not found")
	CodeEnqueueFailed  = ErrRegistry.Register("ENQUEUE_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to enqueue job")
	CodeDequeueFailed  = ErrRegistry.Register("DEQUEUE_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to dequeue job")
	CodeUpdateFailed   = ErrRegistry.Register("UPDATE_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to update job state")
	CodeBadJobData     = ErrRegistry.Register("BAD_JOB_DATA", errx.TypeInternal, http.StatusInternalServerError, "Job data could not be encoded or decoded")
	CodeAlreadyRunning = ErrRegistry.Register("ALREADY_RUNNING", errx.TypeConflict, http.StatusConflict, "Worker is already running")
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
)

// Job is a unit of work to enqueue.
type Job struct {
	Type    string          `json:"type"`
	Queue   string          `json:"queue"`
	Payload json.RawMessage `json:"payload"`

	// MaxRetries caps retry attempts. Zero takes the default of 3.
	MaxRetries int `json:"max_retries"`
}

// JobInfo is the stored representation of a job.
type JobInfo struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	Status     Status          `json:"status"`
	Error      string          `json:"error,omitempty"`
	MaxRetries int             `json:"max_retries"`
	Attempts   int             `json:"attempts"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ShouldRetry reports whether the job has retry budget left.
func (j *JobInfo) ShouldRetry() bool {
	return j.Attempts < j.MaxRetries
}
