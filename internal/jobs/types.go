package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeExtractMessage represents a message extraction job.
	JobTypeExtractMessage JobType = "extract_message"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ExtractMessageJob represents a job to classify and extract one captured
// message. The message payload travels with the job so workers never need
// to re-read the intake request.
type ExtractMessageJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// MessageID is the ID of the captured message in the store.
	MessageID string `json:"message_id"`

	// Sender is the originating address of the message.
	Sender string `json:"sender"`

	// Body is the raw message text.
	Body string `json:"body"`

	// Timestamp is the receipt time of the message in epoch millis.
	Timestamp int64 `json:"timestamp"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ExtractMessageJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ExtractMessageJob) GetType() JobType {
	return JobTypeExtractMessage
}

// GetStatus implements the Job interface.
func (j *ExtractMessageJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishExtractMessage publishes a message extraction job.
	PublishExtractMessage(ctx context.Context, job *ExtractMessageJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job. A returned error means the
// job hit an infrastructure failure and should be retried; a terminal
// extraction failure is recorded on the captured message and is not an
// error here.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ExtractMessageJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ExtractMessageJob, error)

	// ListJobs retrieves jobs matching the filter.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExtractMessageJob, error)
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	MessageID string
	Status    JobStatus
	Limit     int
	Offset    int
}
