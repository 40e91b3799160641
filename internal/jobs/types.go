package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/statement-converter/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeConvertStatement converts the extracted text of one statement.
	JobTypeConvertStatement JobType = "convert_statement"
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
	// JobStatusFailed indicates the job failed. It stays failed until retried.
	JobStatusFailed JobStatus = "failed"
)

// ErrJobNotFound is returned by a JobStore for unknown IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrJobStatusConflict is returned when a conditional update finds the job in
// a status other than the expected ones.
var ErrJobStatusConflict = errors.New("job status conflict")

// ConvertStatementJob is one asynchronous conversion of an uploaded statement.
type ConvertStatementJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// FileName is the name of the uploaded PDF.
	FileName string `json:"file_name"`

	// Text is the extracted statement text, kept so a retry skips extraction.
	Text string `json:"-"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the latest attempt started.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the latest attempt finished (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Result holds the converted transactions once completed.
	Result *domain.ConversionResult `json:"result,omitempty"`

	// Error is the user-facing message of the latest failure.
	Error string `json:"error,omitempty"`

	// Attempts counts conversion attempts, including user retries.
	Attempts int `json:"attempts"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ConvertStatementJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ConvertStatementJob) GetType() JobType {
	return JobTypeConvertStatement
}

// GetStatus implements the Job interface.
func (j *ConvertStatementJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishConvertStatement enqueues a conversion job.
	PublishConvertStatement(ctx context.Context, job *ConvertStatementJob) error

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

// JobHandler processes a job. A returned error marks the job failed; it is
// not retried automatically.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job state.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ConvertStatementJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ConvertStatementJob, error)

	// ListJobs retrieves jobs, newest first, with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ConvertStatementJob, error)

	// UpdateJob replaces a job that is still stored. When from is non-empty
	// the stored status must be one of from, otherwise ErrJobStatusConflict
	// is returned. A deleted job yields ErrJobNotFound and is not recreated.
	UpdateJob(ctx context.Context, job *ConvertStatementJob, from ...JobStatus) error

	// DeleteJob removes a job and its result.
	DeleteJob(ctx context.Context, jobID string) error
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
