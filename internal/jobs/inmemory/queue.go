package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/statement-converter/internal/jobs"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/google/uuid"
)

// ErrQueueClosed is returned when publishing to or starting a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Failed jobs are recorded as failed and never re-enqueued by the queue itself.
type Queue struct {
	jobChan   chan *jobs.ConvertStatementJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers      int
	errorMessage func(error) string
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithWorkers sets how many jobs run concurrently. Values below 1 mean 1.
func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n < 1 {
			n = 1
		}
		q.workers = n
	}
}

// WithErrorMessage sets how a handler error is rendered into Job.Error.
func WithErrorMessage(fn func(error) string) QueueOption {
	return func(q *Queue) {
		if fn != nil {
			q.errorMessage = fn
		}
	}
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before publishing blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...QueueOption) *Queue {
	q := &Queue{
		jobChan:      make(chan *jobs.ConvertStatementJob, bufferSize),
		closeChan:    make(chan struct{}),
		store:        store,
		workers:      1,
		errorMessage: func(err error) string { return err.Error() },
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishConvertStatement implements the Publisher interface.
//
// A job without an ID is new and gets one. A job with an ID is a retry and is
// re-enqueued only if it is still stored as failed; otherwise the returned
// error wraps jobs.ErrJobNotFound or jobs.ErrJobStatusConflict. The worker
// receives its own copy, so the caller may keep reading job afterwards.
func (q *Queue) PublishConvertStatement(ctx context.Context, job *jobs.ConvertStatementJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	retry := job.JobID != ""
	if !retry {
		job.JobID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.Status = jobs.JobStatusPending
	job.Error = ""
	job.StartedAt = nil
	job.CompletedAt = nil

	if q.store != nil {
		var err error
		if retry {
			err = q.store.UpdateJob(ctx, job, jobs.JobStatusFailed)
		} else {
			err = q.store.SaveJob(ctx, job)
		}
		if err != nil {
			return fmt.Errorf("PublishConvertStatement: save job: %w", err)
		}
	}

	queued := *job
	select {
	case q.jobChan <- &queued:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return ErrQueueClosed
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	log := logger.FromContext(ctx)
	log.Info().Int("workers", q.workers).Msg("Starting job workers")

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs one attempt of a job and records its outcome.
// Each state change is a conditional update, so a job deleted at any point
// stays deleted.
func (q *Queue) processJob(ctx context.Context, job *jobs.ConvertStatementJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Logger()

	job.Status = jobs.JobStatusRunning
	job.Attempts++
	now := time.Now()
	job.StartedAt = &now
	if !q.update(ctx, job, jobs.JobStatusPending) {
		log.Debug().Msg("Skipping deleted job")
		return
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Result = nil
		job.Error = q.errorMessage(err)
		log.Warn().Err(err).Int("attempts", job.Attempts).Msg("Job failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Dur("duration", completedAt.Sub(now)).Msg("Job completed")
	}

	if !q.update(ctx, job, jobs.JobStatusRunning) {
		log.Debug().Msg("Discarding outcome of deleted job")
	}
}

// update stores job if it is still in one of the from statuses. It reports
// false when the job was deleted or moved on.
func (q *Queue) update(ctx context.Context, job *jobs.ConvertStatementJob, from ...jobs.JobStatus) bool {
	if q.store == nil {
		return true
	}
	err := q.store.UpdateJob(ctx, job, from...)
	if err == nil {
		return true
	}
	if !errors.Is(err, jobs.ErrJobNotFound) && !errors.Is(err, jobs.ErrJobStatusConflict) {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to save job")
	}
	return false
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
