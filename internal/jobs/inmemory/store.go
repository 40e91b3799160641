package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/dvloznov/statement-converter/internal/jobs"
)

// Store is an in-memory implementation of JobStore.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ConvertStatementJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.ConvertStatementJob),
	}
}

// SaveJob implements the JobStore interface.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ConvertStatementJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy so callers cannot mutate stored state.
	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	return nil
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ConvertStatementJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("GetJob: %s: %w", jobID, jobs.ErrJobNotFound)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements the JobStore interface.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ConvertStatementJob, error) {
	s.mu.RLock()
	result := make([]*jobs.ConvertStatementJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].JobID < result[j].JobID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ConvertStatementJob{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// UpdateJob implements the JobStore interface.
// The existence and status checks happen under the same lock as the write.
func (s *Store) UpdateJob(ctx context.Context, job *jobs.ConvertStatementJob, from ...jobs.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.jobs[job.JobID]
	if !exists {
		return fmt.Errorf("UpdateJob: %s: %w", job.JobID, jobs.ErrJobNotFound)
	}
	if len(from) > 0 && !slices.Contains(from, current.Status) {
		return fmt.Errorf("UpdateJob: %s is %s: %w", job.JobID, current.Status, jobs.ErrJobStatusConflict)
	}

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	return nil
}

// DeleteJob implements the JobStore interface.
func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobID]; !exists {
		return fmt.Errorf("DeleteJob: %s: %w", jobID, jobs.ErrJobNotFound)
	}
	delete(s.jobs, jobID)
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
