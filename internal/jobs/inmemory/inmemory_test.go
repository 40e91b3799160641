package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.ConvertStatementJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %q", jobID, want)
	return nil
}

func TestStoreGetMissing(t *testing.T) {
	store := NewStore()
	_, err := store.GetJob(context.Background(), "nope")
	if !errors.Is(err, jobs.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestStoreSaveRequiresID(t *testing.T) {
	if err := NewStore().SaveJob(context.Background(), &jobs.ConvertStatementJob{}); err == nil {
		t.Fatal("expected error for empty job ID")
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	job := &jobs.ConvertStatementJob{JobID: "a", Status: jobs.JobStatusPending}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}
	job.Status = jobs.JobStatusFailed

	got, _ := store.GetJob(ctx, "a")
	if got.Status != jobs.JobStatusPending {
		t.Errorf("stored status = %q, want pending", got.Status)
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		status := jobs.JobStatusCompleted
		if id == "mid" {
			status = jobs.JobStatusFailed
		}
		_ = store.SaveJob(ctx, &jobs.ConvertStatementJob{JobID: id, Status: status, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all", jobs.JobFilter{}, []string{"new", "mid", "old"}},
		{"status", jobs.JobFilter{Status: jobs.JobStatusFailed}, []string{"mid"}},
		{"limit", jobs.JobFilter{Limit: 2}, []string{"new", "mid"}},
		{"offset", jobs.JobFilter{Offset: 1}, []string{"mid", "old"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d jobs, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].JobID != id {
					t.Errorf("job[%d] = %s, want %s", i, got[i].JobID, id)
				}
			}
		})
	}
}

func TestStoreUpdateJob(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_ = store.SaveJob(ctx, &jobs.ConvertStatementJob{JobID: "a", Status: jobs.JobStatusRunning})

	tests := []struct {
		name    string
		from    []jobs.JobStatus
		wantErr error
	}{
		{"unconditional", nil, nil},
		{"matching status", []jobs.JobStatus{jobs.JobStatusPending, jobs.JobStatusRunning}, nil},
		{"other status", []jobs.JobStatus{jobs.JobStatusFailed}, jobs.ErrJobStatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_ = store.SaveJob(ctx, &jobs.ConvertStatementJob{JobID: "a", Status: jobs.JobStatusRunning})
			err := store.UpdateJob(ctx, &jobs.ConvertStatementJob{JobID: "a", Status: jobs.JobStatusFailed, Error: "boom"}, tt.from...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			got, _ := store.GetJob(ctx, "a")
			wantStatus := jobs.JobStatusFailed
			if tt.wantErr != nil {
				wantStatus = jobs.JobStatusRunning
			}
			if got.Status != wantStatus {
				t.Errorf("status = %q, want %q", got.Status, wantStatus)
			}
		})
	}
}

func TestStoreUpdateDoesNotRecreateDeletedJob(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_ = store.SaveJob(ctx, &jobs.ConvertStatementJob{JobID: "a", Status: jobs.JobStatusRunning})

	if err := store.DeleteJob(ctx, "a"); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if err := store.DeleteJob(ctx, "a"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("second delete err = %v, want ErrJobNotFound", err)
	}

	done := &jobs.ConvertStatementJob{JobID: "a", Status: jobs.JobStatusCompleted, Result: &domain.ConversionResult{}}
	if err := store.UpdateJob(ctx, done); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("update after delete err = %v, want ErrJobNotFound", err)
	}
	if _, err := store.GetJob(ctx, "a"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("deleted job reappeared: %v", err)
	}
}

func TestQueueCompletesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, store)
	defer q.Close()

	err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.ConvertStatementJob)
		j.Result = &domain.ConversionResult{Transactions: []domain.Transaction{{Date: "2024-01-05"}}}
		return nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.ConvertStatementJob{FileName: "jan.pdf", Text: "statement text"}
	if err := q.PublishConvertStatement(ctx, job); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("expected a generated job ID")
	}

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if got.Result == nil || len(got.Result.Transactions) != 1 {
		t.Errorf("result = %+v", got.Result)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("expected timestamps to be set")
	}
	if job.Attempts != 0 || job.Result != nil || job.Status != jobs.JobStatusPending {
		t.Errorf("worker changed the published job: %+v", job)
	}
}

func TestQueueFailedJobIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	calls := make(chan struct{}, 10)
	q := NewQueue(4, store, WithErrorMessage(func(error) string { return "Please try again." }))
	defer q.Close()

	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		calls <- struct{}{}
		return errors.New("upstream exploded")
	})

	job := &jobs.ConvertStatementJob{FileName: "jan.pdf", Text: "statement text"}
	_ = q.PublishConvertStatement(ctx, job)

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if got.Error != "Please try again." {
		t.Errorf("error = %q", got.Error)
	}
	if got.Text != "statement text" {
		t.Errorf("text not retained: %q", got.Text)
	}

	time.Sleep(50 * time.Millisecond)
	if n := len(calls); n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}

	// A user retry re-enqueues the same job.
	if err := q.PublishConvertStatement(ctx, got); err != nil {
		t.Fatalf("republish: %v", err)
	}
	got = waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if got.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", got.Attempts)
	}
}

func TestQueueDropsDeletedJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, store)
	defer q.Close()

	job := &jobs.ConvertStatementJob{FileName: "jan.pdf", Text: "statement text"}
	if err := q.PublishConvertStatement(ctx, job); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	_ = store.DeleteJob(ctx, job.JobID)

	called := make(chan struct{}, 1)
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		called <- struct{}{}
		return nil
	})

	select {
	case <-called:
		t.Fatal("handler ran for a deleted job")
	case <-time.After(50 * time.Millisecond):
	}
	if _, err := store.GetJob(ctx, job.JobID); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("deleted job reappeared: %v", err)
	}
}

func TestQueueDiscardsOutcomeOfJobDeletedWhileRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, store)

	deleted := make(chan struct{})
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.ConvertStatementJob)
		_ = store.DeleteJob(ctx, j.JobID)
		close(deleted)
		j.Result = &domain.ConversionResult{}
		return nil
	})

	job := &jobs.ConvertStatementJob{FileName: "jan.pdf", Text: "statement text"}
	if err := q.PublishConvertStatement(ctx, job); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-deleted:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not run")
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := store.GetJob(ctx, job.JobID); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("deleted job reappeared: %v", err)
	}
}

func TestQueueRepublishRequiresFailedJob(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(4, store)
	defer q.Close()

	_ = store.SaveJob(ctx, &jobs.ConvertStatementJob{JobID: "done", Status: jobs.JobStatusCompleted, Text: "statement text"})

	err := q.PublishConvertStatement(ctx, &jobs.ConvertStatementJob{JobID: "done", Text: "statement text"})
	if !errors.Is(err, jobs.ErrJobStatusConflict) {
		t.Errorf("republish completed err = %v, want ErrJobStatusConflict", err)
	}
	got, _ := store.GetJob(ctx, "done")
	if got.Status != jobs.JobStatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}

	err = q.PublishConvertStatement(ctx, &jobs.ConvertStatementJob{JobID: "gone", Text: "statement text"})
	if !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("republish deleted err = %v, want ErrJobNotFound", err)
	}
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue(1, NewStore())
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.PublishConvertStatement(context.Background(), &jobs.ConvertStatementJob{}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("publish err = %v, want ErrQueueClosed", err)
	}
	if err := q.Start(context.Background(), nil); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("start err = %v, want ErrQueueClosed", err)
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestWithWorkersClampsToOne(t *testing.T) {
	q := NewQueue(1, nil, WithWorkers(0))
	if q.workers != 1 {
		t.Errorf("workers = %d, want 1", q.workers)
	}
	q = NewQueue(1, nil, WithWorkers(3))
	if q.workers != 3 {
		t.Errorf("workers = %d, want 3", q.workers)
	}
}
