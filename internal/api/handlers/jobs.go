package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dvloznov/statement-converter/internal/api/middleware"
	"github.com/dvloznov/statement-converter/internal/jobs"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/go-chi/chi/v5"
)

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store     jobs.JobStore
	publisher jobs.Publisher
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher) *JobsHandler {
	return &JobsHandler{
		store:     store,
		publisher: publisher,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := loadJob(w, r, h.store)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// RetryJob handles POST /api/jobs/{id}/retry
//
// A failed job is converted again from its retained text; the PDF is not
// read a second time.
func (h *JobsHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	job, ok := loadJob(w, r, h.store)
	if !ok {
		return
	}
	if job.Status != jobs.JobStatusFailed {
		middleware.WriteError(w, http.StatusConflict, "Only failed conversions can be retried.")
		return
	}
	if job.Text == "" {
		middleware.WriteError(w, http.StatusConflict, "The statement text is no longer available. Please upload the file again.")
		return
	}

	jobID, previousAttempts := job.JobID, job.Attempts
	if err := h.publisher.PublishConvertStatement(ctx, job); err != nil {
		switch {
		case errors.Is(err, jobs.ErrJobStatusConflict):
			middleware.WriteError(w, http.StatusConflict, "Only failed conversions can be retried.")
		case errors.Is(err, jobs.ErrJobNotFound):
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
		default:
			log.Error().Err(err).Str("job_id", jobID).Msg("Failed to re-enqueue job")
			middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to queue the conversion. Please try again.")
		}
		return
	}

	log.Info().Str("job_id", jobID).Int("previous_attempts", previousAttempts).Msg("Job retried")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(jobs.JobStatusPending),
	})
}

// DeleteJob handles DELETE /api/jobs/{id}
//
// It resets a conversion: the job and its result are discarded.
func (h *JobsHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")

	if err := h.store.DeleteJob(ctx, jobID); err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to delete job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete job")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// loadJob fetches the job named by the {id} URL parameter, writing a 404 when
// it does not exist.
func loadJob(w http.ResponseWriter, r *http.Request, store jobs.JobStore) (*jobs.ConvertStatementJob, bool) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")

	job, err := store.GetJob(ctx, jobID)
	if err != nil {
		if !errors.Is(err, jobs.ErrJobNotFound) {
			log := logger.FromContext(ctx)
			log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		}
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return nil, false
	}
	return job, true
}
