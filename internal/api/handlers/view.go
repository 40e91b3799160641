package handlers

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/statement-converter/internal/api/middleware"
	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/export"
	"github.com/dvloznov/statement-converter/internal/jobs"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/dvloznov/statement-converter/internal/table"
)

// Uploader stores an exported file and returns where it went.
// *export.GCSSink satisfies it.
type Uploader interface {
	Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error)
}

// ViewHandler serves filtered and sorted views of completed conversions.
type ViewHandler struct {
	store    jobs.JobStore
	uploader Uploader
	prefix   string
	now      func() time.Time
}

// NewViewHandler creates a new view handler. uploader may be nil, which
// disables destination=gcs exports.
func NewViewHandler(store jobs.JobStore, uploader Uploader) *ViewHandler {
	return &ViewHandler{
		store:    store,
		uploader: uploader,
		prefix:   "exports",
		now:      time.Now,
	}
}

// viewResponse is the body of GET /api/jobs/{id}/transactions.
type viewResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
	Summary      domain.Summary       `json:"summary"`
	Count        int                  `json:"count"`
	Total        int                  `json:"total"`
	MinDate      string               `json:"min_date"`
	MaxDate      string               `json:"max_date"`
}

// Transactions handles GET /api/jobs/{id}/transactions
//
// Query parameters: start_date, end_date (YYYY-MM-DD, inclusive), sort
// (date|description|debit|credit|category) and direction (asc|desc).
func (h *ViewHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	job, ok := h.completedJob(w, r)
	if !ok {
		return
	}
	result := job.Result
	rows, ok := applyView(w, r, result.Transactions)
	if !ok {
		return
	}

	minDate, maxDate := table.DateBounds(result.Transactions)
	middleware.WriteJSON(w, http.StatusOK, viewResponse{
		Transactions: rows,
		Summary:      domain.Summarize(rows),
		Count:        len(rows),
		Total:        len(result.Transactions),
		MinDate:      minDate,
		MaxDate:      maxDate,
	})
}

// Export handles GET /api/jobs/{id}/export
//
// It accepts the view parameters of Transactions plus format (xlsx|csv).
// With destination=gcs the file is uploaded and its URI returned instead of
// the file itself.
func (h *ViewHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	job, ok := h.completedJob(w, r)
	if !ok {
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, ok := applyView(w, r, job.Result.Transactions)
	if !ok {
		return
	}
	if len(rows) == 0 {
		middleware.WriteError(w, http.StatusConflict, export.MessageNoRows)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, rows); err != nil {
		log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to build export")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build the export file.")
		return
	}
	fileName := export.FileName(export.BaseName(job.FileName), format)

	if r.URL.Query().Get("destination") == "gcs" {
		h.upload(w, r, job.JobID, fileName, format, &buf)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Export download interrupted")
	}
}

func (h *ViewHandler) upload(w http.ResponseWriter, r *http.Request, jobID, fileName string, format export.Format, body io.Reader) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.uploader == nil {
		middleware.WriteError(w, http.StatusBadRequest, "Cloud export is not configured.")
		return
	}

	object := export.ObjectName(h.prefix, h.now().UTC().Format("2006/01/02")+"/"+jobID+"-"+fileName)
	uri, err := h.uploader.Upload(ctx, object, format.ContentType(), body)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Str("object", object).Msg("Failed to upload export")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to upload the export file.")
		return
	}

	log.Info().Str("job_id", jobID).Str("uri", uri).Msg("Export uploaded")
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{
		"uri":       uri,
		"file_name": fileName,
	})
}

// completedJob loads the job and requires it to have finished successfully.
func (h *ViewHandler) completedJob(w http.ResponseWriter, r *http.Request) (*jobs.ConvertStatementJob, bool) {
	job, ok := loadJob(w, r, h.store)
	if !ok {
		return nil, false
	}
	if job.Status != jobs.JobStatusCompleted || job.Result == nil {
		middleware.WriteError(w, http.StatusConflict, "The conversion has not finished yet.")
		return nil, false
	}
	return job, true
}

// applyView parses filter and sort query parameters and applies them.
func applyView(w http.ResponseWriter, r *http.Request, txs []domain.Transaction) ([]domain.Transaction, bool) {
	query := r.URL.Query()

	filter, err := table.ParseFilter(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	sortBy, err := table.ParseSort(query.Get("sort"), query.Get("direction"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	return table.Apply(txs, filter, sortBy), true
}
