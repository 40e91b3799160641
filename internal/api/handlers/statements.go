// Package handlers implements the HTTP endpoints of the statement converter.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dvloznov/statement-converter/internal/api/middleware"
	"github.com/dvloznov/statement-converter/internal/extract"
	"github.com/dvloznov/statement-converter/internal/jobs"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/dvloznov/statement-converter/internal/session"
)

// ExtractionCounter records extraction outcomes.
type ExtractionCounter interface {
	IncrExtraction(outcome string)
}

// StatementsHandler accepts uploaded statements and queues their conversion.
type StatementsHandler struct {
	extractor session.Extractor
	publisher jobs.Publisher
	maxBytes  int64
	counter   ExtractionCounter
}

// NewStatementsHandler creates a new statements handler.
// counter may be nil.
func NewStatementsHandler(extractor session.Extractor, publisher jobs.Publisher, maxBytes int64, counter ExtractionCounter) *StatementsHandler {
	return &StatementsHandler{
		extractor: extractor,
		publisher: publisher,
		maxBytes:  maxBytes,
		counter:   counter,
	}
}

// Upload handles POST /api/statements
//
// The PDF arrives in the multipart field "file". Text is extracted
// synchronously so unreadable files fail fast; conversion runs as a job.
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if r.ContentLength > h.maxBytes {
		h.tooLarge(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.tooLarge(w)
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, session.MessageNoFile)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, session.MessageNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded file")
		middleware.WriteError(w, http.StatusBadRequest, session.MessageNoFile)
		return
	}
	if len(data) == 0 || http.DetectContentType(data) != "application/pdf" {
		middleware.WriteError(w, http.StatusBadRequest, session.MessageNoFile)
		return
	}

	text, err := h.extract(ctx, data)
	if err != nil {
		middleware.WriteError(w, http.StatusUnprocessableEntity, session.UserMessage(err))
		return
	}

	job := &jobs.ConvertStatementJob{
		FileName: header.Filename,
		Text:     text,
	}
	if err := h.publisher.PublishConvertStatement(ctx, job); err != nil {
		log.Error().Err(err).Str("file_name", header.Filename).Msg("Failed to enqueue conversion")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to queue the conversion. Please try again.")
		return
	}

	log.Info().
		Str("job_id", job.JobID).
		Str("file_name", header.Filename).
		Int("bytes", len(data)).
		Msg("Statement queued for conversion")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(jobs.JobStatusPending),
	})
}

func (h *StatementsHandler) tooLarge(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("The file is too large. The limit is %d MB.", h.maxBytes>>20))
}

func (h *StatementsHandler) extract(ctx context.Context, data []byte) (string, error) {
	text, err := h.extractor.Extract(ctx, data)
	if h.counter != nil {
		h.counter.IncrExtraction(extractionOutcome(err))
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", session.ErrExtraction, err)
	}
	return text, nil
}

func extractionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, extract.ErrEncrypted):
		return "encrypted"
	case errors.Is(err, extract.ErrNoText):
		return "no_text"
	default:
		return "unreadable"
	}
}
