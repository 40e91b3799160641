// Package session drives one statement through selection, conversion and
// reset, the way a single-user front end does.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/logger"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

var (
	// ErrBusy is returned when a conversion is requested while one is running.
	ErrBusy = errors.New("session: a conversion is already in progress")
	// ErrNoFile is returned when conversion is requested before a file is selected.
	ErrNoFile = errors.New("session: no file selected")
	// ErrExtraction marks failures that happened while reading the PDF.
	ErrExtraction = errors.New("session: text extraction failed")
)

// Extractor turns an uploaded document into text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Converter turns statement text into transactions.
type Converter interface {
	Convert(ctx context.Context, text string) (*domain.ConversionResult, error)
}

// State is a point-in-time copy of a session.
type State struct {
	Status   Status
	FileName string
	Result   *domain.ConversionResult
	Err      error
	// Message is the display text for Err, empty when there is no error.
	Message string
}

// Session holds the selected file, its extracted text and the latest outcome.
type Session struct {
	extractor Extractor
	converter Converter

	mu       sync.Mutex
	fileName string
	file     []byte
	text     string
	status   Status
	result   *domain.ConversionResult
	err      error
	// generation increments on Select and Reset so a conversion finishing
	// afterwards does not overwrite the newer state.
	generation uint64
}

// New creates an idle session.
func New(extractor Extractor, converter Converter) *Session {
	return &Session{
		extractor: extractor,
		converter: converter,
		status:    StatusIdle,
	}
}

// Select chooses the document to convert and discards any previous outcome.
func (s *Session) Select(fileName string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusProcessing {
		return ErrBusy
	}
	s.clearLocked()
	s.fileName = fileName
	s.file = data
	return nil
}

// Convert extracts the selected file and converts its text.
func (s *Session) Convert(ctx context.Context) (*domain.ConversionResult, error) {
	s.mu.Lock()
	if s.status == StatusProcessing {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if len(s.file) == 0 {
		s.status = StatusError
		s.err = ErrNoFile
		s.mu.Unlock()
		return nil, ErrNoFile
	}
	gen := s.beginLocked()
	data := s.file
	s.mu.Unlock()

	text, err := s.extractor.Extract(ctx, data)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrExtraction, err)
		s.finish(ctx, gen, "", nil, err)
		return nil, err
	}

	result, err := s.converter.Convert(ctx, text)
	s.finish(ctx, gen, text, result, err)
	return result, err
}

// Retry converts the text kept from the last extraction without reading the
// file again. With no retained text it behaves like Convert.
func (s *Session) Retry(ctx context.Context) (*domain.ConversionResult, error) {
	s.mu.Lock()
	if s.status == StatusProcessing {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	text := s.text
	if text == "" {
		s.mu.Unlock()
		return s.Convert(ctx)
	}
	gen := s.beginLocked()
	s.mu.Unlock()

	result, err := s.converter.Convert(ctx, text)
	s.finish(ctx, gen, text, result, err)
	return result, err
}

// Reset returns the session to idle and forgets the file, text and outcome.
// A conversion still running finishes without touching the reset state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
	s.fileName = ""
	s.file = nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		Status:   s.status,
		FileName: s.fileName,
		Result:   s.result,
		Err:      s.err,
		Message:  UserMessage(s.err),
	}
}

func (s *Session) beginLocked() uint64 {
	s.status = StatusProcessing
	s.result = nil
	s.err = nil
	return s.generation
}

func (s *Session) clearLocked() {
	s.generation++
	s.text = ""
	s.status = StatusIdle
	s.result = nil
	s.err = nil
}

func (s *Session) finish(ctx context.Context, gen uint64, text string, result *domain.ConversionResult, err error) {
	log := logger.FromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		log.Debug().Msg("Discarding conversion outcome for a reset session")
		return
	}
	if text != "" {
		s.text = text
	}
	if err != nil {
		s.status = StatusError
		s.err = err
		log.Error().Err(err).Str("file_name", s.fileName).Msg("Statement conversion failed")
		return
	}
	s.status = StatusSuccess
	s.result = result
	log.Info().
		Str("file_name", s.fileName).
		Int("transactions", len(result.Transactions)).
		Msg("Statement converted")
}
