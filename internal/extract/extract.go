// Package extract turns PDF bytes into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/ledongthuc/pdf"
)

var (
	// ErrEncrypted means the document is password-protected.
	ErrEncrypted = errors.New("extract: PDF is password-protected")
	// ErrNoText means the document was read but holds no text, e.g. a scanned image.
	ErrNoText = errors.New("extract: no text found in PDF")
	// ErrUnreadable means the document could not be parsed as a PDF.
	ErrUnreadable = errors.New("extract: PDF could not be read")
)

// encryptionPattern recognises encryption failures the library reports as
// plain errors.
var encryptionPattern = regexp.MustCompile(`(?i)encrypt|password`)

// pageSeparator joins the text of consecutive pages.
const pageSeparator = "\n\n"

// PDFExtractor extracts text with github.com/ledongthuc/pdf.
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDFExtractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract returns the trimmed text of all pages in data.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	log := logger.FromContext(ctx)

	text, pages, err := extract(data)
	if err != nil {
		log.Warn().Err(err).Int("bytes", len(data)).Msg("PDF text extraction failed")
		return "", err
	}

	log.Debug().
		Int("pages", pages).
		Int("text_length", len(text)).
		Msg("PDF text extracted")

	return text, nil
}

// Text is a convenience wrapper around PDFExtractor.Extract.
func Text(data []byte) (string, error) {
	text, _, err := extract(data)
	return text, err
}

// TextFromFile reads and extracts a PDF from disk.
func TextFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("TextFromFile: read %q: %w", path, err)
	}
	return Text(data)
}

func extract(data []byte) (text string, pages int, err error) {
	// The reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, pages = "", 0
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	if len(data) == 0 {
		return "", 0, fmt.Errorf("%w: empty file", ErrUnreadable)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, classifyReaderError(err)
	}

	pages = r.NumPage()
	texts := make([]string, 0, pages)

	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("extract page %d: %w", i, classifyReaderError(err))
		}
		texts = append(texts, pageText)
	}

	text = strings.TrimSpace(strings.Join(texts, pageSeparator))
	if text == "" {
		return "", pages, ErrNoText
	}
	return text, pages, nil
}

func classifyReaderError(err error) error {
	if errors.Is(err, pdf.ErrInvalidPassword) || encryptionPattern.MatchString(err.Error()) {
		return fmt.Errorf("%w: %v", ErrEncrypted, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreadable, err)
}
