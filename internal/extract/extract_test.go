package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

func TestText_EmptyInput(t *testing.T) {
	_, err := Text(nil)
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("Text(nil) error = %v, want ErrUnreadable", err)
	}
}

func TestText_NotAPDF(t *testing.T) {
	_, err := Text([]byte("this is definitely not a pdf document"))
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("Text(garbage) error = %v, want ErrUnreadable", err)
	}
}

func TestPDFExtractor_Extract(t *testing.T) {
	ctx := logger.WithContext(context.Background(), zerolog.Nop())

	_, err := NewPDFExtractor().Extract(ctx, []byte("%PDF-1.4 truncated"))
	if err == nil {
		t.Fatal("Expected error for truncated PDF")
	}
	if errors.Is(err, ErrEncrypted) {
		t.Errorf("truncated PDF must not be reported as encrypted: %v", err)
	}
}

func TestTextFromFile_Missing(t *testing.T) {
	if _, err := TextFromFile("does-not-exist.pdf"); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestClassifyReaderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"library sentinel", pdf.ErrInvalidPassword, ErrEncrypted},
		{"wrapped sentinel", fmt.Errorf("open: %w", pdf.ErrInvalidPassword), ErrEncrypted},
		{"unsupported encryption", errors.New("unsupported PDF: encryption version 5"), ErrEncrypted},
		{"password text", errors.New("PasswordException: No password given"), ErrEncrypted},
		{"malformed", errors.New("malformed PDF: missing final startxref"), ErrUnreadable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyReaderError(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyReaderError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
