package session

import (
	"errors"

	"github.com/dvloznov/statement-converter/internal/convert"
	"github.com/dvloznov/statement-converter/internal/extract"
)

// Display messages for failures that are not classified conversion errors.
const (
	MessageNoFile     = "Please select a PDF file first."
	MessageExtraction = "Could not extract any text from the PDF. It might be an image-only file or corrupted."
	MessageEncrypted  = "The PDF file is password-protected. Please remove the password and try again."
	MessageBusy       = "A conversion is already in progress. Please wait for it to finish."
)

// UserMessage maps a failure to the single message shown to the user.
// Raw causes belong in logs, never in this text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ce *convert.Error
	switch {
	case errors.Is(err, ErrNoFile):
		return MessageNoFile
	case errors.Is(err, extract.ErrEncrypted):
		return MessageEncrypted
	case errors.Is(err, ErrExtraction), errors.Is(err, convert.ErrEmptyText):
		return MessageExtraction
	case errors.Is(err, ErrBusy), errors.Is(err, convert.ErrConversionInFlight):
		return MessageBusy
	case errors.As(err, &ce):
		return ce.Error()
	default:
		return convert.KindAPI.DefaultMessage()
	}
}
