package convert

import (
	"errors"
)

// Kind classifies a failed conversion.
type Kind int

const (
	// KindAPI is a generic transport or service failure.
	KindAPI Kind = iota + 1
	// KindRateLimit means the model endpoint throttled the request; wait and retry.
	KindRateLimit
	// KindParsing means the model answered with output that is not the requested JSON.
	KindParsing
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindRateLimit:
		return "rate_limit"
	case KindParsing:
		return "parsing"
	default:
		return "unknown"
	}
}

// DefaultMessage is the user-facing text shown when no override is given.
func (k Kind) DefaultMessage() string {
	switch k {
	case KindRateLimit:
		return "We're experiencing high traffic at the moment. Please wait a few moments and try again."
	case KindParsing:
		return "The AI model returned data in an unexpected format. This can happen occasionally. Please try converting your file again."
	default:
		return "Failed to process the bank statement. The AI model could not be reached."
	}
}

// Error is a classified conversion failure.
// Error() yields only the user-facing message; the underlying cause stays
// reachable through Unwrap for logging.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError builds a classified error. An empty message selects the kind's default.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func newError(kind Kind, cause error) *Error {
	return NewError(kind, "", cause)
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.DefaultMessage()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrRateLimit) works
// regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrAPI       = &Error{Kind: KindAPI}
	ErrRateLimit = &Error{Kind: KindRateLimit}
	ErrParsing   = &Error{Kind: KindParsing}
)

// Precondition failures. These are raised before any request is sent and are
// never classified.
var (
	ErrMissingAPIKey      = errors.New("convert: API key is not configured")
	ErrEmptyText          = errors.New("convert: source text is empty")
	ErrConversionInFlight = errors.New("convert: a conversion is already in progress")
)

// KindOf reports the kind of a classified error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}
