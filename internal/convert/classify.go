package convert

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/genai"
)

// rateLimitPattern is the last-resort check for transports that do not expose
// a status code. It is not assumed to be exhaustive.
var rateLimitPattern = regexp.MustCompile(`(?i)\b429\b|rate[ _-]?limit|resource[ _]exhausted|quota`)

// classify maps any failure of a conversion attempt to a classified *Error.
// An error that is already classified passes through unchanged, so a parsing
// failure is never reported as an API failure.
func classify(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if isRateLimited(err) {
		return newError(KindRateLimit, err)
	}
	return newError(KindAPI, err)
}

// isRateLimited prefers the structured status of a genai.APIError and only
// falls back to matching the message text when none is available.
func isRateLimited(err error) bool {
	if code, status, ok := apiStatus(err); ok {
		return code == http.StatusTooManyRequests || strings.EqualFold(status, "RESOURCE_EXHAUSTED")
	}
	return rateLimitPattern.MatchString(err.Error())
}

func apiStatus(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Status, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Status, true
	}
	return 0, "", false
}
