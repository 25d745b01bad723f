package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingAPIKey is returned before any network call when no key is configured.
var ErrMissingAPIKey = errors.New("gemini: missing API key (set GEMINI_API_KEY)")

// StatusError captures non-2xx responses from the generative language API.
type StatusError struct {
	StatusCode  int
	Status      string // provider status, e.g. RESOURCE_EXHAUSTED
	Message     string
	ContentType string
	Body        string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// IsHTML reports whether the provider (or a proxy in front of it) answered
// with an HTML page instead of JSON.
func (e *StatusError) IsHTML() bool {
	if strings.Contains(strings.ToLower(e.ContentType), "text/html") {
		return true
	}
	body := strings.ToLower(e.Body)
	return strings.Contains(body, "<html") || strings.Contains(body, "<!doctype")
}

// IsRateLimited reports whether err is a provider rate limit or quota error.
func IsRateLimited(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusTooManyRequests || se.Status == "RESOURCE_EXHAUSTED"
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func newStatusError(statusCode int, contentType string, body []byte) *StatusError {
	se := &StatusError{
		StatusCode:  statusCode,
		ContentType: contentType,
		Body:        string(body),
	}
	var payload struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil {
		se.Message = payload.Error.Message
		se.Status = payload.Error.Status
	}
	return se
}
