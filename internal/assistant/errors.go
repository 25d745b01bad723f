package assistant

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aical-app/aical/internal/gemini"
)

type ErrorCode string

const (
	ErrorInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrorConfiguration   ErrorCode = "CONFIGURATION"
	ErrorRateLimited     ErrorCode = "RATE_LIMITED"
	ErrorUpstream        ErrorCode = "UPSTREAM_ERROR"
	ErrorMalformedOutput ErrorCode = "MALFORMED_OUTPUT"
	ErrorInternal        ErrorCode = "INTERNAL_ERROR"
)

// Error is a workflow failure with a stable code and a user-facing reason.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrUnauthenticated is returned by adders that have no user to act for.
var ErrUnauthenticated = errors.New("unauthorized")

const (
	reasonInvalidSession = "Invalid sessionId"
	reasonEmptyMessage   = "Empty message"
	reasonInvalidText    = "Invalid text"
	reasonMissingKey     = "Missing Gemini API key. Set GEMINI_API_KEY."
	reasonRateLimited    = "Rate limit exceeded. Please try again later."
	reasonMalformed      = "Failed to parse JSON from model"
	reasonHTML           = "Server returned an HTML error page."
)

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func invalidInput(reason string) *Error {
	return newError(ErrorInvalidInput, reason, nil)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) int {
	var coder httpStatusCoder
	if errors.As(err, &coder) {
		return coder.HTTPStatusCode()
	}
	return 0
}

// modelError classifies a gateway failure.
func modelError(op string, err error) *Error {
	switch {
	case errors.Is(err, gemini.ErrMissingAPIKey):
		return newError(ErrorConfiguration, reasonMissingKey, err)
	case gemini.IsRateLimited(err), upstreamStatusCode(err) == http.StatusTooManyRequests:
		return newError(ErrorRateLimited, reasonRateLimited, err)
	default:
		return newError(ErrorUpstream, op+" failed", err)
	}
}

// CodeOf returns the code carried by err, or ErrorInternal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrorInternal
}

// SanitizeError renders err as a short message fit for the chat transcript.
// Provider HTML pages are never echoed back.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	var se *gemini.StatusError
	if errors.As(err, &se) && se.IsHTML() {
		return reasonHTML
	}
	if looksLikeHTML(err.Error()) {
		return reasonHTML
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case ErrorInvalidInput, ErrorConfiguration, ErrorRateLimited, ErrorMalformedOutput:
			return e.Reason
		}
		if se != nil && se.Message != "" {
			return se.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Reason
	}
	return err.Error()
}

func looksLikeHTML(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "<html") || strings.Contains(s, "<!doctype")
}
