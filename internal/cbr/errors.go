package cbr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is wrapped by every error caused by a reply body that is
// not valid JSON or does not have the shape an operation expects.
var ErrMalformedResponse = errors.New("malformed response")

// APIError represents a non-2xx reply from the CBR server.
// Callers should prefer the predicate functions (IsNotFound, IsBadRequest, ...)
// over asserting on this type directly.
type APIError struct {
	operation  string
	statusCode int
	message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.message)
}

func newAPIError(operation string, statusCode int, message string) *APIError {
	return &APIError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
	}
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }

// Message returns the server's error message, or the status text when it sent none.
func (e *APIError) Message() string { return e.message }

// Operation returns a short description of the API call that failed.
func (e *APIError) Operation() string { return e.operation }

// IsNotFound reports whether err is an API error with HTTP 404 status.
func IsNotFound(err error) bool { return HasStatusCode(err, http.StatusNotFound) }

// IsBadRequest reports whether err is an API error with HTTP 400 status.
// The server answers unknown or empty identifiers this way.
func IsBadRequest(err error) bool { return HasStatusCode(err, http.StatusBadRequest) }

// IsServerError reports whether err is an API error with a 5xx status.
func IsServerError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode >= 500
}

// HasStatusCode reports whether err is an API error whose HTTP status code matches.
func HasStatusCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == code
}

// errorRS is the error body shape of the server (Spring Boot default).
type errorRS struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}
