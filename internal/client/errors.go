package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the server rejects the bearer token
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMissingBaseURL is returned by New without a server address
	ErrMissingBaseURL = errors.New("base URL is required")

	errDecode = errors.New("failed to decode response")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
	TraceID    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("api error %d: %s (trace %s)", e.StatusCode, e.Message, e.TraceID)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
