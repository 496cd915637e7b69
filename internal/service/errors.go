package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/shannon/internal/task"
)

// Common service errors. The API layer maps them to HTTP status codes.
var (
	// ErrTaskNotFound indicates the task id is unknown or has expired.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidRequest indicates the caller supplied unusable parameters.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidRequest = errors.New("invalid request")
)

// ServiceError wraps errors from a service operation with context.
type ServiceError struct {
	// Operation is the operation that failed (e.g. "start_gmail_sync")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError wraps err for operation. Unknown task ids are returned as
// ErrTaskNotFound and invalid sync parameters as ErrInvalidRequest so the
// API layer can match them directly.
func NewServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, task.ErrNotFound):
		return ErrTaskNotFound
	case errors.Is(err, task.ErrInvalidSyncParams):
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return &ServiceError{Operation: operation, Message: message, Err: err}
}
