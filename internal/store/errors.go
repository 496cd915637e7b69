package store

import (
	"errors"
	"fmt"
)

// Errors shared by every MemoryStore implementation.
var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("memory not found")

	// ErrDuplicate is returned when a unique memory key is already taken
	ErrDuplicate = errors.New("memory already exists")

	// ErrInvalidEntity wraps domain validation and constraint failures
	ErrInvalidEntity = errors.New("invalid memory")

	// ErrTransactionFailed is returned when a save cannot begin or commit
	ErrTransactionFailed = errors.New("transaction failed")
)

// StoreError adds the entity and operation to a storage failure.
type StoreError struct {
	Entity    string
	Operation string
	Err       error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Entity, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError. It returns nil when err is nil.
func NewStoreError(entity, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Entity: entity, Operation: operation, Err: err}
}
