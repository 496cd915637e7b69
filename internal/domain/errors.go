package domain

import "errors"

// Validation errors of the memory types.
var (
	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidConfidence is returned when a fact confidence is outside [0, 1].
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")

	// ErrInvalidFrequency is returned when a pattern frequency is below 1.
	ErrInvalidFrequency = errors.New("frequency must be at least 1")
)
