package classify

import "errors"

// Errors returned by model-backed classifiers
var (
	// ErrInvalidResponse is returned when the model response cannot be parsed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model refuses the prompt on safety grounds
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned when retries were exhausted on temporary errors
	ErrTransientFailure = errors.New("transient error during classification")

	// ErrInvalidConfig is returned when the classifier configuration is invalid
	ErrInvalidConfig = errors.New("invalid classifier configuration")
)
