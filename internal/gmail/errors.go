package gmail

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Common errors returned by the gmail package
var (
	// ErrEmptyToken is returned when connecting without an access token
	ErrEmptyToken = errors.New("gmail access token is required")

	// ErrUnauthorized is returned when Gmail rejects the access token
	ErrUnauthorized = errors.New("gmail access token rejected")

	// ErrNotFound is returned for messages or labels that do not exist
	ErrNotFound = errors.New("gmail resource not found")

	// ErrRateLimited is returned when Gmail throttles the caller
	ErrRateLimited = errors.New("gmail rate limit exceeded")
)

// mapError converts Gmail API errors into package sentinels.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w", op, ErrUnauthorized)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w", op, ErrRateLimited)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
