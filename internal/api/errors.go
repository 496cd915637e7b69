package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/shannon/internal/api/shared"
	"github.com/phrazzld/shannon/internal/gmail"
	"github.com/phrazzld/shannon/internal/service"
	"github.com/phrazzld/shannon/internal/service/auth"
	"github.com/phrazzld/shannon/internal/task"
)

// ErrUnsupportedMessage is returned for message types without a handler.
var ErrUnsupportedMessage = errors.New("unsupported message type")

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, gmail.ErrUnauthorized):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, task.ErrNotFound),
		errors.Is(err, gmail.ErrNotFound):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, task.ErrInvalidSyncParams),
		errors.Is(err, gmail.ErrEmptyToken),
		errors.Is(err, ErrUnsupportedMessage):
		return http.StatusBadRequest

	// Capacity errors
	case errors.Is(err, gmail.ErrRateLimited),
		errors.Is(err, task.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, gmail.ErrUnauthorized):
		return "gmail access token rejected"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	case errors.Is(err, service.ErrTaskNotFound), errors.Is(err, task.ErrNotFound):
		return "task not found"
	case errors.Is(err, gmail.ErrNotFound):
		return "gmail resource not found"
	case errors.Is(err, ErrUnsupportedMessage):
		return "unsupported message type"
	case errors.Is(err, gmail.ErrEmptyToken):
		return "accessToken is required"
	case errors.Is(err, task.ErrInvalidSyncParams),
		errors.Is(err, service.ErrInvalidRequest):
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return SanitizeValidationError(verrs)
		}
		return "Invalid request"
	case errors.Is(err, gmail.ErrRateLimited):
		return "gmail rate limit exceeded, try again later"
	case errors.Is(err, task.ErrQueueFull):
		return "too many pending tasks, try again later"
	case errors.Is(err, task.ErrQueueClosed):
		return "service is shutting down"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError describes the first failed field of a validation
// error without echoing the rejected value.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", lowerFirst(fe.Field()), validationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte":
		return "too small"
	case "max", "lte":
		return "too large"
	case "uuid":
		return "must be a UUID"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// HandleAPIError writes the status code and safe message for err and logs
// the redacted error.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)
	shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
}
