package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/shannon/internal/gmail"
	"github.com/phrazzld/shannon/internal/service"
	"github.com/phrazzld/shannon/internal/service/auth"
	"github.com/phrazzld/shannon/internal/task"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid bearer token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"rejected gmail token", fmt.Errorf("connect: %w", gmail.ErrUnauthorized), http.StatusUnauthorized},
		{"unknown task", service.ErrTaskNotFound, http.StatusNotFound},
		{"store task not found", fmt.Errorf("get: %w", task.ErrNotFound), http.StatusNotFound},
		{"invalid request", service.ErrInvalidRequest, http.StatusBadRequest},
		{"empty gmail token", gmail.ErrEmptyToken, http.StatusBadRequest},
		{"unsupported message", ErrUnsupportedMessage, http.StatusBadRequest},
		{"gmail rate limit", gmail.ErrRateLimited, http.StatusTooManyRequests},
		{"queue full", task.ErrQueueFull, http.StatusTooManyRequests},
		{"shutting down", task.ErrQueueClosed, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "task not found", GetSafeErrorMessage(service.ErrTaskNotFound))
	assert.Equal(t, "unsupported message type", GetSafeErrorMessage(fmt.Errorf("%w: %q", ErrUnsupportedMessage, "X")))
	assert.Equal(t, "gmail access token rejected", GetSafeErrorMessage(gmail.ErrUnauthorized))

	// Internal details never reach the client
	msg := GetSafeErrorMessage(errors.New("pq: relation \"episodes\" does not exist"))
	assert.Equal(t, "An unexpected error occurred", msg)
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	type params struct {
		AccessToken string `validate:"required"`
		MaxMessages int    `validate:"gte=1,lte=500"`
	}
	v := validator.New()

	err := v.Struct(params{MaxMessages: 10})
	assert.Equal(t, "Invalid accessToken: required field", SanitizeValidationError(err))

	err = v.Struct(params{AccessToken: "tok", MaxMessages: 501})
	assert.Equal(t, "Invalid maxMessages: too large", SanitizeValidationError(err))

	// Wrapped validation errors from the sync job factory
	wrapped := fmt.Errorf("%w: %w", task.ErrInvalidSyncParams, v.Struct(params{AccessToken: "tok"}))
	assert.Equal(t, "Invalid maxMessages: too small", GetSafeErrorMessage(wrapped))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("other")))
}
