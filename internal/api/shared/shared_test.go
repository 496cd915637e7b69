package shared

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/shannon/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	generated := GetTraceID(SetTraceID(ctx, ""))
	assert.Len(t, generated, 32)
	_, err := hex.DecodeString(generated)
	assert.NoError(t, err)

	assert.Equal(t, "client-trace-1234", GetTraceID(SetTraceID(ctx, "client-trace-1234")))
	assert.NotEqual(t, "bad trace\nid", GetTraceID(SetTraceID(ctx, "bad trace\nid")))

	assert.Empty(t, GetTraceID(context.WithValue(ctx, TraceIDKey, 123)))
}

func TestClient(t *testing.T) {
	t.Parallel()

	_, ok := GetClient(context.Background())
	assert.False(t, ok)

	client, ok := GetClient(SetClient(context.Background(), "extension"))
	assert.True(t, ok)
	assert.Equal(t, "extension", client)
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"type":"GET_TASK_STATUS"}`},
		{name: "invalid", body: `{"type":`, wantErr: true},
		{name: "trailing value", body: `{"type":"a"}{"type":"b"}`, wantErr: true},
		{name: "too large", body: `{"type":"` + strings.Repeat("x", MaxBodyBytes) + `"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))
			var v struct {
				Type string `json:"type"`
			}
			err := DecodeJSON(httptest.NewRecorder(), req, &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "GET_TASK_STATUS", v.Type)
		})
	}

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
		var v struct{}
		assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), req, &v), ErrEmptyBody)
	})
}

func TestDecodePayload(t *testing.T) {
	t.Parallel()

	var v struct {
		TaskID string `json:"taskId"`
	}
	require.NoError(t, DecodePayload(nil, &v))
	require.NoError(t, DecodePayload(json.RawMessage(" null "), &v))
	assert.Empty(t, v.TaskID)

	require.NoError(t, DecodePayload(json.RawMessage(`{"taskId":"abc"}`), &v))
	assert.Equal(t, "abc", v.TaskID)

	assert.Error(t, DecodePayload(json.RawMessage(`"abc"`), &v))
}

type selfValidating struct{ ok bool }

func (s selfValidating) Validate() error {
	if !s.ok {
		return errors.New("not ok")
	}
	return nil
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	type payload struct {
		AccessToken string `json:"accessToken" validate:"required"`
	}

	err := ValidateRequest(&payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accessToken")

	assert.NoError(t, ValidateRequest(&payload{AccessToken: "tok"}))
	assert.NoError(t, ValidateRequest(selfValidating{ok: true}))
	assert.Error(t, ValidateRequest(selfValidating{}))
}

func TestRespondWithError(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), TraceIDKey, "test-trace-id"))
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, http.StatusNotFound, "task not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":false,"error":"task not found","traceId":"test-trace-id"}`, rec.Body.String())
}

func TestRespondWithErrorAndLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		elevate   bool
		wantLevel string
	}{
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "level=ERROR"},
		{name: "client error", status: http.StatusBadRequest, wantLevel: "level=DEBUG"},
		{name: "elevated client error", status: http.StatusUnauthorized, elevate: true, wantLevel: "level=WARN"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantLevel: "level=WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var logBuf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
			req = req.WithContext(logger.WithLogger(req.Context(), log))
			rec := httptest.NewRecorder()

			var opts []ResponseOption
			if tt.elevate {
				opts = append(opts, WithElevatedLogLevel())
			}
			RespondWithErrorAndLog(rec, req, tt.status, "something failed",
				errors.New("token rejected for ada@example.com"), opts...)

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, `{"success":false,"error":"something failed"}`, rec.Body.String())

			out := logBuf.String()
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, "error_type=")
			assert.NotContains(t, out, "ada@example.com")
		})
	}
}
