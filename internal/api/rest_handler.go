package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/shannon/internal/api/shared"
	"github.com/phrazzld/shannon/internal/task"
)

// Bounds of the long-poll endpoint
const (
	DefaultWaitTimeout = 30 * time.Second
	MaxWaitTimeout     = 2 * time.Minute
)

// SyncGmail handles POST /api/sync/gmail requests
func (h *MessageHandler) SyncGmail(w http.ResponseWriter, r *http.Request) {
	var params task.GmailSyncParams
	if err := shared.DecodeJSON(w, r, &params); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	h.startSync(w, r, params)
}

// GetTask handles GET /api/tasks/{id} requests
func (h *MessageHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	h.respondWithTask(w, r, chi.URLParam(r, "id"))
}

// WaitTask handles GET /api/tasks/{id}/wait requests. It blocks until the
// task is terminal or the timeout query parameter (a Go duration, default
// 30s, at most 2m) elapses, then answers with the latest snapshot.
func (h *MessageHandler) WaitTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid taskId: must be a UUID")
		return
	}

	timeout := DefaultWaitTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid timeout")
			return
		}
		timeout = min(timeout, MaxWaitTimeout)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	t, err := h.svc.WaitForTask(ctx, id)
	if err != nil && t.ID == uuid.Nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskStatusResponse{Success: true, Task: taskToResponse(t)})
}

// GetMemoryStats handles GET /api/memory/stats requests
func (h *MessageHandler) GetMemoryStats(w http.ResponseWriter, r *http.Request) {
	h.getWorkspaceMemoryStats(w, r, nil)
}
