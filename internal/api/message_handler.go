package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/shannon/internal/api/shared"
	"github.com/phrazzld/shannon/internal/gmail"
	"github.com/phrazzld/shannon/internal/platform/logger"
	"github.com/phrazzld/shannon/internal/service"
	"github.com/phrazzld/shannon/internal/task"
)

// messageFunc handles one message type.
type messageFunc func(w http.ResponseWriter, r *http.Request, payload json.RawMessage)

// MessageHandler serves POST /api/messages, dispatching on the message type.
type MessageHandler struct {
	svc      service.MemoryService
	handlers map[string]messageFunc
}

// NewMessageHandler creates a MessageHandler backed by svc.
func NewMessageHandler(svc service.MemoryService) *MessageHandler {
	h := &MessageHandler{svc: svc}
	h.handlers = map[string]messageFunc{
		MessageSyncGmailMemory:         h.syncGmailMemory,
		MessageGetTaskStatus:           h.getTaskStatus,
		MessageGetWorkspaceMemoryStats: h.getWorkspaceMemoryStats,
		MessageCheckGmailAuth:          h.checkGmailAuth,
		MessageGetGmailLabels:          h.getGmailLabels,
		MessageGetGmailMessages:        h.getGmailMessages,
	}
	return h
}

// Types returns the supported message types.
func (h *MessageHandler) Types() []string {
	types := make([]string, 0, len(h.handlers))
	for t := range h.handlers {
		types = append(types, t)
	}
	return types
}

// HandleMessage handles POST /api/messages requests
func (h *MessageHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var msg MessageRequest
	if err := shared.DecodeJSON(w, r, &msg); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	handle, ok := h.handlers[msg.Type]
	if !ok {
		HandleAPIError(w, r, fmt.Errorf("%w: %q", ErrUnsupportedMessage, msg.Type))
		return
	}

	logger.FromContext(r.Context()).Debug("handling message", "message_type", msg.Type)
	handle(w, r, msg.Payload)
}

// decodeAndValidate decodes payload into v and validates it, writing a 400
// response on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, payload json.RawMessage, v interface{}) bool {
	if err := shared.DecodePayload(payload, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid payload format", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}

func (h *MessageHandler) syncGmailMemory(w http.ResponseWriter, r *http.Request, payload json.RawMessage) {
	var params task.GmailSyncParams
	if err := shared.DecodePayload(payload, &params); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid payload format", err)
		return
	}
	h.startSync(w, r, params)
}

// startSync submits the sync and answers 202 with the task ID.
func (h *MessageHandler) startSync(w http.ResponseWriter, r *http.Request, params task.GmailSyncParams) {
	id, err := h.svc.StartGmailSync(r.Context(), params)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SyncStartedResponse{Success: true, TaskID: id.String()})
}

func (h *MessageHandler) getTaskStatus(w http.ResponseWriter, r *http.Request, payload json.RawMessage) {
	var req TaskStatusPayload
	if !decodeAndValidate(w, r, payload, &req) {
		return
	}
	h.respondWithTask(w, r, req.TaskID)
}

// respondWithTask looks up a task by its string ID.
func (h *MessageHandler) respondWithTask(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid taskId: must be a UUID")
		return
	}

	t, err := h.svc.TaskStatus(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskStatusResponse{Success: true, Task: taskToResponse(t)})
}

func (h *MessageHandler) getWorkspaceMemoryStats(w http.ResponseWriter, r *http.Request, _ json.RawMessage) {
	stats, err := h.svc.WorkspaceStats(r.Context())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{Success: true, Stats: stats})
}

func (h *MessageHandler) checkGmailAuth(w http.ResponseWriter, r *http.Request, payload json.RawMessage) {
	var req GmailTokenPayload
	if !decodeAndValidate(w, r, payload, &req) {
		return
	}

	profile, err := h.svc.CheckGmailAuth(r.Context(), req.AccessToken)
	if err != nil {
		h.respondWithGmailError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, GmailAuthResponse{Success: true, Profile: profile})
}

func (h *MessageHandler) getGmailLabels(w http.ResponseWriter, r *http.Request, payload json.RawMessage) {
	var req GmailTokenPayload
	if !decodeAndValidate(w, r, payload, &req) {
		return
	}

	labels, err := h.svc.GmailLabels(r.Context(), req.AccessToken)
	if err != nil {
		h.respondWithGmailError(w, r, err)
		return
	}
	if labels == nil {
		labels = []gmail.Label{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, GmailLabelsResponse{Success: true, Labels: labels})
}

func (h *MessageHandler) getGmailMessages(w http.ResponseWriter, r *http.Request, payload json.RawMessage) {
	var req GmailMessagesPayload
	if !decodeAndValidate(w, r, payload, &req) {
		return
	}

	emails, err := h.svc.GmailMessages(r.Context(), req.AccessToken, gmail.ListOptions{
		MaxResults: req.MaxResults,
		Query:      req.Query,
		LabelIDs:   req.LabelIDs,
	})
	if err != nil {
		h.respondWithGmailError(w, r, err)
		return
	}

	messages := make([]MessageResponse, len(emails))
	for i := range emails {
		messages[i] = emailToResponse(emails[i])
	}

	shared.RespondWithJSON(w, r, http.StatusOK, GmailMessagesResponse{Success: true, Messages: messages})
}

// respondWithGmailError elevates rejected Gmail tokens to WARN: they usually
// mean the extension holds a stale token.
func (h *MessageHandler) respondWithGmailError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, gmail.ErrUnauthorized) {
		shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, GetSafeErrorMessage(err), err,
			shared.WithElevatedLogLevel())
		return
	}
	HandleAPIError(w, r, err)
}
