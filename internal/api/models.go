package api

import (
	"encoding/json"
	"time"

	"github.com/phrazzld/shannon/internal/domain"
	"github.com/phrazzld/shannon/internal/gmail"
	"github.com/phrazzld/shannon/internal/task"
)

// Message types understood by POST /api/messages
const (
	MessageSyncGmailMemory         = "SYNC_GMAIL_MEMORY"
	MessageGetTaskStatus           = "GET_TASK_STATUS"
	MessageGetWorkspaceMemoryStats = "GET_WORKSPACE_MEMORY_STATS"
	MessageCheckGmailAuth          = "CHECK_GMAIL_AUTH"
	MessageGetGmailLabels          = "GET_GMAIL_LABELS"
	MessageGetGmailMessages        = "GET_GMAIL_MESSAGES"
)

// MessageRequest is the envelope of every message.
type MessageRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TaskStatusPayload is the payload of GET_TASK_STATUS.
type TaskStatusPayload struct {
	TaskID string `json:"taskId" validate:"required,uuid"`
}

// GmailTokenPayload is the payload of the Gmail diagnostics that only need a token.
type GmailTokenPayload struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

// GmailMessagesPayload is the payload of GET_GMAIL_MESSAGES.
type GmailMessagesPayload struct {
	AccessToken string   `json:"accessToken" validate:"required"`
	MaxResults  int      `json:"maxResults" validate:"gte=0,lte=100"`
	Query       string   `json:"query,omitempty" validate:"max=512"`
	LabelIDs    []string `json:"labelIds,omitempty" validate:"max=20,dive,required"`
}

// SyncStartedResponse acknowledges a submitted sync.
type SyncStartedResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"taskId"`
}

// TaskResponse is the client view of a task.
type TaskResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	Progress   int             `json:"progress"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// TaskStatusResponse answers GET_TASK_STATUS.
type TaskStatusResponse struct {
	Success bool         `json:"success"`
	Task    TaskResponse `json:"task"`
}

// StatsResponse answers GET_WORKSPACE_MEMORY_STATS.
type StatsResponse struct {
	Success bool                   `json:"success"`
	Stats   *domain.WorkspaceStats `json:"stats"`
}

// GmailAuthResponse answers CHECK_GMAIL_AUTH.
type GmailAuthResponse struct {
	Success bool           `json:"success"`
	Profile *gmail.Profile `json:"profile"`
}

// GmailLabelsResponse answers GET_GMAIL_LABELS.
type GmailLabelsResponse struct {
	Success bool          `json:"success"`
	Labels  []gmail.Label `json:"labels"`
}

// MessageResponse is the client view of one Gmail message.
type MessageResponse struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId"`
	From       string    `json:"from"`
	To         []string  `json:"to,omitempty"`
	Subject    string    `json:"subject"`
	Snippet    string    `json:"snippet"`
	LabelIDs   []string  `json:"labelIds,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// GmailMessagesResponse answers GET_GMAIL_MESSAGES.
type GmailMessagesResponse struct {
	Success  bool              `json:"success"`
	Messages []MessageResponse `json:"messages"`
}

// taskToResponse converts a task snapshot to its client view.
func taskToResponse(t task.Task) TaskResponse {
	return TaskResponse{
		ID:         t.ID.String(),
		Type:       t.Type,
		Status:     string(t.Status),
		Progress:   t.Progress,
		Result:     t.Result,
		Error:      t.Error,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
		FinishedAt: t.FinishedAt,
	}
}

// emailToResponse converts message metadata to its client view.
func emailToResponse(e domain.Email) MessageResponse {
	return MessageResponse{
		ID:         e.ID,
		ThreadID:   e.ThreadID,
		From:       e.From,
		To:         e.To,
		Subject:    e.Subject,
		Snippet:    e.Snippet,
		LabelIDs:   e.LabelIDs,
		ReceivedAt: e.ReceivedAt,
	}
}
