package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a task
type Status string

// Possible task status values
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Task type constants
const (
	// TypeGmailSync is the task type for syncing Gmail messages into memory
	TypeGmailSync = "gmail_sync"
)

// Task is a point-in-time snapshot of a submitted background job.
// Result is only set once completed, Error only once failed.
type Task struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Status     Status          `json:"status"`
	Progress   int             `json:"progress"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// clone returns a deep copy so callers never share the store's buffers.
func (t Task) clone() Task {
	if t.Result != nil {
		t.Result = append(json.RawMessage(nil), t.Result...)
	}
	if t.FinishedAt != nil {
		finished := *t.FinishedAt
		t.FinishedAt = &finished
	}
	return t
}

// Err returns a *JobError when the task failed and nil otherwise.
func (t Task) Err() error {
	if t.Status != StatusFailed {
		return nil
	}
	return &JobError{TaskID: t.ID, Message: t.Error}
}

// DecodeResult unmarshals the result payload of a completed task into v.
func (t Task) DecodeResult(v interface{}) error {
	if t.Status != StatusCompleted {
		return ErrNotCompleted
	}
	return json.Unmarshal(t.Result, v)
}

// Reporter receives progress updates from a running job.
type Reporter interface {
	// Progress records the completion percentage. Values are clamped so
	// progress never decreases and stays below 100 until the job returns.
	Progress(percent int)
}

// Job is a unit of background work executed by the TaskRunner.
type Job interface {
	// Type returns the task type identifier
	Type() string

	// Execute runs the job. The returned value is JSON encoded into the task result.
	Execute(ctx context.Context, reporter Reporter) (interface{}, error)
}

// TaskStore tracks the state of submitted tasks.
type TaskStore interface {
	// Create registers a new pending task at progress 0
	Create(ctx context.Context, taskType string) (Task, error)

	// Update moves a non-terminal task to status (pending or running) with the given progress
	Update(ctx context.Context, id uuid.UUID, status Status, progress int) error

	// Complete records the result and marks the task completed at progress 100
	Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error

	// Fail records the error message and marks the task failed
	Fail(ctx context.Context, id uuid.UUID, message string) error

	// Get returns a snapshot of the task
	Get(ctx context.Context, id uuid.UUID) (Task, error)

	// Done returns a channel closed once the task reaches a terminal state
	Done(id uuid.UUID) (<-chan struct{}, error)
}
