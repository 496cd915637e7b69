package task

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common errors returned by the task package
var (
	// ErrNotFound is returned for unknown or expired task IDs
	ErrNotFound = errors.New("task not found")

	// ErrTaskTerminal is returned when mutating a completed or failed task
	ErrTaskTerminal = errors.New("task already finished")

	// ErrInvalidProgress is returned when progress would decrease or leave 0..99
	ErrInvalidProgress = errors.New("invalid task progress")

	// ErrInvalidTransition is returned for status changes the lifecycle does not allow
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrNotCompleted is returned when decoding the result of an unfinished task
	ErrNotCompleted = errors.New("task has not completed")

	// ErrQueueClosed is returned when submitting to a stopped runner
	ErrQueueClosed = errors.New("task queue is closed")

	// ErrQueueFull is returned when the queue has no free capacity
	ErrQueueFull = errors.New("task queue is full")

	// ErrRunnerStopped is recorded on tasks interrupted by a runner shutdown
	ErrRunnerStopped = errors.New("runner stopped")

	// ErrPollAttemptsExceeded is returned when a poller gives up before a terminal state
	ErrPollAttemptsExceeded = errors.New("poll attempts exceeded")

	// ErrNilJob is returned when submitting a nil job
	ErrNilJob = errors.New("job cannot be nil")
)

// JobError describes a task that finished in the failed state.
type JobError struct {
	TaskID  uuid.UUID
	Message string
}

// Error implements the error interface.
func (e *JobError) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Message)
}
