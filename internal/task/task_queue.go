package task

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// QueuedJob pairs a job with the task tracking it.
type QueuedJob struct {
	TaskID uuid.UUID
	Job    Job
}

// TaskQueueReader provides read-only access to the queue channel
// allowing workers to consume jobs without the ability to enqueue
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming jobs
	GetChannel() <-chan QueuedJob
}

// TaskQueue is a bounded FIFO of jobs. Workers read it through
// TaskQueueReader; the runner enqueues and closes it
type TaskQueue struct {
	mu     sync.RWMutex
	items  chan QueuedJob
	logger *slog.Logger
	closed bool
}

// NewTaskQueue creates a new task queue with the specified buffer size
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	if size <= 0 {
		size = 1
	}
	return &TaskQueue{
		items:  make(chan QueuedJob, size),
		logger: logger,
	}
}

// Enqueue adds a job to the queue without blocking.
func (q *TaskQueue) Enqueue(item QueuedJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- item:
		q.logger.Debug("task enqueued",
			"task_id", item.TaskID,
			"task_type", item.Job.Type(),
			"queue_len", len(q.items),
			"queue_cap", cap(q.items))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.items))
	}
}

// Close closes the queue, preventing further submission. Jobs already
// buffered can still be drained from the channel.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.items)
		q.logger.Info("task queue closed")
	}
}

// GetChannel returns a read-only channel for consuming jobs
func (q *TaskQueue) GetChannel() <-chan QueuedJob {
	return q.items
}

// Len returns the number of buffered jobs.
func (q *TaskQueue) Len() int {
	return len(q.items)
}
