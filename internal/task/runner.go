package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/shannon/internal/events"
	"github.com/phrazzld/shannon/internal/platform/logger"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// JanitorInterval defines how often expired tasks are swept from the store
	// If zero, defaults to 1 minute
	JanitorInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:     2,
		QueueSize:       100,
		JanitorInterval: time.Minute,
	}
}

// Sweeper is implemented by stores that expire finished tasks.
type Sweeper interface {
	Sweep(now time.Time) int
}

// TaskEventPayload is the payload of every task lifecycle event.
type TaskEventPayload struct {
	TaskID     uuid.UUID `json:"task_id"`
	TaskType   string    `json:"task_type"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Started    bool      `json:"started,omitempty"`
}

// TaskRunner accepts jobs, tracks them in the TaskStore and executes them on
// a worker pool. Submission never blocks on job execution.
type TaskRunner struct {
	store   TaskStore
	queue   *TaskQueue
	pool    *WorkerPool
	config  TaskRunnerConfig
	logger  *slog.Logger
	emitter events.EventEmitter

	errHandler func(taskID uuid.UUID, job Job, err error)

	janitorStop chan struct{}
	janitorWG   sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.JanitorInterval <= 0 {
		config.JanitorInterval = time.Minute
	}

	logger = logger.With("component", "task_runner")
	queue := NewTaskQueue(config.QueueSize, logger)

	return &TaskRunner{
		store:  store,
		queue:  queue,
		pool:   NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger),
		config: config,
		logger: logger,
		errHandler: func(taskID uuid.UUID, job Job, err error) {
			// Default error handler just logs the error
			logger.Error("task execution failed",
				"task_id", taskID,
				"task_type", job.Type(),
				"error", err)
		},
		janitorStop: make(chan struct{}),
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(taskID uuid.UUID, job Job, err error)) {
	r.errHandler = handler
}

// SetEventEmitter routes task lifecycle events to emitter.
func (r *TaskRunner) SetEventEmitter(emitter events.EventEmitter) {
	r.emitter = emitter
}

// Submit registers the job as a pending task and enqueues it. It returns the
// task ID without waiting for execution. A rejected submission leaves the
// task failed rather than pending forever.
func (r *TaskRunner) Submit(ctx context.Context, job Job) (uuid.UUID, error) {
	if job == nil {
		return uuid.Nil, ErrNilJob
	}

	t, err := r.store.Create(ctx, job.Type())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create task: %w", err)
	}

	r.emit(ctx, events.TypeTaskCreated, TaskEventPayload{TaskID: t.ID, TaskType: t.Type, Status: t.Status})

	if err := r.queue.Enqueue(QueuedJob{TaskID: t.ID, Job: job}); err != nil {
		msg := fmt.Sprintf("submission rejected: %v", err)
		if failErr := r.store.Fail(ctx, t.ID, msg); failErr != nil {
			r.logger.Error("failed to mark rejected task as failed",
				"task_id", t.ID,
				"error", failErr)
		}
		r.emit(ctx, events.TypeTaskFailed, TaskEventPayload{TaskID: t.ID, TaskType: t.Type, Status: StatusFailed, Error: msg})
		return uuid.Nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	r.logger.Info("task submitted", "task_id", t.ID, "task_type", t.Type)
	return t.ID, nil
}

// Start launches the worker pool and the janitor.
func (r *TaskRunner) Start() error {
	r.startOnce.Do(func() {
		r.pool.Start(r.processJob)

		if sweeper, ok := r.store.(Sweeper); ok {
			r.janitorWG.Add(1)
			go r.janitor(sweeper)
		}
	})
	return nil
}

// Stop cancels running jobs, fails everything still queued and waits for
// the workers to exit. Submissions after Stop are rejected.
func (r *TaskRunner) Stop() {
	r.stopOnce.Do(func() {
		r.pool.Stop()
		r.queue.Close()

		close(r.janitorStop)
		r.janitorWG.Wait()

		// Fail whatever the workers never picked up
		ctx := context.Background()
		for item := range r.queue.GetChannel() {
			if err := r.store.Fail(ctx, item.TaskID, ErrRunnerStopped.Error()); err != nil {
				r.logger.Error("failed to fail queued task on shutdown",
					"task_id", item.TaskID,
					"error", err)
				continue
			}
			r.emit(ctx, events.TypeTaskFailed, TaskEventPayload{
				TaskID:   item.TaskID,
				TaskType: item.Job.Type(),
				Status:   StatusFailed,
				Error:    ErrRunnerStopped.Error(),
			})
		}

		r.logger.Info("task runner stopped")
	})
}

// processJob handles execution of a single job
func (r *TaskRunner) processJob(ctx context.Context, item QueuedJob, workerID int) {
	log := r.logger.With(
		"task_id", item.TaskID,
		"task_type", item.Job.Type(),
		"worker_id", workerID,
	)
	ctx = logger.WithLogger(ctx, log)

	// Terminal-state bookkeeping must survive the cancellation of ctx
	storeCtx := context.WithoutCancel(ctx)

	if ctx.Err() != nil {
		r.recordFailure(storeCtx, log, item, ErrRunnerStopped, time.Time{})
		return
	}

	if err := r.store.Update(storeCtx, item.TaskID, StatusRunning, 0); err != nil {
		log.Error("failed to update task status to running", "error", err)
		return
	}
	r.emit(storeCtx, events.TypeTaskRunning, TaskEventPayload{TaskID: item.TaskID, TaskType: item.Job.Type(), Status: StatusRunning})

	log.Info("processing task")
	started := time.Now()

	reporter := &progressReporter{store: r.store, taskID: item.TaskID, ctx: storeCtx, logger: log}
	result, err := r.execute(ctx, item.Job, reporter)
	elapsed := time.Since(started)

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %v", ErrRunnerStopped, err)
		}
		r.recordFailure(storeCtx, log, item, err, started)
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		r.recordFailure(storeCtx, log, item, fmt.Errorf("failed to encode task result: %w", err), started)
		return
	}

	if err := r.store.Complete(storeCtx, item.TaskID, payload); err != nil {
		log.Error("failed to update task status to completed", "error", err)
		return
	}

	log.Info("task completed successfully", "duration_ms", elapsed.Milliseconds())
	r.emit(storeCtx, events.TypeTaskCompleted, TaskEventPayload{
		TaskID:     item.TaskID,
		TaskType:   item.Job.Type(),
		Status:     StatusCompleted,
		DurationMS: elapsed.Milliseconds(),
		Started:    true,
	})
}

// execute runs the job, converting a panic into an error.
func (r *TaskRunner) execute(ctx context.Context, job Job, reporter Reporter) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return job.Execute(ctx, reporter)
}

// recordFailure fails the task. A zero started time means the job never ran.
func (r *TaskRunner) recordFailure(ctx context.Context, log *slog.Logger, item QueuedJob, err error, started time.Time) {
	log.Error("task execution failed", "error", err)

	var elapsed time.Duration
	if !started.IsZero() {
		elapsed = time.Since(started)
	}

	if updateErr := r.store.Fail(ctx, item.TaskID, err.Error()); updateErr != nil {
		log.Error("failed to update task status to failed", "error", updateErr)
		return
	}

	r.emit(ctx, events.TypeTaskFailed, TaskEventPayload{
		TaskID:     item.TaskID,
		TaskType:   item.Job.Type(),
		Status:     StatusFailed,
		Error:      err.Error(),
		DurationMS: elapsed.Milliseconds(),
		Started:    !started.IsZero(),
	})

	if r.errHandler != nil {
		r.errHandler(item.TaskID, item.Job, err)
	}
}

func (r *TaskRunner) emit(ctx context.Context, eventType string, payload TaskEventPayload) {
	if r.emitter == nil {
		return
	}

	event, err := events.NewEvent(eventType, payload)
	if err != nil {
		r.logger.Error("failed to build task event", "event_type", eventType, "error", err)
		return
	}

	if err := r.emitter.EmitEvent(ctx, event); err != nil {
		r.logger.Warn("task event handler failed", "event_type", eventType, "error", err)
	}
}

// janitor periodically removes expired tasks from the store.
func (r *TaskRunner) janitor(sweeper Sweeper) {
	defer r.janitorWG.Done()

	ticker := time.NewTicker(r.config.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.janitorStop:
			return

		case now := <-ticker.C:
			if removed := sweeper.Sweep(now); removed > 0 {
				r.logger.Debug("swept expired tasks", "count", removed)
			}
		}
	}
}

// progressReporter forwards job progress to the store. Updates are
// serialized per task because a job reports from its own goroutine.
type progressReporter struct {
	mu      sync.Mutex
	store   TaskStore
	taskID  uuid.UUID
	ctx     context.Context
	logger  *slog.Logger
	current int
}

// Progress implements Reporter.
func (p *progressReporter) Progress(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if percent > 99 {
		percent = 99
	}
	if percent <= p.current {
		return
	}

	if err := p.store.Update(p.ctx, p.taskID, StatusRunning, percent); err != nil {
		p.logger.Warn("failed to record task progress", "progress", percent, "error", err)
		return
	}
	p.current = percent
}
