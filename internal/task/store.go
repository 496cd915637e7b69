package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRetention is how long terminal tasks stay queryable.
const DefaultRetention = time.Hour

// record is the mutable state behind a task ID.
type record struct {
	task Task
	done chan struct{}
}

// InMemoryTaskStore implements TaskStore with a mutex-guarded map.
// Terminal tasks expire once the retention window has passed; expired tasks
// are invisible to Get immediately and removed by Sweep.
type InMemoryTaskStore struct {
	mu        sync.RWMutex
	records   map[uuid.UUID]*record
	retention time.Duration
	now       func() time.Time
}

// Ensure InMemoryTaskStore implements TaskStore
var _ TaskStore = (*InMemoryTaskStore)(nil)

// NewInMemoryTaskStore creates an empty store. A non-positive retention
// falls back to DefaultRetention.
func NewInMemoryTaskStore(retention time.Duration) *InMemoryTaskStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &InMemoryTaskStore{
		records:   make(map[uuid.UUID]*record),
		retention: retention,
		now:       time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *InMemoryTaskStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Create registers a new pending task at progress 0.
func (s *InMemoryTaskStore) Create(ctx context.Context, taskType string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	rec := &record{
		task: Task{
			ID:        uuid.New(),
			Type:      taskType,
			Status:    StatusPending,
			Progress:  0,
			CreatedAt: now,
			UpdatedAt: now,
		},
		done: make(chan struct{}),
	}
	s.records[rec.task.ID] = rec

	return rec.task.clone(), nil
}

// Update moves a non-terminal task to pending or running with the given
// progress. Progress must not decrease and must stay within 0..99.
func (s *InMemoryTaskStore) Update(ctx context.Context, id uuid.UUID, status Status, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookup(id)
	if err != nil {
		return err
	}

	if rec.task.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTaskTerminal, id, rec.task.Status)
	}

	switch status {
	case StatusPending:
		if rec.task.Status == StatusRunning {
			return fmt.Errorf("%w: running -> pending", ErrInvalidTransition)
		}
	case StatusRunning:
	default:
		return fmt.Errorf("%w: use Complete or Fail for %q", ErrInvalidTransition, status)
	}

	if progress < rec.task.Progress || progress < 0 || progress > 99 {
		return fmt.Errorf("%w: %d (current %d)", ErrInvalidProgress, progress, rec.task.Progress)
	}

	rec.task.Status = status
	rec.task.Progress = progress
	rec.task.UpdatedAt = s.now().UTC()

	return nil
}

// Complete records the result and marks the task completed at progress 100.
// An empty or JSON null result is stored as {} so a completed task always
// carries a result.
func (s *InMemoryTaskStore) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if trimmed := bytes.TrimSpace(result); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		result = json.RawMessage("{}")
	}
	return s.finish(id, func(t *Task) {
		t.Status = StatusCompleted
		t.Progress = 100
		t.Result = append(json.RawMessage(nil), result...)
	})
}

// Fail records the error message and marks the task failed. Progress is
// left where the job stopped.
func (s *InMemoryTaskStore) Fail(ctx context.Context, id uuid.UUID, message string) error {
	if message == "" {
		message = "unknown error"
	}
	return s.finish(id, func(t *Task) {
		t.Status = StatusFailed
		t.Error = message
	})
}

func (s *InMemoryTaskStore) finish(id uuid.UUID, apply func(t *Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookup(id)
	if err != nil {
		return err
	}

	if rec.task.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTaskTerminal, id, rec.task.Status)
	}

	now := s.now().UTC()
	apply(&rec.task)
	rec.task.UpdatedAt = now
	rec.task.FinishedAt = &now
	close(rec.done)

	return nil
}

// Get returns a snapshot of the task.
func (s *InMemoryTaskStore) Get(ctx context.Context, id uuid.UUID) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.lookup(id)
	if err != nil {
		return Task{}, err
	}

	return rec.task.clone(), nil
}

// Done returns a channel closed once the task reaches a terminal state.
func (s *InMemoryTaskStore) Done(id uuid.UUID) (<-chan struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	return rec.done, nil
}

// Sweep removes every task whose retention window ended before now and
// returns how many were removed.
func (s *InMemoryTaskStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		if s.expired(rec, now) {
			delete(s.records, id)
			removed++
		}
	}

	return removed
}

// Len returns the number of tracked tasks, expired ones included.
func (s *InMemoryTaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// lookup must be called with s.mu held.
func (s *InMemoryTaskStore) lookup(id uuid.UUID) (*record, error) {
	rec, ok := s.records[id]
	if !ok || s.expired(rec, s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

func (s *InMemoryTaskStore) expired(rec *record, now time.Time) bool {
	if rec.task.FinishedAt == nil {
		return false
	}
	return !now.Before(rec.task.FinishedAt.Add(s.retention))
}
