package task

import (
	"context"

	"github.com/google/uuid"
)

// StatusService answers status lookups for submitted tasks. It is the only
// component pollers depend on.
type StatusService struct {
	store TaskStore
}

// NewStatusService creates a StatusService reading from store.
func NewStatusService(store TaskStore) *StatusService {
	return &StatusService{store: store}
}

// Status returns the current snapshot of the task without blocking.
func (s *StatusService) Status(ctx context.Context, id uuid.UUID) (Task, error) {
	return s.store.Get(ctx, id)
}

// Wait blocks until the task reaches a terminal state or ctx is done, then
// returns the latest snapshot.
func (s *StatusService) Wait(ctx context.Context, id uuid.UUID) (Task, error) {
	done, err := s.store.Done(id)
	if err != nil {
		return Task{}, err
	}

	select {
	case <-done:
		return s.store.Get(ctx, id)
	case <-ctx.Done():
		t, err := s.store.Get(context.WithoutCancel(ctx), id)
		if err != nil {
			return Task{}, err
		}
		return t, ctx.Err()
	}
}
