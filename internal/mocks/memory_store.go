package mocks

import (
	"context"

	"github.com/phrazzld/shannon/internal/domain"
	"github.com/phrazzld/shannon/internal/store"
)

// MockMemoryStore is a mock implementation of store.MemoryStore. Without
// function fields every email is unprocessed and saves succeed.
type MockMemoryStore struct {
	FilterUnprocessedFn  func(ctx context.Context, emailIDs []string) ([]string, error)
	SaveClassificationFn func(ctx context.Context, emailIDs []string, c *domain.Classification) error
	StatsFn              func(ctx context.Context) (*domain.WorkspaceStats, error)
}

// Ensure MockMemoryStore implements store.MemoryStore
var _ store.MemoryStore = (*MockMemoryStore)(nil)

// FilterUnprocessed implements store.MemoryStore.
func (m *MockMemoryStore) FilterUnprocessed(ctx context.Context, emailIDs []string) ([]string, error) {
	if m.FilterUnprocessedFn != nil {
		return m.FilterUnprocessedFn(ctx, emailIDs)
	}
	return emailIDs, nil
}

// SaveClassification implements store.MemoryStore.
func (m *MockMemoryStore) SaveClassification(ctx context.Context, emailIDs []string, c *domain.Classification) error {
	if m.SaveClassificationFn != nil {
		return m.SaveClassificationFn(ctx, emailIDs, c)
	}
	return nil
}

// Stats implements store.MemoryStore.
func (m *MockMemoryStore) Stats(ctx context.Context) (*domain.WorkspaceStats, error) {
	if m.StatsFn != nil {
		return m.StatsFn(ctx)
	}
	return &domain.WorkspaceStats{}, nil
}
