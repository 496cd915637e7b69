package store

import (
	"context"

	"github.com/phrazzld/shannon/internal/domain"
)

// MemoryStore persists classified memories and the Gmail sync bookkeeping.
type MemoryStore interface {
	// FilterUnprocessed returns the subset of emailIDs that has not been
	// stored yet, preserving order.
	FilterUnprocessed(ctx context.Context, emailIDs []string) ([]string, error)

	// SaveClassification stores every memory and marks emailIDs processed
	// in a single unit of work. The classification must already be valid.
	SaveClassification(ctx context.Context, emailIDs []string, c *domain.Classification) error

	// Stats summarises everything stored so far.
	Stats(ctx context.Context) (*domain.WorkspaceStats, error)
}
