// Package memstore keeps memories in process memory. It is the default
// store.MemoryStore when no database is configured.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/shannon/internal/domain"
	"github.com/phrazzld/shannon/internal/store"
)

type patternKey struct {
	trigger string
	action  string
}

// MemoryStore implements store.MemoryStore with mutex-guarded maps.
type MemoryStore struct {
	mu        sync.RWMutex
	episodes  map[uuid.UUID]domain.Episode
	facts     []domain.Fact
	patterns  map[patternKey]*domain.Pattern
	processed map[string]time.Time
	lastSync  time.Time
	now       func() time.Time
}

// Ensure MemoryStore implements store.MemoryStore interface
var _ store.MemoryStore = (*MemoryStore)(nil)

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		episodes:  make(map[uuid.UUID]domain.Episode),
		patterns:  make(map[patternKey]*domain.Pattern),
		processed: make(map[string]time.Time),
		now:       time.Now,
	}
}

// FilterUnprocessed implements store.MemoryStore.
func (s *MemoryStore) FilterUnprocessed(ctx context.Context, emailIDs []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(emailIDs))
	for _, id := range emailIDs {
		if _, ok := s.processed[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// SaveClassification implements store.MemoryStore. An email may yield any
// number of episodes; saving an episode ID twice keeps the first copy.
// Repeated patterns accumulate frequency.
func (s *MemoryStore) SaveClassification(ctx context.Context, emailIDs []string, c *domain.Classification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range c.Episodes {
		stored := *e
		if stored.ID == uuid.Nil {
			stored.ID = uuid.New()
		}
		if _, ok := s.episodes[stored.ID]; !ok {
			s.episodes[stored.ID] = stored
		}
	}
	for _, f := range c.Facts {
		s.facts = append(s.facts, *f)
	}
	for _, p := range c.Patterns {
		key := patternKey{trigger: p.Trigger, action: p.Action}
		if existing, ok := s.patterns[key]; ok {
			existing.Frequency += p.Frequency
			continue
		}
		stored := *p
		s.patterns[key] = &stored
	}

	now := s.now().UTC()
	for _, id := range emailIDs {
		s.processed[id] = now
	}
	if len(emailIDs) > 0 {
		s.lastSync = now
	}

	return nil
}

// Stats implements store.MemoryStore.
func (s *MemoryStore) Stats(ctx context.Context) (*domain.WorkspaceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.WorkspaceStats{
		Episodic:   domain.EpisodicStats{Episodes: len(s.episodes)},
		Semantic:   domain.SemanticStats{Facts: len(s.facts)},
		Procedural: domain.ProceduralStats{Patterns: len(s.patterns)},
		GmailIntegration: domain.GmailIntegration{
			TotalEmailsProcessed: len(s.processed),
		},
	}

	for _, e := range s.episodes {
		stats.TotalTokens += e.TokenCount
	}
	for _, f := range s.facts {
		stats.TotalTokens += f.TokenCount
	}
	for _, p := range s.patterns {
		stats.TotalTokens += p.TokenCount
	}

	if !s.lastSync.IsZero() {
		last := s.lastSync
		stats.GmailIntegration.LastSyncAt = &last
	}

	return stats, nil
}
