package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/shannon/internal/classify"
	"github.com/phrazzld/shannon/internal/domain"
)

// MockClassifier is a mock implementation of classify.Classifier.
type MockClassifier struct {
	ClassifyFn func(ctx context.Context, emails []domain.Email) (*domain.Classification, error)

	mu      sync.Mutex
	batches [][]domain.Email
}

// Ensure MockClassifier implements classify.Classifier
var _ classify.Classifier = (*MockClassifier)(nil)

// Classify implements classify.Classifier. Without ClassifyFn it returns an
// empty classification.
func (m *MockClassifier) Classify(ctx context.Context, emails []domain.Email) (*domain.Classification, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]domain.Email(nil), emails...))
	m.mu.Unlock()

	if m.ClassifyFn != nil {
		return m.ClassifyFn(ctx, emails)
	}
	return &domain.Classification{}, nil
}

// Calls returns how many times Classify was called.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// Batches returns the emails of every Classify call.
func (m *MockClassifier) Batches() [][]domain.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]domain.Email(nil), m.batches...)
}
