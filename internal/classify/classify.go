// Package classify turns batches of emails into episodic, semantic and
// procedural memories.
package classify

import (
	"context"
	"errors"

	"github.com/phrazzld/shannon/internal/domain"
)

// ErrEmptyBatch is returned when classifying no emails.
var ErrEmptyBatch = errors.New("no emails to classify")

// Classifier classifies a batch of emails. Implementations must be safe for
// concurrent use.
type Classifier interface {
	Classify(ctx context.Context, emails []domain.Email) (*domain.Classification, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, emails []domain.Email) (*domain.Classification, error)

// Classify calls f(ctx, emails).
func (f ClassifierFunc) Classify(ctx context.Context, emails []domain.Email) (*domain.Classification, error) {
	return f(ctx, emails)
}
