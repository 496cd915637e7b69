package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultPollInterval matches the cadence used by the browser extension.
const DefaultPollInterval = 5 * time.Second

// StatusQuerier is anything that can report a task snapshot, locally or
// over the network.
type StatusQuerier interface {
	Status(ctx context.Context, id uuid.UUID) (Task, error)
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	// Interval between queries; defaults to DefaultPollInterval
	Interval time.Duration

	// MaxAttempts bounds the number of queries; zero means unlimited
	MaxAttempts int

	// OnUpdate, if set, is called with every observed snapshot
	OnUpdate func(Task)
}

// Poller repeatedly queries a StatusQuerier until the task is terminal.
type Poller struct {
	querier StatusQuerier
	config  PollerConfig
}

// NewPoller creates a Poller.
func NewPoller(querier StatusQuerier, config PollerConfig) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	return &Poller{querier: querier, config: config}
}

// Poll queries immediately and then once per interval until the task is
// completed or failed. A failed task is returned with a nil error; use
// Task.Err to inspect it. ErrNotFound aborts polling at once.
func (p *Poller) Poll(ctx context.Context, id uuid.UUID) (Task, error) {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	var last Task
	for attempt := 1; ; attempt++ {
		t, err := p.querier.Status(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
				return last, err
			}
			return last, fmt.Errorf("failed to query task status: %w", err)
		}

		last = t
		if p.config.OnUpdate != nil {
			p.config.OnUpdate(t)
		}

		if t.Status.Terminal() {
			return t, nil
		}

		if p.config.MaxAttempts > 0 && attempt >= p.config.MaxAttempts {
			return last, fmt.Errorf("%w: %d attempts, last status %s", ErrPollAttemptsExceeded, attempt, t.Status)
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
