package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Episode is an episodic memory derived from a single email.
type Episode struct {
	ID           uuid.UUID `json:"id"`
	EmailID      string    `json:"email_id"`
	ThreadID     string    `json:"thread_id,omitempty"`
	Subject      string    `json:"subject"`
	Participants []string  `json:"participants,omitempty"`
	Summary      string    `json:"summary"`
	OccurredAt   time.Time `json:"occurred_at"`
	TokenCount   int       `json:"token_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks if the Episode has valid data.
func (e *Episode) Validate() error {
	if strings.TrimSpace(e.EmailID) == "" {
		return fmt.Errorf("%w: episode email id", ErrEmptyContent)
	}
	if strings.TrimSpace(e.Summary) == "" {
		return fmt.Errorf("%w: episode summary", ErrEmptyContent)
	}
	return nil
}

// Text returns the content the episode contributes to the token budget.
func (e *Episode) Text() string {
	return e.Subject + "\n" + e.Summary
}

// Fact is a semantic memory: a subject-predicate-object statement.
type Fact struct {
	ID            uuid.UUID `json:"id"`
	Subject       string    `json:"subject"`
	Predicate     string    `json:"predicate"`
	Object        string    `json:"object"`
	Confidence    float64   `json:"confidence"`
	SourceEmailID string    `json:"source_email_id,omitempty"`
	TokenCount    int       `json:"token_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate checks if the Fact has valid data.
func (f *Fact) Validate() error {
	if strings.TrimSpace(f.Subject) == "" || strings.TrimSpace(f.Predicate) == "" ||
		strings.TrimSpace(f.Object) == "" {
		return fmt.Errorf("%w: fact subject, predicate and object are required", ErrEmptyContent)
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return ErrInvalidConfidence
	}
	return nil
}

// Text returns the content the fact contributes to the token budget.
func (f *Fact) Text() string {
	return f.Subject + " " + f.Predicate + " " + f.Object
}

// Pattern is a procedural memory: a trigger and the action that usually follows.
type Pattern struct {
	ID         uuid.UUID `json:"id"`
	Trigger    string    `json:"trigger"`
	Action     string    `json:"action"`
	Frequency  int       `json:"frequency"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks if the Pattern has valid data.
func (p *Pattern) Validate() error {
	if strings.TrimSpace(p.Trigger) == "" || strings.TrimSpace(p.Action) == "" {
		return fmt.Errorf("%w: pattern trigger and action are required", ErrEmptyContent)
	}
	if p.Frequency < 1 {
		return ErrInvalidFrequency
	}
	return nil
}

// Text returns the content the pattern contributes to the token budget.
func (p *Pattern) Text() string {
	return p.Trigger + " -> " + p.Action
}

// Classification is the output of classifying a batch of emails.
type Classification struct {
	Episodes []*Episode `json:"episodes"`
	Facts    []*Fact    `json:"facts"`
	Patterns []*Pattern `json:"patterns"`
}

// Validate validates every memory, assigns missing IDs and creation times.
func (c *Classification) Validate(now time.Time) error {
	for i, e := range c.Episodes {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("episode %d: %w", i, err)
		}
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
	}
	for i, f := range c.Facts {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("fact %d: %w", i, err)
		}
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
	}
	for i, p := range c.Patterns {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("pattern %d: %w", i, err)
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
	}
	return nil
}

// Count returns the number of memories per tier.
func (c *Classification) Count() (episodic, semantic, procedural int) {
	return len(c.Episodes), len(c.Facts), len(c.Patterns)
}
