package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/shannon/internal/classify"
	"github.com/phrazzld/shannon/internal/domain"
	"github.com/phrazzld/shannon/internal/gmail"
	"github.com/phrazzld/shannon/internal/platform/logger"
	"github.com/phrazzld/shannon/internal/platform/tokens"
	"github.com/phrazzld/shannon/internal/store"
)

// Gmail sync limits and defaults
const (
	DefaultSyncMaxMessages = 50
	MaxSyncMaxMessages     = 500
	DefaultClassifyBatch   = 10
)

// Progress checkpoints of a Gmail sync
const (
	progressConnected  = 5
	progressListed     = 10
	progressFetched    = 50
	progressClassified = 80
	progressStored     = 95
)

// ErrInvalidSyncParams is returned for sync requests that fail validation.
var ErrInvalidSyncParams = errors.New("invalid gmail sync parameters")

// GmailSyncParams are the caller-supplied options of a sync.
type GmailSyncParams struct {
	AccessToken string   `json:"accessToken" validate:"required"`
	MaxMessages int      `json:"maxMessages" validate:"gte=1,lte=500"`
	Query       string   `json:"query,omitempty" validate:"max=512"`
	LabelIDs    []string `json:"labelIds,omitempty" validate:"max=20,dive,required"`
}

// GmailSyncResult is the result payload of a completed sync.
type GmailSyncResult struct {
	EpisodicCount   int `json:"episodicCount"`
	SemanticCount   int `json:"semanticCount"`
	ProceduralCount int `json:"proceduralCount"`
	EmailsProcessed int `json:"emailsProcessed"`
	EmailsSkipped   int `json:"emailsSkipped"`
}

// GmailSyncDeps are the collaborators shared by every sync job.
type GmailSyncDeps struct {
	Connector  gmail.Connector
	Classifier classify.Classifier
	Store      store.MemoryStore
	Tokens     tokens.Counter
	BatchSize  int
	Logger     *slog.Logger
}

// GmailSyncJobFactory validates sync requests and builds jobs for them.
type GmailSyncJobFactory struct {
	deps     GmailSyncDeps
	validate *validator.Validate
}

// NewGmailSyncJobFactory creates a factory. A missing token counter falls
// back to tokens.Estimator.
func NewGmailSyncJobFactory(deps GmailSyncDeps) *GmailSyncJobFactory {
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultClassifyBatch
	}
	if deps.Tokens == nil {
		deps.Tokens = tokens.Estimator
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("component", "gmail_sync")

	return &GmailSyncJobFactory{deps: deps, validate: validator.New()}
}

// New validates params and returns a job ready for submission. A zero
// MaxMessages selects DefaultSyncMaxMessages.
func (f *GmailSyncJobFactory) New(params GmailSyncParams) (*GmailSyncJob, error) {
	if params.MaxMessages == 0 {
		params.MaxMessages = DefaultSyncMaxMessages
	}
	if err := f.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSyncParams, err)
	}
	return &GmailSyncJob{params: params, deps: f.deps}, nil
}

// GmailSyncJob syncs recent Gmail messages into the memory store.
type GmailSyncJob struct {
	params GmailSyncParams
	deps   GmailSyncDeps
	now    func() time.Time
}

// Ensure GmailSyncJob implements Job
var _ Job = (*GmailSyncJob)(nil)

// Type returns the task type identifier
func (j *GmailSyncJob) Type() string {
	return TypeGmailSync
}

// batch pairs a slice of emails with its classification.
type batch struct {
	emailIDs       []string
	classification *domain.Classification
}

// Execute connects to Gmail, fetches the unprocessed messages, classifies
// them in batches and stores the memories. Any failure fails the task.
func (j *GmailSyncJob) Execute(ctx context.Context, reporter Reporter) (interface{}, error) {
	log := logger.FromContextOrDefault(ctx, j.deps.Logger)
	result := GmailSyncResult{}

	client, err := j.deps.Connector.Connect(ctx, j.params.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gmail: %w", err)
	}
	reporter.Progress(progressConnected)

	ids, err := client.ListMessageIDs(ctx, gmail.ListOptions{
		MaxResults: j.params.MaxMessages,
		Query:      j.params.Query,
		LabelIDs:   j.params.LabelIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	reporter.Progress(progressListed)

	if len(ids) == 0 {
		log.Info("mailbox has no matching messages")
		return result, nil
	}

	pending, err := j.deps.Store.FilterUnprocessed(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check processed messages: %w", err)
	}
	result.EmailsSkipped = len(ids) - len(pending)
	if len(pending) == 0 {
		log.Info("all listed messages were already processed", "skipped", result.EmailsSkipped)
		return result, nil
	}

	emails, err := client.FetchMessages(ctx, pending, func(done, total int) {
		reporter.Progress(scale(progressListed, progressFetched, done, total))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	reporter.Progress(progressFetched)

	batches, err := j.classify(ctx, emails, reporter)
	if err != nil {
		return nil, err
	}

	for i, b := range batches {
		if err := j.deps.Store.SaveClassification(ctx, b.emailIDs, b.classification); err != nil {
			return nil, fmt.Errorf("failed to store memories: %w", err)
		}

		episodic, semantic, procedural := b.classification.Count()
		result.EpisodicCount += episodic
		result.SemanticCount += semantic
		result.ProceduralCount += procedural
		result.EmailsProcessed += len(b.emailIDs)

		reporter.Progress(scale(progressClassified, progressStored, i+1, len(batches)))
	}

	log.Info("gmail sync finished",
		"emails_processed", result.EmailsProcessed,
		"emails_skipped", result.EmailsSkipped,
		"episodes", result.EpisodicCount,
		"facts", result.SemanticCount,
		"patterns", result.ProceduralCount)

	return result, nil
}

// classify runs the classifier over emails in batches and prepares every
// memory for storage.
func (j *GmailSyncJob) classify(ctx context.Context, emails []domain.Email, reporter Reporter) ([]batch, error) {
	size := j.deps.BatchSize
	total := (len(emails) + size - 1) / size
	batches := make([]batch, 0, total)

	now := time.Now
	if j.now != nil {
		now = j.now
	}

	for start := 0; start < len(emails); start += size {
		end := min(start+size, len(emails))
		chunk := emails[start:end]

		c, err := j.deps.Classifier.Classify(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to classify messages: %w", err)
		}
		if err := c.Validate(now().UTC()); err != nil {
			return nil, fmt.Errorf("classifier produced invalid memories: %w", err)
		}
		j.countTokens(c)

		ids := make([]string, len(chunk))
		for i := range chunk {
			ids[i] = chunk[i].ID
		}
		batches = append(batches, batch{emailIDs: ids, classification: c})

		reporter.Progress(scale(progressFetched, progressClassified, len(batches), total))
	}

	return batches, nil
}

func (j *GmailSyncJob) countTokens(c *domain.Classification) {
	for _, e := range c.Episodes {
		e.TokenCount = j.deps.Tokens.Count(e.Text())
	}
	for _, f := range c.Facts {
		f.TokenCount = j.deps.Tokens.Count(f.Text())
	}
	for _, p := range c.Patterns {
		p.TokenCount = j.deps.Tokens.Count(p.Text())
	}
}

// scale maps done/total onto the [from, to] progress range.
func scale(from, to, done, total int) int {
	if total <= 0 {
		return to
	}
	return from + (to-from)*done/total
}
