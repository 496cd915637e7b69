package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/phrazzld/shannon/internal/classify"
	"github.com/phrazzld/shannon/internal/config"
	"github.com/phrazzld/shannon/internal/domain"
	"github.com/phrazzld/shannon/internal/platform/logger"
	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

// localAPIKey is sent to custom endpoints that do not check keys.
const localAPIKey = "local"

// Classifier implements classify.Classifier with a Gemini-compatible model.
type Classifier struct {
	client         *genai.Client
	model          string
	promptTemplate *template.Template
	maxRetries     uint64
	baseDelay      time.Duration
	logger         *slog.Logger
}

// Ensure Classifier implements classify.Classifier
var _ classify.Classifier = (*Classifier)(nil)

// NewClassifier creates a Classifier from the LLM configuration.
func NewClassifier(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*Classifier, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", classify.ErrInvalidConfig)
	}
	if cfg.PromptTemplatePath == "" {
		return nil, fmt.Errorf("%w: prompt template path cannot be empty", classify.ErrInvalidConfig)
	}

	content, err := os.ReadFile(cfg.PromptTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
			classify.ErrInvalidConfig, cfg.PromptTemplatePath, err)
	}

	tmpl, err := template.New("classify").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", classify.ErrInvalidConfig, err)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: api key is required for the hosted Gemini API", classify.ErrInvalidConfig)
		}
		apiKey = localAPIKey
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create genai client: %v", classify.ErrInvalidConfig, err)
	}

	retryDelay := time.Duration(cfg.RetryDelaySeconds) * time.Second
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Classifier{
		client:         client,
		model:          cfg.ModelName,
		promptTemplate: tmpl,
		maxRetries:     uint64(maxRetries),
		baseDelay:      retryDelay,
		logger:         logger.With("component", "gemini_classifier", "model", cfg.ModelName),
	}, nil
}

// Classify implements classify.Classifier.
func (c *Classifier) Classify(ctx context.Context, emails []domain.Email) (*domain.Classification, error) {
	if len(emails) == 0 {
		return nil, classify.ErrEmptyBatch
	}

	log := logger.FromContextOrDefault(ctx, c.logger)

	prompt, err := c.createPrompt(emails)
	if err != nil {
		return nil, err
	}

	text, err := c.generateWithRetry(ctx, log, prompt)
	if err != nil {
		return nil, err
	}

	response, err := parseResponse(text)
	if err != nil {
		log.Warn("unparseable model response", "error", err, "response_length", len(text))
		return nil, err
	}

	return toClassification(response, emails, log), nil
}

func (c *Classifier) createPrompt(emails []domain.Email) (string, error) {
	data := promptData{Emails: make([]promptEmail, 0, len(emails))}
	for _, e := range emails {
		pe := promptEmail{
			ID:      e.ID,
			From:    e.From,
			Subject: e.Subject,
			Labels:  strings.Join(e.LabelIDs, ", "),
			Snippet: e.Snippet,
		}
		if !e.ReceivedAt.IsZero() {
			pe.Date = e.ReceivedAt.Format(time.RFC3339)
		}
		data.Emails = append(data.Emails, pe)
	}

	var buf bytes.Buffer
	if err := c.promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// generateWithRetry calls the model, retrying transient failures with
// exponential backoff. Blocked prompts and client errors are not retried.
func (c *Classifier) generateWithRetry(ctx context.Context, log *slog.Logger, prompt string) (string, error) {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.baseDelay))

	var (
		text    string
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		log.Debug("calling language model", "attempt", attempt, "max_attempts", c.maxRetries+1)

		out, err := c.generate(ctx, prompt)
		if err == nil {
			text = out
			return nil
		}
		if isTransient(err) {
			log.Warn("transient language model error", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if isTransient(err) {
			return "", fmt.Errorf("%w: %d attempts: %v", classify.ErrTransientFailure, attempt, err)
		}
		return "", err
	}

	return text, nil
}

func (c *Classifier) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", classify.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no candidates", classify.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: finish reason %s", classify.ErrContentBlocked, candidate.FinishReason)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("%w: empty text", classify.ErrInvalidResponse)
	}
	return sb.String(), nil
}

// isTransient reports whether err is worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, classify.ErrContentBlocked) || errors.Is(err, classify.ErrInvalidResponse) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		// Transport failures carry no status code
		return true
	}

	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// parseResponse decodes the model output, repairing malformed JSON once.
func parseResponse(text string) (*ResponseSchema, error) {
	text = stripCodeFence(text)

	var response ResponseSchema
	if err := json.Unmarshal([]byte(text), &response); err == nil {
		return &response, nil
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", classify.ErrInvalidResponse, err)
	}
	if err := json.Unmarshal([]byte(repaired), &response); err != nil {
		return nil, fmt.Errorf("%w: %v", classify.ErrInvalidResponse, err)
	}
	return &response, nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	return strings.TrimSpace(strings.TrimSuffix(text, "```"))
}

// toClassification maps the response onto domain memories. Entries that
// would not validate are dropped rather than failing the batch.
func toClassification(r *ResponseSchema, emails []domain.Email, log *slog.Logger) *domain.Classification {
	byID := make(map[string]*domain.Email, len(emails))
	for i := range emails {
		byID[emails[i].ID] = &emails[i]
	}

	c := &domain.Classification{}
	dropped := 0

	for _, e := range r.Episodes {
		email, ok := byID[e.EmailID]
		if !ok || strings.TrimSpace(e.Summary) == "" {
			dropped++
			continue
		}
		c.Episodes = append(c.Episodes, &domain.Episode{
			EmailID:      email.ID,
			ThreadID:     email.ThreadID,
			Subject:      email.Subject,
			Participants: email.Participants(),
			Summary:      strings.TrimSpace(e.Summary),
			OccurredAt:   email.ReceivedAt,
		})
	}

	for _, f := range r.Facts {
		fact := &domain.Fact{
			Subject:       strings.TrimSpace(f.Subject),
			Predicate:     strings.TrimSpace(f.Predicate),
			Object:        strings.TrimSpace(f.Object),
			Confidence:    f.Confidence,
			SourceEmailID: f.SourceEmailID,
		}
		if fact.Validate() != nil {
			dropped++
			continue
		}
		c.Facts = append(c.Facts, fact)
	}

	for _, p := range r.Patterns {
		pattern := &domain.Pattern{
			Trigger:   strings.TrimSpace(p.Trigger),
			Action:    strings.TrimSpace(p.Action),
			Frequency: p.Frequency,
		}
		if pattern.Frequency < 1 {
			pattern.Frequency = 1
		}
		if pattern.Validate() != nil {
			dropped++
			continue
		}
		c.Patterns = append(c.Patterns, pattern)
	}

	if dropped > 0 {
		log.Warn("dropped invalid memories from model response", "dropped", dropped)
	}
	return c
}
