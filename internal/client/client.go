package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/shannon/internal/api"
	"github.com/phrazzld/shannon/internal/api/shared"
	"github.com/phrazzld/shannon/internal/domain"
	"github.com/phrazzld/shannon/internal/task"
	"github.com/sethvargo/go-retry"
)

// Defaults applied by New
const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// waitMargin is added to the server-side wait so the answer can arrive
// before the request deadline.
const waitMargin = 10 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the server address, e.g. http://localhost:8080
	BaseURL string

	// Token is sent as a bearer token on every request
	Token string

	// Timeout bounds a single HTTP round trip. Wait requests are bounded by
	// their own wait timeout instead.
	Timeout time.Duration

	// MaxRetries bounds retries of transient failures; negative disables them
	MaxRetries int

	// RetryDelay is the first backoff interval
	RetryDelay time.Duration

	// HTTPClient replaces the default transport. A client-wide Timeout on it
	// also caps Wait.
	HTTPClient *http.Client
}

// Client talks to a Shannon server.
type Client struct {
	baseURL    *url.URL
	token      string
	http       *http.Client
	timeout    time.Duration
	maxRetries uint64
	retryDelay time.Duration
	logger     *slog.Logger
}

var _ task.StatusQuerier = (*Client)(nil)

// New creates a Client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrMissingBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	// Deadlines are set per request so long polls can outlive Timeout
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	maxRetries := cfg.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = DefaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    base,
		token:      cfg.Token,
		http:       httpClient,
		timeout:    timeout,
		maxRetries: uint64(maxRetries),
		retryDelay: retryDelay,
		logger:     logger.With("component", "shannon_client"),
	}, nil
}

// request describes one logical call to the server.
type request struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	out    interface{}

	// timeout overrides the client timeout for this call
	timeout time.Duration

	// mutating calls are only retried when the server refused them
	// outright, since a lost response may hide an accepted request
	mutating bool
}

// SendMessage posts a message envelope and decodes the answer into out.
// SYNC_GMAIL_MEMORY starts work on the server and is therefore not retried
// after transport failures.
func (c *Client) SendMessage(ctx context.Context, msgType string, payload interface{}, out interface{}) error {
	msg := api.MessageRequest{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", msgType, err)
		}
		msg.Payload = raw
	}
	return c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/messages",
		body:     msg,
		out:      out,
		mutating: msgType == api.MessageSyncGmailMemory,
	})
}

// SyncGmail starts a Gmail sync and returns its task ID.
func (c *Client) SyncGmail(ctx context.Context, params task.GmailSyncParams) (uuid.UUID, error) {
	var resp api.SyncStartedResponse
	if err := c.SendMessage(ctx, api.MessageSyncGmailMemory, params, &resp); err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(resp.TaskID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("server returned invalid task id %q: %w", resp.TaskID, err)
	}
	return id, nil
}

// Status implements task.StatusQuerier. Unknown tasks yield task.ErrNotFound.
func (c *Client) Status(ctx context.Context, id uuid.UUID) (task.Task, error) {
	var resp api.TaskStatusResponse
	err := c.SendMessage(ctx, api.MessageGetTaskStatus, api.TaskStatusPayload{TaskID: id.String()}, &resp)
	if err != nil {
		return task.Task{}, err
	}
	return taskFromResponse(resp.Task)
}

// Wait long-polls the server until the task is terminal or timeout elapses
// on the server side, and returns the latest snapshot. A non-positive
// timeout uses the server default.
func (c *Client) Wait(ctx context.Context, id uuid.UUID, timeout time.Duration) (task.Task, error) {
	query := url.Values{}
	serverWait := api.DefaultWaitTimeout
	if timeout > 0 {
		query.Set("timeout", timeout.String())
		serverWait = min(timeout, api.MaxWaitTimeout)
	}

	var resp api.TaskStatusResponse
	err := c.do(ctx, request{
		method:  http.MethodGet,
		path:    "/api/tasks/" + id.String() + "/wait",
		query:   query,
		out:     &resp,
		timeout: serverWait + waitMargin,
	})
	if err != nil {
		return task.Task{}, err
	}
	return taskFromResponse(resp.Task)
}

// Stats returns the workspace memory statistics.
func (c *Client) Stats(ctx context.Context) (*domain.WorkspaceStats, error) {
	var resp api.StatsResponse
	if err := c.SendMessage(ctx, api.MessageGetWorkspaceMemoryStats, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Stats == nil {
		return nil, errors.New("server returned no stats")
	}
	return resp.Stats, nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodGet, path: "/health"})
}

// do performs one logical request, retrying transient failures with
// exponential backoff.
func (c *Client) do(ctx context.Context, r request) error {
	var encoded []byte
	if r.body != nil {
		var err error
		encoded, err = json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	target := c.baseURL.JoinPath(r.path)
	target.RawQuery = r.query.Encode()

	timeout := r.timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryDelay))
	attempt := 0

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.roundTrip(ctx, timeout, r.method, target.String(), encoded, r.out)
		if err == nil || ctx.Err() != nil || !retryable(r, err) {
			return err
		}

		c.logger.Debug("retrying request",
			"method", r.method,
			"path", r.path,
			"attempt", attempt,
			"error", err)
		return retry.RetryableError(err)
	})
}

// retryable reports whether err is worth another attempt of r. A mutating
// call is repeated only when the server refused it with 429 or 503.
func retryable(r request, err error) bool {
	if errors.Is(err, errDecode) {
		return false
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return !r.mutating
	}
	if r.mutating {
		return apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode == http.StatusServiceUnavailable
	}
	return apiErr.Temporary()
}

func (c *Client) roundTrip(ctx context.Context, timeout time.Duration, method, target string, body []byte, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, shared.MaxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", errDecode, err)
	}
	return nil
}

// decodeError turns an error response into an APIError, wrapping the
// sentinels callers branch on.
func decodeError(status int, data []byte) error {
	var body shared.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = http.StatusText(status)
	}

	apiErr := &APIError{StatusCode: status, Message: body.Error, TraceID: body.TraceID}

	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", task.ErrNotFound, apiErr)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	default:
		return apiErr
	}
}

// taskFromResponse converts the wire view back to a task snapshot.
func taskFromResponse(r api.TaskResponse) (task.Task, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return task.Task{}, fmt.Errorf("server returned invalid task id %q: %w", r.ID, err)
	}

	status := task.Status(r.Status)
	if !status.Valid() {
		return task.Task{}, fmt.Errorf("server returned unknown task status %q", r.Status)
	}

	return task.Task{
		ID:         id,
		Type:       r.Type,
		Status:     status,
		Progress:   r.Progress,
		Result:     r.Result,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		FinishedAt: r.FinishedAt,
	}, nil
}
