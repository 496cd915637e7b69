package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/shannon/internal/domain"
	"github.com/phrazzld/shannon/internal/gmail"
)

// MockGmailClient is a mock implementation of gmail.Client.
type MockGmailClient struct {
	GetProfileFn     func(ctx context.Context) (*gmail.Profile, error)
	ListLabelsFn     func(ctx context.Context) ([]gmail.Label, error)
	ListMessageIDsFn func(ctx context.Context, opts gmail.ListOptions) ([]string, error)
	GetMessageFn     func(ctx context.Context, id string) (*domain.Email, error)
	FetchMessagesFn  func(ctx context.Context, ids []string, progress gmail.ProgressFunc) ([]domain.Email, error)

	mu           sync.Mutex
	listCalls    []gmail.ListOptions
	fetchedBatch [][]string
}

// Ensure MockGmailClient implements gmail.Client
var _ gmail.Client = (*MockGmailClient)(nil)

// NewMockGmailClientWithEmails returns a client whose mailbox holds emails,
// newest first.
func NewMockGmailClientWithEmails(emails []domain.Email) *MockGmailClient {
	byID := make(map[string]domain.Email, len(emails))
	for _, e := range emails {
		byID[e.ID] = e
	}

	return &MockGmailClient{
		ListMessageIDsFn: func(ctx context.Context, opts gmail.ListOptions) ([]string, error) {
			ids := make([]string, 0, len(emails))
			for _, e := range emails {
				if opts.MaxResults > 0 && len(ids) == opts.MaxResults {
					break
				}
				ids = append(ids, e.ID)
			}
			return ids, nil
		},
		GetMessageFn: func(ctx context.Context, id string) (*domain.Email, error) {
			e, ok := byID[id]
			if !ok {
				return nil, gmail.ErrNotFound
			}
			return &e, nil
		},
		FetchMessagesFn: func(ctx context.Context, ids []string, progress gmail.ProgressFunc) ([]domain.Email, error) {
			out := make([]domain.Email, 0, len(ids))
			for i, id := range ids {
				e, ok := byID[id]
				if !ok {
					return nil, gmail.ErrNotFound
				}
				out = append(out, e)
				if progress != nil {
					progress(i+1, len(ids))
				}
			}
			return out, nil
		},
	}
}

// GetProfile implements gmail.Client.
func (m *MockGmailClient) GetProfile(ctx context.Context) (*gmail.Profile, error) {
	if m.GetProfileFn != nil {
		return m.GetProfileFn(ctx)
	}
	return &gmail.Profile{EmailAddress: "me@example.com"}, nil
}

// ListLabels implements gmail.Client.
func (m *MockGmailClient) ListLabels(ctx context.Context) ([]gmail.Label, error) {
	if m.ListLabelsFn != nil {
		return m.ListLabelsFn(ctx)
	}
	return nil, nil
}

// ListMessageIDs implements gmail.Client.
func (m *MockGmailClient) ListMessageIDs(ctx context.Context, opts gmail.ListOptions) ([]string, error) {
	m.mu.Lock()
	m.listCalls = append(m.listCalls, opts)
	m.mu.Unlock()

	if m.ListMessageIDsFn != nil {
		return m.ListMessageIDsFn(ctx, opts)
	}
	return nil, nil
}

// GetMessage implements gmail.Client.
func (m *MockGmailClient) GetMessage(ctx context.Context, id string) (*domain.Email, error) {
	if m.GetMessageFn != nil {
		return m.GetMessageFn(ctx, id)
	}
	return nil, gmail.ErrNotFound
}

// FetchMessages implements gmail.Client.
func (m *MockGmailClient) FetchMessages(ctx context.Context, ids []string, progress gmail.ProgressFunc) ([]domain.Email, error) {
	m.mu.Lock()
	m.fetchedBatch = append(m.fetchedBatch, append([]string(nil), ids...))
	m.mu.Unlock()

	if m.FetchMessagesFn != nil {
		return m.FetchMessagesFn(ctx, ids, progress)
	}
	return nil, nil
}

// ListCalls returns the options of every ListMessageIDs call.
func (m *MockGmailClient) ListCalls() []gmail.ListOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gmail.ListOptions(nil), m.listCalls...)
}

// FetchedIDs returns the ids of every FetchMessages call.
func (m *MockGmailClient) FetchedIDs() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.fetchedBatch...)
}

// MockConnector is a mock implementation of gmail.Connector.
type MockConnector struct {
	Client    gmail.Client
	ConnectFn func(ctx context.Context, accessToken string) (gmail.Client, error)

	mu     sync.Mutex
	tokens []string
}

// Ensure MockConnector implements gmail.Connector
var _ gmail.Connector = (*MockConnector)(nil)

// Connect implements gmail.Connector. An empty token fails with
// gmail.ErrEmptyToken like the real connector.
func (m *MockConnector) Connect(ctx context.Context, accessToken string) (gmail.Client, error) {
	m.mu.Lock()
	m.tokens = append(m.tokens, accessToken)
	m.mu.Unlock()

	if m.ConnectFn != nil {
		return m.ConnectFn(ctx, accessToken)
	}
	if accessToken == "" {
		return nil, gmail.ErrEmptyToken
	}
	return m.Client, nil
}

// Tokens returns every access token Connect was called with.
func (m *MockConnector) Tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tokens...)
}
