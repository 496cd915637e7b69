package gmail

import (
	"context"

	"github.com/phrazzld/shannon/internal/domain"
)

// Profile describes the authenticated mailbox.
type Profile struct {
	EmailAddress  string `json:"emailAddress"`
	MessagesTotal int64  `json:"messagesTotal"`
	ThreadsTotal  int64  `json:"threadsTotal"`
}

// Label is a Gmail label.
type Label struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	MessagesTotal int64  `json:"messagesTotal,omitempty"`
}

// ListOptions narrows a message listing.
type ListOptions struct {
	// MaxResults caps the number of message IDs returned
	MaxResults int

	// Query uses Gmail search syntax, e.g. "newer_than:7d"
	Query string

	// LabelIDs restricts results to messages carrying every label
	LabelIDs []string
}

// ProgressFunc is called after each fetched message.
type ProgressFunc func(done, total int)

// Client is an authenticated view of one mailbox.
type Client interface {
	// GetProfile returns the mailbox owner and totals
	GetProfile(ctx context.Context) (*Profile, error)

	// ListLabels returns every label in the mailbox
	ListLabels(ctx context.Context) ([]Label, error)

	// ListMessageIDs returns the IDs of the newest messages matching opts
	ListMessageIDs(ctx context.Context, opts ListOptions) ([]string, error)

	// GetMessage returns the metadata of one message
	GetMessage(ctx context.Context, id string) (*domain.Email, error)

	// FetchMessages returns the metadata of ids in the same order.
	// progress may be nil.
	FetchMessages(ctx context.Context, ids []string, progress ProgressFunc) ([]domain.Email, error)
}

// Connector opens a Client for an OAuth access token.
type Connector interface {
	Connect(ctx context.Context, accessToken string) (Client, error)
}
