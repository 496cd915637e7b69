package gmail

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/phrazzld/shannon/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	userID = "me"

	// DefaultFetchConcurrency bounds parallel message lookups
	DefaultFetchConcurrency = 4

	// DefaultCacheSize is the number of messages kept in the metadata cache
	DefaultCacheSize = 1024
)

// metadataHeaders are the only headers requested per message.
var metadataHeaders = []string{"From", "To", "Cc", "Subject", "Date", "List-Id", "List-Unsubscribe"}

// APIConnectorConfig configures an APIConnector.
type APIConnectorConfig struct {
	// Endpoint overrides the Gmail API base URL; empty means production
	Endpoint string

	// FetchConcurrency bounds parallel message lookups
	FetchConcurrency int

	// CacheSize bounds the message cache shared by all connections. Entries
	// are scoped to the access token that fetched them
	CacheSize int

	// HTTPClient is the base transport wrapped with the OAuth token
	HTTPClient *http.Client
}

// APIConnector opens Clients backed by the Gmail REST API.
type APIConnector struct {
	config APIConnectorConfig
	cache  *lru.Cache[string, domain.Email]
	logger *slog.Logger
}

// Ensure APIConnector implements Connector
var _ Connector = (*APIConnector)(nil)

// NewAPIConnector creates an APIConnector with a fresh message cache.
func NewAPIConnector(config APIConnectorConfig, logger *slog.Logger) (*APIConnector, error) {
	if config.FetchConcurrency <= 0 {
		config.FetchConcurrency = DefaultFetchConcurrency
	}
	if config.CacheSize <= 0 {
		config.CacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, domain.Email](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create message cache: %w", err)
	}

	return &APIConnector{
		config: config,
		cache:  cache,
		logger: logger.With("component", "gmail"),
	}, nil
}

// Connect builds a Gmail service authenticated with accessToken.
func (c *APIConnector) Connect(ctx context.Context, accessToken string) (Client, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrEmptyToken
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	if c.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.config.HTTPClient)
	}

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource))}
	if c.config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.config.Endpoint))
	}

	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &apiClient{
		svc:         svc,
		cache:       c.cache,
		cacheScope:  tokenScope(accessToken),
		concurrency: c.config.FetchConcurrency,
		logger:      c.logger,
	}, nil
}

// tokenScope derives a cache namespace from an access token so a message
// cached for one token is never served to another.
func tokenScope(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return hex.EncodeToString(sum[:16])
}

// apiClient implements Client on top of the generated Gmail bindings.
type apiClient struct {
	svc         *gmailapi.Service
	cache       *lru.Cache[string, domain.Email]
	cacheScope  string
	concurrency int
	logger      *slog.Logger
}

func (c *apiClient) GetProfile(ctx context.Context) (*Profile, error) {
	p, err := c.svc.Users.GetProfile(userID).Context(ctx).Do()
	if err != nil {
		return nil, mapError("get profile", err)
	}
	return &Profile{
		EmailAddress:  p.EmailAddress,
		MessagesTotal: p.MessagesTotal,
		ThreadsTotal:  p.ThreadsTotal,
	}, nil
}

func (c *apiClient) ListLabels(ctx context.Context) ([]Label, error) {
	resp, err := c.svc.Users.Labels.List(userID).Context(ctx).Do()
	if err != nil {
		return nil, mapError("list labels", err)
	}

	labels := make([]Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labels = append(labels, Label{ID: l.Id, Name: l.Name, Type: l.Type, MessagesTotal: l.MessagesTotal})
	}
	return labels, nil
}

func (c *apiClient) ListMessageIDs(ctx context.Context, opts ListOptions) ([]string, error) {
	call := c.svc.Users.Messages.List(userID).Context(ctx)
	if opts.MaxResults > 0 {
		call = call.MaxResults(int64(opts.MaxResults))
	}
	if opts.Query != "" {
		call = call.Q(opts.Query)
	}
	if len(opts.LabelIDs) > 0 {
		call = call.LabelIds(opts.LabelIDs...)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, mapError("list messages", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	if opts.MaxResults > 0 && len(ids) > opts.MaxResults {
		ids = ids[:opts.MaxResults]
	}
	return ids, nil
}

func (c *apiClient) GetMessage(ctx context.Context, id string) (*domain.Email, error) {
	key := c.cacheScope + "/" + id
	if cached, ok := c.cache.Get(key); ok {
		return &cached, nil
	}

	msg, err := c.svc.Users.Messages.Get(userID, id).
		Format("metadata").
		MetadataHeaders(metadataHeaders...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError(fmt.Sprintf("get message %s", id), err)
	}

	email := toEmail(msg)
	c.cache.Add(key, email)
	return &email, nil
}

func (c *apiClient) FetchMessages(ctx context.Context, ids []string, progress ProgressFunc) ([]domain.Email, error) {
	emails := make([]domain.Email, len(ids))

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			email, err := c.GetMessage(gctx, id)
			if err != nil {
				return err
			}
			emails[i] = *email

			if progress != nil {
				mu.Lock()
				done++
				progress(done, len(ids))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("fetched messages", "count", len(emails))
	return emails, nil
}

// toEmail extracts the classifier-relevant fields of a metadata message.
func toEmail(msg *gmailapi.Message) domain.Email {
	email := domain.Email{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		LabelIDs: append([]string(nil), msg.LabelIds...),
	}
	if msg.InternalDate > 0 {
		email.ReceivedAt = time.UnixMilli(msg.InternalDate).UTC()
	}

	if msg.Payload == nil {
		return email
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			email.From = h.Value
		case "to", "cc":
			email.To = append(email.To, parseAddresses(h.Value)...)
		case "subject":
			email.Subject = h.Value
		case "list-id":
			v := strings.TrimSpace(h.Value)
			if i := strings.LastIndex(v, "<"); i >= 0 {
				v = v[i:]
			}
			email.ListID = strings.Trim(v, "<> ")
		case "list-unsubscribe":
			email.HasUnsubLink = strings.TrimSpace(h.Value) != ""
		}
	}

	return email
}

// parseAddresses splits an address list header into "Name <address>" or
// bare address entries. A header that does not parse is kept whole.
func parseAddresses(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	list, err := mail.ParseAddressList(header)
	if err != nil {
		return []string{header}
	}

	out := make([]string, 0, len(list))
	for _, a := range list {
		if a.Name == "" {
			out = append(out, a.Address)
			continue
		}
		out = append(out, a.Name+" <"+a.Address+">")
	}
	return out
}
