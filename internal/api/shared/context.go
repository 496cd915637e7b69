package shared

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is the type of request context keys set by this package.
type ContextKey string

// Context keys for values placed on the request context
const (
	// ClientContextKey holds the client name from a validated bearer token
	ClientContextKey ContextKey = "client"

	// TraceIDKey holds the trace ID of the request
	TraceIDKey ContextKey = "traceID"
)

// TraceIDHeader carries a caller-supplied trace ID in and the effective one out.
const TraceIDHeader = "X-Trace-ID"

var traceIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{8,64}$`)

// SetTraceID adds a trace ID to the context. A well-formed incoming ID is
// reused; anything else is replaced with a fresh one.
func SetTraceID(ctx context.Context, incoming string) context.Context {
	traceID := incoming
	if !traceIDPattern.MatchString(traceID) {
		traceID = NewTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context, or "" if none is set.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// NewTraceID returns a random 32 character hex string.
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SetClient records the authenticated client name on the context.
func SetClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, ClientContextKey, client)
}

// GetClient returns the authenticated client name, if any.
func GetClient(ctx context.Context) (string, bool) {
	client, ok := ctx.Value(ClientContextKey).(string)
	return client, ok && client != ""
}
