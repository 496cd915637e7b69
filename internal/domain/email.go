package domain

import (
	"net/mail"
	"strings"
	"time"
)

// Email is the subset of a Gmail message the classifiers work with.
type Email struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"thread_id"`
	From         string    `json:"from"`
	To           []string  `json:"to,omitempty"`
	Subject      string    `json:"subject"`
	Snippet      string    `json:"snippet"`
	LabelIDs     []string  `json:"label_ids,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
	ListID       string    `json:"list_id,omitempty"`
	HasUnsubLink bool      `json:"has_unsubscribe,omitempty"`
}

// SenderAddress returns the lower-cased address part of the From header,
// or the raw header when it cannot be parsed.
func (e *Email) SenderAddress() string {
	addr, err := mail.ParseAddress(e.From)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(e.From))
	}
	return strings.ToLower(addr.Address)
}

// SenderName returns the display name of the From header, if any.
func (e *Email) SenderName() string {
	addr, err := mail.ParseAddress(e.From)
	if err != nil {
		return ""
	}
	return addr.Name
}

// Participants returns the sender followed by the recipients, without duplicates.
func (e *Email) Participants() []string {
	seen := make(map[string]struct{}, len(e.To)+1)
	out := make([]string, 0, len(e.To)+1)

	for _, p := range append([]string{e.From}, e.To...) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	return out
}
