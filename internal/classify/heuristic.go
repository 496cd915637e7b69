package classify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/phrazzld/shannon/internal/domain"
)

const maxSummaryRunes = 280

// Heuristic classifies emails from their headers alone. It needs no model
// and is the default when none is configured.
type Heuristic struct{}

// Ensure Heuristic implements Classifier
var _ Classifier = Heuristic{}

// NewHeuristic creates a Heuristic classifier.
func NewHeuristic() Heuristic {
	return Heuristic{}
}

// Classify implements Classifier.
//
// Every email becomes one episode. Facts record sender names, mailing lists
// and bulk senders. Patterns record senders that appear at least twice in the
// batch and how Gmail categorised the batch.
func (Heuristic) Classify(ctx context.Context, emails []domain.Email) (*domain.Classification, error) {
	if len(emails) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := &domain.Classification{}
	facts := newFactSet()
	senders := map[string]int{}
	categories := map[string]int{}

	for i := range emails {
		e := &emails[i]
		sender := e.SenderAddress()

		c.Episodes = append(c.Episodes, &domain.Episode{
			EmailID:      e.ID,
			ThreadID:     e.ThreadID,
			Subject:      e.Subject,
			Participants: e.Participants(),
			Summary:      summarize(e),
			OccurredAt:   e.ReceivedAt,
		})

		if sender == "" {
			continue
		}
		senders[sender]++

		if name := e.SenderName(); name != "" {
			facts.add(sender, "is named", name, 0.9, e.ID)
		}
		if e.ListID != "" {
			facts.add(sender, "posts to mailing list", e.ListID, 0.8, e.ID)
		}
		if e.HasUnsubLink {
			facts.add(sender, "sends", "bulk mail", 0.7, e.ID)
		}

		for _, label := range e.LabelIDs {
			if strings.HasPrefix(label, "CATEGORY_") {
				categories[strings.ToLower(strings.TrimPrefix(label, "CATEGORY_"))]++
			}
		}
	}

	c.Facts = facts.list
	for _, sender := range sortedKeys(senders) {
		if n := senders[sender]; n >= 2 {
			c.Patterns = append(c.Patterns, &domain.Pattern{
				Trigger:   "email from " + sender,
				Action:    "recurring correspondence",
				Frequency: n,
			})
		}
	}
	for _, category := range sortedKeys(categories) {
		c.Patterns = append(c.Patterns, &domain.Pattern{
			Trigger:   "incoming email",
			Action:    "categorised as " + category,
			Frequency: categories[category],
		})
	}

	return c, nil
}

func summarize(e *domain.Email) string {
	subject := strings.TrimSpace(e.Subject)
	if subject == "" {
		subject = "(no subject)"
	}

	who := e.SenderName()
	if who == "" {
		who = e.SenderAddress()
	}
	if who == "" {
		who = "unknown sender"
	}

	summary := fmt.Sprintf("%s wrote about %q", who, subject)
	if snippet := strings.TrimSpace(e.Snippet); snippet != "" {
		summary += ": " + snippet
	}

	if runes := []rune(summary); len(runes) > maxSummaryRunes {
		summary = string(runes[:maxSummaryRunes-1]) + "…"
	}
	return summary
}

// factSet deduplicates facts within a batch, keeping first-seen order.
type factSet struct {
	seen map[string]struct{}
	list []*domain.Fact
}

func newFactSet() *factSet {
	return &factSet{seen: map[string]struct{}{}}
}

func (s *factSet) add(subject, predicate, object string, confidence float64, source string) {
	key := subject + "\x00" + predicate + "\x00" + object
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.list = append(s.list, &domain.Fact{
		Subject:       subject,
		Predicate:     predicate,
		Object:        object,
		Confidence:    confidence,
		SourceEmailID: source,
	})
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
