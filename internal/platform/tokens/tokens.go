// Package tokens counts language-model tokens for stored memories.
//
// Counts use the cl100k_base encoding from tiktoken-go. The encoding is
// loaded on first use; when it cannot be loaded (for example when the BPE
// ranks cannot be downloaded) counting falls back to a character heuristic.
package tokens

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the encoding used by NewTiktokenCounter.
const DefaultEncoding = "cl100k_base"

// Counter returns the number of tokens in a text.
type Counter interface {
	Count(text string) int
}

// CounterFunc adapts a function to the Counter interface.
type CounterFunc func(text string) int

// Count calls f(text).
func (f CounterFunc) Count(text string) int {
	return f(text)
}

// Estimator is a Counter that never touches tiktoken.
var Estimator Counter = CounterFunc(EstimateFast)

// TiktokenCounter counts tokens with a lazily loaded tiktoken encoding.
type TiktokenCounter struct {
	name   string
	logger *slog.Logger

	once     sync.Once
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter creates a counter for the named encoding. An empty
// name selects DefaultEncoding.
func NewTiktokenCounter(name string, logger *slog.Logger) *TiktokenCounter {
	if name == "" {
		name = DefaultEncoding
	}
	return &TiktokenCounter{name: name, logger: logger}
}

func (c *TiktokenCounter) load() {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.name)
		if err != nil {
			c.logger.Warn("tiktoken encoding unavailable, using estimates",
				"encoding", c.name,
				"error", err)
			return
		}
		c.encoding = enc
	})
}

// Count implements Counter.
func (c *TiktokenCounter) Count(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	c.load()
	if c.encoding == nil {
		return EstimateFast(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// EstimateFast returns max(runes/4, words), and at least 1 for non-blank text.
func EstimateFast(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}

	estimate := len([]rune(trimmed)) / 4
	if words := len(strings.Fields(trimmed)); estimate < words {
		estimate = words
	}
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}
