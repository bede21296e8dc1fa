// Package tokenizer counts tokens for conversation budgeting.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/entrhq/operator/pkg/types"
)

const (
	// ImageTokens is the flat cost charged for the one screenshot sent per request.
	ImageTokens = 765

	// perItemOverhead approximates role and framing tokens per message.
	perItemOverhead = 4
)

// Tokenizer counts tokens with tiktoken, falling back to a character
// estimate when the encoding cannot be loaded (it is fetched on first use).
type Tokenizer struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// encodingFor picks the tiktoken encoding for a model name.
func encodingFor(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"),
		strings.HasPrefix(m, "o4"), strings.HasPrefix(m, "gpt-4.1"), strings.HasPrefix(m, "computer-use"):
		return "o200k_base"
	default:
		return "cl100k_base"
	}
}

// New returns a tokenizer for model.
func New(model string) *Tokenizer {
	return &Tokenizer{encoding: encodingFor(model)}
}

// Encoding returns the tiktoken encoding name in use.
func (t *Tokenizer) Encoding() string {
	return t.encoding
}

func (t *Tokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// Err reports why exact counting is unavailable, if it is.
func (t *Tokenizer) Err() error {
	return t.init()
}

// Count returns the token count of text.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	if t == nil || t.init() != nil {
		return Estimate(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Estimate approximates tokens as one per four bytes, rounded up.
func Estimate(text string) int {
	return (len(text) + 3) / 4
}

// CountItem returns the cost of one turn item, excluding any image.
func (t *Tokenizer) CountItem(item types.TurnItem) int {
	n := perItemOverhead + t.Count(item.Text)
	if item.Action != nil {
		n += t.Count(item.Action.String())
	}
	return n
}

// CountConversation returns the cost of sending items, including the single
// screenshot of the latest user turn.
func (t *Tokenizer) CountConversation(items []types.TurnItem) int {
	total := 0
	for _, item := range items {
		total += t.CountItem(item)
	}
	if lastImageIndex(items) >= 0 {
		total += ImageTokens
	}
	return total
}

// roughCost is a cheap upper-bound style estimate used to skip exact
// counting for conversations far below the budget.
func roughCost(items []types.TurnItem) int {
	total := ImageTokens
	for _, item := range items {
		total += perItemOverhead + Estimate(item.Text)
		if item.Action != nil {
			total += Estimate(item.Action.String())
		}
	}
	return total
}

func lastImageIndex(items []types.TurnItem) int {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Role == types.RoleUser {
			if items[i].Image != "" {
				return i
			}
			return -1
		}
	}
	return -1
}

// Trim drops the oldest items after the first one until the conversation
// fits budget. The first item (the task) and the final item are always kept.
// A budget <= 0 disables trimming. The returned slice is a new slice.
func (t *Tokenizer) Trim(items []types.TurnItem, budget int) []types.TurnItem {
	out := append([]types.TurnItem(nil), items...)
	if budget <= 0 || roughCost(out)*2 <= budget {
		return out
	}
	total := t.CountConversation(out)
	for total > budget && len(out) > 2 {
		total -= t.CountItem(out[1])
		out = append(out[:1], out[2:]...)
	}
	return out
}
