// Package tokens provides token accounting for prompt budgeting. It uses the
// cl100k_base BPE when available and falls back to a bytes/4 approximation,
// so counting never fails even when the encoding cannot be loaded.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/colloquy-ai/colloquy/types"
)

// Counter counts tokens for plain text.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewCounter creates a lazy counter. The encoding is loaded on first use.
func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) encoding() *tiktoken.Tiktoken {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err == nil {
			c.enc = enc
		}
	})
	return c.enc
}

// Count returns the token count for text, approximated when the BPE is
// unavailable.
func (c *Counter) Count(text string) int {
	if enc := c.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	// Rough heuristic: ~4 bytes per token for western text.
	return (len(text) + 3) / 4
}

// TrimToBudget drops the oldest messages until the combined text of the
// remainder fits the token budget. The most recent messages always survive;
// at least one message is kept even if it alone exceeds the budget.
func (c *Counter) TrimToBudget(messages []types.Message, budget int) []types.Message {
	if len(messages) == 0 || budget <= 0 {
		return messages
	}
	total := 0
	counts := make([]int, len(messages))
	for i, m := range messages {
		counts[i] = c.Count(m.Text)
		total += counts[i]
	}
	start := 0
	for start < len(messages)-1 && total > budget {
		total -= counts[start]
		start++
	}
	return messages[start:]
}
