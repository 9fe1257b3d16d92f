package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/colloquy-ai/colloquy/internal/tokens"
	"github.com/colloquy-ai/colloquy/session"
	"github.com/colloquy-ai/colloquy/types"
)

// SummarizeFunc produces a synthesis of a finished conversation.
type SummarizeFunc func(ctx context.Context, topic string, transcript []types.Message) (string, error)

const (
	// summaryTokenBudget bounds the transcript portion of the summary
	// prompt; the oldest turns are dropped first when over budget.
	summaryTokenBudget = 6000

	fallbackMessageLimit = 6
	fallbackLineBudget   = 160
)

// NewStoreSummarizer builds the default summarizer on top of a session
// store's provider binding. The label function maps sender ids to display
// names for the embedded transcript.
func NewStoreSummarizer(store *session.Store, counter *tokens.Counter, label func(string) string) SummarizeFunc {
	return func(ctx context.Context, topic string, transcript []types.Message) (string, error) {
		prompt := BuildSummaryPrompt(topic, transcript, label, counter)
		text, err := store.Oneshot(ctx, prompt)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", types.NewError(types.ErrProvider, "provider returned an empty summary")
		}
		return text, nil
	}
}

// BuildSummaryPrompt embeds the non-system transcript into a single prompt
// asking for a four-part structured synthesis in the conversation's working
// language.
func BuildSummaryPrompt(topic string, transcript []types.Message, label func(string) string, counter *tokens.Counter) string {
	visible := make([]types.Message, 0, len(transcript))
	for _, m := range transcript {
		if !m.IsSystem() {
			visible = append(visible, m)
		}
	}
	if counter != nil {
		visible = counter.TrimToBudget(visible, summaryTokenBudget)
	}

	var b strings.Builder
	b.WriteString("The following is a multi-participant discussion on the topic: ")
	b.WriteString(topic)
	b.WriteString("\n\n")
	for _, m := range visible {
		b.WriteString(label(m.SenderID))
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nWrite a structured summary of this discussion, in the same language the discussion was held in, with exactly these four sections:\n")
	b.WriteString("1. Decisions reached\n")
	b.WriteString("2. Open items\n")
	b.WriteString("3. Action owners\n")
	b.WriteString("4. Next steps\n")
	return b.String()
}

// FallbackSummary is the deterministic local summary used when the provider
// call fails. Pure string formatting: it performs no external calls and never
// fails.
func FallbackSummary(topic string, transcript []types.Message, label func(string) string, reason error) string {
	visible := make([]types.Message, 0, len(transcript))
	for _, m := range transcript {
		if !m.IsSystem() {
			visible = append(visible, m)
		}
	}
	if len(visible) > fallbackMessageLimit {
		visible = visible[len(visible)-fallbackMessageLimit:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summary unavailable from provider (%v).\n", reason)
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	if len(visible) > 0 {
		b.WriteString("Last exchanges:\n")
	}
	for _, m := range visible {
		line := m.Text
		if runes := []rune(line); len(runes) > fallbackLineBudget {
			line = string(runes[:fallbackLineBudget]) + "…"
		}
		fmt.Fprintf(&b, "- %s: %s\n", label(m.SenderID), line)
	}
	return strings.TrimRight(b.String(), "\n")
}
