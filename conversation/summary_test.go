package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/tokens"
	"github.com/colloquy-ai/colloquy/llm"
	"github.com/colloquy-ai/colloquy/llm/factory"
	"github.com/colloquy-ai/colloquy/session"
	"github.com/colloquy-ai/colloquy/types"
)

func plainLabel(id string) string { return id }

func TestBuildSummaryPrompt(t *testing.T) {
	transcript := []types.Message{
		types.NewSystemMessage("Conversation started."),
		types.NewMessage("ada", "We should version by URL path."),
		types.NewMessage("ben", "Headers are cleaner."),
	}

	prompt := BuildSummaryPrompt("API versioning", transcript, plainLabel, tokens.NewCounter())

	assert.Contains(t, prompt, "API versioning")
	assert.Contains(t, prompt, "ada: We should version by URL path.")
	assert.Contains(t, prompt, "ben: Headers are cleaner.")
	assert.NotContains(t, prompt, "Conversation started.")
	for _, section := range []string{"Decisions reached", "Open items", "Action owners", "Next steps"} {
		assert.Contains(t, prompt, section)
	}
	assert.Contains(t, prompt, "same language")
}

func TestBuildSummaryPrompt_TrimsOldestOverBudget(t *testing.T) {
	long := strings.Repeat("word ", summaryTokenBudget*2)
	transcript := []types.Message{
		types.NewMessage("ada", long),
		types.NewMessage("ben", "the conclusion"),
	}

	prompt := BuildSummaryPrompt("t", transcript, plainLabel, tokens.NewCounter())
	assert.Contains(t, prompt, "the conclusion")
	assert.NotContains(t, prompt, long)
}

func TestFallbackSummary(t *testing.T) {
	transcript := []types.Message{
		types.NewSystemMessage("noise"),
	}
	for i := 0; i < 10; i++ {
		transcript = append(transcript, types.NewMessage("ada", strings.Repeat("x", 10)))
	}
	transcript = append(transcript, types.NewMessage("ben", strings.Repeat("é", fallbackLineBudget+50)))

	out := FallbackSummary("budget talks", transcript, plainLabel, errors.New("timeout"))

	assert.Contains(t, out, "timeout")
	assert.Contains(t, out, "Topic: budget talks")
	// Only the most recent exchanges appear.
	assert.Equal(t, fallbackMessageLimit, strings.Count(out, "- "))
	// Long lines are truncated on rune boundaries with an ellipsis.
	assert.Contains(t, out, "…")
	assert.NotContains(t, out, strings.Repeat("é", fallbackLineBudget+1))
}

func TestFallbackSummary_EmptyTranscript(t *testing.T) {
	out := FallbackSummary("t", nil, plainLabel, errors.New("boom"))
	assert.Contains(t, out, "Summary unavailable")
	assert.NotContains(t, out, "Last exchanges")
}

func TestStoreSummarizer_EmptyProviderTextIsAnError(t *testing.T) {
	fake := &scriptedProvider{replies: []string{"   "}}
	store := session.NewStore(zap.NewNop())
	store.SetProviderFunc(func(llm.ProviderID, factory.Config, *zap.Logger) (llm.Provider, error) {
		return fake, nil
	})
	require.NoError(t, store.Initialize("sk-test", "", []types.Agent{{ID: "a", Name: "A", SystemPrompt: "p"}}, ""))

	summarize := NewStoreSummarizer(store, tokens.NewCounter(), plainLabel)
	_, err := summarize(context.Background(), "t", []types.Message{types.NewMessage("a", "hi")})
	assert.Equal(t, types.ErrProvider, types.GetErrorCode(err))
}
