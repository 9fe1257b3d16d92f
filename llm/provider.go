package llm

import (
	"context"
	"time"
)

// Role identifies a chat message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat request in provider-neutral form. Adapters
// reshape it into whatever the vendor wire format requires (separate system
// field, role renames, and so on).
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-neutral completion request.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []Message     `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// ChatResponse is the provider-neutral completion result. Text may be empty:
// an empty completion is not an error at this layer, callers decide how to
// degrade.
type ChatResponse struct {
	Provider string    `json:"provider,omitempty"`
	Model    string    `json:"model"`
	Text     string    `json:"text"`
	Usage    ChatUsage `json:"usage,omitempty"`
}

// ChatUsage reports token accounting when the upstream includes it.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Provider is the single external-I/O capability the orchestrator consumes.
// Adapters convert the neutral request into vendor wire formats; failures are
// reported as *types.Error with the PROVIDER code family.
type Provider interface {
	// Completion performs one synchronous chat completion.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name returns the provider's unique identifier.
	Name() string
}
