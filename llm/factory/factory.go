// Package factory creates llm.Provider instances by provider id. It imports
// every adapter sub-package and maps ids to constructors, breaking the import
// cycle that would occur if this logic lived in the llm package directly.
package factory

import (
	"time"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/llm"
	"github.com/colloquy-ai/colloquy/llm/providers/anthropic"
	"github.com/colloquy-ai/colloquy/llm/providers/gemini"
	"github.com/colloquy-ai/colloquy/llm/providers/openaicompat"
	"github.com/colloquy-ai/colloquy/types"
)

// Config is the generic configuration accepted by the factory.
type Config struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// New creates a Provider for the given id. Unknown ids (including the
// explicit compatible fallback) get the generic OpenAI-compatible adapter;
// that adapter requires a BaseURL, so one must be configured for them.
func New(id llm.ProviderID, cfg Config, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = llm.DefaultModel(id)
	}

	switch id {
	case llm.ProviderAnthropic:
		return anthropic.New(anthropic.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: model,
			Timeout:      cfg.Timeout,
		}, logger), nil

	case llm.ProviderGemini:
		return gemini.New(gemini.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: model,
			Timeout:      cfg.Timeout,
		}, logger), nil

	case llm.ProviderOpenAI:
		return openaicompat.New(openaicompat.Config{
			ProviderName: string(id),
			APIKey:       cfg.APIKey,
			BaseURL:      baseOr(cfg.BaseURL, "https://api.openai.com"),
			DefaultModel: model,
			Timeout:      cfg.Timeout,
		}, logger), nil

	case llm.ProviderGroq:
		return openaicompat.New(openaicompat.Config{
			ProviderName: string(id),
			APIKey:       cfg.APIKey,
			BaseURL:      baseOr(cfg.BaseURL, "https://api.groq.com/openai"),
			DefaultModel: model,
			Timeout:      cfg.Timeout,
		}, logger), nil

	case llm.ProviderXAI:
		return openaicompat.New(openaicompat.Config{
			ProviderName: string(id),
			APIKey:       cfg.APIKey,
			BaseURL:      baseOr(cfg.BaseURL, "https://api.x.ai"),
			DefaultModel: model,
			Timeout:      cfg.Timeout,
		}, logger), nil

	case llm.ProviderCompatible:
		if cfg.BaseURL == "" {
			return nil, types.NewError(types.ErrConfiguration,
				"compatible provider requires an explicit base_url")
		}
		return openaicompat.New(openaicompat.Config{
			ProviderName: string(id),
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: model,
			Timeout:      cfg.Timeout,
		}, logger), nil

	default:
		return nil, types.NewError(types.ErrConfiguration, "unknown provider: "+string(id))
	}
}

func baseOr(url, fallback string) string {
	if url != "" {
		return url
	}
	return fallback
}
