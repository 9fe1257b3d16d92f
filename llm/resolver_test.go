package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		want       ProviderID
	}{
		{"anthropic prefix", "sk-ant-api03-abc", ProviderAnthropic},
		{"openai prefix", "sk-proj-abc123", ProviderOpenAI},
		{"anthropic wins over openai", "sk-ant-", ProviderAnthropic},
		{"gemini prefix", "AIzaSyExample", ProviderGemini},
		{"groq prefix", "gsk_example", ProviderGroq},
		{"xai prefix", "xai-example", ProviderXAI},
		{"empty defaults to openai", "", ProviderOpenAI},
		{"whitespace only defaults to openai", "   ", ProviderOpenAI},
		{"unrecognized falls through", "totally-custom-key", ProviderCompatible},
		{"prefix in middle does not match", "my-sk-key", ProviderCompatible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveProvider(tt.credential))
		})
	}
}

func TestDefaultModel(t *testing.T) {
	for id, models := range Catalog {
		assert.Equal(t, models[0], DefaultModel(id))
	}
	// Unknown provider ids fall back to the compatible catalog.
	assert.Equal(t, Catalog[ProviderCompatible][0], DefaultModel(ProviderID("made-up")))
}

func TestCatalogNonEmpty(t *testing.T) {
	for _, id := range []ProviderID{
		ProviderAnthropic, ProviderOpenAI, ProviderGemini,
		ProviderGroq, ProviderXAI, ProviderCompatible,
	} {
		assert.NotEmpty(t, Catalog[id], "catalog for %s", id)
	}
}
