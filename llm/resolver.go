package llm

import "strings"

// ProviderID identifies a provider family the resolver can map a credential to.
type ProviderID string

const (
	ProviderAnthropic ProviderID = "anthropic"
	ProviderOpenAI    ProviderID = "openai"
	ProviderGemini    ProviderID = "gemini"
	ProviderGroq      ProviderID = "groq"
	ProviderXAI       ProviderID = "xai"

	// ProviderCompatible is the generic OpenAI-compatible fallback for
	// credentials with no recognized prefix.
	ProviderCompatible ProviderID = "compatible"
)

// credentialPrefixes is checked in order; first match wins. "sk-ant-" must
// come before "sk-".
var credentialPrefixes = []struct {
	prefix   string
	provider ProviderID
}{
	{"sk-ant-", ProviderAnthropic},
	{"sk-", ProviderOpenAI},
	{"AIza", ProviderGemini},
	{"gsk_", ProviderGroq},
	{"xai-", ProviderXAI},
}

// ResolveProvider maps a credential string to a provider identity. It is
// pure, deterministic and total: every input maps to exactly one provider.
// An empty credential resolves to the default provider; an unrecognized one
// falls through to the generic compatible provider.
func ResolveProvider(credential string) ProviderID {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return ProviderOpenAI
	}
	for _, p := range credentialPrefixes {
		if strings.HasPrefix(credential, p.prefix) {
			return p.provider
		}
	}
	return ProviderCompatible
}

// Catalog is the static ordered model catalog per provider. The first entry
// of each list is the provider's default model.
var Catalog = map[ProviderID][]string{
	ProviderAnthropic:  {"claude-sonnet-4-20250514", "claude-opus-4-20250514", "claude-3-5-haiku-20241022"},
	ProviderOpenAI:     {"gpt-4o", "gpt-4o-mini", "gpt-4.1", "o3-mini"},
	ProviderGemini:     {"gemini-2.0-flash", "gemini-2.0-flash-lite", "gemini-1.5-pro"},
	ProviderGroq:       {"llama-3.3-70b-versatile", "llama-3.1-8b-instant", "mixtral-8x7b-32768"},
	ProviderXAI:        {"grok-3", "grok-3-mini", "grok-2-1212"},
	ProviderCompatible: {"gpt-4o-mini"},
}

// DefaultModel returns the first entry of the provider's model catalog.
// Unknown providers fall back to the compatible catalog.
func DefaultModel(id ProviderID) string {
	models, ok := Catalog[id]
	if !ok || len(models) == 0 {
		return Catalog[ProviderCompatible][0]
	}
	return models[0]
}
