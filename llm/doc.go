// Package llm defines the provider abstraction used for all external model
// calls, plus the credential resolver that maps an API key string to a
// provider identity and default model. Concrete HTTP adapters live in
// llm/providers; construction by provider id lives in llm/factory.
package llm
