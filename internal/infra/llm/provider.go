// Package llm — provider interfaces.
// Adapters (GigaChat, Ollama) implement LLMProvider so the orchestrator
// is never coupled to a specific vendor.
package llm

import "context"

// LLMProvider is the model-agnostic interface for chat completion.
type LLMProvider interface {
	// ChatCompletion performs a non-streaming chat completion.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta

	// HealthCheck returns nil if the provider is reachable and operational.
	HealthCheck(ctx context.Context) error
}

// Authenticator is implemented by providers that need a short-lived bearer token.
// Callers check it before the first completion so an auth failure costs no other calls.
type Authenticator interface {
	// Configured reports whether credentials are present at all.
	Configured() bool
	// EnsureValidToken refreshes the cached token when absent or expired.
	// False means the request cannot proceed; the next call retries.
	EnsureValidToken(ctx context.Context) bool
	// HasToken reports whether a token has ever been obtained and is still valid.
	HasToken() bool
}
