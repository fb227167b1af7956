// Package llm defines the model-agnostic text-generation provider abstraction.
// All types here are shared between the provider interface and adapters.
package llm

import "fmt"

// Roles understood by every adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in a conversation (role + content).
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// ChatRequest is the input for a non-streaming chat completion.
type ChatRequest struct {
	// Model overrides the provider default when non-empty.
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// ChatResponse is the output from a non-streaming chat completion.
type ChatResponse struct {
	Content    string // The assistant message text, trimmed.
	StopReason string // "stop" | "length" | "blacklist" | ...
	Tokens     int    // Total tokens consumed (prompt + completion).
}

// ModelMeta describes the model / provider identity.
type ModelMeta struct {
	ID        string // e.g. "GigaChat", "llama3.2:3b"
	Provider  string // e.g. "gigachat", "ollama"
	Version   string
	MaxTokens int // Maximum context window size.
}

// StatusError is returned when a provider answers with a non-success HTTP status.
type StatusError struct {
	Provider string
	Op       string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Provider, e.Op, e.Code)
}
