// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a consistent interface for chat completions.
//
// Virgil speaks a JSON-in-text protocol with the model (decisions and
// memory records are JSON objects embedded in ordinary completions), so
// provider-native tool calling is deliberately absent from this interface.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends a chat completion request.
	Chat(ctx context.Context, messages []ChatMessage) (Response, error)

	// ChatWithFormat sends a chat completion request with a response format.
	// Providers that cannot enforce the format fall back to plain Chat.
	ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (Response, error)

	// StreamChat streams a chat completion, sending chunks to the provided channel.
	// Returns token usage (available in the final chunk when the provider supports it).
	StreamChat(ctx context.Context, messages []ChatMessage, chunks chan<- string) (*TokenUsage, error)
}
