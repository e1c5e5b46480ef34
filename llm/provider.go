// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion, including multimodal content
// - Provider-specific error handling
// - Streaming transport details

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a consistent interface for chat completions.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends a chat completion request.
	Chat(ctx context.Context, messages []ChatMessage) (Response, error)

	// StreamChat streams a chat completion, calling onDelta for each text
	// chunk as it arrives. The returned Response holds the accumulated
	// content and the final token usage when the provider reports it.
	StreamChat(ctx context.Context, messages []ChatMessage, onDelta func(string)) (Response, error)
}
