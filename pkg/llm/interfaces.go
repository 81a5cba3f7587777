// Package llm provides chat and embedding clients for the configured
// provider. OpenAI and Google requests go through the OpenAI-compatible
// client; Anthropic has a native client. Embeddings always use the
// OpenAI-compatible endpoint.
package llm

import (
	"context"
)

// GenerateResult is a completed chat response with usage stats.
type GenerateResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMClient defines the interface for LLM operations.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// GenerateResponse generates a chat completion response.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResult, error)

	// CreateEmbedding generates an embedding vector for the input text.
	// Providers without an embedding API return a non-retryable error.
	CreateEmbedding(ctx context.Context, input string, model string) ([]float32, error)

	// CreateEmbeddings generates embeddings for multiple inputs.
	CreateEmbeddings(ctx context.Context, inputs []string, model string) ([][]float32, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}
