package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/config"
)

// Supported chat providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// NewClientForProvider creates the chat client selected by the AI
// configuration. OpenAI and Google share the OpenAI-compatible client and
// differ only in endpoint; Anthropic uses its native Messages API.
func NewClientForProvider(cfg *config.AIConfig, logger *zap.Logger) (LLMClient, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		endpoint := cfg.BaseURL
		if endpoint == "" {
			endpoint = OpenAIEndpoint
		}
		return NewClient(&Config{
			Endpoint:  endpoint,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			MaxTokens: cfg.MaxTokens,
		}, logger)

	case ProviderGoogle:
		endpoint := cfg.BaseURL
		if endpoint == "" {
			endpoint = GoogleEndpoint
		}
		return NewClient(&Config{
			Endpoint:  endpoint,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			MaxTokens: cfg.MaxTokens,
		}, logger)

	case ProviderAnthropic:
		return NewAnthropicClient(&Config{
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			MaxTokens: cfg.MaxTokens,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownProvider, cfg.Provider)
	}
}

// NewEmbeddingClient creates the client used for embeddings. Anthropic has
// no embedding API, so embeddings always go through an OpenAI-compatible
// endpoint: BaseURL when set, otherwise the endpoint matching the provider.
func NewEmbeddingClient(cfg *config.AIConfig, logger *zap.Logger) (LLMClient, error) {
	endpoint := cfg.BaseURL
	if endpoint == "" {
		switch cfg.Provider {
		case ProviderGoogle:
			endpoint = GoogleEndpoint
		default:
			endpoint = OpenAIEndpoint
		}
	}

	return NewClient(&Config{
		Endpoint:  endpoint,
		Model:     cfg.EmbeddingModel,
		APIKey:    cfg.APIKey,
		MaxTokens: cfg.MaxTokens,
	}, logger)
}
