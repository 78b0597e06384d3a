// Package ai talks to the language model providers behind the ask and quiz
// commands. Every client satisfies types.LLMClient; NewClient picks one from
// the configuration.
package ai

import (
	"fmt"
	"time"

	"htbnerd/internal/config"
	"htbnerd/internal/logging"
	"htbnerd/internal/types"
)

// Client is the provider-neutral completion interface.
type Client = types.LLMClient

// Sampling settings shared by all providers.
const (
	Temperature = 0.2
	MaxTokens   = 2048
)

// NewClient builds the client for the configured provider. "auto" is
// resolved through config.ResolveProvider.
func NewClient(cfg *config.Config) (Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	timeout := cfg.GetAITimeout()
	provider := cfg.ResolveProvider()
	logging.AI("selected provider %s (configured %q)", provider, cfg.Provider)

	switch provider {
	case config.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY is not set")
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Timeout: timeout,
		}), nil
	case config.ProviderOllama:
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
			Timeout: timeout,
		}), nil
	case config.ProviderGemini:
		return NewGeminiClient(GeminiConfig{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
			Timeout: timeout,
		})
	case config.ProviderStub:
		return StubClient{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

// retryDelay is the backoff before attempt i (1-based).
var retryDelay = func(i int) time.Duration {
	return time.Duration(1<<uint(i-1)) * time.Second
}
