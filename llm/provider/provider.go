// Package provider constructs llm.Client implementations from a resolved ClientKey.
// It lives outside package llm so that llm does not import its own subpackages.
package provider

import (
	"fmt"

	"github.com/aschepis/backscratcher/gaps/llm"
	"github.com/aschepis/backscratcher/gaps/llm/anthropic"
	"github.com/aschepis/backscratcher/gaps/llm/ollama"
	"github.com/aschepis/backscratcher/gaps/llm/openai"
	"github.com/rs/zerolog"
)

// New builds the client for key and wraps it with logging middleware.
func New(key *llm.ClientKey, logger zerolog.Logger) (llm.Client, error) {
	if key == nil {
		return nil, fmt.Errorf("client key is required")
	}

	var (
		client llm.Client
		err    error
	)
	switch key.Provider {
	case llm.ProviderAnthropic:
		client, err = anthropic.NewAnthropicClient(key.APIKey, key.Model, logger)
	case llm.ProviderOpenAI:
		client, err = openai.NewOpenAIClient(key.APIKey, key.BaseURL, key.Model, key.Organization)
	case llm.ProviderOllama:
		client, err = ollama.NewOllamaClient(key.Host, key.Model)
	default:
		return nil, fmt.Errorf("unknown provider: %s", key.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", key.Provider, err)
	}

	return llm.WrapWithMiddleware(client, llm.NewLoggingMiddleware(key.Provider, logger)), nil
}

// FromRegistry returns the client for provider when it is configured, or
// (nil, nil) when it is not: a nil client is the fallback-only operating mode.
func FromRegistry(registry *llm.ProviderRegistry, provider, model string, logger zerolog.Logger) (llm.Client, error) {
	if !registry.IsProviderConfigured(provider) {
		logger.Info().Str("provider", provider).Msg("Completion provider not configured; running in fallback-only mode")
		return nil, nil
	}
	key, err := registry.Resolve(provider, model)
	if err != nil {
		return nil, err
	}
	return New(key, logger)
}
