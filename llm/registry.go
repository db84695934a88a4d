package llm

import (
	"fmt"
	"os"
	"strings"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	// ProviderNone disables the completion service entirely.
	ProviderNone = "none"
)

// Default models used when the configuration does not name one.
const (
	DefaultAnthropicModel = "claude-haiku-4-5"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultOllamaModel    = "llama3.2:3b"
	DefaultOllamaHost     = "http://localhost:11434"
)

// ClientKey uniquely identifies an LLM client configuration.
type ClientKey struct {
	Provider     string
	Model        string
	APIKey       string // For credential-based providers
	Host         string // For Ollama
	BaseURL      string // For OpenAI
	Organization string // For OpenAI
}

// ProviderConfig holds the configuration needed for provider registry.
// This avoids import cycles by not importing the config package.
type ProviderConfig struct {
	AnthropicAPIKey string
	OllamaHost      string
	OllamaModel     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	OpenAIOrg       string
}

// ProviderRegistry decides whether the configured provider is usable and
// resolves the settings needed to build its client.
type ProviderRegistry struct {
	config *ProviderConfig
}

// NewProviderRegistry creates a new ProviderRegistry with the given config.
func NewProviderRegistry(providerConfig *ProviderConfig) *ProviderRegistry {
	if providerConfig == nil {
		providerConfig = &ProviderConfig{}
	}
	return &ProviderRegistry{config: providerConfig}
}

// IsProviderConfigured checks if a provider has the required configuration (API keys, hosts, etc.).
// This is the "credentials present" flag: an unconfigured provider means the
// caller runs in fallback-only mode.
func (r *ProviderRegistry) IsProviderConfigured(provider string) bool {
	switch normalizeProvider(provider) {
	case ProviderAnthropic:
		return r.anthropicAPIKey() != ""
	case ProviderOllama:
		// Ollama doesn't require API key, just needs host (which has a default)
		return true
	case ProviderOpenAI:
		return r.openAIAPIKey() != ""
	default:
		return false
	}
}

// Resolve resolves provider-specific configuration and returns a ClientKey.
// modelOverride wins over the provider's configured default model.
func (r *ProviderRegistry) Resolve(provider, modelOverride string) (*ClientKey, error) {
	provider = normalizeProvider(provider)
	key := &ClientKey{
		Provider: provider,
		Model:    modelOverride,
	}

	switch provider {
	case ProviderAnthropic:
		key.APIKey = r.anthropicAPIKey()
		if key.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured")
		}
		if key.Model == "" {
			key.Model = DefaultAnthropicModel
		}

	case ProviderOllama:
		host := r.config.OllamaHost
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		if host == "" {
			host = DefaultOllamaHost
		}
		key.Host = host

		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.OllamaModel, os.Getenv("OLLAMA_MODEL"), DefaultOllamaModel)
		}

	case ProviderOpenAI:
		key.APIKey = r.openAIAPIKey()
		if key.APIKey == "" {
			return nil, fmt.Errorf("openai API key not configured")
		}
		key.BaseURL = firstNonEmpty(r.config.OpenAIBaseURL, os.Getenv("OPENAI_BASE_URL"))
		key.Organization = firstNonEmpty(r.config.OpenAIOrg, os.Getenv("OPENAI_ORG_ID"))
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.OpenAIModel, os.Getenv("OPENAI_MODEL"), DefaultOpenAIModel)
		}

	case ProviderNone, "":
		return nil, fmt.Errorf("completion provider disabled")

	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return key, nil
}

func (r *ProviderRegistry) anthropicAPIKey() string {
	return firstNonEmpty(r.config.AnthropicAPIKey, os.Getenv("ANTHROPIC_API_KEY"))
}

func (r *ProviderRegistry) openAIAPIKey() string {
	return firstNonEmpty(r.config.OpenAIAPIKey, os.Getenv("OPENAI_API_KEY"))
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
