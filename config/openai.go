package config

import "os"

// LoadOpenAIConfig returns the OpenAI settings with OPENAI_API_KEY,
// OPENAI_BASE_URL, OPENAI_MODEL and OPENAI_ORG_ID applied on top of the
// config file.
func LoadOpenAIConfig(cfg *Config) (apiKey, baseURL, model, organization string) {
	var file OpenAIConfig
	if cfg != nil {
		file = cfg.OpenAI
	}
	return envOr("OPENAI_API_KEY", file.APIKey),
		envOr("OPENAI_BASE_URL", file.BaseURL),
		envOr("OPENAI_MODEL", file.Model),
		envOr("OPENAI_ORG_ID", file.Organization)
}

// envOr returns the named environment variable, or fallback when it is unset
// or empty.
func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
