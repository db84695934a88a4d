package config

// LoadAnthropicConfig returns the Anthropic API key. ANTHROPIC_API_KEY wins
// over the config file.
func LoadAnthropicConfig(cfg *Config) (apiKey string) {
	if cfg == nil {
		return envOr("ANTHROPIC_API_KEY", "")
	}
	return envOr("ANTHROPIC_API_KEY", cfg.Anthropic.APIKey)
}
