package config

import "github.com/aschepis/backscratcher/gaps/llm"

// LoadOllamaConfig returns the Ollama host and model. OLLAMA_HOST and
// OLLAMA_MODEL win over the config file; the built-in defaults fill gaps.
func LoadOllamaConfig(cfg *Config) (host, model string) {
	var file OllamaConfig
	if cfg != nil {
		file = cfg.Ollama
	}
	host = envOr("OLLAMA_HOST", file.Host)
	model = envOr("OLLAMA_MODEL", file.Model)
	if host == "" {
		host = llm.DefaultOllamaHost
	}
	if model == "" {
		model = llm.DefaultOllamaModel
	}
	return host, model
}
