package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/aschepis/backscratcher/gaps/gap"
	"github.com/aschepis/backscratcher/gaps/llm"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig selects the datastore.
type DatabaseConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite3" or "postgres"
	DSN    string `yaml:"dsn,omitempty"`    // File path for sqlite3, connection string for postgres
}

// LLMConfig selects the completion provider and its request budget.
type LLMConfig struct {
	Provider          string   `yaml:"provider,omitempty"` // "anthropic", "openai", "ollama", or "none"
	Model             string   `yaml:"model,omitempty"`    // Optional: uses provider default if omitted
	Temperature       *float64 `yaml:"temperature,omitempty"`
	QuestionMaxTokens int64    `yaml:"question_max_tokens,omitempty"`
	AnalysisMaxTokens int64    `yaml:"analysis_max_tokens,omitempty"`
}

// AnthropicConfig represents configuration for Anthropic LLM provider.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key,omitempty"` // Anthropic API key
}

// OllamaConfig represents configuration for Ollama LLM provider.
type OllamaConfig struct {
	Host  string `yaml:"host,omitempty"`  // Ollama host (default: "http://localhost:11434")
	Model string `yaml:"model,omitempty"` // Default model name
}

// OpenAIConfig represents configuration for OpenAI LLM provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`      // OpenAI API key
	BaseURL      string `yaml:"base_url,omitempty"`     // Custom base URL (default: official API)
	Model        string `yaml:"model,omitempty"`        // Default model name
	Organization string `yaml:"organization,omitempty"` // Organization ID
}

// SweepConfig drives the scheduled sweep over a fixed set of users.
type SweepConfig struct {
	Schedule string   `yaml:"schedule,omitempty"` // e.g. "@daily", "0 9 * * *", "@every 6h"
	Users    []string `yaml:"users,omitempty"`
	Mode     string   `yaml:"mode,omitempty"`   // "question" or "analysis"
	Record   bool     `yaml:"record,omitempty"` // Store produced questions as sent
}

// Config is the complete gaps configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database,omitempty"`
	LLM       LLMConfig       `yaml:"llm,omitempty"`
	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`
	Limits    gap.Limits      `yaml:"limits,omitempty"`
	Sweep     SweepConfig     `yaml:"sweep,omitempty"`
}

// Sweep modes.
const (
	SweepModeQuestion = "question"
	SweepModeAnalysis = "analysis"
)

// GetConfigPath returns the default config file path.
// Can be overridden via GAPS_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("GAPS_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.gaps/config.yaml"
	}
	return filepath.Join(homeDir, ".gaps", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Defaults returns the configuration used when no file overrides it.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "~/.gaps/gaps.db",
		},
		LLM: LLMConfig{
			Provider:          llm.ProviderAnthropic,
			QuestionMaxTokens: gap.DefaultQuestionMaxTokens,
			AnalysisMaxTokens: gap.DefaultAnalysisMaxTokens,
		},
		Ollama: OllamaConfig{
			Host:  llm.DefaultOllamaHost,
			Model: llm.DefaultOllamaModel,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   llm.DefaultOpenAIModel,
		},
		Limits: gap.DefaultLimits(),
		Sweep: SweepConfig{
			Schedule: "@daily",
			Mode:     SweepModeQuestion,
		},
	}
}

// Load reads the config file at path and merges it onto the defaults.
// A missing file is not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		data, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", expandedPath, err)
		}

		if err := mergo.Merge(&cfg, fileConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Database.Driver == "sqlite3" {
		cfg.Database.DSN = expandPath(cfg.Database.DSN)
	}
	cfg.Limits = cfg.Limits.WithDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch strings.ToLower(c.LLM.Provider) {
	case llm.ProviderAnthropic, llm.ProviderOpenAI, llm.ProviderOllama, llm.ProviderNone:
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	switch c.Sweep.Mode {
	case SweepModeQuestion, SweepModeAnalysis:
	default:
		return fmt.Errorf("unsupported sweep mode %q", c.Sweep.Mode)
	}
	return nil
}

// Save writes the configuration to the specified path.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	// Ensure directory exists
	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ProviderConfig collects provider settings, environment overrides applied,
// for the LLM provider registry.
func (c *Config) ProviderConfig() *llm.ProviderConfig {
	ollamaHost, ollamaModel := LoadOllamaConfig(c)
	openAIKey, openAIBaseURL, openAIModel, openAIOrg := LoadOpenAIConfig(c)
	return &llm.ProviderConfig{
		AnthropicAPIKey: LoadAnthropicConfig(c),
		OllamaHost:      ollamaHost,
		OllamaModel:     ollamaModel,
		OpenAIAPIKey:    openAIKey,
		OpenAIBaseURL:   openAIBaseURL,
		OpenAIModel:     openAIModel,
		OpenAIOrg:       openAIOrg,
	}
}

// ServiceOptions maps the llm and limits sections onto gap.Options.
func (c *Config) ServiceOptions() gap.Options {
	return gap.Options{
		Model:             c.LLM.Model,
		Temperature:       c.LLM.Temperature,
		QuestionMaxTokens: c.LLM.QuestionMaxTokens,
		AnalysisMaxTokens: c.LLM.AnalysisMaxTokens,
		Limits:            c.Limits,
	}
}
