// Package config loads relaybot configuration from a YAML file with
// environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in LLMConfig.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all relaybot configuration.
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Retry   RetryConfig   `yaml:"retry"`
	Relay   RelayConfig   `yaml:"relay"`
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the completion service client.
type LLMConfig struct {
	Provider        string  `yaml:"provider"` // openai (or any compatible endpoint), gemini
	APIKey          string  `yaml:"api_key"`  // prefer RELAYBOT_API_KEY over storing it here
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Temperature     float64 `yaml:"temperature"`
	Timeout         string  `yaml:"timeout"` // per-attempt timeout, e.g. "10s"
}

// RetryConfig configures the backoff policy.
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelay   string `yaml:"base_delay"`
}

// RelayConfig configures the dispatcher and its collaborators.
type RelayConfig struct {
	GateSize              int    `yaml:"gate_size"`
	HistoryCapacity       int    `yaml:"history_capacity"`
	ChunkLimit            int    `yaml:"chunk_limit"`
	TypingInterval        string `yaml:"typing_interval"`
	SystemPrompt          string `yaml:"system_prompt"`
	ReplayReferencedReply *bool  `yaml:"replay_referenced_reply"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultSystemPrompt is used when the config file does not set one.
const DefaultSystemPrompt = "You are a helpful assistant that can analyze text, images, videos, and GIFs. " +
	"Maintain conversation continuity and context."

// Default returns the built-in configuration.
func Default() *Config {
	replay := true
	return &Config{
		LLM: LLMConfig{
			Provider:        ProviderOpenAI,
			BaseURL:         "https://api.openai.com/v1",
			Model:           "gpt-4o-mini",
			MaxOutputTokens: 500,
			Temperature:     0.7,
			Timeout:         "10s",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   "2s",
		},
		Relay: RelayConfig{
			GateSize:              3,
			HistoryCapacity:       10,
			ChunkLimit:            2000,
			TypingInterval:        "8s",
			SystemPrompt:          DefaultSystemPrompt,
			ReplayReferencedReply: &replay,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, layers it over the defaults, and
// applies environment overrides. A missing file is not an error; defaults
// plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over file values. Environment wins
// so deployments can keep secrets out of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("RELAYBOT_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("RELAYBOT_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("RELAYBOT_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("RELAYBOT_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("RELAYBOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations the relay cannot run with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if _, err := c.AttemptTimeout(); err != nil {
		return fmt.Errorf("invalid llm.timeout: %w", err)
	}
	if _, err := c.RetryBaseDelay(); err != nil {
		return fmt.Errorf("invalid retry.base_delay: %w", err)
	}
	if _, err := c.TypingInterval(); err != nil {
		return fmt.Errorf("invalid relay.typing_interval: %w", err)
	}
	return nil
}

// AttemptTimeout returns the parsed per-attempt timeout.
func (c *Config) AttemptTimeout() (time.Duration, error) {
	return parseDuration(c.LLM.Timeout, 10*time.Second)
}

// RetryBaseDelay returns the parsed backoff base delay.
func (c *Config) RetryBaseDelay() (time.Duration, error) {
	return parseDuration(c.Retry.BaseDelay, 2*time.Second)
}

// TypingInterval returns the parsed liveness signal interval.
func (c *Config) TypingInterval() (time.Duration, error) {
	return parseDuration(c.Relay.TypingInterval, 8*time.Second)
}

// ReplayReferencedReply reports whether a reply-to-assistant turn is replayed
// into the outbound request as an extra assistant turn.
func (c *Config) ReplayReferencedReply() bool {
	if c.Relay.ReplayReferencedReply == nil {
		return true
	}
	return *c.Relay.ReplayReferencedReply
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
