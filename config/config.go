// Package config loads daemon configuration from YAML, layering a user
// config file over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// AnthropicConfig represents configuration for the Anthropic provider.
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`  // Anthropic API key
	BaseURL string `yaml:"base_url,omitempty"` // Custom base URL (default: official API)
	Timeout int    `yaml:"timeout,omitempty"`  // Request timeout in seconds
}

// OpenAIConfig represents configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`      // OpenAI API key
	BaseURL      string `yaml:"base_url,omitempty"`     // Custom base URL (default: official API)
	Organization string `yaml:"organization,omitempty"` // Organization ID
	Timeout      int    `yaml:"timeout,omitempty"`      // Request timeout in seconds
}

// GatewayConfig controls retry behavior for non-streaming calls.
type GatewayConfig struct {
	MaxRetries        int     `yaml:"max_retries,omitempty"`        // Retries after the initial attempt
	BackoffBaseMs     int     `yaml:"backoff_base_ms,omitempty"`    // First backoff interval in milliseconds
	BackoffMultiplier float64 `yaml:"backoff_multiplier,omitempty"` // Growth factor per retry
}

// HealthConfig controls periodic provider health sweeps.
type HealthConfig struct {
	Disabled bool   `yaml:"disabled,omitempty"` // Disable health sweeps (enabled by default)
	Schedule string `yaml:"schedule,omitempty"` // Cron expression (default: every 5 minutes)
	Timeout  int    `yaml:"timeout,omitempty"`  // Per-probe timeout in seconds
}

// CallLogConfig controls call log persistence.
type CallLogConfig struct {
	Disabled bool   `yaml:"disabled,omitempty"` // Disable call logging (enabled by default)
	Path     string `yaml:"path,omitempty"`     // SQLite database path
}

// Config is the daemon configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Health    HealthConfig    `yaml:"health,omitempty"`
	CallLog   CallLogConfig   `yaml:"call_log,omitempty"`
}

// DefaultPath returns the default config file path.
// Can be overridden via LLMGW_CONFIG_PATH environment variable.
func DefaultPath() string {
	if envPath := os.Getenv("LLMGW_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.llmgw/config.yaml"
	}
	return filepath.Join(homeDir, ".llmgw", "config.yaml")
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

// Load reads configuration from path, merging it over defaults.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	defaults := Config{
		Anthropic: AnthropicConfig{
			BaseURL: "https://api.anthropic.com",
			Timeout: 120,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com",
			Timeout: 120,
		},
		Gateway: GatewayConfig{
			MaxRetries:        3,
			BackoffBaseMs:     1000,
			BackoffMultiplier: 2.0,
		},
		Health: HealthConfig{
			Schedule: "*/5 * * * *",
			Timeout:  10,
		},
		CallLog: CallLogConfig{
			Path: "./.llmgw/calls.db",
		},
	}

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err != nil {
		// File doesn't exist, return defaults
		return &defaults, nil
	}

	configYAML, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
	}

	var loaded Config
	if err := yaml.Unmarshal(configYAML, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := mergo.Merge(&defaults, loaded, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	return &defaults, nil
}

// Save writes the configuration to path, creating directories as needed.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

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
