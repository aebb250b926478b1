package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gateway.MaxRetries != 3 {
		t.Errorf("Expected default max retries 3, got %d", cfg.Gateway.MaxRetries)
	}
	if cfg.Anthropic.BaseURL != "https://api.anthropic.com" {
		t.Errorf("Unexpected default anthropic base url: %s", cfg.Anthropic.BaseURL)
	}
	if cfg.Health.Schedule != "*/5 * * * *" {
		t.Errorf("Unexpected default health schedule: %s", cfg.Health.Schedule)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
anthropic:
  api_key: sk-test
gateway:
  max_retries: 5
call_log:
  disabled: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-test" {
		t.Errorf("Expected loaded api key, got %q", cfg.Anthropic.APIKey)
	}
	if cfg.Gateway.MaxRetries != 5 {
		t.Errorf("Expected overridden max retries, got %d", cfg.Gateway.MaxRetries)
	}
	if !cfg.CallLog.Disabled {
		t.Error("Expected call log disabled")
	}
	// Untouched sections keep their defaults.
	if cfg.OpenAI.BaseURL != "https://api.openai.com" {
		t.Errorf("Expected default openai base url preserved, got %s", cfg.OpenAI.BaseURL)
	}
	if cfg.Gateway.BackoffMultiplier != 2.0 {
		t.Errorf("Expected default backoff multiplier preserved, got %v", cfg.Gateway.BackoffMultiplier)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("anthropic: [what"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{}
	cfg.OpenAI.APIKey = "sk-round"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.OpenAI.APIKey != "sk-round" {
		t.Errorf("Expected saved key back, got %q", loaded.OpenAI.APIKey)
	}
}
