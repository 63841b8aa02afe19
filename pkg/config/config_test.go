package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "gemini" {
		t.Errorf("expected default provider gemini, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gemini-2.0-flash-lite" {
		t.Errorf("expected default model gemini-2.0-flash-lite, got %s", cfg.LLM.Model)
	}
	if cfg.Ledger.Path != "workspace/shared/ledger.json" {
		t.Errorf("unexpected default ledger path %s", cfg.Ledger.Path)
	}
	if cfg.Ledger.PollInterval != 2*time.Second {
		t.Errorf("expected 2s poll interval, got %v", cfg.Ledger.PollInterval)
	}
	if !cfg.Features.LockApproval {
		t.Errorf("expected lock approval feature on by default")
	}
}

func TestLoadEnv(t *testing.T) {
	os.Setenv("CREWFORGE_LLM_PROVIDER", "mock")
	defer os.Unsetenv("CREWFORGE_LLM_PROVIDER")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "mock" {
		t.Errorf("expected provider mock from env, got %s", cfg.LLM.Provider)
	}
}

func TestLoadEnvUnderscoreKeys(t *testing.T) {
	os.Setenv("CREWFORGE_LLM_API_KEY", "test-key")
	defer os.Unsetenv("CREWFORGE_LLM_API_KEY")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Errorf("expected api key from env, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadGeminiKeyFallback(t *testing.T) {
	os.Unsetenv("CREWFORGE_LLM_API_KEY")
	os.Setenv("GEMINI_API_KEY", "fallback-key")
	defer os.Unsetenv("GEMINI_API_KEY")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "fallback-key" {
		t.Errorf("expected GEMINI_API_KEY fallback, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()

	conf := `
llm:
  provider: "mock"
  temperature: 0.2
ledger:
  lock_ttl: "30s"
workspace:
  project_title: "Cookie Empire"
features:
  lock_approval: false
`
	path := filepath.Join(tmpDir, "crewforge.yaml")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "mock" {
		t.Errorf("expected provider mock, got %s", cfg.LLM.Provider)
	}
	if cfg.Ledger.LockTTL != 30*time.Second {
		t.Errorf("expected 30s lock ttl, got %v", cfg.Ledger.LockTTL)
	}
	if cfg.Workspace.ProjectTitle != "Cookie Empire" {
		t.Errorf("unexpected project title %s", cfg.Workspace.ProjectTitle)
	}
	if cfg.Features.LockApproval {
		t.Errorf("expected lock approval disabled by file")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	conf := `
ledger:
  poll_interval: "-2s"
`
	path := filepath.Join(t.TempDir(), "crewforge.yaml")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative poll interval")
	}
}

func TestValidate(t *testing.T) {
	valid, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		wreck func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "oracle" }},
		{"temperature out of range", func(c *Config) { c.LLM.Temperature = 3 }},
		{"empty workspace", func(c *Config) { c.Workspace.Root = "" }},
		{"empty ledger path", func(c *Config) { c.Ledger.Path = "" }},
		{"zero lock ttl", func(c *Config) { c.Ledger.LockTTL = 0 }},
		{"zero refresh", func(c *Config) { c.Dashboard.Refresh = 0 }},
		{"archive without path", func(c *Config) { c.Archive.Enabled = true; c.Archive.Path = "" }},
		{"otlp without endpoint", func(c *Config) { c.Telemetry.Exporter = "otlp"; c.Telemetry.OTLPEndpoint = "" }},
		{"unknown exporter", func(c *Config) { c.Telemetry.Exporter = "jaeger" }},
	}
	for _, tt := range tests {
		cfg := *valid
		tt.wreck(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate() accepted a broken config", tt.name)
		}
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() rejected the defaults: %v", err)
	}
	none := *valid
	none.Telemetry.Exporter = "none"
	if err := none.Validate(); err != nil {
		t.Errorf("Validate() rejected the none exporter: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
