package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Ledger    LedgerConfig    `koanf:"ledger"`
	Workspace WorkspaceConfig `koanf:"workspace"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Archive   ArchiveConfig   `koanf:"archive"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Features  FeatureConfig   `koanf:"features"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider    string  `koanf:"provider"` // gemini, mock
	Model       string  `koanf:"model"`
	APIKey      string  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
}

type LedgerConfig struct {
	Path         string        `koanf:"path"`
	PollInterval time.Duration `koanf:"poll_interval"`
	LockTTL      time.Duration `koanf:"lock_ttl"`
	RequestTTL   time.Duration `koanf:"request_ttl"`
}

type WorkspaceConfig struct {
	Root         string `koanf:"root"`
	ProjectTitle string `koanf:"project_title"`
}

type DashboardConfig struct {
	Refresh time.Duration `koanf:"refresh"`
}

type ArchiveConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp, none
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type FeatureConfig struct {
	// LockApproval routes file lock requests through the lock manager
	// agent. When off, locks are acquired directly, first writer wins.
	LockApproval bool `koanf:"lock_approval"`
}

// Global k instance
var k = koanf.New(".")

func Load(path string) (*Config, error) {
	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("llm.provider", "gemini")
	k.Set("llm.model", "gemini-2.0-flash-lite")
	k.Set("llm.temperature", 0.7)

	k.Set("ledger.path", "workspace/shared/ledger.json")
	k.Set("ledger.poll_interval", "2s")
	k.Set("ledger.lock_ttl", "5m")
	k.Set("ledger.request_ttl", "1m")

	k.Set("workspace.root", "workspace")
	k.Set("workspace.project_title", "Idle Game")

	k.Set("dashboard.refresh", "2s")

	k.Set("archive.enabled", true)
	k.Set("archive.path", "workspace/shared/archive.db")

	k.Set("telemetry.exporter", "stdout")

	k.Set("features.lock_approval", true)

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (CREWFORGE_LLM_API_KEY -> llm.api_key)
	if err := k.Load(env.Provider("CREWFORGE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CREWFORGE_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, err
	}

	// GEMINI_API_KEY is honored for compatibility with the Gemini SDK.
	if k.String("llm.api_key") == "" {
		if key := strings.TrimSpace(envString("GEMINI_API_KEY")); key != "" {
			k.Set("llm.api_key", key)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings no session could run with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "gemini", "mock":
	default:
		return fmt.Errorf("llm.provider must be gemini or mock, got %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2], got %v", c.LLM.Temperature)
	}
	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root must not be empty")
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path must not be empty")
	}
	if c.Ledger.PollInterval <= 0 {
		return fmt.Errorf("ledger.poll_interval must be positive, got %v", c.Ledger.PollInterval)
	}
	if c.Ledger.LockTTL <= 0 || c.Ledger.RequestTTL <= 0 {
		return fmt.Errorf("ledger.lock_ttl and ledger.request_ttl must be positive")
	}
	if c.Dashboard.Refresh <= 0 {
		return fmt.Errorf("dashboard.refresh must be positive, got %v", c.Dashboard.Refresh)
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive.path must not be empty when archive.enabled is true")
	}
	switch c.Telemetry.Exporter {
	case "", "stdout", "none":
	case "otlp":
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("telemetry.exporter must be stdout, otlp, or none, got %q", c.Telemetry.Exporter)
	}
	return nil
}

func envString(key string) string {
	return os.Getenv(key)
}

