package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes environment overrides, e.g. PERSONA_SERVER__PORT.
const EnvPrefix = "PERSONA_"

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
	Providers    []ProviderConfig   `koanf:"providers"`
	Chain        ChainConfig        `koanf:"chain"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Sessions     SessionsConfig     `koanf:"sessions"`
	Storage      StorageConfig      `koanf:"storage"`
	Events       EventsConfig       `koanf:"events"`
	Telemetry    TelemetryConfig    `koanf:"telemetry"`
	Metrics      MetricsConfig      `koanf:"metrics"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// OperatorToken guards /v1/stats and /metrics when set.
	OperatorToken string `koanf:"operator_token"`
}

type LoggingConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// SlogLevel maps Level onto slog. Unknown values log at info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ProviderConfig describes one generative backend.
type ProviderConfig struct {
	Name            string        `koanf:"name"`
	Type            string        `koanf:"type"` // openai, anthropic, mock
	Enabled         *bool         `koanf:"enabled"`
	APIKey          string        `koanf:"api_key"`
	BaseURL         string        `koanf:"base_url"`
	Model           string        `koanf:"model"`
	Timeout         time.Duration `koanf:"timeout"`
	MaxTokens       int           `koanf:"max_tokens"`
	InputCostPer1K  float64       `koanf:"input_cost_per_1k"`
	OutputCostPer1K float64       `koanf:"output_cost_per_1k"`

	// Failure injection for the mock provider.
	FailOperations []string `koanf:"fail_operations"`
	Unhealthy      bool     `koanf:"unhealthy"`
}

// IsEnabled reports whether the provider takes part in the chain. Providers
// are enabled unless explicitly disabled.
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

type ChainConfig struct {
	// Order lists provider names, primary first. Empty means declaration order.
	Order []string `koanf:"order"`
}

type OrchestratorConfig struct {
	RemapAxisNames bool `koanf:"remap_axis_names"`
}

type SessionsConfig struct {
	Retention     time.Duration `koanf:"retention"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // none, sqlite
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type EventsConfig struct {
	Type string     `koanf:"type"` // none, direct, nats
	NATS NATSConfig `koanf:"nats"`
}

type NATSConfig struct {
	URL           string `koanf:"url"`
	Token         string `koanf:"token"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

type TelemetryConfig struct {
	Tracing     bool   `koanf:"tracing"`
	ServiceName string `koanf:"service_name"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the config file at path (optional) and applies PERSONA_
// environment overrides on top.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Providers {
		cfg.Providers[i].APIKey = substituteEnvVars(cfg.Providers[i].APIKey)
		cfg.Providers[i].BaseURL = substituteEnvVars(cfg.Providers[i].BaseURL)
	}
	cfg.Events.NATS.Token = substituteEnvVars(cfg.Events.NATS.Token)
	cfg.Server.OperatorToken = substituteEnvVars(cfg.Server.OperatorToken)

	if len(cfg.Providers) == 0 {
		cfg.Providers = []ProviderConfig{{Name: "static-mock", Type: "mock"}}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":                8080,
		"server.request_timeout":     "60s",
		"logging.level":              "info",
		"sessions.retention":         "1h",
		"sessions.sweep_interval":    "5m",
		"storage.type":               "none",
		"storage.sqlite.path":        "persona-audit.db",
		"events.type":                "none",
		"events.nats.url":            "nats://127.0.0.1:4222",
		"events.nats.subject_prefix": "persona",
		"telemetry.service_name":     "polyglot-persona",
	}
	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}
}

// Validate checks cross-references between sections.
func (c *Config) Validate() error {
	names := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider name cannot be empty")
		}
		if p.Type == "" {
			return fmt.Errorf("provider %s: type cannot be empty", p.Name)
		}
		if names[p.Name] {
			return fmt.Errorf("provider %s defined twice", p.Name)
		}
		if p.Timeout < 0 {
			return fmt.Errorf("provider %s: negative timeout", p.Name)
		}
		names[p.Name] = true
	}
	for _, name := range c.Chain.Order {
		if !names[name] {
			return fmt.Errorf("chain references unknown provider %q", name)
		}
	}

	switch c.Storage.Type {
	case "", "none", "sqlite":
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	switch c.Events.Type {
	case "", "none", "direct", "nats":
	default:
		return fmt.Errorf("unsupported events type %q", c.Events.Type)
	}
	if c.Events.Type == "direct" && c.Storage.Type != "sqlite" {
		return fmt.Errorf("events type direct requires storage type sqlite")
	}
	return nil
}

// ChainProviders returns the enabled providers in chain order without
// duplicates. Without an explicit order, declaration order is used.
func (c *Config) ChainProviders() []ProviderConfig {
	byName := make(map[string]ProviderConfig, len(c.Providers))
	for _, p := range c.Providers {
		byName[p.Name] = p
	}

	order := c.Chain.Order
	if len(order) == 0 {
		order = make([]string, 0, len(c.Providers))
		for _, p := range c.Providers {
			order = append(order, p.Name)
		}
	}

	seen := make(map[string]bool, len(order))
	out := make([]ProviderConfig, 0, len(order))
	for _, name := range order {
		p, ok := byName[name]
		if !ok || seen[name] || !p.IsEnabled() {
			continue
		}
		seen[name] = true
		out = append(out, p)
	}
	return out
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
