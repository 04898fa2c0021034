package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != 8080 {
			t.Errorf("port = %v, want 8080", cfg.Server.Port)
		}
		if cfg.Sessions.Retention != time.Hour {
			t.Errorf("retention = %v, want 1h", cfg.Sessions.Retention)
		}
		if len(cfg.Providers) != 1 || cfg.Providers[0].Type != "mock" {
			t.Errorf("providers = %+v, want single mock", cfg.Providers)
		}
	})

	t.Run("env var port override", func(t *testing.T) {
		t.Setenv("PERSONA_SERVER__PORT", "9000")

		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != 9000 {
			t.Errorf("port = %v, want 9000", cfg.Server.Port)
		}
	})

	t.Run("file with providers", func(t *testing.T) {
		t.Setenv("TEST_PERSONA_KEY", "sk-test")
		path := writeConfig(t, `
server:
  port: 8181
providers:
  - name: primary
    type: openai
    api_key: ${TEST_PERSONA_KEY}
    model: gpt-4o-mini
    timeout: 15s
    input_cost_per_1k: 0.15
  - name: secondary
    type: anthropic
    enabled: false
  - name: static-mock
    type: mock
chain:
  order: [primary, secondary, static-mock]
orchestrator:
  remap_axis_names: true
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != 8181 {
			t.Errorf("port = %d", cfg.Server.Port)
		}
		p := cfg.Providers[0]
		if p.APIKey != "sk-test" {
			t.Errorf("api key = %q, want substituted value", p.APIKey)
		}
		if p.Timeout != 15*time.Second {
			t.Errorf("timeout = %v", p.Timeout)
		}
		if p.InputCostPer1K != 0.15 {
			t.Errorf("input cost = %v", p.InputCostPer1K)
		}
		if !cfg.Orchestrator.RemapAxisNames {
			t.Error("remap_axis_names not loaded")
		}

		chain := cfg.ChainProviders()
		if len(chain) != 2 || chain[0].Name != "primary" || chain[1].Name != "static-mock" {
			t.Errorf("ChainProviders() = %+v", chain)
		}
	})

	t.Run("unknown chain provider", func(t *testing.T) {
		path := writeConfig(t, `
providers:
  - name: primary
    type: mock
chain:
  order: [primary, ghost]
`)
		if _, err := Load(path); err == nil {
			t.Fatal("expected error for unknown chain provider")
		}
	})
}

func TestConfig_ChainProviders(t *testing.T) {
	off := false
	cfg := &Config{
		Providers: []ProviderConfig{
			{Name: "a", Type: "mock"},
			{Name: "b", Type: "mock", Enabled: &off},
			{Name: "c", Type: "mock"},
		},
	}

	tests := []struct {
		name  string
		order []string
		want  []string
	}{
		{name: "declaration order", want: []string{"a", "c"}},
		{name: "explicit order", order: []string{"c", "a"}, want: []string{"c", "a"}},
		{name: "duplicates removed", order: []string{"a", "c", "a"}, want: []string{"a", "c"}},
		{name: "disabled filtered", order: []string{"b", "c"}, want: []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.Chain.Order = tt.order
			got := cfg.ChainProviders()
			if len(got) != len(tt.want) {
				t.Fatalf("ChainProviders() = %+v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].Name != tt.want[i] {
					t.Errorf("[%d] = %s, want %s", i, got[i].Name, tt.want[i])
				}
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "ok", cfg: Config{Providers: []ProviderConfig{{Name: "a", Type: "mock"}}}},
		{name: "missing type", cfg: Config{Providers: []ProviderConfig{{Name: "a"}}}, wantErr: true},
		{name: "duplicate name", cfg: Config{Providers: []ProviderConfig{{Name: "a", Type: "mock"}, {Name: "a", Type: "mock"}}}, wantErr: true},
		{name: "bad storage", cfg: Config{Storage: StorageConfig{Type: "postgres"}}, wantErr: true},
		{name: "direct events need sqlite", cfg: Config{Events: EventsConfig{Type: "direct"}, Storage: StorageConfig{Type: "none"}}, wantErr: true},
		{name: "direct events with sqlite", cfg: Config{Events: EventsConfig{Type: "direct"}, Storage: StorageConfig{Type: "sqlite"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple substitution", input: "${TEST_VAR}", want: "test-value"},
		{name: "embedded", input: "Bearer ${TEST_VAR}!", want: "Bearer test-value!"},
		{name: "missing var", input: "${NOT_SET_PERSONA_VAR}", want: ""},
		{name: "no vars", input: "plain", want: "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := substituteEnvVars(tt.input); got != tt.want {
				t.Errorf("substituteEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoggingConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := (LoggingConfig{Level: tt.level}).SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}
