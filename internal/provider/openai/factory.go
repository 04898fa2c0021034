package openai

import (
	"fmt"

	"github.com/tjfontaine/polyglot-persona/internal/config"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
	"github.com/tjfontaine/polyglot-persona/internal/provider/registry"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "openai"

// RegisterProviderFactory registers the OpenAI provider factory.
func RegisterProviderFactory() {
	registry.RegisterFactory(registry.ProviderFactory{
		Type:           ProviderType,
		Description:    "OpenAI Responses API with structured output",
		Create:         CreateFromConfig,
		ValidateConfig: ValidateConfig,
	})
}

// CreateFromConfig creates a new OpenAI provider from configuration.
func CreateFromConfig(cfg config.ProviderConfig) (provider.Provider, error) {
	opts := []ProviderOption{
		WithModel(cfg.Model),
		WithMaxTokens(cfg.MaxTokens),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return New(cfg.Name, cfg.APIKey, opts...), nil
}

// ValidateConfig validates the provider configuration.
func ValidateConfig(cfg config.ProviderConfig) error {
	// Compatible local servers may not need a key, but they need a base URL.
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return fmt.Errorf("openai provider %s: api_key or base_url is required", cfg.Name)
	}
	return nil
}
