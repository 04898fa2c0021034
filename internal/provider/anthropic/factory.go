package anthropic

import (
	"fmt"

	"github.com/tjfontaine/polyglot-persona/internal/config"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
	"github.com/tjfontaine/polyglot-persona/internal/provider/registry"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "anthropic"

// RegisterProviderFactory registers the Anthropic provider factory.
func RegisterProviderFactory() {
	registry.RegisterFactory(registry.ProviderFactory{
		Type:           ProviderType,
		Description:    "Anthropic Messages API (Claude models)",
		Create:         CreateFromConfig,
		ValidateConfig: ValidateConfig,
	})
}

// CreateFromConfig creates a new Anthropic provider from configuration.
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
	if cfg.APIKey == "" {
		return fmt.Errorf("anthropic provider %s: api_key is required", cfg.Name)
	}
	return nil
}
