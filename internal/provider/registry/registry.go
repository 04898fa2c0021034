// Package registry maps provider types named in configuration onto the
// factories that build them.
//
// Each backend package exposes a registration function:
//
//	func RegisterProviderFactory() {
//	    registry.RegisterFactory(registry.ProviderFactory{
//	        Type:           ProviderType,
//	        Description:    "Example backend",
//	        Create:         CreateFromConfig,
//	        ValidateConfig: ValidateConfig,
//	    })
//	}
//
// and is called from registration.RegisterBuiltins. Nothing registers from
// init().
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tjfontaine/polyglot-persona/internal/config"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
)

// ProviderFactory defines how to create a provider of a specific type.
type ProviderFactory struct {
	// Type is the value of providers[].type in configuration
	// (e.g., "openai", "anthropic", "mock")
	Type string

	// Description provides a human-readable description of the backend
	Description string

	// Create builds a provider. The registry applies the configured timeout.
	Create func(cfg config.ProviderConfig) (provider.Provider, error)

	// ValidateConfig checks backend-specific settings such as api_key.
	// Optional.
	ValidateConfig func(cfg config.ProviderConfig) error
}

var factories = struct {
	sync.RWMutex
	byType map[string]ProviderFactory
}{byType: make(map[string]ProviderFactory)}

// RegisterFactory adds a factory. It panics on an empty type, a missing
// Create function or a duplicate type, since all three are programming
// errors in the registration wiring.
func RegisterFactory(f ProviderFactory) {
	factories.Lock()
	defer factories.Unlock()

	if f.Type == "" {
		panic("provider factory type cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("provider factory %q must have a Create function", f.Type))
	}
	if _, exists := factories.byType[f.Type]; exists {
		panic(fmt.Sprintf("provider factory %q already registered", f.Type))
	}
	factories.byType[f.Type] = f
}

// GetFactory returns the factory for a provider type, if registered.
func GetFactory(providerType string) (ProviderFactory, bool) {
	factories.RLock()
	defer factories.RUnlock()

	f, ok := factories.byType[providerType]
	return f, ok
}

// ListFactories returns all registered factories sorted by type.
func ListFactories() []ProviderFactory {
	factories.RLock()
	result := make([]ProviderFactory, 0, len(factories.byType))
	for _, f := range factories.byType {
		result = append(result, f)
	}
	factories.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Type < result[j].Type
	})
	return result
}

// ListProviderTypes returns all registered provider type names, sorted.
func ListProviderTypes() []string {
	list := ListFactories()
	types := make([]string, len(list))
	for i, f := range list {
		types[i] = f.Type
	}
	return types
}

// IsRegistered reports whether a provider type is registered.
func IsRegistered(providerType string) bool {
	_, ok := GetFactory(providerType)
	return ok
}

// Validate checks that cfg names a registered type and passes that type's
// own validation.
func Validate(cfg config.ProviderConfig) error {
	f, ok := GetFactory(cfg.Type)
	if !ok {
		return fmt.Errorf("unknown provider type: %s (registered types: %v)", cfg.Type, ListProviderTypes())
	}
	if f.ValidateConfig != nil {
		if err := f.ValidateConfig(cfg); err != nil {
			return fmt.Errorf("invalid configuration for provider type %s: %w", cfg.Type, err)
		}
	}
	return nil
}

// CreateFromFactory validates cfg and builds the bare provider.
func CreateFromFactory(cfg config.ProviderConfig) (provider.Provider, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	f, _ := GetFactory(cfg.Type)
	return f.Create(cfg)
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factories.Lock()
	defer factories.Unlock()
	factories.byType = make(map[string]ProviderFactory)
}

// Registry builds the provider chain members from configuration.
type Registry struct{}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// CreateProvider builds one provider wrapped with its configured timeout.
func (r *Registry) CreateProvider(cfg config.ProviderConfig) (provider.Provider, error) {
	p, err := CreateFromFactory(cfg)
	if err != nil {
		return nil, err
	}
	return provider.NewTimeoutProvider(p, cfg.Timeout), nil
}

// CreateProviders builds providers in chain order. Every config is
// validated before any provider is built, and all validation failures are
// reported together.
func (r *Registry) CreateProviders(configs []config.ProviderConfig) ([]provider.Provider, error) {
	var errs []error
	for _, cfg := range configs {
		if err := Validate(cfg); err != nil {
			errs = append(errs, fmt.Errorf("provider %s: %w", cfg.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	providers := make([]provider.Provider, 0, len(configs))
	for _, cfg := range configs {
		p, err := r.CreateProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", cfg.Name, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}
