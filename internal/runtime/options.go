package runtime

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/polyglot-persona/internal/audit/sqlite"
	"github.com/tjfontaine/polyglot-persona/internal/config"
	"github.com/tjfontaine/polyglot-persona/internal/events"
	"github.com/tjfontaine/polyglot-persona/internal/metrics"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
)

// Option is a functional option for configuring an App.
type Option func(*App) error

// WithConfig uses a fixed configuration. Providers are not reloaded.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) error {
		if cfg == nil {
			return fmt.Errorf("config cannot be nil")
		}
		a.cfg = cfg
		return nil
	}
}

// WithConfigFile loads path now and swaps the provider chain whenever the
// file changes.
func WithConfigFile(path string) Option {
	return func(a *App) error {
		if path == "" {
			return fmt.Errorf("config path cannot be empty")
		}
		a.configPath = path
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithProviders bypasses the factory registry and uses providers as the
// chain, primary first.
func WithProviders(providers ...provider.Provider) Option {
	return func(a *App) error {
		a.providers = providers
		return nil
	}
}

// WithPublisher sets the lifecycle event publisher instead of the one
// selected by events.type.
func WithPublisher(p events.Publisher) Option {
	return func(a *App) error {
		a.publisher = p
		return nil
	}
}

// WithAuditStore sets the audit store instead of opening storage.sqlite.path.
func WithAuditStore(store *sqlite.Store) Option {
	return func(a *App) error {
		a.audit = store
		return nil
	}
}

// WithMetrics sets the metrics instance instead of creating one when
// metrics.enabled is set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) error {
		a.metrics = m
		return nil
	}
}
