// Package runtime assembles the service from configuration and manages its
// lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tjfontaine/polyglot-persona/internal/audit/sqlite"
	"github.com/tjfontaine/polyglot-persona/internal/config"
	"github.com/tjfontaine/polyglot-persona/internal/config/watch"
	"github.com/tjfontaine/polyglot-persona/internal/events"
	"github.com/tjfontaine/polyglot-persona/internal/events/direct"
	natspub "github.com/tjfontaine/polyglot-persona/internal/events/nats"
	"github.com/tjfontaine/polyglot-persona/internal/fallback"
	"github.com/tjfontaine/polyglot-persona/internal/flow"
	"github.com/tjfontaine/polyglot-persona/internal/metrics"
	"github.com/tjfontaine/polyglot-persona/internal/orchestrator"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
	"github.com/tjfontaine/polyglot-persona/internal/provider/registry"
	"github.com/tjfontaine/polyglot-persona/internal/result"
	"github.com/tjfontaine/polyglot-persona/internal/server"
	"github.com/tjfontaine/polyglot-persona/internal/session"
	"github.com/tjfontaine/polyglot-persona/internal/telemetry"
)

// App owns every long-lived component of the service. Nothing is held in
// package-level state except the provider factory table.
type App struct {
	// Injected or built from config.
	cfg        *config.Config
	configPath string
	watcher    *watch.Watcher
	logger     *slog.Logger
	providers  []provider.Provider
	publisher  events.Publisher
	audit      *sqlite.Store
	metrics    *metrics.Metrics

	// Built by Start.
	store          *session.Store
	orch           *orchestrator.Orchestrator
	service        *flow.Service
	server         *server.Server
	shutdownTracer telemetry.ShutdownFunc
	ownsPublisher  bool
	ownsAudit      bool
	serveErr       chan error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New creates an App. Either WithConfig or WithConfigFile is required.
func New(opts ...Option) (*App, error) {
	a := &App{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if a.configPath != "" {
		w, err := watch.New(a.configPath, a.logger)
		if err != nil {
			return nil, fmt.Errorf("create config watcher: %w", err)
		}
		a.watcher = w
	}
	if a.cfg == nil && a.watcher == nil {
		return nil, fmt.Errorf("config required (use WithConfig or WithConfigFile)")
	}
	return a, nil
}

// Start builds the components and starts serving HTTP in the background.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ctx, a.cancel = context.WithCancel(ctx)

	if a.watcher != nil {
		cfg, err := a.watcher.Load(a.ctx)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	cfg := a.cfg

	shutdown, err := telemetry.Init(cfg.Telemetry, a.logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.shutdownTracer = shutdown

	if a.metrics == nil && cfg.Metrics.Enabled {
		a.metrics = metrics.New()
	}
	if err := a.initAudit(cfg); err != nil {
		return err
	}
	if err := a.initPublisher(cfg); err != nil {
		return err
	}

	chain, err := a.buildChain(cfg)
	if err != nil {
		return fmt.Errorf("build provider chain: %w", err)
	}

	a.orch = orchestrator.New(chain,
		orchestrator.WithLogger(a.logger),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithAxisRemap(cfg.Orchestrator.RemapAxisNames))

	a.store = session.NewStore()
	assets := fallback.New()
	results := result.New(a.store, a.orch, assets,
		result.WithPublisher(a.publisher),
		result.WithMetrics(a.metrics),
		result.WithLogger(a.logger))
	a.service = flow.New(a.store, a.orch, results, assets,
		flow.WithPublisher(a.publisher),
		flow.WithMetrics(a.metrics),
		flow.WithLogger(a.logger))

	srvOpts := []server.Option{
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
		server.WithOperatorToken(cfg.Server.OperatorToken),
	}
	if a.metrics != nil {
		srvOpts = append(srvOpts, server.WithMetricsHandler(a.metrics.Handler()))
	}
	a.server = server.New(cfg.Server.Port, a.logger, srvOpts...)
	a.server.Mount(server.NewHandlers(a.service, a.logger))

	sweeper := session.NewSweeper(a.store, cfg.Sessions.Retention, cfg.Sessions.SweepInterval, a.logger).
		Observe(a.metrics.SetLiveSessions)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sweeper.Run(a.ctx)
	}()

	if a.watcher != nil {
		if err := a.watcher.Watch(a.ctx, a.reload); err != nil {
			a.logger.Warn("config hot reload disabled", slog.String("error", err.Error()))
		}
	}

	a.serveErr = make(chan error, 1)
	go func() {
		a.serveErr <- a.server.Start()
	}()

	a.logger.Info("persona service started",
		slog.Int("port", cfg.Server.Port),
		slog.Any("providers", chain.Names()),
		slog.String("events", cfg.Events.Type),
		slog.String("storage", cfg.Storage.Type))
	return nil
}

// Handler returns the HTTP handler. Only valid after Start.
func (a *App) Handler() http.Handler {
	return a.server.Router
}

// Service returns the session service. Only valid after Start.
func (a *App) Service() *flow.Service {
	return a.service
}

// Err reports a failure of the HTTP listener.
func (a *App) Err() <-chan error {
	return a.serveErr
}

// Shutdown stops the components in reverse start order.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.logger.Info("shutting down persona service")

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
		}
	}

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close config watcher: %w", err))
		}
	}
	if a.publisher != nil && a.ownsPublisher {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if a.audit != nil && a.ownsAudit {
		if err := a.audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audit store: %w", err))
		}
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.Error("shutdown incomplete", slog.String("error", err.Error()))
		return err
	}
	a.logger.Info("persona service shutdown complete")
	return nil
}

// reload swaps the provider chain after a config change. Other sections
// need a restart.
func (a *App) reload(cfg *config.Config) {
	chain, err := a.buildChain(cfg)
	if err != nil {
		a.logger.Error("failed to rebuild provider chain, keeping the current one",
			slog.String("error", err.Error()))
		return
	}
	a.orch.SetChain(chain)
}

func (a *App) buildChain(cfg *config.Config) (*orchestrator.Chain, error) {
	if len(a.providers) > 0 {
		return orchestrator.ProvidersChain(a.providers...), nil
	}
	cfgs := cfg.ChainProviders()
	providers, err := registry.NewRegistry().CreateProviders(cfgs)
	if err != nil {
		return nil, err
	}
	return orchestrator.BuildChain(cfgs, providers)
}

func (a *App) initAudit(cfg *config.Config) error {
	if a.audit != nil || cfg.Storage.Type != "sqlite" {
		return nil
	}
	store, err := sqlite.New(cfg.Storage.SQLite.Path)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	a.audit = store
	a.ownsAudit = true
	return nil
}

func (a *App) initPublisher(cfg *config.Config) error {
	if a.publisher != nil {
		return nil
	}
	switch cfg.Events.Type {
	case "direct":
		if a.audit == nil {
			return fmt.Errorf("events type direct requires an audit store")
		}
		p, err := direct.NewPublisher(a.audit)
		if err != nil {
			return fmt.Errorf("create direct event publisher: %w", err)
		}
		a.publisher = p
	case "nats":
		n := cfg.Events.NATS
		p, err := natspub.Connect(n.URL, n.Token, n.SubjectPrefix, a.logger)
		if err != nil {
			return fmt.Errorf("connect event publisher: %w", err)
		}
		a.publisher = p
	default:
		a.publisher = events.Nop{}
	}
	a.ownsPublisher = true
	return nil
}
