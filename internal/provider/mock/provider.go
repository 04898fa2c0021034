// Package mock is a static backend serving fallback assets through the
// provider interface, with failure injection for fallback drills.
package mock

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/tjfontaine/polyglot-persona/internal/config"
	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/fallback"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
	"github.com/tjfontaine/polyglot-persona/internal/provider/registry"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "mock"

// Model is reported in usage records.
const Model = "static"

// RegisterProviderFactory registers the mock provider factory.
func RegisterProviderFactory() {
	registry.RegisterFactory(registry.ProviderFactory{
		Type:        ProviderType,
		Description: "Static assets served as a provider (no network)",
		Create:      CreateFromConfig,
	})
}

// CreateFromConfig creates a mock provider from configuration.
func CreateFromConfig(cfg config.ProviderConfig) (provider.Provider, error) {
	opts := []Option{WithFailOperations(cfg.FailOperations...)}
	if cfg.Unhealthy {
		opts = append(opts, WithUnhealthy())
	}
	return New(cfg.Name, opts...), nil
}

// Option configures the provider.
type Option func(*Provider)

// WithFailOperations makes the listed operations fail with Unavailable.
// "all" fails every operation.
func WithFailOperations(ops ...string) Option {
	return func(p *Provider) {
		for _, op := range ops {
			p.fail[strings.ToLower(strings.TrimSpace(op))] = true
		}
	}
}

// WithUnhealthy makes the health probe fail.
func WithUnhealthy() Option {
	return func(p *Provider) {
		p.unhealthy = true
	}
}

// Provider serves deterministic static content.
type Provider struct {
	name      string
	assets    *fallback.Assets
	fail      map[string]bool
	unhealthy bool
	calls     atomic.Int64
}

// New creates a mock provider.
func New(name string, opts ...Option) *Provider {
	if name == "" {
		name = ProviderType
	}
	p := &Provider{
		name:   name,
		assets: fallback.New(),
		fail:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string {
	return p.name
}

// Calls returns how many operations were invoked.
func (p *Provider) Calls() int64 {
	return p.calls.Load()
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	if p.unhealthy {
		return fmt.Errorf("%s: marked unhealthy", p.name)
	}
	return ctx.Err()
}

func (p *Provider) check(ctx context.Context, op domain.Operation) error {
	p.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return domain.ErrUnavailable(err.Error()).WithProvider(p.name).WithCause(err)
	}
	if p.fail["all"] || p.fail[string(op)] {
		return domain.ErrUnavailable(fmt.Sprintf("injected failure for %s", op)).WithProvider(p.name)
	}
	return nil
}

func (p *Provider) GenerateKeywords(ctx context.Context, req *provider.Request) (*provider.KeywordsResponse, error) {
	if err := p.check(ctx, domain.OpKeywords); err != nil {
		return nil, err
	}
	return &provider.KeywordsResponse{
		Keywords: p.assets.KeywordCandidates(req.Inputs.Character),
		Usage:    provider.Usage{Model: Model},
	}, nil
}

func (p *Provider) GenerateAxes(ctx context.Context, req *provider.Request) (*provider.AxesResponse, error) {
	if err := p.check(ctx, domain.OpAxes); err != nil {
		return nil, err
	}
	return &provider.AxesResponse{
		Axes:  p.assets.DefaultAxes(),
		Usage: provider.Usage{Model: Model},
	}, nil
}

func (p *Provider) GenerateScenario(ctx context.Context, req *provider.Request) (*provider.ScenarioResponse, error) {
	if err := p.check(ctx, domain.OpScenario); err != nil {
		return nil, err
	}
	in := req.Inputs
	scene := p.assets.Scene(in.SceneIndex, in.ThemeID, in.Keyword, in.Axes)
	return &provider.ScenarioResponse{
		Narrative: scene.Narrative,
		Choices:   scene.Choices,
		Usage:     provider.Usage{Model: Model},
	}, nil
}

func (p *Provider) AnalyzeResults(ctx context.Context, req *provider.Request) (*provider.AnalysisResponse, error) {
	if err := p.check(ctx, domain.OpAnalysis); err != nil {
		return nil, err
	}
	in := req.Inputs
	profiles := p.assets.TypeProfiles(in.Axes, slices.Clone(in.DominantAxes), in.Polarity)
	for i := range profiles {
		profiles[i].Metadata["source"] = p.name
	}
	return &provider.AnalysisResponse{
		Profiles: profiles,
		Usage:    provider.Usage{Model: Model},
	}, nil
}
