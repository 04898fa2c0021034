package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
)

// TimeoutProvider wraps a provider and bounds every call with its own
// deadline. An expired deadline becomes an Unavailable error.
type TimeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// NewTimeoutProvider wraps inner. A non-positive timeout returns inner unchanged.
func NewTimeoutProvider(inner Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return inner
	}
	return &TimeoutProvider{inner: inner, timeout: timeout}
}

func (p *TimeoutProvider) Name() string {
	return p.inner.Name()
}

// Unwrap returns the wrapped provider.
func (p *TimeoutProvider) Unwrap() Provider {
	return p.inner
}

func (p *TimeoutProvider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.classify(ctx, p.inner.HealthCheck(ctx))
}

func (p *TimeoutProvider) GenerateKeywords(ctx context.Context, req *Request) (*KeywordsResponse, error) {
	return call(ctx, p, req, p.inner.GenerateKeywords)
}

func (p *TimeoutProvider) GenerateAxes(ctx context.Context, req *Request) (*AxesResponse, error) {
	return call(ctx, p, req, p.inner.GenerateAxes)
}

func (p *TimeoutProvider) GenerateScenario(ctx context.Context, req *Request) (*ScenarioResponse, error) {
	return call(ctx, p, req, p.inner.GenerateScenario)
}

func (p *TimeoutProvider) AnalyzeResults(ctx context.Context, req *Request) (*AnalysisResponse, error) {
	return call(ctx, p, req, p.inner.AnalyzeResults)
}

func call[T any](ctx context.Context, p *TimeoutProvider, req *Request, fn func(context.Context, *Request) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := fn(ctx, req)
	if err != nil {
		var zero T
		return zero, p.classify(ctx, err)
	}
	return resp, nil
}

// classify turns this wrapper's own deadline into Unavailable. Errors that
// already carry a kind pass through.
func (p *TimeoutProvider) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrUnavailable(fmt.Sprintf("timed out after %s", p.timeout)).
			WithProvider(p.inner.Name()).
			WithCause(err)
	}
	return err
}
