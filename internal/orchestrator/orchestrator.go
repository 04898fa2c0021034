// Package orchestrator runs one generative operation against the ordered
// provider chain: health probe, call, structural validation, and on
// exhaustion an all_providers_failed error the caller turns into static
// content.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/metrics"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
	"github.com/tjfontaine/polyglot-persona/internal/tokens"
)

const tracerName = "github.com/tjfontaine/polyglot-persona/internal/orchestrator"

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics records attempts and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// WithAxisRemap enables mapping weight keys that spell an axis name onto
// the axis id before validation.
func WithAxisRemap(enabled bool) Option {
	return func(o *Orchestrator) {
		o.remap = enabled
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator executes operations against a provider chain.
type Orchestrator struct {
	chain   atomic.Pointer[Chain]
	remap   bool
	counter *tokens.Counter
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an orchestrator over chain.
func New(chain *Chain, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		counter: tokens.NewCounter(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	if chain == nil {
		chain = NewChain()
	}
	o.chain.Store(chain)
	return o
}

// SetChain swaps the provider chain. Calls already running keep the chain
// they started with.
func (o *Orchestrator) SetChain(c *Chain) {
	if c == nil {
		c = NewChain()
	}
	o.chain.Store(c)
	o.logger.Info("provider chain updated", slog.Any("providers", c.Names()))
}

// Chain returns the current chain.
func (o *Orchestrator) Chain() *Chain {
	return o.chain.Load()
}

// GenerateKeywords produces the keyword candidates for a session.
func (o *Orchestrator) GenerateKeywords(ctx context.Context, sess *domain.Session, inputs provider.TemplateData) ([]domain.Keyword, error) {
	resp, err := execute(ctx, o, sess, inputs, operation[*provider.KeywordsResponse]{
		op:  domain.OpKeywords,
		key: domain.OpKeywords,
		invoke: func(ctx context.Context, p provider.Provider, req *provider.Request) (*provider.KeywordsResponse, error) {
			return p.GenerateKeywords(ctx, req)
		},
		validate: func(r *provider.KeywordsResponse) error {
			return validateKeywords(r.Keywords)
		},
	})
	if err != nil {
		return nil, err
	}
	return resp.Keywords, nil
}

// GenerateAxes produces the evaluation axes for a session.
func (o *Orchestrator) GenerateAxes(ctx context.Context, sess *domain.Session, inputs provider.TemplateData) ([]domain.Axis, error) {
	resp, err := execute(ctx, o, sess, inputs, operation[*provider.AxesResponse]{
		op:  domain.OpAxes,
		key: domain.OpAxes,
		invoke: func(ctx context.Context, p provider.Provider, req *provider.Request) (*provider.AxesResponse, error) {
			return p.GenerateAxes(ctx, req)
		},
		validate: func(r *provider.AxesResponse) error {
			return validateAxes(r.Axes)
		},
	})
	if err != nil {
		return nil, err
	}
	return resp.Axes, nil
}

// GenerateScenario produces the scene at inputs.SceneIndex. Choice ids are
// assigned canonically and weights are put in session axis order.
func (o *Orchestrator) GenerateScenario(ctx context.Context, sess *domain.Session, inputs provider.TemplateData) (*domain.Scene, error) {
	index := inputs.SceneIndex
	resp, err := execute(ctx, o, sess, inputs, operation[*provider.ScenarioResponse]{
		op:  domain.OpScenario,
		key: domain.SceneKey(index),
		invoke: func(ctx context.Context, p provider.Provider, req *provider.Request) (*provider.ScenarioResponse, error) {
			return p.GenerateScenario(ctx, req)
		},
		validate: func(r *provider.ScenarioResponse) error {
			if o.remap {
				remapAxisNames(r.Choices, sess.Axes)
			}
			return normalizeScenario(r, index, sess.Axes)
		},
	})
	if err != nil {
		return nil, err
	}
	return &domain.Scene{Index: index, Narrative: resp.Narrative, Choices: resp.Choices}, nil
}

// AnalyzeResults produces type profiles for scored inputs.
func (o *Orchestrator) AnalyzeResults(ctx context.Context, sess *domain.Session, inputs provider.TemplateData) ([]domain.TypeProfile, error) {
	resp, err := execute(ctx, o, sess, inputs, operation[*provider.AnalysisResponse]{
		op:  domain.OpAnalysis,
		key: domain.OpAnalysis,
		invoke: func(ctx context.Context, p provider.Provider, req *provider.Request) (*provider.AnalysisResponse, error) {
			return p.AnalyzeResults(ctx, req)
		},
		validate: func(r *provider.AnalysisResponse) error {
			return validateProfiles(r.Profiles, sess.Axes)
		},
	})
	if err != nil {
		return nil, err
	}
	return resp.Profiles, nil
}

// operation binds one typed provider method to its validation.
type operation[T provider.Metered] struct {
	op       domain.Operation
	key      domain.Operation // generation-metadata key
	invoke   func(context.Context, provider.Provider, *provider.Request) (T, error)
	validate func(T) error
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeUnhealthy
	outcomeInvalid
	outcomeFailed
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeSuccess:
		return metrics.OutcomeSuccess
	case outcomeUnhealthy:
		return metrics.OutcomeUnhealthy
	case outcomeInvalid:
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

// outcome is the result of one provider attempt.
type outcome struct {
	kind outcomeKind
	err  error
}

// execute walks the chain in configured order and returns the first valid
// response. Every call starts from the primary.
func execute[T provider.Metered](ctx context.Context, o *Orchestrator, sess *domain.Session, inputs provider.TemplateData, op operation[T]) (T, error) {
	var zero T
	chain := o.Chain()
	req := &provider.Request{
		Task:      op.op,
		SessionID: sess.ID,
		Inputs:    inputs,
		Context: provider.RequestContext{
			State:   sess.State,
			Keyword: sess.Keyword,
			ThemeID: sess.ThemeID,
		},
	}

	for i, entry := range chain.Entries() {
		if ctx.Err() != nil {
			break
		}
		attempt := i + 1
		name := entry.Provider.Name()

		start := o.now()
		resp, out := attemptOne(ctx, o, entry.Provider, req, op, attempt)
		latency := o.now().Sub(start)
		o.metrics.ObserveAttempt(string(op.op), name, out.kind.String(), latency)

		switch out.kind {
		case outcomeSuccess:
			meta := o.metadata(op.op, entry, inputs, resp, latency, attempt)
			sess.RecordGeneration(op.key, meta)
			o.logger.Debug("provider attempt succeeded",
				slog.String("operation", string(op.key)),
				slog.String("session_id", sess.ID),
				slog.String("provider", name),
				slog.Int("attempt", attempt),
				slog.Duration("latency", latency))
			return resp, nil

		case outcomeUnhealthy:
			o.logger.Debug("provider skipped after failed health probe",
				slog.String("operation", string(op.key)),
				slog.String("provider", name),
				slog.String("error", out.err.Error()))

		case outcomeInvalid, outcomeFailed:
			kind := domain.KindOf(out.err)
			if kind == "" {
				kind = domain.ErrorKindUnavailable
			}
			sess.RecordProviderError(domain.ProviderErrorRecord{
				Operation: op.key,
				Provider:  name,
				Kind:      kind,
				Message:   out.err.Error(),
				Attempt:   attempt,
				At:        o.now(),
			})
			o.logger.Warn("provider attempt failed",
				slog.String("operation", string(op.key)),
				slog.String("session_id", sess.ID),
				slog.String("provider", name),
				slog.Int("attempt", attempt),
				slog.String("kind", string(kind)),
				slog.String("error", out.err.Error()))
		}
	}

	return zero, domain.ErrAllProvidersFailed(op.key, chain.Len())
}

// attemptOne runs probe, call and validation for one provider inside a span.
func attemptOne[T provider.Metered](ctx context.Context, o *Orchestrator, p provider.Provider, req *provider.Request, op operation[T], attempt int) (T, outcome) {
	var zero T
	ctx, span := o.tracer.Start(ctx, "orchestrator."+string(op.op),
		trace.WithAttributes(
			attribute.String("provider", p.Name()),
			attribute.Int("attempt", attempt),
			attribute.String("session_id", req.SessionID),
		))
	defer span.End()

	out := func(kind outcomeKind, err error) outcome {
		span.SetAttributes(attribute.String("outcome", kind.String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return outcome{kind: kind, err: err}
	}

	if err := p.HealthCheck(ctx); err != nil {
		return zero, out(outcomeUnhealthy, err)
	}

	resp, err := op.invoke(ctx, p, req)
	if err != nil {
		return zero, out(outcomeFailed, provider.ClassifyError(p.Name(), err))
	}
	if isNil(resp) {
		return zero, out(outcomeInvalid, domain.ErrValidation("empty response").WithProvider(p.Name()))
	}

	if err := op.validate(resp); err != nil {
		var de *domain.Error
		if !errors.As(err, &de) {
			de = domain.ErrValidation("%v", err)
		}
		return zero, out(outcomeInvalid, de.WithProvider(p.Name()))
	}

	return resp, out(outcomeSuccess, nil)
}

// isNil reports whether a response is a nil interface or nil pointer.
func isNil(v provider.Metered) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func (o *Orchestrator) metadata(op domain.Operation, entry Entry, inputs provider.TemplateData, resp provider.Metered, latency time.Duration, attempt int) domain.GenerationMetadata {
	usage := resp.UsageInfo()
	meta := domain.GenerationMetadata{
		Operation:    op,
		Provider:     entry.Provider.Name(),
		Model:        usage.Model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Latency:      latency,
		Fallback:     attempt > 1,
		Attempt:      attempt,
		GeneratedAt:  o.now(),
	}
	if meta.InputTokens == 0 && meta.OutputTokens == 0 {
		meta.InputTokens = o.estimate(usage.Model, inputs)
		meta.OutputTokens = o.estimate(usage.Model, resp)
		meta.Estimated = true
	}
	meta.Cost = entry.Pricing.Cost(meta.InputTokens, meta.OutputTokens)
	return meta
}

func (o *Orchestrator) estimate(model string, v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return o.counter.Count(model, string(b))
}
