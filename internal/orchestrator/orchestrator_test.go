package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-persona/internal/config"
	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/fallback"
	"github.com/tjfontaine/polyglot-persona/internal/metrics"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
	"github.com/tjfontaine/polyglot-persona/internal/provider/mock"
)

// stubProvider returns canned responses and counts calls.
type stubProvider struct {
	name      string
	healthErr error
	err       error
	keywords  []domain.Keyword
	axes      []domain.Axis
	scene     *provider.ScenarioResponse
	profiles  []domain.TypeProfile
	usage     provider.Usage
	empty     bool // return (nil, nil)

	probes atomic.Int64
	calls  atomic.Int64
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) HealthCheck(ctx context.Context) error {
	p.probes.Add(1)
	return p.healthErr
}

func (p *stubProvider) GenerateKeywords(ctx context.Context, req *provider.Request) (*provider.KeywordsResponse, error) {
	p.calls.Add(1)
	if p.err != nil || p.empty {
		return nil, p.err
	}
	return &provider.KeywordsResponse{Keywords: p.keywords, Usage: p.usage}, nil
}

func (p *stubProvider) GenerateAxes(ctx context.Context, req *provider.Request) (*provider.AxesResponse, error) {
	p.calls.Add(1)
	if p.err != nil || p.empty {
		return nil, p.err
	}
	return &provider.AxesResponse{Axes: p.axes, Usage: p.usage}, nil
}

func (p *stubProvider) GenerateScenario(ctx context.Context, req *provider.Request) (*provider.ScenarioResponse, error) {
	p.calls.Add(1)
	if p.err != nil || p.empty {
		return nil, p.err
	}
	out := *p.scene
	out.Choices = append([]domain.Choice(nil), p.scene.Choices...)
	for i := range out.Choices {
		out.Choices[i].Weights = append(domain.Weights(nil), p.scene.Choices[i].Weights...)
	}
	out.Usage = p.usage
	return &out, nil
}

func (p *stubProvider) AnalyzeResults(ctx context.Context, req *provider.Request) (*provider.AnalysisResponse, error) {
	p.calls.Add(1)
	if p.err != nil || p.empty {
		return nil, p.err
	}
	return &provider.AnalysisResponse{Profiles: p.profiles, Usage: p.usage}, nil
}

var twoAxes = []domain.Axis{
	{ID: "axis_1", Name: "Boldness", Direction: "Bold / Careful"},
	{ID: "axis_2", Name: "Sociability", Direction: "Outgoing / Reserved"},
}

func goodKeywords() []domain.Keyword {
	return []domain.Keyword{{Word: "Star"}, {Word: "Sun"}, {Word: "Sea"}, {Word: "Sky"}}
}

func weights(a1, a2 float64) domain.Weights {
	return domain.Weights{{AxisID: "axis_1", Score: a1}, {AxisID: "axis_2", Score: a2}}
}

func goodScene() *provider.ScenarioResponse {
	return &provider.ScenarioResponse{
		Narrative: "A door creaks.",
		Choices: []domain.Choice{
			{ID: "a", Text: "Open", Weights: weights(1, 0)},
			{ID: "b", Text: "Knock", Weights: weights(0.5, 0.5)},
			{ID: "c", Text: "Leave", Weights: weights(-1, 0)},
			// Reversed key order is normalised.
			{ID: "d", Text: "Call out", Weights: domain.Weights{{AxisID: "axis_2", Score: 1}, {AxisID: "axis_1", Score: 0}}},
		},
	}
}

func newSession() *domain.Session {
	s := domain.NewSession("s1", "s", "adventure")
	s.Axes = twoAxes
	return s
}

func TestExecute_PrimarySucceeds(t *testing.T) {
	primary := &stubProvider{name: "primary", keywords: goodKeywords(), usage: provider.Usage{Model: "m", InputTokens: 1000, OutputTokens: 500}}
	secondary := &stubProvider{name: "secondary", keywords: goodKeywords()}
	chain := NewChain(
		Entry{Provider: primary, Pricing: Pricing{InputPer1K: 0.01, OutputPer1K: 0.02}},
		Entry{Provider: secondary},
	)
	o := New(chain)
	sess := newSession()

	kws, err := o.GenerateKeywords(context.Background(), sess, provider.TemplateData{Character: "s"})
	if err != nil {
		t.Fatalf("GenerateKeywords() error = %v", err)
	}
	if len(kws) != 4 {
		t.Fatalf("keywords = %v", kws)
	}
	if secondary.probes.Load() != 0 || secondary.calls.Load() != 0 {
		t.Error("secondary was contacted after primary succeeded")
	}

	meta := sess.Generation[domain.OpKeywords]
	if meta.Provider != "primary" || meta.Attempt != 1 || meta.Fallback {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.Cost < 0.0199 || meta.Cost > 0.0201 {
		t.Errorf("cost = %v, want 0.02", meta.Cost)
	}
	if meta.Estimated {
		t.Error("reported usage marked as estimated")
	}
	if len(sess.ProviderErrors) != 0 {
		t.Errorf("provider errors = %+v", sess.ProviderErrors)
	}
}

func TestExecute_FallsThroughChain(t *testing.T) {
	unhealthy := &stubProvider{name: "unhealthy", healthErr: errors.New("down")}
	limited := &stubProvider{name: "limited", err: domain.ErrRateLimited("slow down")}
	invalid := &stubProvider{name: "invalid", keywords: []domain.Keyword{{Word: "One"}}}
	good := &stubProvider{name: "good", keywords: goodKeywords()}

	m := metrics.New()
	o := New(ProvidersChain(unhealthy, limited, invalid, good), WithMetrics(m))
	sess := newSession()

	if _, err := o.GenerateKeywords(context.Background(), sess, provider.TemplateData{}); err != nil {
		t.Fatalf("GenerateKeywords() error = %v", err)
	}
	if unhealthy.calls.Load() != 0 {
		t.Error("operation called on a provider that failed its health probe")
	}

	// The failed probe is not recorded; the two failures are.
	if len(sess.ProviderErrors) != 2 {
		t.Fatalf("provider errors = %+v", sess.ProviderErrors)
	}
	tests := []struct {
		provider string
		kind     domain.ErrorKind
		attempt  int
	}{
		{"limited", domain.ErrorKindRateLimited, 2},
		{"invalid", domain.ErrorKindValidation, 3},
	}
	for i, tt := range tests {
		rec := sess.ProviderErrors[i]
		if rec.Provider != tt.provider || rec.Kind != tt.kind || rec.Attempt != tt.attempt || rec.Operation != domain.OpKeywords {
			t.Errorf("error[%d] = %+v, want %s/%s/%d", i, rec, tt.provider, tt.kind, tt.attempt)
		}
	}

	meta := sess.Generation[domain.OpKeywords]
	if meta.Provider != "good" || meta.Attempt != 4 || !meta.Fallback {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestExecute_AllProvidersFailed(t *testing.T) {
	a := &stubProvider{name: "a", err: domain.ErrUnavailable("timeout")}
	b := &stubProvider{name: "b", healthErr: errors.New("down")}
	o := New(ProvidersChain(a, b))
	sess := newSession()

	_, err := o.GenerateAxes(context.Background(), sess, provider.TemplateData{})
	if !domain.IsKind(err, domain.ErrorKindAllProvidersFailed) {
		t.Fatalf("GenerateAxes() error = %v, want all providers failed", err)
	}
	if len(sess.ProviderErrors) != 1 {
		t.Errorf("provider errors = %+v", sess.ProviderErrors)
	}
	if _, ok := sess.Generation[domain.OpAxes]; ok {
		t.Error("metadata recorded for a failed operation")
	}

	empty := New(nil)
	if _, err := empty.GenerateAxes(context.Background(), sess, provider.TemplateData{}); !domain.IsKind(err, domain.ErrorKindAllProvidersFailed) {
		t.Errorf("empty chain error = %v", err)
	}
}

func TestExecute_EachCallStartsAtPrimary(t *testing.T) {
	flaky := &stubProvider{name: "flaky", err: domain.ErrUnavailable("down")}
	good := &stubProvider{name: "good", axes: twoAxes}
	o := New(ProvidersChain(flaky, good))

	for i := 0; i < 3; i++ {
		if _, err := o.GenerateAxes(context.Background(), newSession(), provider.TemplateData{}); err != nil {
			t.Fatalf("GenerateAxes() error = %v", err)
		}
	}
	if flaky.calls.Load() != 3 {
		t.Errorf("primary calls = %d, want 3", flaky.calls.Load())
	}
}

func TestExecute_UntypedErrorsAreClassified(t *testing.T) {
	p := &stubProvider{name: "p", err: context.DeadlineExceeded}
	sess := newSession()
	_, err := New(ProvidersChain(p)).GenerateAxes(context.Background(), sess, provider.TemplateData{})
	if !domain.IsKind(err, domain.ErrorKindAllProvidersFailed) {
		t.Fatalf("error = %v", err)
	}
	if sess.ProviderErrors[0].Kind != domain.ErrorKindUnavailable {
		t.Errorf("kind = %s", sess.ProviderErrors[0].Kind)
	}
}

func TestGenerateScenario_Normalises(t *testing.T) {
	p := &stubProvider{name: "p", scene: goodScene()}
	sess := newSession()
	scene, err := New(ProvidersChain(p)).GenerateScenario(context.Background(), sess, provider.TemplateData{SceneIndex: 2, Axes: twoAxes})
	if err != nil {
		t.Fatalf("GenerateScenario() error = %v", err)
	}
	if scene.Index != 2 {
		t.Errorf("index = %d", scene.Index)
	}
	for i, ch := range scene.Choices {
		if ch.ID != domain.ChoiceID(2, i+1) {
			t.Errorf("choice %d id = %q", i, ch.ID)
		}
		if ch.Weights[0].AxisID != "axis_1" || ch.Weights[1].AxisID != "axis_2" {
			t.Errorf("choice %d weights not in axis order: %+v", i, ch.Weights)
		}
	}
	if _, ok := sess.Generation[domain.SceneKey(2)]; !ok {
		t.Errorf("metadata keys = %v", sess.Generation)
	}
}

func TestGenerateScenario_AxisNames(t *testing.T) {
	named := func() *provider.ScenarioResponse {
		s := goodScene()
		for i := range s.Choices {
			s.Choices[i].Weights = domain.Weights{{AxisID: "boldness", Score: 0.5}, {AxisID: "Sociability", Score: -0.5}}
		}
		return s
	}

	t.Run("rejected by default", func(t *testing.T) {
		sess := newSession()
		_, err := New(ProvidersChain(&stubProvider{name: "p", scene: named()})).
			GenerateScenario(context.Background(), sess, provider.TemplateData{SceneIndex: 1})
		if !domain.IsKind(err, domain.ErrorKindAllProvidersFailed) {
			t.Fatalf("error = %v", err)
		}
		if sess.ProviderErrors[0].Kind != domain.ErrorKindValidation {
			t.Errorf("kind = %s", sess.ProviderErrors[0].Kind)
		}
	})

	t.Run("remapped when enabled", func(t *testing.T) {
		scene, err := New(ProvidersChain(&stubProvider{name: "p", scene: named()}), WithAxisRemap(true)).
			GenerateScenario(context.Background(), newSession(), provider.TemplateData{SceneIndex: 1})
		if err != nil {
			t.Fatalf("GenerateScenario() error = %v", err)
		}
		if w, _ := scene.Choices[0].Weights.Get("axis_2"); w != -0.5 {
			t.Errorf("weights = %+v", scene.Choices[0].Weights)
		}
	})
}

func TestAnalyzeResults(t *testing.T) {
	good := []domain.TypeProfile{{Name: "The Bold", Description: "d", DominantAxes: []string{"axis_1", "axis_2"}, Polarity: "Hi-Lo"}}
	bad := []domain.TypeProfile{{Name: "X", Description: "d", DominantAxes: []string{"axis_1", "axis_9"}, Polarity: "Hi-Lo"}}

	o := New(ProvidersChain(&stubProvider{name: "bad", profiles: bad}, &stubProvider{name: "good", profiles: good}))
	sess := newSession()
	profiles, err := o.AnalyzeResults(context.Background(), sess, provider.TemplateData{})
	if err != nil {
		t.Fatalf("AnalyzeResults() error = %v", err)
	}
	if profiles[0].Name != "The Bold" {
		t.Errorf("profiles = %+v", profiles)
	}
	if sess.Generation[domain.OpAnalysis].Provider != "good" {
		t.Errorf("metadata = %+v", sess.Generation[domain.OpAnalysis])
	}
}

func TestExecute_EstimatesMissingUsage(t *testing.T) {
	p := &stubProvider{name: "p", keywords: goodKeywords(), usage: provider.Usage{Model: "gpt-4o-mini"}}
	chain := NewChain(Entry{Provider: p, Pricing: Pricing{InputPer1K: 1, OutputPer1K: 1}})
	sess := newSession()
	if _, err := New(chain).GenerateKeywords(context.Background(), sess, provider.TemplateData{Character: "s"}); err != nil {
		t.Fatal(err)
	}
	meta := sess.Generation[domain.OpKeywords]
	if !meta.Estimated || meta.InputTokens == 0 || meta.OutputTokens == 0 || meta.Cost == 0 {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestExecute_MockProvider(t *testing.T) {
	failing := mock.New("primary", mock.WithFailOperations("scenario"))
	backup := mock.New("static-mock")
	o := New(ProvidersChain(failing, backup))

	sess := newSession()
	sess.Keyword = "River"
	sess.Axes = fallback.New().DefaultAxes()
	scene, err := o.GenerateScenario(context.Background(), sess, provider.TemplateData{
		SceneIndex: 1, Keyword: "River", ThemeID: "mystery", Axes: sess.Axes,
	})
	if err != nil {
		t.Fatalf("GenerateScenario() error = %v", err)
	}
	if len(scene.Choices) != 4 {
		t.Errorf("choices = %d", len(scene.Choices))
	}
	if failing.Calls() != 1 || backup.Calls() != 1 {
		t.Errorf("calls = %d/%d", failing.Calls(), backup.Calls())
	}
}

func TestSetChain(t *testing.T) {
	first := &stubProvider{name: "first", axes: twoAxes}
	second := &stubProvider{name: "second", axes: twoAxes}
	o := New(ProvidersChain(first), WithClock(func() time.Time { return time.Unix(0, 0) }))

	o.SetChain(ProvidersChain(second))
	if _, err := o.GenerateAxes(context.Background(), newSession(), provider.TemplateData{}); err != nil {
		t.Fatal(err)
	}
	if first.calls.Load() != 0 || second.calls.Load() != 1 {
		t.Errorf("calls = %d/%d", first.calls.Load(), second.calls.Load())
	}
	if got := o.Chain().Names(); len(got) != 1 || got[0] != "second" {
		t.Errorf("Names() = %v", got)
	}
}

func TestChain(t *testing.T) {
	a := &stubProvider{name: "a"}
	b := &stubProvider{name: "b"}

	c := NewChain(Entry{Provider: a}, Entry{Provider: nil}, Entry{Provider: b}, Entry{Provider: &stubProvider{name: "a"}})
	if got := c.Names(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Names() = %v", got)
	}

	var nilChain *Chain
	if nilChain.Len() != 0 || nilChain.Entries() != nil {
		t.Error("nil chain is not empty")
	}

	cfgs := []config.ProviderConfig{{Name: "a", InputCostPer1K: 0.5}, {Name: "b"}}
	built, err := BuildChain(cfgs, []provider.Provider{a, b})
	if err != nil {
		t.Fatalf("BuildChain() error = %v", err)
	}
	if built.Entries()[0].Pricing.InputPer1K != 0.5 {
		t.Errorf("pricing = %+v", built.Entries()[0].Pricing)
	}
	if _, err := BuildChain(cfgs, []provider.Provider{b, a}); err == nil {
		t.Error("expected error for mismatched order")
	}
	if _, err := BuildChain(cfgs, []provider.Provider{a}); err == nil {
		t.Error("expected error for length mismatch")
	}
}

func TestExecute_EmptyResponseFallsThrough(t *testing.T) {
	tests := []struct {
		name string
		run  func(o *Orchestrator, sess *domain.Session) error
		op   domain.Operation
	}{
		{name: "keywords", op: domain.OpKeywords, run: func(o *Orchestrator, sess *domain.Session) error {
			_, err := o.GenerateKeywords(context.Background(), sess, provider.TemplateData{})
			return err
		}},
		{name: "axes", op: domain.OpAxes, run: func(o *Orchestrator, sess *domain.Session) error {
			_, err := o.GenerateAxes(context.Background(), sess, provider.TemplateData{})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			empty := &stubProvider{name: "empty", empty: true}
			good := &stubProvider{name: "good", keywords: goodKeywords(), axes: twoAxes}
			o := New(ProvidersChain(empty, good))
			sess := newSession()

			if err := tt.run(o, sess); err != nil {
				t.Fatalf("error = %v", err)
			}
			if len(sess.ProviderErrors) != 1 {
				t.Fatalf("provider errors = %+v", sess.ProviderErrors)
			}
			rec := sess.ProviderErrors[0]
			if rec.Provider != "empty" || rec.Kind != domain.ErrorKindValidation || rec.Operation != tt.op {
				t.Errorf("error record = %+v", rec)
			}
			if meta := sess.Generation[tt.op]; meta.Provider != "good" || meta.Attempt != 2 {
				t.Errorf("metadata = %+v", meta)
			}
		})
	}

	t.Run("only empty providers", func(t *testing.T) {
		o := New(ProvidersChain(&stubProvider{name: "empty", empty: true}))
		_, err := o.GenerateKeywords(context.Background(), newSession(), provider.TemplateData{})
		if !domain.IsKind(err, domain.ErrorKindAllProvidersFailed) {
			t.Fatalf("error = %v, want all providers failed", err)
		}
	})
}

func TestIsNil(t *testing.T) {
	var typed *provider.KeywordsResponse
	tests := []struct {
		name string
		v    provider.Metered
		want bool
	}{
		{"nil interface", nil, true},
		{"typed nil", typed, true},
		{"value", &provider.KeywordsResponse{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNil(tt.v); got != tt.want {
				t.Errorf("isNil() = %v, want %v", got, tt.want)
			}
		})
	}
}
