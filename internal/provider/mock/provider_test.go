package mock

import (
	"context"
	"testing"

	"github.com/tjfontaine/polyglot-persona/internal/config"
	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/fallback"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
)

func TestProvider_ServesStaticContent(t *testing.T) {
	ctx := context.Background()
	p := New("static-mock")
	axes := fallback.New().DefaultAxes()

	if err := p.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	kw, err := p.GenerateKeywords(ctx, &provider.Request{Inputs: provider.TemplateData{Character: "k"}})
	if err != nil {
		t.Fatalf("GenerateKeywords() error = %v", err)
	}
	if len(kw.Keywords) != domain.KeywordCount || kw.Model != Model {
		t.Errorf("keywords = %+v", kw)
	}

	sc, err := p.GenerateScenario(ctx, &provider.Request{Inputs: provider.TemplateData{
		SceneIndex: 3, ThemeID: "mystery", Keyword: "Key", Axes: axes,
	}})
	if err != nil {
		t.Fatalf("GenerateScenario() error = %v", err)
	}
	if sc.Choices[0].ID != "choice_3_1" {
		t.Errorf("first choice id = %q", sc.Choices[0].ID)
	}

	an, err := p.AnalyzeResults(ctx, &provider.Request{Inputs: provider.TemplateData{
		Axes: axes, DominantAxes: []string{"axis_2", "axis_4"}, Polarity: "Hi-Lo",
	}})
	if err != nil {
		t.Fatalf("AnalyzeResults() error = %v", err)
	}
	if an.Profiles[0].Polarity != "Hi-Lo" || an.Profiles[0].Metadata["source"] != "static-mock" {
		t.Errorf("first profile = %+v", an.Profiles[0])
	}

	if p.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", p.Calls())
	}
}

func TestProvider_FailureInjection(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cfg      config.ProviderConfig
		wantAxes bool
		wantKW   bool
	}{
		{name: "healthy", cfg: config.ProviderConfig{Name: "m"}, wantAxes: true, wantKW: true},
		{name: "fail axes only", cfg: config.ProviderConfig{Name: "m", FailOperations: []string{"axes"}}, wantAxes: false, wantKW: true},
		{name: "fail all", cfg: config.ProviderConfig{Name: "m", FailOperations: []string{"all"}}, wantAxes: false, wantKW: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := CreateFromConfig(tt.cfg)
			if err != nil {
				t.Fatal(err)
			}
			_, err = p.GenerateAxes(ctx, &provider.Request{})
			if (err == nil) != tt.wantAxes {
				t.Errorf("GenerateAxes() error = %v", err)
			}
			if err != nil && !domain.IsKind(err, domain.ErrorKindUnavailable) {
				t.Errorf("error kind = %s, want unavailable", domain.KindOf(err))
			}
			_, err = p.GenerateKeywords(ctx, &provider.Request{})
			if (err == nil) != tt.wantKW {
				t.Errorf("GenerateKeywords() error = %v", err)
			}
		})
	}

	unhealthy, _ := CreateFromConfig(config.ProviderConfig{Name: "m", Unhealthy: true})
	if err := unhealthy.HealthCheck(ctx); err == nil {
		t.Error("expected unhealthy probe to fail")
	}
}
