package orchestrator

import (
	"testing"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
)

func TestValidateKeywords(t *testing.T) {
	tests := []struct {
		name     string
		keywords []domain.Keyword
		wantErr  bool
	}{
		{"four", goodKeywords(), false},
		{"three", goodKeywords()[:3], true},
		{"blank", []domain.Keyword{{Word: "A"}, {Word: " "}, {Word: "C"}, {Word: "D"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateKeywords(tt.keywords); (err != nil) != tt.wantErr {
				t.Errorf("validateKeywords() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAxes(t *testing.T) {
	axis := func(id string) domain.Axis { return domain.Axis{ID: id, Name: "n" + id} }
	tests := []struct {
		name    string
		axes    []domain.Axis
		wantErr bool
	}{
		{"two", []domain.Axis{axis("a"), axis("b")}, false},
		{"six", []domain.Axis{axis("a"), axis("b"), axis("c"), axis("d"), axis("e"), axis("f")}, false},
		{"one", []domain.Axis{axis("a")}, true},
		{"seven", []domain.Axis{axis("a"), axis("b"), axis("c"), axis("d"), axis("e"), axis("f"), axis("g")}, true},
		{"duplicate", []domain.Axis{axis("a"), axis("a")}, true},
		{"unnamed", []domain.Axis{axis("a"), {ID: "b"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateAxes(tt.axes); (err != nil) != tt.wantErr {
				t.Errorf("validateAxes() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeScenario(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*provider.ScenarioResponse)
	}{
		{"empty narrative", func(r *provider.ScenarioResponse) { r.Narrative = "  " }},
		{"three choices", func(r *provider.ScenarioResponse) { r.Choices = r.Choices[:3] }},
		{"empty text", func(r *provider.ScenarioResponse) { r.Choices[1].Text = "" }},
		{"missing axis", func(r *provider.ScenarioResponse) { r.Choices[0].Weights = r.Choices[0].Weights[:1] }},
		{"unknown axis", func(r *provider.ScenarioResponse) { r.Choices[0].Weights[1].AxisID = "axis_9" }},
		{"duplicate axis", func(r *provider.ScenarioResponse) { r.Choices[0].Weights[1].AxisID = "axis_1" }},
		{"out of range", func(r *provider.ScenarioResponse) { r.Choices[2].Weights[0].Score = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := goodScene()
			tt.mutate(r)
			if err := normalizeScenario(r, 1, twoAxes); !domain.IsKind(err, domain.ErrorKindValidation) {
				t.Errorf("normalizeScenario() error = %v, want validation", err)
			}
		})
	}

	if err := normalizeScenario(goodScene(), 1, twoAxes); err != nil {
		t.Errorf("normalizeScenario(good) error = %v", err)
	}
}

func TestValidateProfiles(t *testing.T) {
	valid := domain.TypeProfile{Name: "n", Description: "d", DominantAxes: []string{"axis_1", "axis_2"}, Polarity: "Hi-Hi"}
	tests := []struct {
		name    string
		mutate  func(*domain.TypeProfile)
		wantErr bool
	}{
		{"valid", func(*domain.TypeProfile) {}, false},
		{"no name", func(p *domain.TypeProfile) { p.Name = "" }, true},
		{"no description", func(p *domain.TypeProfile) { p.Description = "" }, true},
		{"one axis", func(p *domain.TypeProfile) { p.DominantAxes = []string{"axis_1"} }, true},
		{"unknown axis", func(p *domain.TypeProfile) { p.DominantAxes = []string{"axis_1", "axis_3"} }, true},
		{"no polarity", func(p *domain.TypeProfile) { p.Polarity = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid.Clone()
			tt.mutate(&p)
			if err := validateProfiles([]domain.TypeProfile{p}, twoAxes); (err != nil) != tt.wantErr {
				t.Errorf("validateProfiles() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	if err := validateProfiles(nil, twoAxes); err == nil {
		t.Error("expected error for no profiles")
	}
}
