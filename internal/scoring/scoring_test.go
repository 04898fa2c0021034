package scoring

import (
	"math"
	"testing"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// sessionWithPicks builds a session whose i-th recorded choice carries picks[i].
func sessionWithPicks(axes []domain.Axis, picks []domain.Weights) *domain.Session {
	s := domain.NewSession("s1", "a", "adventure")
	s.Axes = axes
	for i, w := range picks {
		idx := i + 1
		scene := domain.Scene{Index: idx, Narrative: "n"}
		for n := 1; n <= domain.ChoicesPerScene; n++ {
			cw := make(domain.Weights, len(axes))
			for j, a := range axes {
				cw[j] = domain.AxisWeight{AxisID: a.ID}
			}
			if n == 1 {
				cw = w
			}
			scene.Choices = append(scene.Choices, domain.Choice{ID: domain.ChoiceID(idx, n), Weights: cw})
		}
		s.Scenes = append(s.Scenes, scene)
		s.Choices = append(s.Choices, domain.ChoiceRecord{SceneIndex: idx, ChoiceID: domain.ChoiceID(idx, 1)})
	}
	return s
}

var twoAxes = []domain.Axis{{ID: "axis_1"}, {ID: "axis_2"}}

func TestCalculateScores_ConcreteScenario(t *testing.T) {
	s := sessionWithPicks(twoAxes, []domain.Weights{
		{{AxisID: "axis_1", Score: 0.8}, {AxisID: "axis_2", Score: 0.2}},
		{{AxisID: "axis_1", Score: 0.1}, {AxisID: "axis_2", Score: -0.9}},
		{{AxisID: "axis_1", Score: -0.2}, {AxisID: "axis_2", Score: 0.3}},
		{{AxisID: "axis_1", Score: -0.7}, {AxisID: "axis_2", Score: -0.3}},
	})

	raw, err := CalculateScores(s)
	if err != nil {
		t.Fatalf("CalculateScores() error = %v", err)
	}
	if v, _ := raw.Get("axis_1"); !approx(v, 0.0) {
		t.Errorf("raw axis_1 = %v, want 0.0", v)
	}
	if v, _ := raw.Get("axis_2"); !approx(v, -0.7) {
		t.Errorf("raw axis_2 = %v, want -0.7", v)
	}

	norm := NormalizeScores(raw)
	if v, _ := norm.Get("axis_1"); !approx(v, 50.0) {
		t.Errorf("normalized axis_1 = %v, want 50.0", v)
	}
	if v, _ := norm.Get("axis_2"); !approx(v, 43.0) {
		t.Errorf("normalized axis_2 = %v, want 43.0", v)
	}
}

func TestCalculateScores_Errors(t *testing.T) {
	t.Run("incomplete choices", func(t *testing.T) {
		s := sessionWithPicks(twoAxes, []domain.Weights{
			{{AxisID: "axis_1", Score: 0.5}, {AxisID: "axis_2", Score: 0.5}},
		})
		_, err := CalculateScores(s)
		if !domain.IsKind(err, domain.ErrorKindIncompleteChoices) {
			t.Fatalf("error = %v, want incomplete choices", err)
		}
	})

	t.Run("axis set mismatch", func(t *testing.T) {
		w := domain.Weights{{AxisID: "axis_1", Score: 0.5}, {AxisID: "courage", Score: 0.5}}
		s := sessionWithPicks(twoAxes, []domain.Weights{w, w, w, w})
		_, err := CalculateScores(s)
		if !domain.IsKind(err, domain.ErrorKindValidation) {
			t.Fatalf("error = %v, want validation error", err)
		}
	})

	t.Run("unknown choice", func(t *testing.T) {
		w := domain.Weights{{AxisID: "axis_1", Score: 0.5}, {AxisID: "axis_2", Score: 0.5}}
		s := sessionWithPicks(twoAxes, []domain.Weights{w, w, w, w})
		s.Choices[2].ChoiceID = "choice_9_9"
		_, err := CalculateScores(s)
		if !domain.IsKind(err, domain.ErrorKindValidation) {
			t.Fatalf("error = %v, want validation error", err)
		}
	})
}

func TestNormalize(t *testing.T) {
	if got := Normalize(-5); got != 0 {
		t.Errorf("Normalize(-5) = %v, want 0", got)
	}
	if got := Normalize(5); got != 100 {
		t.Errorf("Normalize(5) = %v, want 100", got)
	}
	if got := Normalize(0); got != 50 {
		t.Errorf("Normalize(0) = %v, want 50", got)
	}

	prev := Normalize(-5)
	for r := -5.0; r <= 5.0; r += 0.05 {
		got := Normalize(r)
		if got < -1e-9 || got > 100+1e-9 {
			t.Fatalf("Normalize(%v) = %v outside [0, 100]", r, got)
		}
		if got < prev {
			t.Fatalf("Normalize not monotonic at %v: %v < %v", r, got, prev)
		}
		prev = got
	}
}

func TestDominantAxes(t *testing.T) {
	tests := []struct {
		name string
		in   Scores
		want []string
	}{
		{
			name: "highest two",
			in:   Scores{{"axis_1", 40}, {"axis_2", 70}, {"axis_3", 65}},
			want: []string{"axis_2", "axis_3"},
		},
		{
			name: "ties keep axis order",
			in:   Scores{{"axis_1", 60}, {"axis_2", 60}, {"axis_3", 60}},
			want: []string{"axis_1", "axis_2"},
		},
		{
			name: "tie for second",
			in:   Scores{{"axis_1", 80}, {"axis_2", 50}, {"axis_3", 50}},
			want: []string{"axis_1", "axis_2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DominantAxes(tt.in)
			if err != nil {
				t.Fatalf("DominantAxes() error = %v", err)
			}
			if got[0] != tt.want[0] || got[1] != tt.want[1] {
				t.Errorf("DominantAxes() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := DominantAxes(Scores{{"axis_1", 50}}); err == nil {
		t.Error("expected error with a single axis")
	}
}

func TestClassifyPolarity(t *testing.T) {
	tests := []struct {
		score float64
		want  Polarity
	}{
		{100, PolarityHi},
		{65.01, PolarityHi},
		{65, PolarityNeutral},
		{50, PolarityNeutral},
		{35, PolarityNeutral},
		{34.99, PolarityLo},
		{0, PolarityLo},
	}
	for _, tt := range tests {
		if got := ClassifyPolarity(tt.score); got != tt.want {
			t.Errorf("ClassifyPolarity(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestPolarityLabelAndStrength(t *testing.T) {
	norm := Scores{{"axis_1", 90}, {"axis_2", 20}, {"axis_3", 55}}
	dominant := []string{"axis_1", "axis_2"}

	if got := PolarityLabel(norm, dominant); got != "Hi-Lo" {
		t.Errorf("PolarityLabel() = %q, want Hi-Lo", got)
	}
	// (40 + 30) / 2 = 35 -> 70% of the maximum distance.
	if got := TypeStrength(norm, dominant); !approx(got, 70) {
		t.Errorf("TypeStrength() = %v, want 70", got)
	}
	if got := TypeStrength(Scores{{"a", 50}, {"b", 50}}, []string{"a", "b"}); got != 0 {
		t.Errorf("TypeStrength(midpoint) = %v, want 0", got)
	}
	if got := TypeStrength(Scores{{"a", 100}, {"b", 0}}, []string{"a", "b"}); got != 100 {
		t.Errorf("TypeStrength(extremes) = %v, want 100", got)
	}
}

func TestIsDegenerateAndStrongAxes(t *testing.T) {
	if !IsDegenerate(Scores{{"a", 0}, {"b", 0}}) {
		t.Error("IsDegenerate(all zero) = false")
	}
	if IsDegenerate(Scores{{"a", 0}, {"b", 0.1}}) {
		t.Error("IsDegenerate(non-zero) = true")
	}

	strong := StrongAxes(Scores{{"a", 60}, {"b", 55}, {"c", 45}, {"d", 40}})
	if len(strong) != 2 || strong[0] != "a" || strong[1] != "d" {
		t.Errorf("StrongAxes() = %v, want [a d]", strong)
	}
}

func TestAxisScoresAndFromMap(t *testing.T) {
	raw := Scores{{"axis_1", 1}, {"axis_2", -2}}
	out := AxisScores(raw, NormalizeScores(raw))
	if len(out) != 2 || out[0].Score != 60 || out[1].Score != 30 || out[1].RawScore != -2 {
		t.Errorf("AxisScores() = %+v", out)
	}

	back := FromMap(twoAxes, raw.Map())
	if len(back) != 2 || back[0].AxisID != "axis_1" || back[1].Value != -2 {
		t.Errorf("FromMap() = %+v", back)
	}
}
