// Package scoring turns recorded choices into axis scores and a type
// classification. Every function here is pure.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
)

const (
	RawMin   = -5.0
	RawMax   = 5.0
	Midpoint = 50.0

	// NeutralBand is the half-width around the midpoint classified as Neutral.
	NeutralBand = 15.0

	// DominanceThreshold is the normalized score at which an axis counts as strong.
	DominanceThreshold = 60.0
)

// Polarity is the qualitative side of a normalized axis score.
type Polarity string

const (
	PolarityHi      Polarity = "Hi"
	PolarityLo      Polarity = "Lo"
	PolarityNeutral Polarity = "Neutral"
)

// Score is one axis value, raw or normalized depending on context.
type Score struct {
	AxisID string
	Value  float64
}

// Scores is an axis-ordered score list.
type Scores []Score

// Get returns the value for an axis.
func (s Scores) Get(axisID string) (float64, bool) {
	for _, sc := range s {
		if sc.AxisID == axisID {
			return sc.Value, true
		}
	}
	return 0, false
}

// Map returns the scores keyed by axis id.
func (s Scores) Map() map[string]float64 {
	m := make(map[string]float64, len(s))
	for _, sc := range s {
		m[sc.AxisID] = sc.Value
	}
	return m
}

// FromMap rebuilds axis-ordered scores from a map. Axes without a value are skipped.
func FromMap(axes []domain.Axis, m map[string]float64) Scores {
	out := make(Scores, 0, len(axes))
	for _, a := range axes {
		if v, ok := m[a.ID]; ok {
			out = append(out, Score{AxisID: a.ID, Value: v})
		}
	}
	return out
}

// round6 strips float summation noise so that exact-zero checks are stable.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// CalculateScores sums the chosen weights of every recorded choice per axis.
func CalculateScores(s *domain.Session) (Scores, error) {
	if len(s.Choices) < domain.SceneCount {
		return nil, domain.ErrIncompleteChoices(len(s.Choices), domain.SceneCount)
	}
	if len(s.Axes) == 0 {
		return nil, domain.ErrValidation("session %s has no axes", s.ID)
	}

	sums := make([]float64, len(s.Axes))
	for _, rec := range s.Choices {
		scene, ok := s.Scene(rec.SceneIndex)
		if !ok {
			return nil, domain.ErrValidation("scene %d missing for recorded choice %s", rec.SceneIndex, rec.ChoiceID)
		}
		choice, ok := scene.Choice(rec.ChoiceID)
		if !ok {
			return nil, domain.ErrValidation("choice %s not found in scene %d", rec.ChoiceID, rec.SceneIndex)
		}
		if err := checkAxisSet(choice.Weights, s.Axes); err != nil {
			return nil, err
		}
		for i, a := range s.Axes {
			v, _ := choice.Weights.Get(a.ID)
			sums[i] += v
		}
	}

	raw := make(Scores, len(s.Axes))
	for i, a := range s.Axes {
		v := round6(sums[i])
		if v < RawMin || v > RawMax {
			return nil, domain.ErrValidation("raw score %.3f for %s outside [%.0f, %.0f]", v, a.ID, RawMin, RawMax)
		}
		raw[i] = Score{AxisID: a.ID, Value: v}
	}
	return raw, nil
}

func checkAxisSet(w domain.Weights, axes []domain.Axis) error {
	if len(w) != len(axes) {
		return domain.ErrValidation("choice weights cover %d axes, session has %d", len(w), len(axes))
	}
	for _, a := range axes {
		if _, ok := w.Get(a.ID); !ok {
			return domain.ErrValidation("choice weights missing axis %s", a.ID)
		}
	}
	return nil
}

// Normalize maps a raw score from [-5, 5] onto [0, 100]. No clamping.
func Normalize(raw float64) float64 {
	return (raw - RawMin) / (RawMax - RawMin) * 100.0
}

// NormalizeScores normalizes every raw score.
func NormalizeScores(raw Scores) Scores {
	out := make(Scores, len(raw))
	for i, r := range raw {
		out[i] = Score{AxisID: r.AxisID, Value: round6(Normalize(r.Value))}
	}
	return out
}

// IsDegenerate reports whether every raw score is exactly zero.
func IsDegenerate(raw Scores) bool {
	for _, r := range raw {
		if r.Value != 0 {
			return false
		}
	}
	return true
}

// DominantAxes returns the two highest-scoring axes. Ties keep axis order.
func DominantAxes(normalized Scores) ([]string, error) {
	if len(normalized) < domain.MinAxes {
		return nil, domain.ErrValidation("need at least %d axes to rank, have %d", domain.MinAxes, len(normalized))
	}
	ranked := make(Scores, len(normalized))
	copy(ranked, normalized)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value > ranked[j].Value
	})
	return []string{ranked[0].AxisID, ranked[1].AxisID}, nil
}

// ClassifyPolarity classifies a normalized score against the neutral band.
func ClassifyPolarity(score float64) Polarity {
	switch {
	case score > Midpoint+NeutralBand:
		return PolarityHi
	case score < Midpoint-NeutralBand:
		return PolarityLo
	default:
		return PolarityNeutral
	}
}

// PolarityLabel joins the polarities of the dominant axes, e.g. "Hi-Lo".
func PolarityLabel(normalized Scores, dominant []string) string {
	parts := make([]string, 0, len(dominant))
	for _, id := range dominant {
		v, _ := normalized.Get(id)
		parts = append(parts, string(ClassifyPolarity(v)))
	}
	return strings.Join(parts, "-")
}

// TypeStrength is the mean distance of the dominant axes from the midpoint,
// scaled to [0, 100].
func TypeStrength(normalized Scores, dominant []string) float64 {
	if len(dominant) == 0 {
		return 0
	}
	var total float64
	for _, id := range dominant {
		v, _ := normalized.Get(id)
		total += math.Abs(v - Midpoint)
	}
	mean := total / float64(len(dominant))
	return round6(math.Min(mean/Midpoint*100.0, 100.0))
}

// StrongAxes lists axes at least as far from the midpoint as the dominance threshold.
func StrongAxes(normalized Scores) []string {
	var out []string
	for _, s := range normalized {
		if math.Abs(s.Value-Midpoint) >= DominanceThreshold-Midpoint {
			out = append(out, s.AxisID)
		}
	}
	return out
}

// AxisScores merges raw and normalized values into the output form.
func AxisScores(raw, normalized Scores) []domain.AxisScore {
	out := make([]domain.AxisScore, len(raw))
	for i, r := range raw {
		n, _ := normalized.Get(r.AxisID)
		out[i] = domain.AxisScore{AxisID: r.AxisID, Score: n, RawScore: r.Value}
	}
	return out
}
