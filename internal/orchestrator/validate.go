package orchestrator

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
)

func validateKeywords(keywords []domain.Keyword) error {
	if len(keywords) != domain.KeywordCount {
		return domain.ErrValidation("expected %d keywords, got %d", domain.KeywordCount, len(keywords))
	}
	for i, k := range keywords {
		if strings.TrimSpace(k.Word) == "" {
			return domain.ErrValidation("keyword %d is empty", i+1)
		}
	}
	return nil
}

func validateAxes(axes []domain.Axis) error {
	if len(axes) < domain.MinAxes || len(axes) > domain.MaxAxes {
		return domain.ErrValidation("expected %d-%d axes, got %d", domain.MinAxes, domain.MaxAxes, len(axes))
	}
	seen := make(map[string]bool, len(axes))
	for i, a := range axes {
		if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Name) == "" {
			return domain.ErrValidation("axis %d is missing an id or name", i+1)
		}
		if seen[a.ID] {
			return domain.ErrValidation("duplicate axis id %q", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// normalizeScenario validates a generated scene against the session axes,
// then rewrites choice ids to choice_<index>_<n> and orders every weight
// list by axis.
func normalizeScenario(r *provider.ScenarioResponse, index int, axes []domain.Axis) error {
	if strings.TrimSpace(r.Narrative) == "" {
		return domain.ErrValidation("scene %d narrative is empty", index)
	}
	if len(r.Choices) != domain.ChoicesPerScene {
		return domain.ErrValidation("scene %d: expected %d choices, got %d", index, domain.ChoicesPerScene, len(r.Choices))
	}
	for i := range r.Choices {
		ch := &r.Choices[i]
		if strings.TrimSpace(ch.Text) == "" {
			return domain.ErrValidation("scene %d choice %d has no text", index, i+1)
		}
		if err := checkWeights(ch.Weights, axes); err != nil {
			return domain.ErrValidation("scene %d choice %d: %v", index, i+1, err)
		}
		ch.ID = domain.ChoiceID(index, i+1)
		ch.Weights = ch.Weights.Ordered(axes)
	}
	return nil
}

// checkWeights requires the weight keys to equal the axis set exactly and
// every score to lie in [-1, 1].
func checkWeights(w domain.Weights, axes []domain.Axis) error {
	if len(w) != len(axes) {
		return fmt.Errorf("weights cover %d axes, session has %d", len(w), len(axes))
	}
	known := make(map[string]bool, len(axes))
	for _, a := range axes {
		known[a.ID] = true
	}
	seen := make(map[string]bool, len(w))
	for _, aw := range w {
		if !known[aw.AxisID] {
			return fmt.Errorf("unknown axis %q", aw.AxisID)
		}
		if seen[aw.AxisID] {
			return fmt.Errorf("axis %q weighted twice", aw.AxisID)
		}
		seen[aw.AxisID] = true
		if aw.Score < -1 || aw.Score > 1 {
			return fmt.Errorf("weight %.3f for %q is outside [-1, 1]", aw.Score, aw.AxisID)
		}
	}
	return nil
}

// remapAxisNames rewrites weight keys that name an axis (case-insensitive)
// to the axis id. Keys that are already ids are left alone.
func remapAxisNames(choices []domain.Choice, axes []domain.Axis) {
	byName := make(map[string]string, len(axes))
	ids := make(map[string]bool, len(axes))
	for _, a := range axes {
		byName[strings.ToLower(strings.TrimSpace(a.Name))] = a.ID
		ids[a.ID] = true
	}
	for i := range choices {
		for j, aw := range choices[i].Weights {
			if ids[aw.AxisID] {
				continue
			}
			if id, ok := byName[strings.ToLower(strings.TrimSpace(aw.AxisID))]; ok {
				choices[i].Weights[j].AxisID = id
			}
		}
	}
}

func validateProfiles(profiles []domain.TypeProfile, axes []domain.Axis) error {
	if len(profiles) == 0 {
		return domain.ErrValidation("no type profiles returned")
	}
	known := make(map[string]bool, len(axes))
	for _, a := range axes {
		known[a.ID] = true
	}
	for i, p := range profiles {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Description) == "" {
			return domain.ErrValidation("profile %d is missing a name or description", i+1)
		}
		if len(p.DominantAxes) != 2 {
			return domain.ErrValidation("profile %q: expected 2 dominant axes, got %d", p.Name, len(p.DominantAxes))
		}
		for _, id := range p.DominantAxes {
			if !known[id] {
				return domain.ErrValidation("profile %q: unknown dominant axis %q", p.Name, id)
			}
		}
		if strings.TrimSpace(p.Polarity) == "" {
			return domain.ErrValidation("profile %q has no polarity", p.Name)
		}
	}
	return nil
}
