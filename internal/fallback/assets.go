// Package fallback provides deterministic static content used when every
// generative provider fails. Nothing here performs I/O.
package fallback

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
)

// DefaultThemeID is used for unknown themes.
const DefaultThemeID = "adventure"

// Assets serves keyword candidates, axes, scenes and type profiles.
type Assets struct{}

// New creates the static asset provider.
func New() *Assets {
	return &Assets{}
}

// KeywordCandidates returns four keyword candidates seeded by the first
// letter of character. Unknown characters rotate through a shared pool.
func (a *Assets) KeywordCandidates(character string) []domain.Keyword {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(character))
	lower := unicode.ToLower(r)

	if words, ok := keywordsByLetter[lower]; ok {
		return toKeywords(words[:])
	}

	start := 0
	if r != utf8.RuneError {
		start = int(r) % len(keywordPool)
	}
	words := make([]string, 0, domain.KeywordCount)
	for i := 0; i < domain.KeywordCount; i++ {
		words = append(words, keywordPool[(start+i)%len(keywordPool)])
	}
	return toKeywords(words)
}

func toKeywords(words []string) []domain.Keyword {
	out := make([]domain.Keyword, len(words))
	for i, w := range words {
		out[i] = domain.Keyword{Word: w, Reading: strings.ToLower(w)}
	}
	return out
}

// DefaultAxes returns the built-in evaluation axes.
func (a *Assets) DefaultAxes() []domain.Axis {
	out := make([]domain.Axis, len(defaultAxes))
	copy(out, defaultAxes)
	return out
}

// ThemeIDs lists the themes with dedicated scene text.
func (a *Assets) ThemeIDs() []string {
	ids := make([]string, 0, len(themes))
	for id := range themes {
		ids = append(ids, id)
	}
	return ids
}

// choicePattern spreads weights so that every axis sees each value once per scene.
var choicePattern = [domain.ChoicesPerScene]float64{0.8, -0.6, 0.3, -0.4}

// Scene returns the static scene for a 1-based index. Choice weights cover
// exactly the given axes, in axis order.
func (a *Assets) Scene(index int, themeID, keyword string, axes []domain.Axis) domain.Scene {
	th, ok := themes[themeID]
	if !ok {
		th = themes[DefaultThemeID]
	}
	if index < 1 {
		index = 1
	}
	beat := th.beats[(index-1)%len(th.beats)]
	if keyword == "" {
		keyword = "the unknown"
	}

	scene := domain.Scene{
		Index:     index,
		Narrative: fmt.Sprintf(beat.narrative, keyword),
		Choices:   make([]domain.Choice, domain.ChoicesPerScene),
	}
	for n := 1; n <= domain.ChoicesPerScene; n++ {
		weights := make(domain.Weights, len(axes))
		for j, ax := range axes {
			weights[j] = domain.AxisWeight{
				AxisID: ax.ID,
				Score:  choicePattern[(n-1+j+index)%len(choicePattern)],
			}
		}
		scene.Choices[n-1] = domain.Choice{
			ID:      domain.ChoiceID(index, n),
			Text:    beat.choices[n-1],
			Weights: weights,
		}
	}
	return scene
}

// TypeProfiles returns the static profiles for a dominant axis pair. The
// first profile matches the requested polarity; the others cover the
// remaining Hi/Lo combinations of the same pair.
func (a *Assets) TypeProfiles(axes []domain.Axis, dominant []string, polarity string) []domain.TypeProfile {
	if len(dominant) < 2 {
		if len(axes) < 2 {
			return nil
		}
		dominant = []string{axes[0].ID, axes[1].ID}
	}
	first := axisByID(axes, dominant[0])
	second := axisByID(axes, dominant[1])

	labels := []string{polarity}
	for _, l := range []string{"Hi-Hi", "Hi-Lo", "Lo-Hi", "Lo-Lo"} {
		if l != polarity {
			labels = append(labels, l)
		}
	}

	out := make([]domain.TypeProfile, 0, len(labels))
	for _, label := range labels {
		p1, p2, _ := strings.Cut(label, "-")
		out = append(out, domain.TypeProfile{
			Name: fmt.Sprintf("The %s %s", adjective(p1, first), noun(p2, second)),
			Description: fmt.Sprintf("%s on %s and %s on %s.",
				describe(p1), nameOf(first), strings.ToLower(describe(p2)), nameOf(second)),
			Traits:       []string{trait(p1, first), trait(p2, second)},
			DominantAxes: []string{dominant[0], dominant[1]},
			Polarity:     label,
			Metadata:     map[string]string{"source": "static"},
		})
	}
	return out
}

func axisByID(axes []domain.Axis, id string) domain.Axis {
	for _, a := range axes {
		if a.ID == id {
			return a
		}
	}
	return domain.Axis{ID: id, Name: id}
}

func nameOf(a domain.Axis) string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

func describe(pol string) string {
	switch pol {
	case "Hi":
		return "Leans strongly high"
	case "Lo":
		return "Leans strongly low"
	default:
		return "Stays balanced"
	}
}

// pole splits an axis direction label such as "Bold / Careful".
func pole(a domain.Axis, pol string) string {
	hi, lo, ok := strings.Cut(a.Direction, "/")
	if !ok {
		return nameOf(a)
	}
	switch pol {
	case "Hi":
		return strings.TrimSpace(hi)
	case "Lo":
		return strings.TrimSpace(lo)
	}
	return nameOf(a)
}

func adjective(pol string, a domain.Axis) string {
	if pol == "Neutral" {
		return "Balanced"
	}
	return pole(a, pol)
}

func noun(pol string, a domain.Axis) string {
	switch pol {
	case "Hi":
		return pole(a, pol) + " Seeker"
	case "Lo":
		return pole(a, pol) + " Keeper"
	}
	return "Wanderer"
}

func trait(pol string, a domain.Axis) string {
	if pol == "Neutral" {
		return "balanced " + strings.ToLower(nameOf(a))
	}
	return strings.ToLower(pole(a, pol))
}
