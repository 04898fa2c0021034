// Package prompt renders provider prompts from structured template data
// and decodes the JSON the models send back.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
)

// Rendered is a system/user prompt pair.
type Rendered struct {
	System string
	User   string
}

const systemBase = `You are the narrator of a short interactive personality diagnosis.
Always answer with a single JSON object and nothing else.`

var templates = template.Must(template.New("prompts").Parse(`
{{define "keywords"}}The player introduced themselves with the character "{{.Character}}".
Suggest {{.KeywordCount}} evocative single-word keywords inspired by that character.
Return {"keywords": [{"word": "...", "reading": "..."}]} with exactly {{.KeywordCount}} entries.{{end}}

{{define "axes"}}The chosen keyword is "{{.Keyword}}" and the theme is "{{.ThemeID}}".
Define between {{.MinAxes}} and {{.MaxAxes}} bipolar personality axes that scenes themed on this keyword can probe.
Use ids axis_1, axis_2, ... in order. Each axis needs a name, a one-sentence description and a direction label "High pole / Low pole".
Return {"axes": [{"id": "axis_1", "name": "...", "description": "...", "direction": "..."}]}.{{end}}

{{define "scenario"}}Theme: {{.ThemeID}}. Keyword: "{{.Keyword}}". Write scene {{.SceneIndex}} of {{.SceneCount}}.
{{- if .PreviousChoices}}
Story so far:
{{- range .PreviousChoices}}
- Scene {{.SceneIndex}}: {{.ChoiceText}}
{{- end}}
{{- end}}
Axes:
{{- range .Axes}}
- {{.ID}} ({{.Name}}): {{.Direction}}
{{- end}}
Offer exactly {{.ChoicesPerScene}} choices with ids choice_{{.SceneIndex}}_1 to choice_{{.SceneIndex}}_{{.ChoicesPerScene}}.
Every choice must weight every axis id listed above with a score between -1.0 and 1.0.
Return {"narrative": "...", "choices": [{"id": "...", "text": "...", "weights": [{"axis_id": "axis_1", "score": 0.5}]}]}.{{end}}

{{define "analysis"}}Keyword: "{{.Keyword}}". Final axis scores (0-100, 50 is neutral):
{{- range .Scores}}
- {{.AxisID}}: {{printf "%.1f" .Score}}
{{- end}}
Dominant axes: {{range $i, $a := .DominantAxes}}{{if $i}}, {{end}}{{$a}}{{end}}. Polarity: {{.Polarity}}.
Describe the personality type. The first profile must use exactly these dominant axes and this polarity.
Return {"profiles": [{"name": "...", "description": "...", "traits": ["..."], "dominant_axes": ["...", "..."], "polarity": "..."}]}.{{end}}
`))

type view struct {
	provider.TemplateData
	KeywordCount    int
	MinAxes         int
	MaxAxes         int
	SceneCount      int
	ChoicesPerScene int
}

// Render builds the prompt pair for a request.
func Render(req *provider.Request) (Rendered, error) {
	if templates.Lookup(string(req.Task)) == nil {
		return Rendered{}, fmt.Errorf("no prompt template for task %q", req.Task)
	}

	v := view{
		TemplateData:    req.Inputs,
		KeywordCount:    domain.KeywordCount,
		MinAxes:         domain.MinAxes,
		MaxAxes:         domain.MaxAxes,
		SceneCount:      domain.SceneCount,
		ChoicesPerScene: domain.ChoicesPerScene,
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(req.Task), v); err != nil {
		return Rendered{}, fmt.Errorf("render %s prompt: %w", req.Task, err)
	}
	return Rendered{System: systemBase, User: strings.TrimSpace(buf.String())}, nil
}

// DecodeJSON decodes the first JSON object found in model text into v.
// Markdown fences and surrounding prose are ignored. Failures are
// validation errors.
func DecodeJSON(text string, v any) error {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return domain.ErrValidation("response contains no JSON object")
	}
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("malformed JSON response: %v", err).WithCause(err)
	}
	return nil
}
