package prompt

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
)

// KeywordsPayload is the structured output of keyword generation.
type KeywordsPayload struct {
	Keywords []domain.Keyword `json:"keywords"`
}

// AxesPayload is the structured output of axis generation.
type AxesPayload struct {
	Axes []domain.Axis `json:"axes"`
}

// ScenarioPayload is the structured output of scene generation.
type ScenarioPayload struct {
	Narrative string          `json:"narrative"`
	Choices   []domain.Choice `json:"choices"`
}

// ProfilePayload is a type profile without free-form metadata, so the
// schema stays closed.
type ProfilePayload struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Traits       []string `json:"traits"`
	DominantAxes []string `json:"dominant_axes"`
	Polarity     string   `json:"polarity"`
}

// AnalysisPayload is the structured output of result analysis.
type AnalysisPayload struct {
	Profiles []ProfilePayload `json:"profiles"`
}

// ToProfiles converts the payload into domain profiles tagged with source.
func (a AnalysisPayload) ToProfiles(source string) []domain.TypeProfile {
	out := make([]domain.TypeProfile, len(a.Profiles))
	for i, p := range a.Profiles {
		out[i] = domain.TypeProfile{
			Name:         p.Name,
			Description:  p.Description,
			Traits:       p.Traits,
			DominantAxes: p.DominantAxes,
			Polarity:     p.Polarity,
			Metadata:     map[string]string{"source": source},
		}
	}
	return out
}

var (
	schemaOnce  sync.Once
	schemaCache map[domain.Operation]map[string]any
)

// SchemaFor returns the JSON schema of a task's structured output.
func SchemaFor(task domain.Operation) (map[string]any, error) {
	schemaOnce.Do(func() {
		schemaCache = map[domain.Operation]map[string]any{
			domain.OpKeywords: GenerateSchema[KeywordsPayload](),
			domain.OpAxes:     GenerateSchema[AxesPayload](),
			domain.OpScenario: GenerateSchema[ScenarioPayload](),
			domain.OpAnalysis: GenerateSchema[AnalysisPayload](),
		}
	})
	s, ok := schemaCache[task]
	if !ok {
		return nil, fmt.Errorf("no schema for task %q", task)
	}
	return s, nil
}

// GenerateSchema reflects T into a closed JSON schema accepted by strict
// structured-output modes.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	schemaObj, err := schemaToMap(schema)
	if err != nil {
		panic(err)
	}
	delete(schemaObj, "$schema")
	delete(schemaObj, "$id")
	ensureStrict(schemaObj)
	return schemaObj
}

func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

// ensureStrict closes every object and marks all of its properties required.
func ensureStrict(schema map[string]any) {
	if schemaType, ok := schema[typeKey].(string); ok && schemaType == "object" {
		schema[additionalPropertiesKey] = false

		if properties, ok := schema[propertiesKey].(map[string]any); ok {
			var requiredFields []string
			for propName := range properties {
				requiredFields = append(requiredFields, propName)
			}
			if len(requiredFields) > 0 {
				schema[requiredKey] = requiredFields
			}
		}
	}

	if properties, ok := schema[propertiesKey].(map[string]any); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]any); ok {
				ensureStrict(propMap)
			}
		}
	}

	if items, ok := schema[itemsKey].(map[string]any); ok {
		ensureStrict(items)
	}
}
