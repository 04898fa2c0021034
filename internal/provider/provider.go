// Package provider defines the capability interface every generative
// backend implements, plus the wrappers shared by all of them.
package provider

import (
	"context"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
)

// Provider is a generative backend.
type Provider interface {
	Name() string

	// HealthCheck is a cheap connectivity/authorization probe. A non-nil
	// error means the provider should be skipped for this call.
	HealthCheck(ctx context.Context) error

	GenerateKeywords(ctx context.Context, req *Request) (*KeywordsResponse, error)
	GenerateAxes(ctx context.Context, req *Request) (*AxesResponse, error)
	GenerateScenario(ctx context.Context, req *Request) (*ScenarioResponse, error)
	AnalyzeResults(ctx context.Context, req *Request) (*AnalysisResponse, error)
}

// Request is the uniform envelope passed to every operation.
type Request struct {
	Task      domain.Operation
	SessionID string
	Inputs    TemplateData
	Context   RequestContext
}

// RequestContext carries session state the backend may use for tone.
type RequestContext struct {
	State   domain.State
	Keyword string
	ThemeID string
}

// TemplateData holds the structured prompt inputs. Fields irrelevant to a
// task are left empty.
type TemplateData struct {
	Character       string
	Keyword         string
	ThemeID         string
	SceneIndex      int
	Axes            []domain.Axis
	PreviousChoices []PreviousChoice
	Scores          []domain.AxisScore
	DominantAxes    []string
	Polarity        string
}

// PreviousChoice summarises an earlier decision for narrative continuity.
type PreviousChoice struct {
	SceneIndex int
	Narrative  string
	ChoiceText string
}

// Usage reports what a call consumed.
type Usage struct {
	Model        string
	InputTokens  int
	OutputTokens int
}

// UsageInfo returns the usage. It is promoted through every response type.
func (u Usage) UsageInfo() Usage {
	return u
}

// Metered is implemented by every response type.
type Metered interface {
	UsageInfo() Usage
}

type KeywordsResponse struct {
	Keywords []domain.Keyword
	Usage
}

type AxesResponse struct {
	Axes []domain.Axis
	Usage
}

type ScenarioResponse struct {
	Narrative string
	Choices   []domain.Choice
	Usage
}

type AnalysisResponse struct {
	Profiles []domain.TypeProfile
	Usage
}

// History summarises the choices recorded so far, in scene order, for
// prompts that need narrative continuity.
func History(sess *domain.Session) []PreviousChoice {
	out := make([]PreviousChoice, 0, len(sess.Choices))
	for _, rec := range sess.Choices {
		pc := PreviousChoice{SceneIndex: rec.SceneIndex}
		if scene, ok := sess.Scene(rec.SceneIndex); ok {
			pc.Narrative = scene.Narrative
			if ch, ok := scene.Choice(rec.ChoiceID); ok {
				pc.ChoiceText = ch.Text
			}
		}
		out = append(out, pc)
	}
	return out
}
