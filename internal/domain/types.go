package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// State is the lifecycle state of a diagnosis session.
type State string

const (
	StateInit   State = "INIT"
	StatePlay   State = "PLAY"
	StateResult State = "RESULT"
)

func (s State) rank() int {
	switch s {
	case StateInit:
		return 0
	case StatePlay:
		return 1
	case StateResult:
		return 2
	}
	return -1
}

// CanAdvanceTo reports whether next is the single legal forward step from s.
func (s State) CanAdvanceTo(next State) bool {
	return s.rank() >= 0 && next.rank() == s.rank()+1
}

// Operation names one generative step. The value doubles as the fallback flag.
type Operation string

const (
	OpKeywords Operation = "keywords"
	OpAxes     Operation = "axes"
	OpScenario Operation = "scenario"
	OpAnalysis Operation = "analysis"
)

const (
	// SceneCount is the number of scenes (and choices) in a full run.
	SceneCount = 4

	// ChoicesPerScene is the number of choices every scene offers.
	ChoicesPerScene = 4

	// KeywordCount is the number of keyword candidates offered.
	KeywordCount = 4

	MinAxes = 2
	MaxAxes = 6
)

// Keyword is a keyword candidate with its reading.
type Keyword struct {
	Word    string `json:"word"`
	Reading string `json:"reading"`
}

// Axis is one bipolar evaluation axis.
type Axis struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Direction   string `json:"direction"`
}

// AxisWeight is one (axis id, score) pair of a choice.
type AxisWeight struct {
	AxisID string  `json:"axis_id"`
	Score  float64 `json:"score"`
}

// Weights is the canonical per-axis weight list of a choice, in axis order.
type Weights []AxisWeight

// UnmarshalJSON accepts either {"axis_1": 0.5, ...} or
// [{"axis_id": "axis_1", "score": 0.5}, ...]. Object keys are kept in
// document order.
func (w *Weights) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*w = nil
		return nil
	}

	switch data[0] {
	case '[':
		var entries []AxisWeight
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("decode weight entries: %w", err)
		}
		*w = entries
		return nil
	case '{':
		dec := json.NewDecoder(bytes.NewReader(data))
		if _, err := dec.Token(); err != nil {
			return err
		}
		var out Weights
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok := tok.(string)
			if !ok {
				return fmt.Errorf("unexpected weight key %v", tok)
			}
			var score float64
			if err := dec.Decode(&score); err != nil {
				return fmt.Errorf("decode weight %q: %w", key, err)
			}
			out = append(out, AxisWeight{AxisID: key, Score: score})
		}
		*w = out
		return nil
	}
	return fmt.Errorf("weights must be an object or an array")
}

// Get returns the score for an axis.
func (w Weights) Get(axisID string) (float64, bool) {
	for _, aw := range w {
		if aw.AxisID == axisID {
			return aw.Score, true
		}
	}
	return 0, false
}

// Ordered returns the weights re-sorted into the given axis order. Axes
// missing from w are skipped.
func (w Weights) Ordered(axes []Axis) Weights {
	out := make(Weights, 0, len(w))
	for _, a := range axes {
		if s, ok := w.Get(a.ID); ok {
			out = append(out, AxisWeight{AxisID: a.ID, Score: s})
		}
	}
	return out
}

// Choice is one selectable option within a scene.
type Choice struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Weights Weights `json:"weights"`
}

// Scene is one narrative step with exactly four choices.
type Scene struct {
	Index     int      `json:"index"`
	Narrative string   `json:"narrative"`
	Choices   []Choice `json:"choices"`
}

// Choice returns the choice with the given id.
func (s *Scene) Choice(id string) (*Choice, bool) {
	for i := range s.Choices {
		if s.Choices[i].ID == id {
			return &s.Choices[i], true
		}
	}
	return nil, false
}

// ChoiceRecord is one recorded user decision.
type ChoiceRecord struct {
	SceneIndex int       `json:"scene_index"`
	ChoiceID   string    `json:"choice_id"`
	ChosenAt   time.Time `json:"chosen_at"`
}

// AxisScore is the scored output for one axis.
type AxisScore struct {
	AxisID   string  `json:"axis_id"`
	Score    float64 `json:"score"`
	RawScore float64 `json:"raw_score"`
}

// TypeProfile is a personality type description.
type TypeProfile struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Traits       []string          `json:"traits"`
	DominantAxes []string          `json:"dominant_axes"`
	Polarity     string            `json:"polarity"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// GenerationMetadata describes the provider call that produced a piece of content.
type GenerationMetadata struct {
	Operation    Operation     `json:"operation"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model,omitempty"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Estimated    bool          `json:"estimated_usage,omitempty"`
	Latency      time.Duration `json:"latency_ns"`
	Cost         float64       `json:"cost"`
	Fallback     bool          `json:"fallback"`
	Attempt      int           `json:"attempt"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// ProviderErrorRecord is a recovered provider failure kept for observability.
type ProviderErrorRecord struct {
	Operation Operation `json:"operation"`
	Provider  string    `json:"provider"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Attempt   int       `json:"attempt"`
	At        time.Time `json:"at"`
}
