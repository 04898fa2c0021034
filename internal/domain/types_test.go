package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestState_CanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateInit, StatePlay, true},
		{StatePlay, StateResult, true},
		{StateInit, StateResult, false},
		{StatePlay, StateInit, false},
		{StateResult, StatePlay, false},
		{StateResult, StateResult, false},
		{State("BOGUS"), StateInit, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanAdvanceTo(tt.to); got != tt.want {
			t.Errorf("%s.CanAdvanceTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestWeights_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Weights
		wantErr bool
	}{
		{
			name:  "object form keeps document order",
			input: `{"axis_2": -0.5, "axis_1": 0.25}`,
			want:  Weights{{AxisID: "axis_2", Score: -0.5}, {AxisID: "axis_1", Score: 0.25}},
		},
		{
			name:  "array form",
			input: `[{"axis_id": "axis_1", "score": 1}, {"axis_id": "axis_2", "score": -1}]`,
			want:  Weights{{AxisID: "axis_1", Score: 1}, {AxisID: "axis_2", Score: -1}},
		},
		{
			name:  "null",
			input: `null`,
			want:  nil,
		},
		{
			name:    "string",
			input:   `"axis_1"`,
			wantErr: true,
		},
		{
			name:    "non-numeric score",
			input:   `{"axis_1": "high"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Weights
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestWeights_Ordered(t *testing.T) {
	w := Weights{{AxisID: "axis_2", Score: 0.2}, {AxisID: "axis_1", Score: 0.1}, {AxisID: "stray", Score: 1}}
	axes := []Axis{{ID: "axis_1"}, {ID: "axis_2"}}

	got := w.Ordered(axes)
	if len(got) != 2 || got[0].AxisID != "axis_1" || got[1].AxisID != "axis_2" {
		t.Errorf("Ordered() = %+v", got)
	}
}

func TestChoiceIDs(t *testing.T) {
	if got := ChoiceID(3, 2); got != "choice_3_2" {
		t.Errorf("ChoiceID() = %q", got)
	}

	tests := []struct {
		id        string
		scene, n  int
		wantError bool
	}{
		{id: "choice_1_1", scene: 1, n: 1},
		{id: "choice_4_4", scene: 4, n: 4},
		{id: "choice_2_5", wantError: true},
		{id: "choice_2_0", wantError: true},
		{id: "choice_5_1", wantError: true},
		{id: "choice_2", wantError: true},
		{id: "option_2_1", wantError: true},
		{id: "choice_a_1", wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			scene, n, err := ParseChoiceID(tt.id)
			if tt.wantError {
				if !IsKind(err, ErrorKindValidation) {
					t.Fatalf("ParseChoiceID() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseChoiceID() error = %v", err)
			}
			if scene != tt.scene || n != tt.n {
				t.Errorf("ParseChoiceID() = (%d, %d), want (%d, %d)", scene, n, tt.scene, tt.n)
			}
		})
	}
}

func TestSession_Clone(t *testing.T) {
	now := time.Now()
	s := NewSession("s1", "a", "adventure")
	s.Axes = []Axis{{ID: "axis_1"}}
	s.Scenes = []Scene{{Index: 1, Choices: []Choice{{ID: "choice_1_1", Weights: Weights{{AxisID: "axis_1", Score: 0.5}}}}}}
	s.RawScores = map[string]float64{"axis_1": 1}
	s.TypeProfiles = []TypeProfile{{Name: "x", DominantAxes: []string{"axis_1", "axis_2"}}}
	s.CompletedAt = &now

	c := s.Clone()
	c.Scenes[0].Choices[0].Weights[0].Score = -1
	c.RawScores["axis_1"] = 2
	c.TypeProfiles[0].DominantAxes[0] = "changed"
	*c.CompletedAt = now.Add(time.Hour)
	c.AddFallbackFlag("axes")

	if s.Scenes[0].Choices[0].Weights[0].Score != 0.5 {
		t.Error("clone shares choice weights")
	}
	if s.RawScores["axis_1"] != 1 {
		t.Error("clone shares raw scores")
	}
	if s.TypeProfiles[0].DominantAxes[0] != "axis_1" {
		t.Error("clone shares profiles")
	}
	if !s.CompletedAt.Equal(now) {
		t.Error("clone shares completion time")
	}
	if len(s.FallbackFlags) != 0 {
		t.Error("clone shares fallback flags")
	}
}

func TestSceneKey(t *testing.T) {
	key := SceneKey(2)
	if key != "scenario:2" {
		t.Errorf("SceneKey(2) = %q", key)
	}
	if key.Base() != OpScenario {
		t.Errorf("Base() = %q", key.Base())
	}
	if OpAxes.Base() != OpAxes {
		t.Errorf("OpAxes.Base() = %q", OpAxes.Base())
	}
}
