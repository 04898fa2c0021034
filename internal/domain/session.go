package domain

import (
	"maps"
	"slices"
	"time"
)

// Session is the aggregate root of one diagnosis run.
type Session struct {
	ID                string                           `json:"id"`
	State             State                            `json:"state"`
	Character         string                           `json:"character"`
	KeywordCandidates []Keyword                        `json:"keyword_candidates"`
	Keyword           string                           `json:"keyword,omitempty"`
	ThemeID           string                           `json:"theme_id"`
	Axes              []Axis                           `json:"axes"`
	Scenes            []Scene                          `json:"scenes"`
	Choices           []ChoiceRecord                   `json:"choices"`
	RawScores         map[string]float64               `json:"raw_scores,omitempty"`
	Scores            []AxisScore                      `json:"scores,omitempty"`
	TypeProfiles      []TypeProfile                    `json:"type_profiles,omitempty"`
	FallbackFlags     []string                         `json:"fallback_flags"`
	Generation        map[Operation]GenerationMetadata `json:"generation"`
	ProviderErrors    []ProviderErrorRecord            `json:"provider_errors,omitempty"`
	CreatedAt         time.Time                        `json:"created_at"`
	UpdatedAt         time.Time                        `json:"updated_at"`
	CompletedAt       *time.Time                       `json:"completed_at,omitempty"`

	// Version is bumped by every store write. A write carrying an older
	// version is rejected.
	Version int64 `json:"version"`
}

// NewSession creates a session in the INIT state.
func NewSession(id, character, themeID string) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		State:      StateInit,
		Character:  character,
		ThemeID:    themeID,
		Generation: make(map[Operation]GenerationMetadata),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// HasKeyword reports whether a keyword has been confirmed.
func (s *Session) HasKeyword() bool {
	return s.Keyword != ""
}

// Scene returns the scene at a 1-based index.
func (s *Session) Scene(index int) (*Scene, bool) {
	for i := range s.Scenes {
		if s.Scenes[i].Index == index {
			return &s.Scenes[i], true
		}
	}
	return nil, false
}

// ChoiceFor returns the recorded choice for a 1-based scene index.
func (s *Session) ChoiceFor(index int) (*ChoiceRecord, bool) {
	for i := range s.Choices {
		if s.Choices[i].SceneIndex == index {
			return &s.Choices[i], true
		}
	}
	return nil, false
}

// AxisIDs returns the session's axis ids in order.
func (s *Session) AxisIDs() []string {
	ids := make([]string, len(s.Axes))
	for i, a := range s.Axes {
		ids[i] = a.ID
	}
	return ids
}

// AddFallbackFlag records that an operation degraded to static content.
func (s *Session) AddFallbackFlag(flag string) {
	s.FallbackFlags = append(s.FallbackFlags, flag)
}

// RecordGeneration stores metadata for a successful provider call.
func (s *Session) RecordGeneration(key Operation, meta GenerationMetadata) {
	if s.Generation == nil {
		s.Generation = make(map[Operation]GenerationMetadata)
	}
	s.Generation[key] = meta
}

// RecordProviderError stores a recovered provider failure.
func (s *Session) RecordProviderError(rec ProviderErrorRecord) {
	s.ProviderErrors = append(s.ProviderErrors, rec)
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.KeywordCandidates = slices.Clone(s.KeywordCandidates)
	c.Axes = slices.Clone(s.Axes)
	c.Scenes = make([]Scene, len(s.Scenes))
	for i, sc := range s.Scenes {
		c.Scenes[i] = sc.clone()
	}
	c.Choices = slices.Clone(s.Choices)
	c.RawScores = maps.Clone(s.RawScores)
	c.Scores = slices.Clone(s.Scores)
	c.TypeProfiles = make([]TypeProfile, len(s.TypeProfiles))
	for i, p := range s.TypeProfiles {
		c.TypeProfiles[i] = p.Clone()
	}
	c.FallbackFlags = slices.Clone(s.FallbackFlags)
	c.Generation = maps.Clone(s.Generation)
	c.ProviderErrors = slices.Clone(s.ProviderErrors)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (sc Scene) clone() Scene {
	out := sc
	out.Choices = make([]Choice, len(sc.Choices))
	for i, ch := range sc.Choices {
		ch.Weights = slices.Clone(ch.Weights)
		out.Choices[i] = ch
	}
	return out
}

// Clone returns a deep copy of the profile.
func (p TypeProfile) Clone() TypeProfile {
	p.Traits = slices.Clone(p.Traits)
	p.DominantAxes = slices.Clone(p.DominantAxes)
	p.Metadata = maps.Clone(p.Metadata)
	return p
}
