// Package result produces the final diagnosis of a session exactly once,
// no matter how many concurrent requests ask for it.
package result

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/events"
	"github.com/tjfontaine/polyglot-persona/internal/fallback"
	"github.com/tjfontaine/polyglot-persona/internal/metrics"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
	"github.com/tjfontaine/polyglot-persona/internal/scoring"
	"github.com/tjfontaine/polyglot-persona/internal/session"
)

// Analyzer produces type profiles for scored inputs. The orchestrator
// implements it.
type Analyzer interface {
	AnalyzeResults(ctx context.Context, sess *domain.Session, inputs provider.TemplateData) ([]domain.TypeProfile, error)
}

// Payload is the result returned to the caller.
type Payload struct {
	SessionID     string               `json:"session_id"`
	Keyword       string               `json:"keyword"`
	Scores        []domain.AxisScore   `json:"scores"`
	DominantAxes  []string             `json:"dominant_axes"`
	Polarity      string               `json:"polarity"`
	TypeStrength  float64              `json:"type_strength"`
	StrongAxes    []string             `json:"strong_axes"`
	Profile       domain.TypeProfile   `json:"profile"`
	Profiles      []domain.TypeProfile `json:"profiles"`
	FallbackFlags []string             `json:"fallback_flags"`
	CompletedAt   time.Time            `json:"completed_at"`
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) {
		c.publisher = p
	}
}

// WithMetrics records fallback activations and served results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// Coordinator turns a completed PLAY session into a RESULT session.
type Coordinator struct {
	store     *session.Store
	analyzer  Analyzer
	assets    *fallback.Assets
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a coordinator.
func New(store *session.Store, analyzer Analyzer, assets *fallback.Assets, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		analyzer:  analyzer,
		assets:    assets,
		publisher: events.Nop{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate returns the result of a session, computing it on first use.
// Calls for the same session serialize on the session's generation lock;
// a caller that waited observes the stored result instead of recomputing.
func (c *Coordinator) Generate(ctx context.Context, id string) (*Payload, error) {
	unlock, err := c.store.LockGeneration(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Read only after the lock is held so a previous holder's result is visible.
	sess, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sess.State == domain.StateResult {
		payload, err := cached(sess)
		if err != nil {
			return nil, err
		}
		c.metrics.ResultServed(true)
		return payload, nil
	}

	if err := CheckPreconditions(sess); err != nil {
		return nil, err
	}

	raw, err := scoring.CalculateScores(sess)
	if err != nil {
		return nil, err
	}
	if scoring.IsDegenerate(raw) {
		return nil, domain.ErrDegenerateScores()
	}
	normalized := scoring.NormalizeScores(raw)
	dominant, err := scoring.DominantAxes(normalized)
	if err != nil {
		return nil, err
	}
	polarity := scoring.PolarityLabel(normalized, dominant)
	axisScores := scoring.AxisScores(raw, normalized)

	errorsBefore := len(sess.ProviderErrors)
	profiles, err := c.analyzer.AnalyzeResults(ctx, sess, provider.TemplateData{
		Character:       sess.Character,
		Keyword:         sess.Keyword,
		ThemeID:         sess.ThemeID,
		Axes:            sess.Axes,
		PreviousChoices: provider.History(sess),
		Scores:          axisScores,
		DominantAxes:    dominant,
		Polarity:        polarity,
	})
	usedFallback := false
	if err != nil {
		if !domain.IsKind(err, domain.ErrorKindAllProvidersFailed) {
			return nil, err
		}
		c.logger.Warn("analysis fell back to static profiles",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()))
		profiles = c.assets.TypeProfiles(sess.Axes, dominant, polarity)
		sess.AddFallbackFlag(string(domain.OpAnalysis))
		c.metrics.FallbackActivated(string(domain.OpAnalysis))
		usedFallback = true
	}

	completedAt := c.now().UTC()
	sess.RawScores = raw.Map()
	sess.Scores = axisScores
	sess.TypeProfiles = orderProfiles(profiles, dominant, polarity)
	sess.State = domain.StateResult
	sess.CompletedAt = &completedAt

	if err := c.store.Update(ctx, sess); err != nil {
		return nil, err
	}

	payload, err := cached(sess)
	if err != nil {
		return nil, err
	}
	c.metrics.ResultServed(false)
	c.publish(ctx, sess, payload, sess.ProviderErrors[errorsBefore:], usedFallback)

	c.logger.Info("result generated",
		slog.String("session_id", sess.ID),
		slog.String("profile", payload.Profile.Name),
		slog.String("polarity", polarity),
		slog.Bool("fallback", usedFallback))
	return payload, nil
}

func (c *Coordinator) publish(ctx context.Context, sess *domain.Session, p *Payload, errs []domain.ProviderErrorRecord, usedFallback bool) {
	evt := events.New(events.TypeResultGenerated, sess.ID, map[string]any{
		"profile":       p.Profile.Name,
		"dominant_axes": p.DominantAxes,
		"polarity":      p.Polarity,
		"type_strength": p.TypeStrength,
	})
	if meta, ok := sess.Generation[domain.OpAnalysis]; ok && !usedFallback {
		evt.Generation = &meta
	}
	evt.ProviderErrors = slices.Clone(errs)
	events.Send(ctx, c.publisher, c.logger, evt)

	if usedFallback {
		events.Send(ctx, c.publisher, c.logger, events.New(events.TypeFallbackActivated, sess.ID, map[string]any{
			"operation": string(domain.OpAnalysis),
		}))
	}
}

// CheckPreconditions verifies that a session has everything scoring needs.
func CheckPreconditions(sess *domain.Session) error {
	if err := session.RequireState(sess, domain.StatePlay); err != nil {
		return err
	}
	if !sess.HasKeyword() {
		return domain.ErrValidation("session %s has no confirmed keyword", sess.ID)
	}
	if len(sess.Axes) < domain.MinAxes {
		return domain.ErrValidation("session %s has %d axes, need at least %d", sess.ID, len(sess.Axes), domain.MinAxes)
	}
	if len(sess.Choices) != domain.SceneCount {
		return domain.ErrIncompleteChoices(len(sess.Choices), domain.SceneCount)
	}
	if len(sess.Scenes) != domain.SceneCount {
		return domain.ErrValidation("session %s has %d scenes, need %d", sess.ID, len(sess.Scenes), domain.SceneCount)
	}
	for _, sc := range sess.Scenes {
		if strings.TrimSpace(sc.Narrative) == "" {
			return domain.ErrValidation("scene %d has an empty narrative", sc.Index)
		}
	}
	return nil
}

// cached rebuilds the payload from the scores and profiles stored on a
// RESULT session.
func cached(sess *domain.Session) (*Payload, error) {
	if len(sess.Scores) == 0 || len(sess.TypeProfiles) == 0 || sess.CompletedAt == nil {
		return nil, domain.ErrInvalidState("session %s has no stored result", sess.ID)
	}

	normalized := make(scoring.Scores, len(sess.Scores))
	for i, s := range sess.Scores {
		normalized[i] = scoring.Score{AxisID: s.AxisID, Value: s.Score}
	}
	dominant, err := scoring.DominantAxes(normalized)
	if err != nil {
		return nil, err
	}
	polarity := scoring.PolarityLabel(normalized, dominant)

	profiles := make([]domain.TypeProfile, len(sess.TypeProfiles))
	for i, p := range sess.TypeProfiles {
		profiles[i] = p.Clone()
	}

	return &Payload{
		SessionID:     sess.ID,
		Keyword:       sess.Keyword,
		Scores:        slices.Clone(sess.Scores),
		DominantAxes:  dominant,
		Polarity:      polarity,
		TypeStrength:  scoring.TypeStrength(normalized, dominant),
		StrongAxes:    scoring.StrongAxes(normalized),
		Profile:       profiles[0],
		Profiles:      profiles,
		FallbackFlags: slices.Clone(sess.FallbackFlags),
		CompletedAt:   *sess.CompletedAt,
	}, nil
}

// orderProfiles moves the profile matching the dominant axes and polarity
// to the front. Without a match the first profile stays selected.
func orderProfiles(profiles []domain.TypeProfile, dominant []string, polarity string) []domain.TypeProfile {
	out := slices.Clone(profiles)
	for i, p := range out {
		if p.Polarity == polarity && sameAxes(p.DominantAxes, dominant) {
			if i > 0 {
				match := out[i]
				copy(out[1:i+1], out[0:i])
				out[0] = match
			}
			break
		}
	}
	return out
}

func sameAxes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, id := range a {
		if !slices.Contains(b, id) {
			return false
		}
	}
	return true
}
