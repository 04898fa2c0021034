// Package flow implements the session operations exposed to clients:
// creating a session, confirming a keyword, walking through the scenes and
// producing the result. Every generative step degrades to static content
// when the provider chain is exhausted.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/events"
	"github.com/tjfontaine/polyglot-persona/internal/fallback"
	"github.com/tjfontaine/polyglot-persona/internal/metrics"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
	"github.com/tjfontaine/polyglot-persona/internal/result"
	"github.com/tjfontaine/polyglot-persona/internal/session"
)

// staleRetries bounds how often SubmitChoice re-reads a session that
// changed under it.
const staleRetries = 3

// Generator runs the generative operations of a session. The orchestrator
// implements it.
type Generator interface {
	GenerateKeywords(ctx context.Context, sess *domain.Session, inputs provider.TemplateData) ([]domain.Keyword, error)
	GenerateAxes(ctx context.Context, sess *domain.Session, inputs provider.TemplateData) ([]domain.Axis, error)
	GenerateScenario(ctx context.Context, sess *domain.Session, inputs provider.TemplateData) (*domain.Scene, error)
}

// Option configures the service.
type Option func(*Service)

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithMetrics records fallback activations and the live session gauge.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides time.Now for choice timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service composes the session store, the generator and the result
// coordinator.
type Service struct {
	store     *session.Store
	generator Generator
	results   *result.Coordinator
	assets    *fallback.Assets
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a session service.
func New(store *session.Store, generator Generator, results *result.Coordinator, assets *fallback.Assets, opts ...Option) *Service {
	s := &Service{
		store:     store,
		generator: generator,
		results:   results,
		assets:    assets,
		publisher: events.Nop{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession starts a session in INIT with four keyword candidates.
func (s *Service) CreateSession(ctx context.Context, character, themeID string) (*domain.Session, error) {
	character = strings.TrimSpace(character)
	if character == "" {
		return nil, domain.ErrValidation("character is required")
	}
	themeID = strings.TrimSpace(themeID)
	if themeID == "" {
		themeID = fallback.DefaultThemeID
	}

	sess := domain.NewSession(session.NewID(), character, themeID)
	step := s.begin(sess, domain.OpKeywords)

	keywords, err := s.generator.GenerateKeywords(ctx, sess, provider.TemplateData{
		Character: character,
		ThemeID:   themeID,
	})
	if err != nil {
		if err := step.degrade(err); err != nil {
			return nil, err
		}
		keywords = s.assets.KeywordCandidates(character)
	}
	sess.KeywordCandidates = keywords

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.metrics.SetLiveSessions(s.store.Len())

	step.publish(ctx, events.TypeSessionCreated, map[string]any{
		"character": character,
		"theme_id":  themeID,
	})
	s.logger.Info("session created",
		slog.String("session_id", sess.ID),
		slog.String("theme_id", themeID),
		slog.Bool("fallback", step.fellBack))
	return sess, nil
}

// ConfirmKeyword picks one of the keyword candidates, generates the axes
// and moves the session to PLAY.
func (s *Service) ConfirmKeyword(ctx context.Context, id, keyword string) (*domain.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := session.RequireState(sess, domain.StateInit); err != nil {
		return nil, err
	}
	keyword = strings.TrimSpace(keyword)
	if !slices.ContainsFunc(sess.KeywordCandidates, func(k domain.Keyword) bool { return k.Word == keyword }) {
		return nil, domain.ErrValidation("keyword %q is not one of the offered candidates", keyword)
	}
	sess.Keyword = keyword

	step := s.begin(sess, domain.OpAxes)
	axes, err := s.generator.GenerateAxes(ctx, sess, provider.TemplateData{
		Character: sess.Character,
		Keyword:   keyword,
		ThemeID:   sess.ThemeID,
	})
	if err != nil {
		if err := step.degrade(err); err != nil {
			return nil, err
		}
		axes = s.assets.DefaultAxes()
	}
	sess.Axes = axes
	sess.State = domain.StatePlay

	if err := s.store.Update(ctx, sess); err != nil {
		// A concurrent confirmation of the same keyword already won.
		if cur, ok := s.reread(ctx, id, err); ok && cur.State == domain.StatePlay && cur.Keyword == keyword {
			return cur, nil
		}
		return nil, err
	}

	step.publish(ctx, events.TypeKeywordConfirmed, map[string]any{
		"keyword": keyword,
		"axes":    sess.AxisIDs(),
	})
	return sess, nil
}

// LoadScene returns the scene at a 1-based index, generating it the first
// time it is requested.
func (s *Service) LoadScene(ctx context.Context, id string, index int) (*domain.Scene, error) {
	if index < 1 || index > domain.SceneCount {
		return nil, domain.ErrValidation("scene index %d outside 1..%d", index, domain.SceneCount)
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := session.RequireState(sess, domain.StatePlay); err != nil {
		return nil, err
	}
	if !session.CanAccessScene(sess, index) {
		return nil, domain.ErrInvalidState("scene %d is not accessible before the choice for scene %d", index, index-1)
	}
	if scene, ok := sess.Scene(index); ok {
		return scene, nil
	}
	if index != len(sess.Scenes)+1 {
		return nil, domain.ErrInvalidState("scene %d requested but %d scenes are loaded", index, len(sess.Scenes))
	}

	step := s.begin(sess, domain.SceneKey(index))
	scene, err := s.generator.GenerateScenario(ctx, sess, provider.TemplateData{
		Character:       sess.Character,
		Keyword:         sess.Keyword,
		ThemeID:         sess.ThemeID,
		SceneIndex:      index,
		Axes:            sess.Axes,
		PreviousChoices: provider.History(sess),
	})
	if err != nil {
		if err := step.degrade(err); err != nil {
			return nil, err
		}
		static := s.assets.Scene(index, sess.ThemeID, sess.Keyword, sess.Axes)
		scene = &static
	}
	sess.Scenes = append(sess.Scenes, *scene)

	if err := s.store.Update(ctx, sess); err != nil {
		// A concurrent load stored this scene first; the client keeps
		// seeing that one.
		if cur, ok := s.reread(ctx, id, err); ok {
			if stored, ok := cur.Scene(index); ok {
				return stored, nil
			}
		}
		return nil, err
	}

	step.publish(ctx, events.TypeSceneGenerated, map[string]any{
		"scene_index": index,
	})
	return scene, nil
}

// SubmitChoice records the user's decision for a loaded scene.
func (s *Service) SubmitChoice(ctx context.Context, id string, index int, choiceID string) (*domain.Session, error) {
	var sess *domain.Session
	for attempt := 1; ; attempt++ {
		var err error
		sess, err = s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := session.ValidateChoiceTransition(sess, index, choiceID); err != nil {
			return nil, err
		}

		sess.Choices = append(sess.Choices, domain.ChoiceRecord{
			SceneIndex: index,
			ChoiceID:   choiceID,
			ChosenAt:   s.now().UTC(),
		})
		err = s.store.Update(ctx, sess)
		if err == nil {
			break
		}
		if !errors.Is(err, session.ErrStale) || attempt == staleRetries {
			return nil, err
		}
	}

	events.Send(ctx, s.publisher, s.logger, events.New(events.TypeChoiceSubmitted, sess.ID, map[string]any{
		"scene_index": index,
		"choice_id":   choiceID,
		"remaining":   domain.SceneCount - len(sess.Choices),
	}))
	return sess, nil
}

// GenerateResult produces, or returns the stored, result of a session.
func (s *Service) GenerateResult(ctx context.Context, id string) (*result.Payload, error) {
	return s.results.Generate(ctx, id)
}

// GetSession returns a copy of a session.
func (s *Service) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return s.store.Get(ctx, id)
}

// DeleteSession removes a session.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if !s.store.Delete(ctx, id) {
		return domain.ErrSessionNotFound(id)
	}
	s.metrics.SetLiveSessions(s.store.Len())
	events.Send(ctx, s.publisher, s.logger, events.New(events.TypeSessionDeleted, id, nil))
	return nil
}

// Stats summarises the live sessions.
func (s *Service) Stats(ctx context.Context) session.Stats {
	return s.store.Stats(ctx)
}

// reread returns the current session when err reports a stale write.
func (s *Service) reread(ctx context.Context, id string, err error) (*domain.Session, bool) {
	if !errors.Is(err, session.ErrStale) {
		return nil, false
	}
	cur, gerr := s.store.Get(ctx, id)
	if gerr != nil {
		return nil, false
	}
	s.logger.Info("discarding stale session write",
		slog.String("session_id", id),
		slog.Int64("version", cur.Version))
	return cur, true
}

// step tracks one generative operation on a session so the observability
// records it produced can travel with the lifecycle event.
type step struct {
	s            *Service
	sess         *domain.Session
	key          domain.Operation
	errorsBefore int
	fellBack     bool
	cause        error
}

func (s *Service) begin(sess *domain.Session, key domain.Operation) *step {
	return &step{s: s, sess: sess, key: key, errorsBefore: len(sess.ProviderErrors)}
}

// degrade absorbs chain exhaustion by flagging the session. Any other
// error is returned unchanged.
func (st *step) degrade(err error) error {
	if !domain.IsKind(err, domain.ErrorKindAllProvidersFailed) {
		return err
	}
	st.fellBack = true
	st.cause = err
	st.sess.AddFallbackFlag(string(st.key))
	st.s.metrics.FallbackActivated(string(st.key.Base()))
	st.s.logger.Warn("serving static content",
		slog.String("session_id", st.sess.ID),
		slog.String("operation", string(st.key)),
		slog.String("error", err.Error()))
	return nil
}

// publish sends the step's lifecycle event, plus fallback.activated when
// static content was served.
func (st *step) publish(ctx context.Context, typ events.Type, data map[string]any) {
	evt := events.New(typ, st.sess.ID, data)
	if meta, ok := st.sess.Generation[st.key]; ok && !st.fellBack {
		evt.Generation = &meta
	}
	evt.ProviderErrors = slices.Clone(st.sess.ProviderErrors[st.errorsBefore:])
	events.Send(ctx, st.s.publisher, st.s.logger, evt)

	if st.fellBack {
		events.Send(ctx, st.s.publisher, st.s.logger, events.New(events.TypeFallbackActivated, st.sess.ID, map[string]any{
			"operation": string(st.key),
			"reason":    st.cause.Error(),
		}))
	}
}
