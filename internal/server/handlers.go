package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/result"
	"github.com/tjfontaine/polyglot-persona/internal/session"
)

// maxBodyBytes caps request bodies; every request here is a few fields.
const maxBodyBytes = 64 << 10

// Service is the session API the handlers expose.
type Service interface {
	CreateSession(ctx context.Context, character, themeID string) (*domain.Session, error)
	ConfirmKeyword(ctx context.Context, id, keyword string) (*domain.Session, error)
	LoadScene(ctx context.Context, id string, index int) (*domain.Scene, error)
	SubmitChoice(ctx context.Context, id string, index int, choiceID string) (*domain.Session, error)
	GenerateResult(ctx context.Context, id string) (*result.Payload, error)
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	Stats(ctx context.Context) session.Stats
}

// Handlers translates HTTP requests into service calls.
type Handlers struct {
	svc    Service
	logger *slog.Logger
}

func NewHandlers(svc Service, logger *slog.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

type createSessionRequest struct {
	Character string `json:"character"`
	ThemeID   string `json:"theme_id"`
}

type confirmKeywordRequest struct {
	Keyword string `json:"keyword"`
}

type submitChoiceRequest struct {
	SceneIndex int    `json:"scene_index"`
	ChoiceID   string `json:"choice_id"`
}

// sessionView is the client-facing session. Choice weights stay server-side.
type sessionView struct {
	ID                string           `json:"id"`
	State             domain.State     `json:"state"`
	Character         string           `json:"character"`
	ThemeID           string           `json:"theme_id"`
	KeywordCandidates []domain.Keyword `json:"keyword_candidates"`
	Keyword           string           `json:"keyword,omitempty"`
	Axes              []domain.Axis    `json:"axes,omitempty"`
	ScenesLoaded      int              `json:"scenes_loaded"`
	ChoicesMade       int              `json:"choices_made"`
	FallbackFlags     []string         `json:"fallback_flags"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
}

func newSessionView(s *domain.Session) sessionView {
	flags := s.FallbackFlags
	if flags == nil {
		flags = []string{}
	}
	return sessionView{
		ID:                s.ID,
		State:             s.State,
		Character:         s.Character,
		ThemeID:           s.ThemeID,
		KeywordCandidates: s.KeywordCandidates,
		Keyword:           s.Keyword,
		Axes:              s.Axes,
		ScenesLoaded:      len(s.Scenes),
		ChoicesMade:       len(s.Choices),
		FallbackFlags:     flags,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		CompletedAt:       s.CompletedAt,
	}
}

type choiceView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type sceneView struct {
	Index     int          `json:"index"`
	Narrative string       `json:"narrative"`
	Choices   []choiceView `json:"choices"`
}

func newSceneView(sc *domain.Scene) sceneView {
	v := sceneView{Index: sc.Index, Narrative: sc.Narrative, Choices: make([]choiceView, len(sc.Choices))}
	for i, ch := range sc.Choices {
		v.Choices[i] = choiceView{ID: ch.ID, Text: ch.Text}
	}
	return v
}

type choiceResponse struct {
	SessionID  string `json:"session_id"`
	SceneIndex int    `json:"scene_index"`
	ChoiceID   string `json:"choice_id"`
	Remaining  int    `json:"remaining"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.svc.CreateSession(r.Context(), req.Character, req.ThemeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	AddLogField(r.Context(), "session_id", sess.ID)
	writeJSON(w, http.StatusCreated, newSessionView(sess))
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.GetSession(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSession(r.Context(), sessionID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ConfirmKeyword(w http.ResponseWriter, r *http.Request) {
	var req confirmKeywordRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.svc.ConfirmKeyword(r.Context(), sessionID(r), req.Keyword)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (h *Handlers) LoadScene(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, r, domain.ErrValidation("scene index %q is not a number", chi.URLParam(r, "index")))
		return
	}
	scene, err := h.svc.LoadScene(r.Context(), sessionID(r), index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSceneView(scene))
}

func (h *Handlers) SubmitChoice(w http.ResponseWriter, r *http.Request) {
	var req submitChoiceRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.svc.SubmitChoice(r.Context(), sessionID(r), req.SceneIndex, req.ChoiceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, choiceResponse{
		SessionID:  sess.ID,
		SceneIndex: req.SceneIndex,
		ChoiceID:   req.ChoiceID,
		Remaining:  domain.SceneCount - len(sess.Choices),
	})
}

func (h *Handlers) GenerateResult(w http.ResponseWriter, r *http.Request) {
	payload, err := h.svc.GenerateResult(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats(r.Context()))
}

func sessionID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	AddLogField(r.Context(), "session_id", id)
	return id
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// writeError renders err as {"error":{"type","message"}}. Errors outside
// the domain taxonomy are logged and reported without detail.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	var de *domain.Error
	if errors.As(err, &de) {
		writeErrorBody(w, de.HTTPStatusCode(), string(de.Kind), de.Message)
		return
	}
	h.logger.Error("unexpected error",
		slog.String("request_id", GetRequestID(r.Context())),
		slog.String("error", err.Error()))
	writeErrorBody(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeErrorBody(w http.ResponseWriter, status int, typ, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Type: typ, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
