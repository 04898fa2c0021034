package session

import (
	"github.com/tjfontaine/polyglot-persona/internal/domain"
)

// RequireState fails with InvalidState unless the session is in expected.
func RequireState(sess *domain.Session, expected domain.State) error {
	if sess.State != expected {
		return domain.ErrInvalidState("session %s is %s, expected %s", sess.ID, sess.State, expected)
	}
	return nil
}

// CanAccessScene reports whether scene index may be loaded: the session
// must be in PLAY, scene 1 needs a confirmed keyword and later scenes need
// a recorded choice for the previous index.
func CanAccessScene(sess *domain.Session, index int) bool {
	if sess.State != domain.StatePlay {
		return false
	}
	if index < 1 || index > domain.SceneCount {
		return false
	}
	if index == 1 {
		return sess.HasKeyword()
	}
	_, ok := sess.ChoiceFor(index - 1)
	return ok
}

// ValidateChoiceTransition checks that choiceID may be recorded for scene
// index. The choice id format is checked before any state guard.
func ValidateChoiceTransition(sess *domain.Session, index int, choiceID string) error {
	sceneIndex, _, err := domain.ParseChoiceID(choiceID)
	if err != nil {
		return err
	}
	if sceneIndex != index {
		return domain.ErrValidation("choice %s does not belong to scene %d", choiceID, index)
	}

	if err := RequireState(sess, domain.StatePlay); err != nil {
		return err
	}
	if !CanAccessScene(sess, index) {
		return domain.ErrInvalidState("scene %d is not accessible yet", index)
	}
	if _, done := sess.ChoiceFor(index); done {
		return domain.ErrInvalidState("scene %d already has a recorded choice", index)
	}
	if len(sess.Choices) >= domain.SceneCount {
		return domain.ErrInvalidState("session %s already has %d choices", sess.ID, domain.SceneCount)
	}

	scene, ok := sess.Scene(index)
	if !ok {
		return domain.ErrInvalidState("scene %d has not been loaded", index)
	}
	if _, ok := scene.Choice(choiceID); !ok {
		return domain.ErrValidation("choice %s is not part of scene %d", choiceID, index)
	}
	return nil
}
