package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const choiceIDPrefix = "choice_"

// ChoiceID builds the canonical id of choice n (1..4) in a scene.
func ChoiceID(sceneIndex, n int) string {
	return fmt.Sprintf("%s%d_%d", choiceIDPrefix, sceneIndex, n)
}

// ParseChoiceID splits a choice_<sceneIndex>_<n> id. It only checks the
// lexical shape and the 1..4 range of n.
func ParseChoiceID(id string) (sceneIndex, n int, err error) {
	rest, ok := strings.CutPrefix(id, choiceIDPrefix)
	if !ok {
		return 0, 0, ErrValidation("choice id %q must start with %q", id, choiceIDPrefix)
	}
	sceneStr, numStr, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, 0, ErrValidation("choice id %q must have the form choice_<scene>_<n>", id)
	}
	sceneIndex, err = strconv.Atoi(sceneStr)
	if err != nil || sceneIndex < 1 || sceneIndex > SceneCount {
		return 0, 0, ErrValidation("choice id %q has an invalid scene index", id)
	}
	n, err = strconv.Atoi(numStr)
	if err != nil || n < 1 || n > ChoicesPerScene {
		return 0, 0, ErrValidation("choice id %q has a choice number outside 1-%d", id, ChoicesPerScene)
	}
	return sceneIndex, n, nil
}

// SceneKey is the generation-metadata key and fallback flag for one scene,
// e.g. "scenario:2".
func SceneKey(index int) Operation {
	return Operation(fmt.Sprintf("%s:%d", OpScenario, index))
}

// Base strips a scene suffix from a key produced by SceneKey.
func (o Operation) Base() Operation {
	if i := strings.IndexByte(string(o), ':'); i >= 0 {
		return o[:i]
	}
	return o
}
