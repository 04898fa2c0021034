// Package registration wires the built-in provider factories into the
// registry explicitly, instead of through init side effects.
package registration

import (
	"sync"

	"github.com/tjfontaine/polyglot-persona/internal/provider/anthropic"
	"github.com/tjfontaine/polyglot-persona/internal/provider/mock"
	"github.com/tjfontaine/polyglot-persona/internal/provider/openai"
)

var once sync.Once

// RegisterBuiltins registers the openai, anthropic and mock provider
// factories. It is safe to call more than once; cmd/persona-server and
// tests call it before creating providers from configuration.
func RegisterBuiltins() {
	once.Do(func() {
		openai.RegisterProviderFactory()
		anthropic.RegisterProviderFactory()
		mock.RegisterProviderFactory()
	})
}
