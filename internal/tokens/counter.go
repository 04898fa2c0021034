// Package tokens estimates token usage for providers that do not report it.
package tokens

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// charsPerToken is the rough ratio used when no tokenizer matches a model.
const charsPerToken = 4.0

// Counter counts tokens with tiktoken for OpenAI-family models and falls
// back to a character estimate for everything else.
type Counter struct {
	mu    sync.RWMutex
	cache map[tokenizer.Encoding]tokenizer.Codec
}

// NewCounter creates a new token counter.
func NewCounter() *Counter {
	return &Counter{cache: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// Count returns the number of tokens in text for model. It never fails:
// models without a known encoding are estimated.
func (c *Counter) Count(model, text string) int {
	if text == "" {
		return 0
	}
	if !SupportsModel(model) {
		return Estimate(text)
	}
	codec, err := c.codec(model)
	if err != nil {
		return Estimate(text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return Estimate(text)
	}
	return len(ids)
}

// Estimate approximates a token count from the rune count.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	est := int(float64(n) / charsPerToken)
	if est == 0 {
		est = 1
	}
	return est
}

// SupportsModel reports whether model has a tiktoken encoding.
func SupportsModel(model string) bool {
	model = strings.ToLower(model)
	for _, p := range []string{"gpt-", "o1", "o3", "o4", "text-embedding"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func (c *Counter) codec(model string) (tokenizer.Codec, error) {
	encoding := modelToEncoding(model)

	c.mu.RLock()
	codec, ok := c.cache[encoding]
	c.mu.RUnlock()
	if ok {
		return codec, nil
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[encoding] = codec
	c.mu.Unlock()
	return codec, nil
}

// modelToEncoding maps model names to tiktoken encodings.
//
//   - O200kBase: gpt-5, gpt-4.1, gpt-4o and the o-series
//   - Cl100kBase: gpt-4, gpt-3.5-turbo, text-embedding
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"),
		strings.HasPrefix(model, "gpt-3.5"),
		strings.HasPrefix(model, "text-embedding"):
		return tokenizer.Cl100kBase
	default:
		// Unknown gpt-* models are most likely newer.
		return tokenizer.O200kBase
	}
}
