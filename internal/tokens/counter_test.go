package tokens

import (
	"testing"

	"github.com/tiktoken-go/tokenizer"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{"星星星星", 1},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestSupportsModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-4o-mini", true},
		{"GPT-4", true},
		{"o3-mini", true},
		{"claude-3-5-haiku-latest", false},
		{"static", false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := SupportsModel(tt.model); got != tt.want {
				t.Errorf("SupportsModel(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestModelToEncoding(t *testing.T) {
	tests := []struct {
		model string
		want  tokenizer.Encoding
	}{
		{"gpt-4o-mini", tokenizer.O200kBase},
		{"gpt-4.1-nano", tokenizer.O200kBase},
		{"o4-mini", tokenizer.O200kBase},
		{"gpt-4-turbo", tokenizer.Cl100kBase},
		{"gpt-3.5-turbo", tokenizer.Cl100kBase},
		{"gpt-9", tokenizer.O200kBase},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := modelToEncoding(tt.model); got != tt.want {
				t.Errorf("modelToEncoding(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestCounter_Count(t *testing.T) {
	c := NewCounter()

	if got := c.Count("gpt-4o-mini", ""); got != 0 {
		t.Errorf("Count(empty) = %d", got)
	}

	text := "Hello, how are you today? The river runs past the meadow."
	n := c.Count("gpt-4o-mini", text)
	if n < 8 || n > 30 {
		t.Errorf("Count(gpt-4o-mini) = %d, want between 8 and 30", n)
	}
	// Second call hits the codec cache.
	if again := c.Count("gpt-4o", text); again != n {
		t.Errorf("Count(gpt-4o) = %d, want %d", again, n)
	}

	if got := c.Count("claude-3-5-haiku-latest", text); got != Estimate(text) {
		t.Errorf("Count(claude) = %d, want estimate %d", got, Estimate(text))
	}
}
