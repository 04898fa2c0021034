// Package anthropic is a small HTTP client for the Anthropic Messages API.
package anthropic

import (
	"encoding/json"
	"fmt"
)

// MessagesRequest represents an Anthropic Messages API request.
type MessagesRequest struct {
	Model       string      `json:"model"`
	Messages    []Message   `json:"messages"`
	MaxTokens   int         `json:"max_tokens"`
	System      string      `json:"system,omitempty"`
	Temperature *float32    `json:"temperature,omitempty"`
	Tools       []Tool      `json:"tools,omitempty"`
	ToolChoice  *ToolChoice `json:"tool_choice,omitempty"`
	Metadata    *Metadata   `json:"metadata,omitempty"`
}

// Message represents a message in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool represents a tool that the model can use. Structured output is
// requested by forcing a single tool whose input schema is the payload.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

// ToolChoice represents how the model should use tools.
type ToolChoice struct {
	Type string `json:"type"` // "auto", "any", "tool"
	Name string `json:"name,omitempty"`
}

// Metadata represents request metadata.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// MessagesResponse represents an Anthropic Messages API response.
type MessagesResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []ResponseContent `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
	Usage      MessagesUsage     `json:"usage"`
}

// ToolInput returns the raw input of the first tool_use block named name.
func (r *MessagesResponse) ToolInput(name string) (json.RawMessage, bool) {
	for _, c := range r.Content {
		if c.Type == "tool_use" && c.Name == name && len(c.Input) > 0 {
			return c.Input, true
		}
	}
	return nil, false
}

// Text concatenates the text blocks of the response.
func (r *MessagesResponse) Text() string {
	var out string
	for _, c := range r.Content {
		if c.Type == "text" {
			out += c.Text
		}
	}
	return out
}

// ResponseContent represents content in a response.
type ResponseContent struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// MessagesUsage represents token usage in the response.
type MessagesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Model represents an Anthropic model.
type Model struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
}

// ModelList represents a list of models.
type ModelList struct {
	Data    []Model `json:"data"`
	HasMore bool    `json:"has_more"`
	FirstID string  `json:"first_id,omitempty"`
	LastID  string  `json:"last_id,omitempty"`
}

// ErrorResponse represents an Anthropic API error body.
type ErrorResponse struct {
	Type  string    `json:"type"`
	Error *APIError `json:"error"`
}

// APIError contains error details plus the HTTP status it arrived with.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic api error (status %d) %s: %s", e.StatusCode, e.Type, e.Message)
}

// ParseErrorResponse builds an APIError from a non-200 response. Bodies
// that are not Anthropic error envelopes keep the raw text as the message.
func ParseErrorResponse(status int, data []byte) *APIError {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil || errResp.Error == nil {
		return &APIError{StatusCode: status, Type: "unknown_error", Message: string(data)}
	}
	errResp.Error.StatusCode = status
	return errResp.Error
}
