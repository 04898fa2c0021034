// Package anthropic implements the provider interface on the Anthropic
// Messages API. Structured output is obtained by forcing a single tool call
// whose input schema is the task payload.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	anthropicapi "github.com/tjfontaine/polyglot-persona/internal/api/anthropic"
	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/prompt"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
)

// DefaultModel is used when the config leaves the model empty.
const DefaultModel = "claude-3-5-haiku-latest"

const defaultMaxTokens = 2000

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithModel sets the model.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithMaxTokens caps the output tokens per call.
func WithMaxTokens(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithLogger sets the logger for the provider.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// Provider talks to Anthropic through the local wire client.
type Provider struct {
	name       string
	client     *anthropicapi.Client
	baseURL    string
	httpClient *http.Client
	model      string
	maxTokens  int
	logger     *slog.Logger
}

// New creates a new Anthropic provider.
func New(name, apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{
		name:      name,
		model:     DefaultModel,
		maxTokens: defaultMaxTokens,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	var clientOpts []anthropicapi.ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, anthropicapi.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, anthropicapi.WithHTTPClient(p.httpClient))
	}

	p.client = anthropicapi.NewClient(apiKey, clientOpts...)
	return p
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return p.classify(err)
	}
	return nil
}

func (p *Provider) GenerateKeywords(ctx context.Context, req *provider.Request) (*provider.KeywordsResponse, error) {
	var out prompt.KeywordsPayload
	usage, err := p.generate(ctx, req, &out)
	if err != nil {
		return nil, err
	}
	return &provider.KeywordsResponse{Keywords: out.Keywords, Usage: usage}, nil
}

func (p *Provider) GenerateAxes(ctx context.Context, req *provider.Request) (*provider.AxesResponse, error) {
	var out prompt.AxesPayload
	usage, err := p.generate(ctx, req, &out)
	if err != nil {
		return nil, err
	}
	return &provider.AxesResponse{Axes: out.Axes, Usage: usage}, nil
}

func (p *Provider) GenerateScenario(ctx context.Context, req *provider.Request) (*provider.ScenarioResponse, error) {
	var out prompt.ScenarioPayload
	usage, err := p.generate(ctx, req, &out)
	if err != nil {
		return nil, err
	}
	return &provider.ScenarioResponse{Narrative: out.Narrative, Choices: out.Choices, Usage: usage}, nil
}

func (p *Provider) AnalyzeResults(ctx context.Context, req *provider.Request) (*provider.AnalysisResponse, error) {
	var out prompt.AnalysisPayload
	usage, err := p.generate(ctx, req, &out)
	if err != nil {
		return nil, err
	}
	return &provider.AnalysisResponse{Profiles: out.ToProfiles(p.name), Usage: usage}, nil
}

func (p *Provider) generate(ctx context.Context, req *provider.Request, out any) (provider.Usage, error) {
	rendered, err := prompt.Render(req)
	if err != nil {
		return provider.Usage{}, err
	}
	schema, err := prompt.SchemaFor(req.Task)
	if err != nil {
		return provider.Usage{}, err
	}

	toolName := fmt.Sprintf("emit_%s", req.Task)
	resp, err := p.client.CreateMessage(ctx, &anthropicapi.MessagesRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    rendered.System,
		Messages:  []anthropicapi.Message{{Role: "user", Content: rendered.User}},
		Tools: []anthropicapi.Tool{{
			Name:        toolName,
			Description: fmt.Sprintf("Return the structured %s output", req.Task),
			InputSchema: schema,
		}},
		ToolChoice: &anthropicapi.ToolChoice{Type: "tool", Name: toolName},
		Metadata:   &anthropicapi.Metadata{UserID: req.SessionID},
	})
	if err != nil {
		return provider.Usage{}, p.classify(err)
	}

	// Some models answer in text despite the forced tool; accept JSON there too.
	text := resp.Text()
	if input, ok := resp.ToolInput(toolName); ok {
		text = string(input)
	}
	if err := prompt.DecodeJSON(text, out); err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return provider.Usage{}, de.WithProvider(p.name)
		}
		return provider.Usage{}, err
	}

	usage := provider.Usage{
		Model:        p.model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	p.logger.Debug("anthropic generation complete",
		slog.String("provider", p.name),
		slog.String("task", string(req.Task)),
		slog.String("stop_reason", resp.StopReason),
		slog.Int("input_tokens", usage.InputTokens),
		slog.Int("output_tokens", usage.OutputTokens))
	return usage, nil
}

func (p *Provider) classify(err error) error {
	var apiErr *anthropicapi.APIError
	if errors.As(err, &apiErr) {
		return provider.ClassifyStatus(p.name, apiErr.StatusCode, apiErr.Message, err)
	}
	return provider.ClassifyError(p.name, err)
}
