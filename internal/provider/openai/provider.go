// Package openai implements the provider interface on the OpenAI
// Responses API with strict JSON-schema structured output.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
	"github.com/tjfontaine/polyglot-persona/internal/prompt"
	"github.com/tjfontaine/polyglot-persona/internal/provider"
	"github.com/tjfontaine/polyglot-persona/internal/tokens"
)

// DefaultModel is used when the config leaves the model empty.
const DefaultModel = "gpt-4o-mini"

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

// Provider talks to OpenAI through the official SDK.
type Provider struct {
	name       string
	client     *openai.Client
	baseURL    string
	httpClient *http.Client
	model      string
	maxTokens  int
	counter    *tokens.Counter
	logger     *slog.Logger
}

// New creates a new OpenAI provider. SDK retries are disabled: the
// orchestrator moves to the next provider instead.
func New(name, apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{
		name:      name,
		model:     DefaultModel,
		maxTokens: defaultMaxTokens,
		counter:   tokens.NewCounter(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if p.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(p.httpClient))
	}

	client := openai.NewClient(clientOpts...)
	p.client = &client
	return p
}

func (p *Provider) Name() string {
	return p.name
}

// HealthCheck lists models, which needs a valid key but no generation.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
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

// generate renders the task prompt, requests schema-constrained JSON and
// decodes it into out.
func (p *Provider) generate(ctx context.Context, req *provider.Request, out any) (provider.Usage, error) {
	rendered, err := prompt.Render(req)
	if err != nil {
		return provider.Usage{}, err
	}
	schema, err := prompt.SchemaFor(req.Task)
	if err != nil {
		return provider.Usage{}, err
	}

	params := responses.ResponseNewParams{
		Model:           p.model,
		MaxOutputTokens: openai.Int(int64(p.maxTokens)),
		Instructions:    openai.String(rendered.System),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(rendered.User, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        fmt.Sprintf("persona_%s", req.Task),
					Schema:      schema,
					Strict:      openai.Bool(true),
					Description: openai.String(fmt.Sprintf("Structured %s output", req.Task)),
					Type:        "json_schema",
				},
			},
		},
	}

	resp, err := p.client.Responses.New(ctx, params)
	if err != nil {
		return provider.Usage{}, p.classify(err)
	}

	text := resp.OutputText()
	if err := prompt.DecodeJSON(text, out); err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return provider.Usage{}, de.WithProvider(p.name)
		}
		return provider.Usage{}, err
	}

	usage := provider.Usage{
		Model:        p.model,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		usage.InputTokens = p.counter.Count(p.model, rendered.System+"\n"+rendered.User)
		usage.OutputTokens = p.counter.Count(p.model, text)
	}

	p.logger.Debug("openai generation complete",
		slog.String("provider", p.name),
		slog.String("task", string(req.Task)),
		slog.Int("input_tokens", usage.InputTokens),
		slog.Int("output_tokens", usage.OutputTokens))

	return usage, nil
}

// classify maps SDK errors onto provider error kinds using the HTTP status.
func (p *Provider) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return provider.ClassifyStatus(p.name, apiErr.StatusCode, apiErr.Message, err)
	}
	return provider.ClassifyError(p.name, err)
}
