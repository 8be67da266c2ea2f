package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/dshills/ragcore/pkg/types"
)

// Provider names
const (
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderExtractive = "extractive"
)

// Defaults
const (
	DefaultTemperature = 0.7
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.0-flash"
	GeminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// LangChainGenerator generates answers with any langchaingo llms.Model
type LangChainGenerator struct {
	llm         llms.Model
	provider    string
	model       string
	temperature float64
	maxTokens   int
}

var _ Generator = (*LangChainGenerator)(nil)

// Option configures a LangChainGenerator
type Option func(*LangChainGenerator)

// WithTemperature sets the sampling temperature (default: 0.7)
func WithTemperature(t float64) Option {
	return func(g *LangChainGenerator) {
		g.temperature = t
	}
}

// WithMaxTokens bounds the completion length. Zero leaves it to the model.
func WithMaxTokens(n int) Option {
	return func(g *LangChainGenerator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// NewLangChain wraps an existing model. provider and model are used in errors.
func NewLangChain(llm llms.Model, provider, model string, opts ...Option) *LangChainGenerator {
	g := &LangChainGenerator{
		llm:         llm,
		provider:    provider,
		model:       model,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OpenAIConfig configures an OpenAI-compatible chat model
type OpenAIConfig struct {
	Provider string // openai or gemini, selects the preset
	APIKey   string
	BaseURL  string // Overrides the preset
	Model    string // Overrides the preset
}

// NewOpenAI builds a generator on langchaingo's OpenAI client. The gemini
// provider uses Google's OpenAI-compatible endpoint.
func NewOpenAI(cfg OpenAIConfig, opts ...Option) (*LangChainGenerator, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = ProviderOpenAI
	}

	model, baseURL := cfg.Model, cfg.BaseURL
	switch provider {
	case ProviderOpenAI:
		if model == "" {
			model = DefaultOpenAIModel
		}
	case ProviderGemini:
		if model == "" {
			model = DefaultGeminiModel
		}
		if baseURL == "" {
			baseURL = GeminiBaseURL
		}
	default:
		return nil, fmt.Errorf("%w: %w: %s", types.ErrInvalidConfiguration, ErrUnsupportedProvider, cfg.Provider)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s generator requires an API key", types.ErrInvalidConfiguration, provider)
	}

	clientOpts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return NewLangChain(llm, provider, model, opts...), nil
}

// Generate renders the grounded prompt and sends it as a single completion
func (g *LangChainGenerator) Generate(ctx context.Context, query string, passages []string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%s: %w: %w", OpGenerate, types.ErrInvalidArgument, types.ErrEmptyText)
	}

	prompt, err := BuildPrompt(query, passages)
	if err != nil {
		return "", err
	}

	callOpts := []llms.CallOption{llms.WithTemperature(g.temperature)}
	if g.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(g.maxTokens))
	}

	answer, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, callOpts...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", types.NewProviderError(g.provider, OpGenerate, err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", types.NewProviderError(g.provider, OpGenerate, ErrEmptyCompletion)
	}
	return answer, nil
}

// Provider returns the provider name
func (g *LangChainGenerator) Provider() string {
	return g.provider
}

// Model returns the model name
func (g *LangChainGenerator) Model() string {
	return g.model
}
