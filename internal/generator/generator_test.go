package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/dshills/ragcore/pkg/types"
)

// fakeModel records the prompt and options of each call
type fakeModel struct {
	reply   string
	err     error
	calls   int
	prompt  string
	options llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	for _, opt := range options {
		opt(&f.options)
	}
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				f.prompt += text.Text
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt("What is the capital of France?", []string{
		"Paris is the capital of France.",
		"The Louvre is in Paris.",
	})
	require.NoError(t, err)

	want := "Context:\nParis is the capital of France.\n\nThe Louvre is in Paris.\n\n" +
		"Task:\nWhat is the capital of France?\n\n" +
		"Answer the question using the provided context. If the context doesn't contain the answer, say \"" +
		InsufficientInformation + "\""
	assert.Equal(t, want, prompt)
}

func TestBuildPrompt_NoEscaping(t *testing.T) {
	prompt, err := BuildPrompt("a < b?", []string{`x & "y" {{.query}}`})
	require.NoError(t, err)
	assert.Contains(t, prompt, `x & "y" {{.query}}`)
	assert.Contains(t, prompt, "a < b?")
}

func TestLangChainGenerator(t *testing.T) {
	ctx := context.Background()

	t.Run("generates from grounded prompt", func(t *testing.T) {
		model := &fakeModel{reply: "  Paris.\n"}
		g := NewLangChain(model, ProviderOpenAI, "gpt-test", WithMaxTokens(128))

		answer, err := g.Generate(ctx, "capital of France", []string{"Paris is the capital of France."})
		require.NoError(t, err)
		assert.Equal(t, "Paris.", answer)
		assert.Equal(t, 1, model.calls)
		assert.Contains(t, model.prompt, "Paris is the capital of France.")
		assert.Contains(t, model.prompt, "Task:\ncapital of France")
		assert.Equal(t, DefaultTemperature, model.options.Temperature)
		assert.Equal(t, 128, model.options.MaxTokens)
	})

	t.Run("temperature option", func(t *testing.T) {
		model := &fakeModel{reply: "ok"}
		g := NewLangChain(model, ProviderGemini, DefaultGeminiModel, WithTemperature(0))

		_, err := g.Generate(ctx, "q", nil)
		require.NoError(t, err)
		assert.Equal(t, 0.0, model.options.Temperature)
		assert.Equal(t, 0, model.options.MaxTokens)
		assert.Equal(t, ProviderGemini, g.Provider())
		assert.Equal(t, DefaultGeminiModel, g.Model())
	})

	t.Run("model failure is a provider error", func(t *testing.T) {
		boom := errors.New("quota exceeded")
		g := NewLangChain(&fakeModel{err: boom}, ProviderOpenAI, "m")

		_, err := g.Generate(ctx, "q", []string{"p"})
		assert.ErrorIs(t, err, types.ErrProvider)
		assert.ErrorIs(t, err, boom)

		var provErr *types.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, ProviderOpenAI, provErr.Provider)
	})

	t.Run("empty completion", func(t *testing.T) {
		g := NewLangChain(&fakeModel{reply: " \n"}, ProviderOpenAI, "m")

		_, err := g.Generate(ctx, "q", []string{"p"})
		assert.ErrorIs(t, err, types.ErrProvider)
		assert.ErrorIs(t, err, ErrEmptyCompletion)
	})

	t.Run("empty query", func(t *testing.T) {
		model := &fakeModel{reply: "x"}
		g := NewLangChain(model, ProviderOpenAI, "m")

		_, err := g.Generate(ctx, "   ", []string{"p"})
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
		assert.Equal(t, 0, model.calls)
	})

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		g := NewLangChain(&fakeModel{err: context.Canceled}, ProviderOpenAI, "m")

		_, err := g.Generate(canceled, "q", []string{"p"})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, types.ErrProvider)
	})
}

func TestExtractiveGenerator(t *testing.T) {
	tests := []struct {
		name     string
		passages []string
		want     string
	}{
		{name: "top passage", passages: []string{"Paris is the capital of France.", "Lyon is a city in France."}, want: "Paris is the capital of France."},
		{name: "skips blank passages", passages: []string{"  ", "\nThe Louvre is in Paris.\n"}, want: "The Louvre is in Paris."},
		{name: "no passages", passages: nil, want: InsufficientInformation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewExtractive().Generate(context.Background(), "question", tt.passages)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewOpenAI(t *testing.T) {
	tests := []struct {
		name      string
		cfg       OpenAIConfig
		wantModel string
		wantErr   error
	}{
		{name: "openai preset", cfg: OpenAIConfig{APIKey: "k"}, wantModel: DefaultOpenAIModel},
		{name: "gemini preset", cfg: OpenAIConfig{Provider: "Gemini", APIKey: "k"}, wantModel: DefaultGeminiModel},
		{name: "model override", cfg: OpenAIConfig{Provider: "openai", APIKey: "k", Model: "gpt-4.1"}, wantModel: "gpt-4.1"},
		{name: "missing key", cfg: OpenAIConfig{Provider: "openai"}, wantErr: types.ErrInvalidConfiguration},
		{name: "unknown provider", cfg: OpenAIConfig{Provider: "gpt2", APIKey: "k"}, wantErr: ErrUnsupportedProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewOpenAI(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, g.Model())
			assert.Equal(t, strings.ToLower(firstNonEmpty(tt.cfg.Provider, ProviderOpenAI)), g.Provider())
		})
	}
}
