package embedder

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/dshills/ragcore/pkg/types"
)

// LangChainConfig configures a LangChainProvider
type LangChainConfig struct {
	// BaseURL of an OpenAI-compatible server, e.g. a TEI instance at http://localhost:8080/v1
	BaseURL string
	Model   string
	APIKey  string // Optional for TEI
	Cache   *Cache
}

// LangChainProvider embeds through langchaingo's embeddings abstraction
type LangChainProvider struct {
	embedder embeddings.Embedder
	model    string
	dim      atomic.Int64
	cache    *Cache
}

var _ Embedder = (*LangChainProvider)(nil)

// NewLangChainProvider creates an embedder backed by the langchaingo OpenAI client
func NewLangChainProvider(cfg LangChainConfig) (*LangChainProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: langchain embedder requires a base URL", types.ErrInvalidConfiguration)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: langchain embedder requires a model", types.ErrInvalidConfiguration)
	}

	// langchaingo requires a token, TEI ignores it
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	emb, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return newLangChainProvider(emb, cfg.Model, cfg.Cache), nil
}

func newLangChainProvider(emb embeddings.Embedder, model string, cache *Cache) *LangChainProvider {
	return &LangChainProvider{embedder: emb, model: model, cache: cache}
}

func (l *LangChainProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if err := ValidateTexts([]string{text}); err != nil {
		return nil, err
	}

	key := CacheKey(l.model, text)
	if vec, ok := l.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := l.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, types.NewProviderError(ProviderLangChain, OpEmbed, err)
	}
	if err := l.checkDimension(vec); err != nil {
		return nil, types.NewProviderError(ProviderLangChain, OpEmbed, err)
	}

	l.cache.Set(key, vec)
	return vec, nil
}

func (l *LangChainProvider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := l.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, types.NewProviderError(ProviderLangChain, OpEmbed, err)
	}
	if len(vectors) != len(texts) {
		return nil, types.NewProviderError(ProviderLangChain, OpEmbed,
			fmt.Errorf("%w: got %d embeddings for %d texts", ErrBadResponse, len(vectors), len(texts)))
	}
	for i, vec := range vectors {
		if err := l.checkDimension(vec); err != nil {
			return nil, types.NewProviderError(ProviderLangChain, OpEmbed, err)
		}
		l.cache.Set(CacheKey(l.model, texts[i]), vec)
	}

	return vectors, nil
}

func (l *LangChainProvider) checkDimension(vec []float32) error {
	got := int64(len(vec))
	if got == 0 {
		return fmt.Errorf("%w: empty embedding", ErrBadResponse)
	}
	if l.dim.CompareAndSwap(0, got) {
		return nil
	}
	if want := l.dim.Load(); got != want {
		return fmt.Errorf("%w: embedding has dimension %d, expected %d", ErrBadResponse, got, want)
	}
	return nil
}

func (l *LangChainProvider) Dimension() int {
	return int(l.dim.Load())
}

func (l *LangChainProvider) Provider() string {
	return ProviderLangChain
}

func (l *LangChainProvider) Model() string {
	return l.model
}

func (l *LangChainProvider) Close() error {
	return nil
}
