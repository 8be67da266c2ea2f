package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/dshills/ragcore/pkg/types"
)

// Provider names
const (
	ProviderOpenAI    = "openai"
	ProviderJina      = "jina"
	ProviderGemini    = "gemini"
	ProviderLangChain = "langchain"
	ProviderLocal     = "local"
)

// Batch limits
const (
	MaxBatchSize = 100
)

// Preset describes an OpenAI-compatible embeddings endpoint
type Preset struct {
	BaseURL   string
	Model     string
	Dimension int
}

// Presets for the hosted providers
var Presets = map[string]Preset{
	ProviderOpenAI: {
		BaseURL:   "https://api.openai.com/v1",
		Model:     "text-embedding-3-small",
		Dimension: 1536,
	},
	ProviderJina: {
		BaseURL:   "https://api.jina.ai/v1",
		Model:     "jina-embeddings-v3",
		Dimension: 1024,
	},
	ProviderGemini: {
		BaseURL:   "https://generativelanguage.googleapis.com/v1beta/openai",
		Model:     "text-embedding-004",
		Dimension: 768,
	},
}

// APIConfig configures an APIProvider
type APIConfig struct {
	Provider          string // Preset name, also reported by Provider()
	APIKey            string
	BaseURL           string // Overrides the preset
	Model             string // Overrides the preset
	Dimension         int    // Requested/expected dimension, 0 uses the preset
	RequestsPerSecond float64
	Retry             RetryConfig
	Timeout           time.Duration
	HTTPClient        *http.Client
	Cache             *Cache
}

// APIProvider calls an OpenAI-compatible /embeddings endpoint
type APIProvider struct {
	provider   string
	apiKey     string
	baseURL    string
	model      string
	requestDim int
	dim        atomic.Int64
	limiter    *rate.Limiter
	retry      RetryConfig
	httpClient *http.Client
	cache      *Cache
}

var _ Embedder = (*APIProvider)(nil)

// NewAPIProvider creates an embedder for a hosted OpenAI-compatible API
func NewAPIProvider(cfg APIConfig) (*APIProvider, error) {
	preset, known := Presets[cfg.Provider]
	if !known && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: %w: %s requires a base URL", types.ErrInvalidConfiguration, ErrUnsupportedProvider, cfg.Provider)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %w: %s API key not set", types.ErrInvalidConfiguration, ErrNoProviderEnabled, cfg.Provider)
	}

	p := &APIProvider{
		provider:   cfg.Provider,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(firstNonEmpty(cfg.BaseURL, preset.BaseURL), "/"),
		model:      firstNonEmpty(cfg.Model, preset.Model),
		requestDim: cfg.Dimension,
		retry:      cfg.Retry,
		httpClient: cfg.HTTPClient,
		cache:      cfg.Cache,
	}

	// A preset dimension only holds for the preset model
	switch {
	case cfg.Dimension > 0:
		p.dim.Store(int64(cfg.Dimension))
	case known && p.model == preset.Model:
		p.dim.Store(int64(preset.Dimension))
	}

	if p.retry.MaxRetries == 0 {
		p.retry = DefaultRetryConfig()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	p.limiter = rate.NewLimiter(limit, 1)

	if p.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		p.httpClient = &http.Client{Timeout: timeout}
	}

	return p, nil
}

// EmbedOne embeds a single text
func (p *APIProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedMany embeds texts in batches of at most MaxBatchSize, serving repeats from the cache
func (p *APIProvider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if vec, ok := p.cache.Get(CacheKey(p.model, text)); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(missing))
		batch := make([]string, 0, end-start)
		for _, i := range missing[start:end] {
			batch = append(batch, texts[i])
		}

		vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
			return p.callAPI(ctx, batch)
		})
		if err != nil {
			return nil, types.NewProviderError(p.provider, OpEmbed, err)
		}

		for j, i := range missing[start:end] {
			out[i] = vectors[j]
			p.cache.Set(CacheKey(p.model, texts[i]), vectors[j])
		}
	}

	return out, nil
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func (p *APIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(embeddingRequest{Input: texts, Model: p.model, Dimensions: p.requestDim})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var apiResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrBadResponse, err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrBadResponse, len(apiResp.Data), len(texts))
	}

	// Responses are not guaranteed to be in input order
	vectors := make([][]float32, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) || vectors[data.Index] != nil {
			return nil, fmt.Errorf("%w: bad index %d", ErrBadResponse, data.Index)
		}
		if err := p.checkDimension(len(data.Embedding)); err != nil {
			return nil, err
		}
		vectors[data.Index] = data.Embedding
	}

	return vectors, nil
}

// checkDimension learns the dimension from the first response and enforces it afterwards
func (p *APIProvider) checkDimension(got int) error {
	if got == 0 {
		return fmt.Errorf("%w: empty embedding", ErrBadResponse)
	}
	if p.dim.CompareAndSwap(0, int64(got)) {
		return nil
	}
	if want := p.dim.Load(); int64(got) != want {
		return fmt.Errorf("%w: embedding has dimension %d, expected %d", ErrBadResponse, got, want)
	}
	return nil
}

func (p *APIProvider) Dimension() int {
	return int(p.dim.Load())
}

func (p *APIProvider) Provider() string {
	return p.provider
}

func (p *APIProvider) Model() string {
	return p.model
}

func (p *APIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
