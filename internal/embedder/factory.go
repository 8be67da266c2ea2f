package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dshills/ragcore/pkg/types"
)

// Environment variables consulted by NewFromEnv
const (
	EnvProvider     = "RAGCORE_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvBaseURL      = "RAGCORE_EMBEDDING_BASE_URL"
	EnvModel        = "RAGCORE_EMBEDDING_MODEL"
)

// Config holds embedder configuration
type Config struct {
	Provider          string
	Model             string
	BaseURL           string
	APIKey            string
	Dimension         int
	CacheSize         int // 0 disables caching
	RequestsPerSecond float64
	MaxRetries        int
	Timeout           time.Duration
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderOpenAI, ProviderJina, ProviderGemini:
		retry := DefaultRetryConfig()
		if cfg.MaxRetries > 0 {
			retry.MaxRetries = cfg.MaxRetries
		}
		return NewAPIProvider(APIConfig{
			Provider:          provider,
			APIKey:            firstNonEmpty(cfg.APIKey, os.Getenv(apiKeyEnv(provider))),
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimension:         cfg.Dimension,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Retry:             retry,
			Timeout:           cfg.Timeout,
			Cache:             cache,
		})
	case ProviderLangChain:
		return NewLangChainProvider(LangChainConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			Cache:   cache,
		})
	case ProviderLocal, "":
		return NewLocalProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: %w: %s", types.ErrInvalidConfiguration, ErrUnsupportedProvider, cfg.Provider)
	}
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. RAGCORE_EMBEDDING_PROVIDER (openai, jina, gemini, langchain, local)
// 2. Check for API keys: OPENAI_API_KEY, JINA_API_KEY, GEMINI_API_KEY
// 3. Default to local if no API keys found
func NewFromEnv() (Embedder, error) {
	return New(Config{
		Provider:  DetectProvider(),
		BaseURL:   os.Getenv(EnvBaseURL),
		Model:     os.Getenv(EnvModel),
		CacheSize: DefaultCacheSize,
	})
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}

	for _, provider := range []string{ProviderOpenAI, ProviderJina, ProviderGemini} {
		if os.Getenv(apiKeyEnv(provider)) != "" {
			return provider
		}
	}

	return ProviderLocal
}

func apiKeyEnv(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return EnvOpenAIAPIKey
	case ProviderJina:
		return EnvJinaAPIKey
	case ProviderGemini:
		return EnvGeminiAPIKey
	}
	return ""
}
