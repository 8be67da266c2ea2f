package generator

import (
	"fmt"
	"os"
	"strings"

	"github.com/dshills/ragcore/pkg/types"
)

// Environment variables consulted by DetectProvider and New
const (
	EnvProvider     = "RAGCORE_GENERATION_PROVIDER"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvGoogleAPIKey = "GOOGLE_API_KEY"
)

// Config holds generator configuration
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature *float64 // nil means DefaultTemperature
	MaxTokens   int
}

// New creates a generator with explicit configuration. API keys fall back to
// the provider's environment variable.
func New(cfg Config) (Generator, error) {
	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderOpenAI, ProviderGemini:
		opts := []Option{WithMaxTokens(cfg.MaxTokens)}
		if cfg.Temperature != nil {
			opts = append(opts, WithTemperature(*cfg.Temperature))
		}
		return NewOpenAI(OpenAIConfig{
			Provider: provider,
			APIKey:   firstNonEmpty(cfg.APIKey, apiKeyFromEnv(provider)),
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
		}, opts...)
	case ProviderExtractive, "":
		return NewExtractive(), nil
	default:
		return nil, fmt.Errorf("%w: %w: %s", types.ErrInvalidConfiguration, ErrUnsupportedProvider, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
// Priority:
// 1. RAGCORE_GENERATION_PROVIDER (openai, gemini, extractive)
// 2. Check for API keys: OPENAI_API_KEY, then GEMINI_API_KEY or GOOGLE_API_KEY
// 3. Default to extractive
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	for _, provider := range []string{ProviderOpenAI, ProviderGemini} {
		if apiKeyFromEnv(provider) != "" {
			return provider
		}
	}
	return ProviderExtractive
}

func apiKeyFromEnv(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return os.Getenv(EnvOpenAIAPIKey)
	case ProviderGemini:
		return firstNonEmpty(os.Getenv(EnvGeminiAPIKey), os.Getenv(EnvGoogleAPIKey))
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
