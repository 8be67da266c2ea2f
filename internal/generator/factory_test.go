package generator

import (
	"errors"
	"testing"

	"github.com/dshills/ragcore/pkg/types"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvProvider, EnvOpenAIAPIKey, EnvGeminiAPIKey, EnvGoogleAPIKey} {
		t.Setenv(key, "")
	}
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "no keys", want: ProviderExtractive},
		{name: "explicit provider wins", env: map[string]string{EnvProvider: "Extractive", EnvOpenAIAPIKey: "k"}, want: ProviderExtractive},
		{name: "openai key", env: map[string]string{EnvOpenAIAPIKey: "k"}, want: ProviderOpenAI},
		{name: "gemini key", env: map[string]string{EnvGeminiAPIKey: "k"}, want: ProviderGemini},
		{name: "google key", env: map[string]string{EnvGoogleAPIKey: "k"}, want: ProviderGemini},
		{name: "openai before gemini", env: map[string]string{EnvGeminiAPIKey: "k", EnvOpenAIAPIKey: "k"}, want: ProviderOpenAI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if got := DetectProvider(); got != tt.want {
				t.Errorf("DetectProvider() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	temp := 0.2

	t.Run("default is extractive", func(t *testing.T) {
		clearProviderEnv(t)

		g, err := New(Config{})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if _, ok := g.(ExtractiveGenerator); !ok {
			t.Errorf("New() = %T, want ExtractiveGenerator", g)
		}
	})

	t.Run("gemini key from environment", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv(EnvGoogleAPIKey, "google-key")

		g, err := New(Config{Provider: "gemini", Temperature: &temp, MaxTokens: 256})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		lc, ok := g.(*LangChainGenerator)
		if !ok {
			t.Fatalf("New() = %T, want *LangChainGenerator", g)
		}
		if lc.temperature != temp || lc.maxTokens != 256 {
			t.Errorf("options not applied: temperature=%v maxTokens=%d", lc.temperature, lc.maxTokens)
		}
	})

	t.Run("openai without key", func(t *testing.T) {
		clearProviderEnv(t)

		_, err := New(Config{Provider: "openai"})
		if !errors.Is(err, types.ErrInvalidConfiguration) {
			t.Errorf("expected ErrInvalidConfiguration, got %v", err)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		clearProviderEnv(t)

		_, err := New(Config{Provider: "gpt2"})
		if !errors.Is(err, ErrUnsupportedProvider) {
			t.Errorf("expected ErrUnsupportedProvider, got %v", err)
		}
	})
}
