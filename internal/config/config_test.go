package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragcore/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ragcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, BackendMemory, cfg.Index.Backend)
	assert.Equal(t, "ragcore", cfg.Index.Collection)
	assert.Equal(t, "localhost", cfg.Index.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Index.Qdrant.Port)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "replace", cfg.Retrieval.Policy)
	assert.Equal(t, 60*time.Second, cfg.Retrieval.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 10000, cfg.Embedding.CacheSize)
	assert.Nil(t, cfg.Generation.Temperature)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
chunking:
  size: 50
  overlap: 0
embedding:
  provider: local
  dimension: 128
  api_key: sk-file
generation:
  provider: extractive
  temperature: 0.2
index:
  backend: sqlite
  path: /tmp/ragcore.db
retrieval:
  top_k: 5
  min_score: 0.25
  policy: append
  timeout: 5s
log:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Chunking.Size)
	assert.Equal(t, 0, cfg.Chunking.Overlap, "explicit zero must override the default overlap")
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 128, cfg.Embedding.Dimension)
	assert.Equal(t, "sk-file", cfg.Embedding.APIKey.Value())
	require.NotNil(t, cfg.Generation.Temperature)
	assert.InDelta(t, 0.2, *cfg.Generation.Temperature, 1e-9)
	assert.Equal(t, BackendSQLite, cfg.Index.Backend)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.25, cfg.Retrieval.MinScore, 1e-9)
	assert.Equal(t, "append", cfg.Retrieval.Policy)
	assert.Equal(t, 5*time.Second, cfg.Retrieval.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)

	// Unset keys keep their defaults
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10000, cfg.Embedding.CacheSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
index:
  backend: chromem
retrieval:
  top_k: 5
`)

	t.Setenv("RAGCORE_RETRIEVAL_TOP_K", "7")
	t.Setenv("RAGCORE_INDEX_BACKEND", "qdrant")
	t.Setenv("RAGCORE_INDEX_QDRANT_HOST", "qdrant.internal")
	t.Setenv("RAGCORE_INDEX_QDRANT_PORT", "6335")
	t.Setenv("RAGCORE_EMBEDDING_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("RAGCORE_GENERATION_API_KEY", "sk-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.Equal(t, BackendQdrant, cfg.Index.Backend)
	assert.Equal(t, "qdrant.internal", cfg.Index.Qdrant.Host)
	assert.Equal(t, 6335, cfg.Index.Qdrant.Port)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Embedding.BaseURL)
	assert.Equal(t, "sk-env", cfg.Generation.APIKey.Value())
}

func TestLoad_ConfigFileFromEnv(t *testing.T) {
	path := writeConfig(t, "retrieval:\n  top_k: 9\n")
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Retrieval.TopK)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := Load(t.TempDir())
		assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
	})

	t.Run("too large", func(t *testing.T) {
		path := writeConfig(t, "# "+strings.Repeat("x", maxConfigFileSize)+"\n")
		_, err := Load(path)
		assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "retrieval: [top_k\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeConfig(t, "chunking:\n  size: 100\n  overlap: 100\n")
		_, err := Load(path)
		assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunking.Size = 0 }},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }},
		{"overlap not smaller than size", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }},
		{"negative dimension", func(c *Config) { c.Embedding.Dimension = -1 }},
		{"negative cache", func(c *Config) { c.Embedding.CacheSize = -1 }},
		{"negative rate", func(c *Config) { c.Embedding.RequestsPerSecond = -1 }},
		{"negative retries", func(c *Config) { c.Embedding.MaxRetries = -1 }},
		{"temperature too high", func(c *Config) { v := 2.5; c.Generation.Temperature = &v }},
		{"negative max tokens", func(c *Config) { c.Generation.MaxTokens = -1 }},
		{"unknown backend", func(c *Config) { c.Index.Backend = "faiss" }},
		{"sqlite without path", func(c *Config) { c.Index.Backend = BackendSQLite }},
		{"qdrant bad port", func(c *Config) { c.Index.Backend = BackendQdrant; c.Index.Qdrant.Port = 70000 }},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"min score out of range", func(c *Config) { c.Retrieval.MinScore = 1.5 }},
		{"negative workers", func(c *Config) { c.Retrieval.Workers = -2 }},
		{"unknown policy", func(c *Config) { c.Retrieval.Policy = "merge" }},
		{"negative timeout", func(c *Config) { c.Retrieval.Timeout = -time.Second }},
		{"negative request rate", func(c *Config) { c.Server.RequestsPerSecond = -1 }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	require.NoError(t, Default().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), types.ErrInvalidConfiguration)
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"RAGCORE_INDEX_BACKEND":           "index.backend",
		"RAGCORE_EMBEDDING_BASE_URL":      "embedding.base_url",
		"RAGCORE_RETRIEVAL_MIN_SCORE":     "retrieval.min_score",
		"RAGCORE_INDEX_QDRANT_USE_TLS":    "index.qdrant.use_tls",
		"RAGCORE_SERVER_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",
		"RAGCORE_CONFIG":                  "config",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-live-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "sk-live-123", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"[REDACTED]"}`, string(data))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}
