// Package config loads ragcore configuration from defaults, an optional YAML
// file and RAGCORE_ environment variables.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/dshills/ragcore/internal/chunker"
	"github.com/dshills/ragcore/pkg/types"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix is stripped from environment variables before mapping them
	EnvPrefix = "RAGCORE_"

	// EnvConfigFile names a config file when no path is given explicitly
	EnvConfigFile = "RAGCORE_CONFIG"
)

// Index backends
const (
	BackendMemory  = "memory"
	BackendSQLite  = "sqlite"
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
)

// Config is the complete ragcore configuration
type Config struct {
	Chunking   ChunkingConfig   `koanf:"chunking"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Generation GenerationConfig `koanf:"generation"`
	Index      IndexConfig      `koanf:"index"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
}

// ChunkingConfig sets the window used on both the build and query paths
type ChunkingConfig struct {
	Size    int `koanf:"size"`
	Overlap int `koanf:"overlap"`
}

// EmbeddingConfig selects the embedding provider. An empty provider is
// detected from the environment.
type EmbeddingConfig struct {
	Provider          string        `koanf:"provider"`
	Model             string        `koanf:"model"`
	BaseURL           string        `koanf:"base_url"`
	APIKey            Secret        `koanf:"api_key"`
	Dimension         int           `koanf:"dimension"`
	CacheSize         int           `koanf:"cache_size"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	MaxRetries        int           `koanf:"max_retries"`
	Timeout           time.Duration `koanf:"timeout"`
}

// GenerationConfig selects the answer generator
type GenerationConfig struct {
	Provider    string   `koanf:"provider"`
	Model       string   `koanf:"model"`
	BaseURL     string   `koanf:"base_url"`
	APIKey      Secret   `koanf:"api_key"`
	Temperature *float64 `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
}

// IndexConfig selects and configures the vector index backend
type IndexConfig struct {
	Backend    string       `koanf:"backend"`
	Path       string       `koanf:"path"`
	Collection string       `koanf:"collection"`
	Compress   bool         `koanf:"compress"`
	Qdrant     QdrantConfig `koanf:"qdrant"`
}

// QdrantConfig holds the connection settings of the qdrant backend
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// RetrievalConfig tunes indexing and querying
type RetrievalConfig struct {
	TopK     int           `koanf:"top_k"`
	MinScore float64       `koanf:"min_score"`
	Workers  int           `koanf:"workers"`
	Policy   string        `koanf:"policy"`
	Timeout  time.Duration `koanf:"timeout"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	HTTPAddr          string        `koanf:"http_addr"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"` // Per client IP, 0 disables limiting
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaultsYAML is loaded first so explicit zero values in later layers win
const defaultsYAML = `
chunking:
  size: 1000
  overlap: 200
embedding:
  cache_size: 10000
  max_retries: 3
  timeout: 30s
generation:
  max_tokens: 0
index:
  backend: memory
  collection: ragcore
  qdrant:
    host: localhost
    port: 6334
retrieval:
  top_k: 3
  min_score: 0
  workers: 0
  policy: replace
  timeout: 60s
server:
  http_addr: ":8080"
  shutdown_timeout: 10s
  requests_per_second: 0
log:
  level: info
  format: console
`

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	cfg, err := load(nil, false)
	if err != nil {
		panic(fmt.Sprintf("config: invalid built-in defaults: %v", err))
	}
	return cfg
}

// Load reads configuration with the following precedence (highest first):
//  1. Environment variables (RAGCORE_INDEX_BACKEND, RAGCORE_RETRIEVAL_TOP_K, ...)
//  2. The YAML file at path, or at $RAGCORE_CONFIG when path is empty
//  3. Built-in defaults
//
// Environment variables map to keys by dropping the prefix, lowercasing and
// splitting on the first underscore:
//
//	RAGCORE_INDEX_BACKEND      -> index.backend
//	RAGCORE_EMBEDDING_BASE_URL -> embedding.base_url
//	RAGCORE_INDEX_QDRANT_HOST  -> index.qdrant.host
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}

	var content []byte
	if path != "" {
		var err error
		content, err = readConfigFile(path)
		if err != nil {
			return nil, err
		}
	}
	return load(content, true)
}

func load(fileContent []byte, withEnv bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultsYAML)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if fileContent != nil {
		if err := k.Load(rawbytes.Provider(fileContent), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if withEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// readConfigFile reads a config file after checking its size on the open descriptor
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: config path %s is a directory", types.ErrInvalidConfiguration, path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%w: config file %s exceeds %d bytes", types.ErrInvalidConfiguration, path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// envKey maps RAGCORE_SECTION_FIELD_NAME to section.field_name. The qdrant
// block is the only nested section.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	if section == "index" {
		if rest, nested := strings.CutPrefix(field, "qdrant_"); nested {
			return "index.qdrant." + rest
		}
	}
	return section + "." + field
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.ChunkConfig().Validate(); err != nil {
		return err
	}

	if c.Embedding.Dimension < 0 {
		return invalid("embedding.dimension must not be negative, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.CacheSize < 0 {
		return invalid("embedding.cache_size must not be negative, got %d", c.Embedding.CacheSize)
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return invalid("embedding.requests_per_second must not be negative")
	}
	if c.Embedding.MaxRetries < 0 {
		return invalid("embedding.max_retries must not be negative, got %d", c.Embedding.MaxRetries)
	}

	if t := c.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		return invalid("generation.temperature must be within [0, 2], got %v", *t)
	}
	if c.Generation.MaxTokens < 0 {
		return invalid("generation.max_tokens must not be negative, got %d", c.Generation.MaxTokens)
	}

	switch c.Index.Backend {
	case BackendMemory, BackendChromem:
	case BackendSQLite:
		if c.Index.Path == "" {
			return invalid("index.path is required for the sqlite backend")
		}
	case BackendQdrant:
		if c.Index.Qdrant.Port <= 0 || c.Index.Qdrant.Port > 65535 {
			return invalid("index.qdrant.port %d out of range", c.Index.Qdrant.Port)
		}
	default:
		return invalid("unknown index.backend %q (want memory, sqlite, chromem or qdrant)", c.Index.Backend)
	}

	if c.Retrieval.TopK <= 0 {
		return invalid("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		return invalid("retrieval.min_score must be within [-1, 1], got %v", c.Retrieval.MinScore)
	}
	if c.Retrieval.Workers < 0 {
		return invalid("retrieval.workers must not be negative, got %d", c.Retrieval.Workers)
	}
	switch c.Retrieval.Policy {
	case "replace", "append":
	default:
		return invalid("unknown retrieval.policy %q (want replace or append)", c.Retrieval.Policy)
	}
	if c.Retrieval.Timeout < 0 {
		return invalid("retrieval.timeout must not be negative")
	}

	if c.Server.ShutdownTimeout < 0 {
		return invalid("server.shutdown_timeout must not be negative")
	}
	if c.Server.RequestsPerSecond < 0 {
		return invalid("server.requests_per_second must not be negative")
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("unknown log.format %q (want json or console)", c.Log.Format)
	}

	return nil
}

// ChunkConfig converts the chunking section
func (c *Config) ChunkConfig() chunker.Config {
	return chunker.Config{ChunkSize: c.Chunking.Size, Overlap: c.Chunking.Overlap}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
