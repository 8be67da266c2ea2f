package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/ragcore/pkg/types"
)

// Common errors
var (
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
	ErrNoProviderEnabled   = errors.New("no embedding provider configured")
	ErrBadResponse         = errors.New("malformed embedding response")
)

// Operation names used in provider errors
const (
	OpEmbed = "embed"
)

// Embedder maps text to fixed-length vectors. Implementations are safe for
// concurrent use.
type Embedder interface {
	// EmbedOne returns the embedding of a single text
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedMany returns one embedding per text, in input order
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding length, or 0 if not known before the first call
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// DefaultCacheSize bounds the shared embedding cache
const DefaultCacheSize = 10000

// Cache provides in-memory LRU caching of embeddings keyed by model and content
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached vector so callers cannot mutate the cache
func (c *Cache) Get(key string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	vec, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return cloneVector(vec), true
}

// Set stores a copy of vec
func (c *Cache) Set(key string, vec []float32) {
	if c == nil {
		return
	}
	c.cache.Add(key, cloneVector(vec))
}

// Size returns the current cache size
func (c *Cache) Size() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.cache.Purge()
}

// CacheKey derives the cache key for text embedded by model
func CacheKey(model, text string) string {
	return ComputeHash(model + "\x00" + text)
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateTexts rejects empty input strings
func ValidateTexts(texts []string) error {
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%s: text %d: %w: %w", OpEmbed, i, types.ErrInvalidArgument, types.ErrEmptyText)
		}
	}
	return nil
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
