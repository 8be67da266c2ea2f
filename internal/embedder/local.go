package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalDimension is the default feature-hash width
const LocalDimension = 384

// LocalProvider is a deterministic offline embedder based on signed feature
// hashing of lower-cased word tokens. Texts sharing words get similar vectors,
// which is enough for keyword-level retrieval without a model or network.
type LocalProvider struct {
	dim int
}

var _ Embedder = (*LocalProvider)(nil)

// NewLocalProvider creates a local embedder with dim buckets (LocalDimension when dim <= 0)
func NewLocalProvider(dim int) *LocalProvider {
	if dim <= 0 {
		dim = LocalDimension
	}
	return &LocalProvider{dim: dim}
}

func (l *LocalProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateTexts([]string{text}); err != nil {
		return nil, err
	}
	return l.embed(text), nil
}

func (l *LocalProvider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = l.embed(text)
	}
	return out, nil
}

func (l *LocalProvider) embed(text string) []float32 {
	vector := make([]float32, l.dim)
	for _, token := range Tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()

		bucket := sum % uint64(l.dim)
		if sum>>63 == 1 {
			vector[bucket]--
		} else {
			vector[bucket]++
		}
	}
	return NormalizeVector(vector)
}

func (l *LocalProvider) Dimension() int {
	return l.dim
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return fmt.Sprintf("feature-hash-%d", l.dim)
}

func (l *LocalProvider) Close() error {
	return nil
}

// Tokenize lower-cases text and splits it on anything that is not a letter or digit
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NormalizeVector scales v to unit length. A zero vector is returned unchanged.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = float32(float64(val) / norm)
	}

	return result
}
