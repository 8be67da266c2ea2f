package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragcore/internal/index"
	"github.com/dshills/ragcore/pkg/types"
)

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider(0)

	assert.Equal(t, LocalDimension, p.Dimension())
	assert.Equal(t, ProviderLocal, p.Provider())
	assert.Equal(t, "feature-hash-384", p.Model())
	require.NoError(t, p.Close())

	t.Run("deterministic and normalized", func(t *testing.T) {
		a, err := p.EmbedOne(ctx, "Paris is the capital of France.")
		require.NoError(t, err)
		b, err := p.EmbedOne(ctx, "Paris is the capital of France.")
		require.NoError(t, err)

		assert.Equal(t, a, b)
		assert.Len(t, a, LocalDimension)
		assert.InDelta(t, 1.0, index.Norm(a), 1e-6)
	})

	t.Run("case and punctuation insensitive", func(t *testing.T) {
		a, err := p.EmbedOne(ctx, "Capital of FRANCE!")
		require.NoError(t, err)
		b, err := p.EmbedOne(ctx, "capital of france")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("punctuation only gives zero vector", func(t *testing.T) {
		v, err := p.EmbedOne(ctx, "?!...")
		require.NoError(t, err)
		assert.Len(t, v, LocalDimension)
		assert.Equal(t, 0.0, index.Norm(v))
	})

	t.Run("empty text rejected", func(t *testing.T) {
		_, err := p.EmbedOne(ctx, "")
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})

	t.Run("batch preserves order", func(t *testing.T) {
		texts := []string{"alpha", "beta", "gamma"}
		vectors, err := p.EmbedMany(ctx, texts)
		require.NoError(t, err)
		require.Len(t, vectors, 3)
		for i, text := range texts {
			single, err := p.EmbedOne(ctx, text)
			require.NoError(t, err)
			assert.Equal(t, single, vectors[i])
		}
	})

	t.Run("shared words rank higher", func(t *testing.T) {
		query, err := p.EmbedOne(ctx, "capital of France")
		require.NoError(t, err)
		docs, err := p.EmbedMany(ctx, []string{
			"Paris is the capital of France.",
			"The Louvre is in Paris.",
			"Lyon is a city in France.",
		})
		require.NoError(t, err)

		paris := index.CosineSimilarity(query, docs[0])
		louvre := index.CosineSimilarity(query, docs[1])
		lyon := index.CosineSimilarity(query, docs[2])
		assert.Greater(t, paris, lyon)
		assert.Greater(t, paris, louvre)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.EmbedMany(cctx, []string{"x"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLocalProvider_CustomDimension(t *testing.T) {
	p := NewLocalProvider(16)
	v, err := p.EmbedOne(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Len(t, v, 16)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"paris", "is", "the", "capital", "of", "france"},
		Tokenize("Paris is the capital of France."))
	assert.Equal(t, []string{"ünïcödé", "42"}, Tokenize("Ünïcödé -- 42"))
	assert.Empty(t, Tokenize(" \t.,;"))
}

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want []float32
	}{
		{name: "3-4-5", in: []float32{3, 4}, want: []float32{0.6, 0.8}},
		{name: "already unit", in: []float32{1, 0}, want: []float32{1, 0}},
		{name: "zero", in: []float32{0, 0}, want: []float32{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVector(tt.in)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-6)
			}
		})
	}
}
