package embedder

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragcore/pkg/types"
)

func TestComputeHash(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "empty string",
			text: "",
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "simple text",
			text: "hello world",
			want: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeHash(tt.text))
		})
	}
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("m", "text"), CacheKey("m", "text"))
	assert.NotEqual(t, CacheKey("m1", "text"), CacheKey("m2", "text"))
	assert.NotEqual(t, CacheKey("ab", "c"), CacheKey("a", "bc"))
}

func TestValidateTexts(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr bool
	}{
		{name: "valid", texts: []string{"a", "b"}},
		{name: "no texts", texts: nil},
		{name: "empty text", texts: []string{"a", ""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTexts(tt.texts)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
			assert.ErrorIs(t, err, types.ErrEmptyText)
		})
	}
}

func TestCache(t *testing.T) {
	t.Run("set and get", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("k", []float32{1, 2, 3})

		got, ok := cache.Get("k")
		require.True(t, ok)
		assert.Equal(t, []float32{1, 2, 3}, got)
		assert.Equal(t, 1, cache.Size())
	})

	t.Run("miss", func(t *testing.T) {
		cache := NewCache(10)
		_, ok := cache.Get("missing")
		assert.False(t, ok)
	})

	t.Run("returned vectors are copies", func(t *testing.T) {
		cache := NewCache(10)
		stored := []float32{1, 2}
		cache.Set("k", stored)
		stored[0] = 99

		got, _ := cache.Get("k")
		got[1] = 42

		again, _ := cache.Get("k")
		assert.Equal(t, []float32{1, 2}, again)
	})

	t.Run("lru eviction", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("a", []float32{1})
		cache.Set("b", []float32{2})
		_, _ = cache.Get("a") // a becomes most recent
		cache.Set("c", []float32{3})

		_, okA := cache.Get("a")
		_, okB := cache.Get("b")
		assert.True(t, okA)
		assert.False(t, okB)
		assert.Equal(t, 2, cache.Size())
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(0)
		cache.Set("a", []float32{1})
		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})

	t.Run("nil cache is a no-op", func(t *testing.T) {
		var cache *Cache
		cache.Set("a", []float32{1})
		_, ok := cache.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 0, cache.Size())
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := NewCache(100)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					key := fmt.Sprintf("k%d", (i*j)%50)
					cache.Set(key, []float32{float32(j)})
					_, _ = cache.Get(key)
				}
			}(i)
		}
		wg.Wait()
		assert.LessOrEqual(t, cache.Size(), 100)
	})
}
