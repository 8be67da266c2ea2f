// Package indextest provides a conformance suite shared by every index.Index
// implementation.
package indextest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragcore/internal/index"
	"github.com/dshills/ragcore/pkg/types"
)

// Factory returns a fresh, empty index. Cleanup is the factory's responsibility.
type Factory func(t *testing.T) index.Index

// Run executes the conformance suite against indexes built by newIndex
func Run(t *testing.T, newIndex Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, idx index.Index)
	}{
		{"empty index search", testEmptySearch},
		{"add assigns unique ids", testUniqueIDs},
		{"first add fixes dimension", testDimensionFixed},
		{"mismatched batch stores nothing", testBatchAtomic},
		{"empty embedding rejected", testEmptyEmbedding},
		{"search argument validation", testSearchValidation},
		{"self similarity", testSelfSimilarity},
		{"results sorted and bounded", testSortedAndBounded},
		{"ties break by insertion order", testTieBreak},
		{"zero magnitude vectors", testZeroVectors},
		{"metadata round trip", testMetadata},
		{"reset", testReset},
		{"concurrent add and search", testConcurrent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := newIndex(t)
			tt.fn(t, idx)
		})
	}
}

func entry(text string, vec ...float32) types.Entry {
	return types.Entry{Text: text, Embedding: vec}
}

func testEmptySearch(t *testing.T, idx index.Index) {
	ctx := context.Background()

	n, err := idx.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, idx.Dimension())

	for _, k := range []int{1, 3, 100} {
		results, err := idx.Search(ctx, []float32{1, 0, 0}, k)
		require.NoError(t, err)
		assert.Empty(t, results)
	}
}

func testUniqueIDs(t *testing.T, idx index.Index) {
	ctx := context.Background()

	seen := make(map[string]bool)
	for batch := 0; batch < 3; batch++ {
		ids, err := idx.Add(ctx, []types.Entry{
			entry("a", 1, 0),
			entry("b", 0, 1),
		})
		require.NoError(t, err)
		require.Len(t, ids, 2)
		for _, id := range ids {
			assert.NotEmpty(t, id)
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	}

	n, err := idx.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func testDimensionFixed(t *testing.T, idx index.Index) {
	ctx := context.Background()

	_, err := idx.Add(ctx, []types.Entry{entry("three", 1, 2, 3)})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Dimension())

	_, err = idx.Add(ctx, []types.Entry{entry("two", 1, 2)})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)

	var dimErr *types.DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	n, err := idx.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "mismatched entry must not be stored")
}

func testBatchAtomic(t *testing.T, idx index.Index) {
	ctx := context.Background()

	_, err := idx.Add(ctx, []types.Entry{
		entry("ok", 1, 0),
		entry("ok too", 0, 1),
		entry("bad", 1, 0, 0),
	})
	require.ErrorIs(t, err, types.ErrDimensionMismatch)

	n, err := idx.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Dimension was not established by the rejected batch
	_, err = idx.Add(ctx, []types.Entry{entry("four", 1, 0, 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Dimension())
}

func testEmptyEmbedding(t *testing.T, idx index.Index) {
	_, err := idx.Add(context.Background(), []types.Entry{{Text: "no vector"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func testSearchValidation(t *testing.T, idx index.Index) {
	ctx := context.Background()
	_, err := idx.Add(ctx, []types.Entry{entry("x", 1, 0, 0)})
	require.NoError(t, err)

	for _, k := range []int{0, -1} {
		_, err = idx.Search(ctx, []float32{1, 0, 0}, k)
		assert.ErrorIs(t, err, types.ErrInvalidArgument, "k=%d", k)
	}

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)

	_, err = idx.Search(ctx, nil, 1)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func testSelfSimilarity(t *testing.T, idx index.Index) {
	ctx := context.Background()

	_, err := idx.Add(ctx, []types.Entry{
		entry("other", 0.1, 0.9, 0.3),
		entry("target", 0.5, -0.2, 0.8),
	})
	require.NoError(t, err)

	results, err := idx.Search(ctx, []float32{0.5, -0.2, 0.8}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "target", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
	assert.Equal(t, 1, results[0].Rank)
}

func testSortedAndBounded(t *testing.T, idx index.Index) {
	ctx := context.Background()

	entries := make([]types.Entry, 0, 12)
	for i := 0; i < 12; i++ {
		f := float32(i)
		entries = append(entries, entry(fmt.Sprintf("e%d", i), f+1, 12-f, float32(i%3)-1))
	}
	_, err := idx.Add(ctx, entries)
	require.NoError(t, err)

	query := []float32{1, 0.5, 0}
	for _, k := range []int{1, 5, 12, 50} {
		results, err := idx.Search(ctx, query, k)
		require.NoError(t, err)
		require.Len(t, results, min(k, 12))

		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
			assert.Equal(t, i+1, results[i].Rank)
		}
		for _, r := range results {
			require.NoError(t, r.Validate())
		}
	}
}

func testTieBreak(t *testing.T, idx index.Index) {
	ctx := context.Background()

	_, err := idx.Add(ctx, []types.Entry{
		entry("first", 2, 1),
		entry("unrelated", -1, 0),
		entry("second", 2, 1),
	})
	require.NoError(t, err)
	_, err = idx.Add(ctx, []types.Entry{entry("third", 2, 1)})
	require.NoError(t, err)

	results, err := idx.Search(ctx, []float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"first", "second", "third"}, types.Texts(results))
}

func testZeroVectors(t *testing.T, idx index.Index) {
	ctx := context.Background()

	_, err := idx.Add(ctx, []types.Entry{
		entry("zero", 0, 0),
		entry("match", 1, 0),
		entry("opposite", -1, 0),
	})
	require.NoError(t, err)

	results, err := idx.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"match", "zero", "opposite"}, types.Texts(results))
	assert.Equal(t, 0.0, results[1].Score)

	// A zero query scores 0 against everything, so insertion order decides
	results, err = idx.Search(ctx, []float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"zero", "match"}, types.Texts(results))
	for _, r := range results {
		assert.Equal(t, 0.0, r.Score)
	}
}

func testMetadata(t *testing.T, idx index.Index) {
	ctx := context.Background()

	meta := map[string]string{"source": "geography-facts", "page": "1"}
	_, err := idx.Add(ctx, []types.Entry{{Text: "Paris", Metadata: meta, Embedding: []float32{1, 0}}})
	require.NoError(t, err)

	// Mutating the caller's map must not affect the stored entry
	meta["source"] = "changed"

	results, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, map[string]string{"source": "geography-facts", "page": "1"}, results[0].Metadata)

	results[0].Metadata["source"] = "mutated"
	again, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "geography-facts", again[0].Metadata["source"])
}

func testReset(t *testing.T, idx index.Index) {
	ctx := context.Background()

	_, err := idx.Add(ctx, []types.Entry{entry("a", 1, 0, 0)})
	require.NoError(t, err)

	require.NoError(t, idx.Reset(ctx))
	n, err := idx.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, idx.Dimension())

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, results)

	// A new dimension may be established after reset
	_, err = idx.Add(ctx, []types.Entry{entry("b", 1, 0)})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Dimension())
}

func testConcurrent(t *testing.T, idx index.Index) {
	ctx := context.Background()

	_, err := idx.Add(ctx, []types.Entry{{Text: "seed", Metadata: map[string]string{"n": "seed"}, Embedding: []float32{1, 1}}})
	require.NoError(t, err)

	const writers, perWriter = 4, 10
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter*2)

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				name := strconv.Itoa(w*perWriter + i)
				_, err := idx.Add(ctx, []types.Entry{{
					Text:      "entry-" + name,
					Metadata:  map[string]string{"n": name},
					Embedding: []float32{float32(w + 1), float32(i + 1)},
				}})
				if err != nil {
					errs <- err
				}
			}
		}(w)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				results, err := idx.Search(ctx, []float32{1, 1}, 5)
				if err != nil {
					errs <- err
					continue
				}
				for _, r := range results {
					if r.Text != "seed" && r.Text != "entry-"+r.Metadata["n"] {
						errs <- fmt.Errorf("torn entry: text %q metadata %v", r.Text, r.Metadata)
					}
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	n, err := idx.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter+1, n)
}
