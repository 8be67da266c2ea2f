package index

import (
	"context"
	"fmt"

	"github.com/dshills/ragcore/pkg/types"
)

// Operation names used in error context
const (
	OpAdd    = "index.add"
	OpSearch = "index.search"
)

// Index stores embedded chunks and answers exact top-k cosine similarity queries.
//
// Implementations must guarantee:
//   - the dimension is fixed by the first entry added to an empty index
//   - Add validates the whole batch before storing anything
//   - an entry becomes visible to Search only after Add completes
//   - Search orders by descending score, ties by ascending insertion order
//   - Search on an empty index returns an empty slice
type Index interface {
	// Add appends entries and returns their freshly assigned ids in order
	Add(ctx context.Context, entries []types.Entry) ([]string, error)

	// Search returns at most k entries ranked by cosine similarity to query
	Search(ctx context.Context, query []float32, k int) ([]types.Result, error)

	// Len returns the number of stored entries
	Len(ctx context.Context) (int, error)

	// Dimension returns the fixed embedding length, or 0 while the index is empty
	Dimension() int

	// Reset removes every entry and clears the dimension
	Reset(ctx context.Context) error

	// Close releases any resources held by the index
	Close() error
}

// ValidateBatch checks every embedding of a batch against dim. When dim is 0
// the first entry establishes it. It returns the dimension the index must use.
func ValidateBatch(dim int, entries []types.Entry) (int, error) {
	for i := range entries {
		got := len(entries[i].Embedding)
		if got == 0 {
			return dim, fmt.Errorf("%s: entry %d: %w: %w", OpAdd, i, types.ErrInvalidArgument, types.ErrEmptyVector)
		}
		if dim == 0 {
			dim = got
			continue
		}
		if got != dim {
			return dim, types.NewDimensionError(OpAdd, dim, got, i)
		}
	}
	return dim, nil
}

// ValidateQuery checks k and the query length against a non-empty index of dimension dim.
func ValidateQuery(dim int, query []float32, k int) error {
	if k <= 0 {
		return fmt.Errorf("%s: %w: k must be positive, got %d", OpSearch, types.ErrInvalidArgument, k)
	}
	if len(query) != dim {
		return types.NewDimensionError(OpSearch, dim, len(query), -1)
	}
	return nil
}
