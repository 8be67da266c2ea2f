// Package index defines the vector index contract and its default in-memory
// implementation.
//
// An Index stores (text, metadata, embedding) entries and answers exact top-k
// queries by cosine similarity. The contract never exposes storage layout, so
// the in-memory Memory index, the SQLite index in package storage and the
// chromem and Qdrant adapters in package vectorstore are interchangeable.
//
// # Basic Usage
//
//	idx := index.NewMemory()
//	ids, err := idx.Add(ctx, []types.Entry{
//	    {Text: "Paris is the capital of France.", Embedding: vec},
//	})
//
//	results, err := idx.Search(ctx, queryVec, 3)
//	for _, r := range results {
//	    fmt.Printf("%d. %.3f %s\n", r.Rank, r.Score, r.Text)
//	}
//
// # Ranking
//
// Scores are cosine similarities computed in float64. A vector with zero
// magnitude scores 0 against everything. Equal scores are ordered by insertion
// order, earliest first, so results are deterministic.
//
// # Errors
//
//   - Add with an embedding of the wrong length returns types.ErrDimensionMismatch
//     and stores nothing from the batch
//   - Search with k <= 0 returns types.ErrInvalidArgument
//   - Search with a query of the wrong length returns types.ErrDimensionMismatch
//
// Searching an empty index is not an error and returns an empty slice.
//
// # Concurrency
//
// Searches run concurrently under a read lock. Add prepares its records
// outside the lock and publishes the whole batch under the write lock, so a
// search never observes a partially added entry.
package index
