package retriever

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/ragcore/internal/chunker"
	"github.com/dshills/ragcore/internal/embedder"
	"github.com/dshills/ragcore/internal/index"
	"github.com/dshills/ragcore/pkg/types"
)

// OpRetrieve names retrieval in error context
const OpRetrieve = "retrieve"

// Retriever coordinates the indexing pipeline (chunk -> embed -> index) and
// query-time retrieval over the same chunking configuration.
type Retriever struct {
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	index    index.Index

	// Worker pool configuration
	workers int
}

// Option configures a Retriever
type Option func(*Retriever)

// WithWorkers bounds how many documents are chunked and embedded concurrently
// (default: runtime.NumCPU())
func WithWorkers(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.workers = n
		}
	}
}

// Statistics contains statistics about an indexing operation
type Statistics struct {
	DocumentsIndexed int
	DocumentsSkipped int // Documents with empty text
	ChunksCreated    int
	EstimatedTokens  int
	Duration         time.Duration
}

// New creates a retriever. All three collaborators are required.
func New(c *chunker.Chunker, e embedder.Embedder, idx index.Index, opts ...Option) (*Retriever, error) {
	if c == nil || e == nil || idx == nil {
		return nil, fmt.Errorf("%w: retriever requires a chunker, an embedder and an index", types.ErrInvalidConfiguration)
	}

	r := &Retriever{
		chunker:  c,
		embedder: e,
		index:    idx,
		workers:  runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// prepared holds the chunks and embeddings of one document awaiting append
type prepared struct {
	chunks  []types.Chunk
	vectors [][]float32
}

// IndexDocuments chunks, embeds and appends docs in input order. Documents are
// prepared concurrently in windows of the worker count; each window is then
// appended in order. On failure every document before the failing one has
// been appended, and the returned Statistics reflect that partial progress.
func (r *Retriever) IndexDocuments(ctx context.Context, docs []types.Document) (*Statistics, error) {
	startTime := time.Now()
	stats := &Statistics{}
	defer func() { stats.Duration = time.Since(startTime) }()

	for start := 0; start < len(docs); start += r.workers {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		window := docs[start:min(start+r.workers, len(docs))]
		results := make([]prepared, len(window))
		errs := make([]error, len(window))

		// No shared context: one failure must not cancel the documents before it
		var g errgroup.Group
		for i := range window {
			g.Go(func() error {
				results[i], errs[i] = r.prepare(ctx, window[i])
				return errs[i]
			})
		}

		ready := len(window)
		if g.Wait() != nil {
			ready = slices.IndexFunc(errs, func(err error) bool { return err != nil })
		}

		for i, doc := range window[:ready] {
			if err := r.appendPrepared(ctx, results[i], stats); err != nil {
				return stats, fmt.Errorf("document %q: %w", doc.ID, err)
			}
		}
		if ready < len(window) {
			return stats, fmt.Errorf("document %q: %w", window[ready].ID, errs[ready])
		}
	}

	return stats, nil
}

// appendPrepared adds one document's chunks to the index and updates stats
func (r *Retriever) appendPrepared(ctx context.Context, res prepared, stats *Statistics) error {
	if len(res.chunks) == 0 {
		stats.DocumentsSkipped++
		return nil
	}

	entries := make([]types.Entry, len(res.chunks))
	tokens := 0
	for j, chunk := range res.chunks {
		entries[j] = types.EntryFromChunk(chunk, res.vectors[j])
		tokens += chunker.EstimateTokenCount(chunk.Text)
	}
	if _, err := r.index.Add(ctx, entries); err != nil {
		return err
	}

	stats.DocumentsIndexed++
	stats.ChunksCreated += len(res.chunks)
	stats.EstimatedTokens += tokens
	return nil
}

// prepare chunks a document and embeds all of its chunks with one call
func (r *Retriever) prepare(ctx context.Context, doc types.Document) (prepared, error) {
	chunks := r.chunker.ChunkDocument(doc)
	if len(chunks) == 0 {
		return prepared{}, nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		if err := chunks[i].ValidateContent(); err != nil {
			return prepared{}, fmt.Errorf("chunk %d: %w: %w", i, types.ErrInvalidArgument, err)
		}
		texts[i] = chunks[i].Text
	}

	vectors, err := r.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return prepared{}, err
	}
	if len(vectors) != len(chunks) {
		return prepared{}, types.NewProviderError(r.embedder.Provider(), embedder.OpEmbed,
			fmt.Errorf("%w: got %d embeddings for %d chunks", embedder.ErrBadResponse, len(vectors), len(chunks)))
	}

	return prepared{chunks: chunks, vectors: vectors}, nil
}

// Retrieve returns the text of the k passages most similar to query
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	results, err := r.RetrieveWithScores(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return types.Texts(results), nil
}

// RetrieveWithScores embeds query once and returns up to k ranked results.
// An empty index yields an empty result without calling the embedder.
func (r *Retriever) RetrieveWithScores(ctx context.Context, query string, k int) ([]types.Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%s: %w: k must be positive, got %d", OpRetrieve, types.ErrInvalidArgument, k)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%s: %w: %w", OpRetrieve, types.ErrInvalidArgument, types.ErrEmptyText)
	}

	n, err := r.index.Len(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []types.Result{}, nil
	}

	if want, got := r.index.Dimension(), r.embedder.Dimension(); want > 0 && got > 0 && want != got {
		return nil, types.NewDimensionError(OpRetrieve, want, got, -1)
	}

	vector, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := r.index.Search(ctx, vector, k)
	if err != nil {
		var dimErr *types.DimensionError
		if errors.As(err, &dimErr) {
			return nil, fmt.Errorf("%s: query embedding from %s/%s: %w", OpRetrieve, r.embedder.Provider(), r.embedder.Model(), err)
		}
		return nil, err
	}
	for i := range results {
		if err := results[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s: result %d: %w", OpRetrieve, i, err)
		}
	}
	return results, nil
}

// WithIndex returns a retriever sharing r's chunker, embedder and workers that
// reads and writes idx instead
func (r *Retriever) WithIndex(idx index.Index) *Retriever {
	cp := *r
	cp.index = idx
	return &cp
}

// ChunkConfig reports the chunking configuration used on both the build and query paths
func (r *Retriever) ChunkConfig() chunker.Config {
	return r.chunker.Config()
}

// Embedder returns the embedding port used by the retriever
func (r *Retriever) Embedder() embedder.Embedder {
	return r.embedder
}
