package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/index"
	"github.com/dshills/ragcore/pkg/types"
)

// Reserved metadata keys. User metadata under this prefix is overwritten.
const (
	metaPrefix = "ragcore."
	metaID     = metaPrefix + "id"
	metaSeq    = metaPrefix + "seq"
)

// docIDFormat zero-pads the insertion sequence so chromem document ids sort in order
const docIDFormat = "%012d"

// DefaultCollection is used when no collection name is configured
const DefaultCollection = "ragcore"

// ChromemConfig holds configuration for the chromem-go embedded vector database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory only.
	Path string

	// Compress enables gzip compression for persisted documents
	Compress bool

	// Collection name (default: "ragcore")
	Collection string
}

// ApplyDefaults sets default values for unset fields
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
}

// Chromem implements index.Index on a chromem-go collection.
//
// chromem normalizes embeddings on insert and reports similarity as a float32
// dot product; scores are widened to float64 and re-ranked so ties follow
// insertion order like every other index.
type Chromem struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger

	mu         sync.RWMutex
	collection *chromem.Collection // nil until the first Add
	dim        int
	nextSeq    int64
}

var _ index.Index = (*Chromem)(nil)

// errNoEmbedding is returned by the collection's embedding func; the retriever
// always supplies vectors, so chromem never needs to embed text itself
var errNoEmbedding = errors.New("chromem: text embedding is not configured")

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// NewChromem opens (or creates) a chromem-go database. An existing collection
// is reopened and its dimension and insertion sequence recovered.
func NewChromem(ctx context.Context, cfg ChromemConfig, logger *zap.Logger) (*Chromem, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		cfg.Path = path
	}

	s := &Chromem{db: db, config: cfg, logger: logger}

	if c := db.GetCollection(cfg.Collection, noEmbedding); c != nil && c.Count() > 0 {
		first, err := c.GetByID(ctx, fmt.Sprintf(docIDFormat, 0))
		if err != nil {
			return nil, fmt.Errorf("recovering dimension of collection %s: %w", cfg.Collection, err)
		}
		s.collection = c
		s.dim = len(first.Embedding)
		s.nextSeq = int64(c.Count())
	}

	logger.Info("chromem index initialized",
		zap.String("path", cfg.Path),
		zap.Bool("compress", cfg.Compress),
		zap.String("collection", cfg.Collection),
		zap.Int("dimension", s.dim),
		zap.Int64("entries", s.nextSeq),
	)

	return s, nil
}

// expandPath expands ~ to the home directory
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Add stores entries as chromem documents keyed by insertion sequence
func (s *Chromem) Add(ctx context.Context, entries []types.Entry) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []string{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := index.ValidateBatch(s.dim, entries)
	if err != nil {
		return nil, err
	}

	if s.collection == nil {
		c, err := s.db.GetOrCreateCollection(s.config.Collection, nil, noEmbedding)
		if err != nil {
			return nil, fmt.Errorf("getting/creating collection %s: %w", s.config.Collection, err)
		}
		s.collection = c
	}

	ids := make([]string, len(entries))
	docs := make([]chromem.Document, len(entries))
	for i := range entries {
		seq := s.nextSeq + int64(i)
		ids[i] = uuid.NewString()

		meta := types.CopyMetadata(entries[i].Metadata)
		meta[metaID] = ids[i]
		meta[metaSeq] = strconv.FormatInt(seq, 10)

		vec := make([]float32, len(entries[i].Embedding))
		copy(vec, entries[i].Embedding)

		docs[i] = chromem.Document{
			ID:        fmt.Sprintf(docIDFormat, seq),
			Content:   entries[i].Text,
			Metadata:  meta,
			Embedding: vec,
		}
	}

	// Embeddings are precomputed, so one worker is enough
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		s.rollback(docs)
		return nil, fmt.Errorf("%s: adding documents: %w", index.OpAdd, err)
	}

	s.nextSeq += int64(len(entries))
	s.dim = dim

	s.logger.Debug("added documents to chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(entries)),
	)

	return ids, nil
}

// rollback removes whatever part of a failed batch reached the collection
func (s *Chromem) rollback(docs []chromem.Document) {
	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
	}
	if err := s.collection.Delete(context.Background(), nil, nil, ids...); err != nil {
		s.logger.Error("failed to roll back partial batch",
			zap.String("collection", s.config.Collection),
			zap.Error(err),
		)
	}
}

// Search queries every document and re-ranks by score, then insertion order
func (s *Chromem) Search(ctx context.Context, query []float32, k int) ([]types.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.collection == nil {
		return []types.Result{}, nil
	}
	count := s.collection.Count()
	if count == 0 {
		return []types.Result{}, nil
	}
	if err := index.ValidateQuery(s.dim, query, k); err != nil {
		return nil, err
	}

	// A zero query cannot be normalized; fetch everything with a unit
	// vector instead and score it 0
	zeroQuery := index.Norm(query) == 0
	q := make([]float32, len(query))
	if zeroQuery {
		q[0] = 1
	} else {
		copy(q, query)
	}

	// chromem requires nResults <= document count; ranking is done here
	results, err := s.collection.QueryEmbedding(ctx, q, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: querying collection %s: %w", index.OpSearch, s.config.Collection, err)
	}

	candidates := make([]index.Candidate, 0, len(results))
	for _, r := range results {
		seq, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: malformed document id %q: %w", index.OpSearch, r.ID, err)
		}

		score := clampScore(float64(r.Similarity))
		if zeroQuery {
			score = 0
		}

		candidates = append(candidates, index.Candidate{
			Seq:      seq,
			ID:       r.Metadata[metaID],
			Text:     r.Content,
			Metadata: userMetadata(r.Metadata),
			Score:    score,
		})
	}

	return index.Rank(candidates, k), nil
}

// Len returns the number of stored documents
func (s *Chromem) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.collection == nil {
		return 0, nil
	}
	return s.collection.Count(), nil
}

// Dimension returns the fixed embedding length, 0 while empty
func (s *Chromem) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Reset deletes the collection. It is recreated by the next Add.
func (s *Chromem) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection != nil {
		if err := s.db.DeleteCollection(s.config.Collection); err != nil {
			return fmt.Errorf("deleting collection %s: %w", s.config.Collection, err)
		}
	}
	s.collection = nil
	s.dim = 0
	s.nextSeq = 0
	return nil
}

// Close is a no-op; persistent documents are written on insert
func (s *Chromem) Close() error {
	return nil
}

// userMetadata strips the reserved keys from stored metadata
func userMetadata(stored map[string]string) map[string]string {
	meta := make(map[string]string, len(stored))
	for k, v := range stored {
		if strings.HasPrefix(k, metaPrefix) {
			continue
		}
		meta[k] = v
	}
	return meta
}
