package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/generator"
	"github.com/dshills/ragcore/internal/index"
	"github.com/dshills/ragcore/internal/metrics"
	"github.com/dshills/ragcore/internal/retriever"
	"github.com/dshills/ragcore/pkg/types"
)

// InsufficientInformation is the answer returned when no passage supports one
const InsufficientInformation = generator.InsufficientInformation

// DefaultTopK is the number of passages retrieved per query
const DefaultTopK = 3

// ErrIndexingInProgress is returned when a build is requested while another runs
var ErrIndexingInProgress = errors.New("indexing already in progress")

// Policy controls what Initialize does with existing index contents
type Policy string

const (
	// PolicyReplace builds the new corpus aside and swaps it in on success
	PolicyReplace Policy = "replace"
	// PolicyAppend adds the new corpus to the existing entries
	PolicyAppend Policy = "append"
)

// ParsePolicy parses a policy name. Empty means PolicyReplace.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyReplace, "":
		return PolicyReplace, nil
	case PolicyAppend:
		return PolicyAppend, nil
	}
	return "", fmt.Errorf("%w: unknown index policy %q", types.ErrInvalidConfiguration, s)
}

// Answer is the result of a RAG query
type Answer struct {
	Text         string
	Passages     []types.Result // Passages the answer was generated from, best first
	Insufficient bool           // No passage was relevant; Text is InsufficientInformation
}

// Status describes the orchestrator's index and providers
type Status struct {
	Entries   int
	Dimension int
	Indexing  bool

	// Embedding port
	Provider string
	Model    string

	// Generation port, empty when the generator does not describe itself
	GenerationProvider string
	GenerationModel    string
}

// describer is implemented by generators that report their provider and model
type describer interface {
	Provider() string
	Model() string
}

// Orchestrator answers questions by retrieving passages and generating from them.
type Orchestrator struct {
	retriever *retriever.Retriever
	index     index.Index
	generator generator.Generator

	lock IndexLock

	// Held for writing while a replace build is committed to the index
	mu sync.RWMutex

	topK     int
	minScore float64
	timeout  time.Duration
	policy   Policy
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithTopK sets how many passages each query retrieves (default: 3)
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithMinScore drops retrieved passages scoring below score (default: 0, disabled)
func WithMinScore(score float64) Option {
	return func(o *Orchestrator) {
		o.minScore = score
	}
}

// WithTimeout bounds each port call (default: 0, no timeout)
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithPolicy sets the default policy of Initialize (default: PolicyReplace)
func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) {
		if p != "" {
			o.policy = p
		}
	}
}

// WithLogger sets the logger (default: no-op)
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an orchestrator. idx must be the index r was built on.
func New(r *retriever.Retriever, idx index.Index, g generator.Generator, opts ...Option) (*Orchestrator, error) {
	if r == nil || idx == nil || g == nil {
		return nil, fmt.Errorf("%w: orchestrator requires a retriever, an index and a generator", types.ErrInvalidConfiguration)
	}

	o := &Orchestrator{
		retriever: r,
		index:     idx,
		generator: g,
		topK:      DefaultTopK,
		policy:    PolicyReplace,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Initialize indexes docs under the default policy
func (o *Orchestrator) Initialize(ctx context.Context, docs []types.Document) (*retriever.Statistics, error) {
	return o.InitializeWithPolicy(ctx, docs, o.policy)
}

// InitializeWithPolicy indexes docs under policy. Only one build runs at a
// time; a concurrent call fails with ErrIndexingInProgress.
//
// PolicyReplace chunks and embeds the whole corpus into a staging index and
// only then replaces the served entries, so a failed build leaves the
// previous corpus searchable. PolicyAppend adds documents in place; a failed
// append keeps the documents indexed before the failure.
func (o *Orchestrator) InitializeWithPolicy(ctx context.Context, docs []types.Document, policy Policy) (*retriever.Statistics, error) {
	if !o.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer o.lock.Release()

	if policy == "" {
		policy = o.policy
	}

	logger := o.logger.With(
		zap.Int("documents", len(docs)),
		zap.String("policy", string(policy)),
	)
	logger.Info("indexing started")

	var (
		stats *retriever.Statistics
		err   error
	)
	switch policy {
	case PolicyReplace:
		stats, err = o.replace(ctx, docs)
	case PolicyAppend:
		stats, err = o.retriever.IndexDocuments(ctx, docs)
	default:
		return nil, fmt.Errorf("%w: unknown index policy %q", types.ErrInvalidArgument, policy)
	}

	if stats != nil {
		o.metrics.ObserveIndexing(stats.DocumentsIndexed, stats.ChunksCreated)
	}
	o.updateEntriesGauge(ctx)

	if err != nil {
		logger.Error("indexing failed", zap.Error(err), zap.Int("indexed", statsIndexed(stats)))
		return stats, err
	}

	logger.Info("indexing completed",
		zap.Int("indexed", stats.DocumentsIndexed),
		zap.Int("skipped", stats.DocumentsSkipped),
		zap.Int("chunks", stats.ChunksCreated),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// replace builds docs into a staging index, then swaps its entries into the
// served index while queries wait
func (o *Orchestrator) replace(ctx context.Context, docs []types.Document) (*retriever.Statistics, error) {
	staging := index.NewMemory()
	stats, err := o.retriever.WithIndex(staging).IndexDocuments(ctx, docs)
	if err != nil {
		// Nothing from this build reached the served index
		return &retriever.Statistics{Duration: stats.Duration}, err
	}

	entries := staging.Entries()

	o.mu.Lock()
	defer o.mu.Unlock()

	// A commit interrupted between Reset and Add would leave the index empty
	commitCtx := context.WithoutCancel(ctx)
	if err := o.index.Reset(commitCtx); err != nil {
		return &retriever.Statistics{Duration: stats.Duration}, fmt.Errorf("resetting index: %w", err)
	}
	if _, err := o.index.Add(commitCtx, entries); err != nil {
		o.logger.Error("replacing index entries failed; index is empty", zap.Error(err), zap.Int("entries", len(entries)))
		return &retriever.Statistics{Duration: stats.Duration}, fmt.Errorf("storing %d entries: %w", len(entries), err)
	}
	return stats, nil
}

func statsIndexed(stats *retriever.Statistics) int {
	if stats == nil {
		return 0
	}
	return stats.DocumentsIndexed
}

func (o *Orchestrator) updateEntriesGauge(ctx context.Context) {
	if n, err := o.index.Len(ctx); err == nil {
		o.metrics.SetIndexEntries(n)
	}
}

// Query retrieves the top passages for prompt and generates an answer from
// them. When no passage qualifies the generator is not called and the answer
// is InsufficientInformation.
func (o *Orchestrator) Query(ctx context.Context, prompt string) (*Answer, error) {
	return o.QueryK(ctx, prompt, o.topK)
}

// QueryK is Query with a per-call passage count; k <= 0 uses the configured top-k
func (o *Orchestrator) QueryK(ctx context.Context, prompt string, k int) (answer *Answer, err error) {
	if k <= 0 {
		k = o.topK
	}

	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeAnswered
		switch {
		case err != nil:
			outcome = metrics.OutcomeError
		case answer.Insufficient:
			outcome = metrics.OutcomeInsufficient
		}
		o.metrics.ObserveQuery(outcome, time.Since(start))
	}()

	passages, err := o.Search(ctx, prompt, k)
	if err != nil {
		o.logger.Warn("retrieval failed", zap.Error(err))
		return nil, fmt.Errorf("retrieving passages: %w", err)
	}

	if len(passages) == 0 {
		o.logger.Debug("no relevant passages", zap.Float64("min_score", o.minScore))
		return &Answer{Text: InsufficientInformation, Passages: []types.Result{}, Insufficient: true}, nil
	}

	genCtx, cancel := o.withTimeout(ctx)
	defer cancel()

	text, err := o.generator.Generate(genCtx, prompt, types.Texts(passages))
	if err != nil {
		o.logger.Warn("generation failed", zap.Error(err))
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	o.logger.Debug("query answered",
		zap.Int("passages", len(passages)),
		zap.Float64("top_score", passages[0].Score),
	)
	return &Answer{Text: text, Passages: passages, Insufficient: text == InsufficientInformation}, nil
}

// Search returns up to k scored passages for query, minus those below the
// minimum score. Ranks are renumbered after filtering.
func (o *Orchestrator) Search(ctx context.Context, query string, k int) ([]types.Result, error) {
	retrieveCtx, cancel := o.withTimeout(ctx)
	defer cancel()

	o.mu.RLock()
	results, err := o.retriever.RetrieveWithScores(retrieveCtx, query, k)
	o.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if o.minScore == 0 {
		return results, nil
	}

	kept := results[:0]
	for _, r := range results {
		if r.Score >= o.minScore {
			r.Rank = len(kept) + 1
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// Status reports the index size and the providers in use
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	o.mu.RLock()
	n, err := o.index.Len(ctx)
	dim := o.index.Dimension()
	o.mu.RUnlock()
	if err != nil {
		return Status{}, err
	}
	emb := o.retriever.Embedder()
	st := Status{
		Entries:   n,
		Dimension: dim,
		Indexing:  o.lock.Held(),
		Provider:  emb.Provider(),
		Model:     emb.Model(),
	}
	if d, ok := o.generator.(describer); ok {
		st.GenerationProvider = d.Provider()
		st.GenerationModel = d.Model()
	}
	return st, nil
}

// idlePoll is how often WaitIdle checks the build lock
const idlePoll = 50 * time.Millisecond

// WaitIdle blocks until no build is running or ctx is done
func (o *Orchestrator) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()

	for o.lock.Held() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// TopK returns the number of passages retrieved per query
func (o *Orchestrator) TopK() int {
	return o.topK
}

func (o *Orchestrator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}
