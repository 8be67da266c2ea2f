package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/chunker"
	"github.com/dshills/ragcore/internal/config"
	"github.com/dshills/ragcore/internal/embedder"
	"github.com/dshills/ragcore/internal/generator"
	"github.com/dshills/ragcore/internal/index"
	"github.com/dshills/ragcore/internal/loader"
	"github.com/dshills/ragcore/internal/metrics"
	"github.com/dshills/ragcore/internal/rag"
	"github.com/dshills/ragcore/internal/retriever"
	"github.com/dshills/ragcore/internal/storage"
	"github.com/dshills/ragcore/internal/vectorstore"
	"github.com/dshills/ragcore/pkg/types"
)

// App holds every component built from a Config. Both ports are created
// once here and shared by the build and query paths.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Embedder     embedder.Embedder
	Generator    generator.Generator
	Index        index.Index
	Retriever    *retriever.Retriever
	Orchestrator *rag.Orchestrator
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
}

// New builds the embedder, generator, index, retriever and orchestrator
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", types.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	emb, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	a.Embedder = emb

	gen, err := newGenerator(cfg.Generation)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	a.Generator = gen

	idx, err := newIndex(ctx, cfg.Index, logger.Named("index"))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize %s index: %w", cfg.Index.Backend, err)
	}
	a.Index = idx
	a.checkEmbeddingModel(ctx)

	c, err := chunker.New(cfg.ChunkConfig())
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Retriever, err = retriever.New(c, emb, idx, retriever.WithWorkers(cfg.Retrieval.Workers))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	policy, err := rag.ParsePolicy(cfg.Retrieval.Policy)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Orchestrator, err = rag.New(a.Retriever, idx, gen,
		rag.WithTopK(cfg.Retrieval.TopK),
		rag.WithMinScore(cfg.Retrieval.MinScore),
		rag.WithTimeout(cfg.Retrieval.Timeout),
		rag.WithPolicy(policy),
		rag.WithLogger(logger.Named("rag")),
		rag.WithMetrics(a.Metrics),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	logger.Info("ragcore initialized",
		zap.String("backend", cfg.Index.Backend),
		zap.String("embedding_provider", emb.Provider()),
		zap.String("embedding_model", emb.Model()),
		zap.String("policy", string(policy)),
		zap.Int("top_k", cfg.Retrieval.TopK),
	)

	return a, nil
}

func newEmbedder(cfg config.EmbeddingConfig) (embedder.Embedder, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = embedder.DetectProvider()
	}
	return embedder.New(embedder.Config{
		Provider:          provider,
		Model:             cfg.Model,
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey.Value(),
		Dimension:         cfg.Dimension,
		CacheSize:         cfg.CacheSize,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        cfg.MaxRetries,
		Timeout:           cfg.Timeout,
	})
}

func newGenerator(cfg config.GenerationConfig) (generator.Generator, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = generator.DetectProvider()
	}
	return generator.New(generator.Config{
		Provider:    provider,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey.Value(),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
}

func newIndex(ctx context.Context, cfg config.IndexConfig, logger *zap.Logger) (index.Index, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return index.NewMemory(), nil
	case config.BackendSQLite:
		s, err := storage.NewSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendChromem:
		s, err := vectorstore.NewChromem(ctx, vectorstore.ChromemConfig{
			Path:       cfg.Path,
			Compress:   cfg.Compress,
			Collection: cfg.Collection,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendQdrant:
		s, err := vectorstore.NewQdrant(ctx, vectorstore.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			UseTLS:     cfg.Qdrant.UseTLS,
			APIKey:     cfg.Qdrant.APIKey.Value(),
			Collection: cfg.Collection,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown index backend %q", types.ErrInvalidConfiguration, cfg.Backend)
	}
}

// checkEmbeddingModel records the embedding model in a SQLite index, warning
// when a populated index was built with a different one
func (a *App) checkEmbeddingModel(ctx context.Context) {
	s, ok := a.Index.(*storage.SQLite)
	if !ok {
		return
	}

	current := a.Embedder.Provider() + "/" + a.Embedder.Model()
	stored, err := s.Meta(ctx, storage.MetaEmbeddingModel)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		a.Logger.Warn("failed to read embedding model", zap.Error(err))
		return
	}
	if stored == current {
		return
	}

	if stored != "" && s.Dimension() > 0 {
		a.Logger.Warn("index was built with a different embedding model; rebuild it with the replace policy",
			zap.String("index_model", stored),
			zap.String("embedding_model", current),
		)
		return
	}

	if err := s.SetMeta(ctx, storage.MetaEmbeddingModel, current); err != nil {
		a.Logger.Warn("failed to record embedding model", zap.Error(err))
	}
}

// IndexPath loads a corpus directory or manifest and indexes it under the
// configured policy
func (a *App) IndexPath(ctx context.Context, path string) (*retriever.Statistics, error) {
	docs, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	return a.Orchestrator.Initialize(ctx, docs)
}

// Close releases the index and the embedder
func (a *App) Close() error {
	var errs []error
	if a.Index != nil {
		errs = append(errs, a.Index.Close())
	}
	if a.Embedder != nil {
		errs = append(errs, a.Embedder.Close())
	}
	return errors.Join(errs...)
}
