package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/app"
	"github.com/dshills/ragcore/internal/chunker"
	"github.com/dshills/ragcore/internal/embedder"
	"github.com/dshills/ragcore/internal/generator"
	"github.com/dshills/ragcore/internal/index"
	"github.com/dshills/ragcore/internal/rag"
	"github.com/dshills/ragcore/internal/retriever"
	"github.com/dshills/ragcore/pkg/types"
)

// gatedEmbedder holds the first EmbedMany call until release is closed
type gatedEmbedder struct {
	*embedder.LocalProvider
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.LocalProvider.EmbedMany(ctx, texts)
}

func TestReindex_ReloadsAfterRunningBuild(t *testing.T) {
	ctx := context.Background()
	corpus := writeCorpus(t)

	emb := &gatedEmbedder{
		LocalProvider: embedder.NewLocalProvider(0),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	c, err := chunker.New(chunker.DefaultConfig())
	require.NoError(t, err)
	idx := index.NewMemory()
	r, err := retriever.New(c, emb, idx)
	require.NoError(t, err)
	o, err := rag.New(r, idx, generator.NewExtractive())
	require.NoError(t, err)
	a := &app.App{Logger: zap.NewNop(), Orchestrator: o}

	// A build started elsewhere, e.g. through the HTTP API
	running := make(chan error, 1)
	go func() {
		_, err := o.Initialize(ctx, []types.Document{{ID: "old", Text: "An outdated note."}})
		running <- err
	}()
	<-emb.started

	done := make(chan struct{})
	go func() {
		reindex(ctx, a, corpus)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("reindex returned while another build was running")
	case <-time.After(150 * time.Millisecond):
	}

	close(emb.release)
	require.NoError(t, <-running)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reindex did not reload after the running build finished")
	}

	n, err := idx.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := o.Search(ctx, "capital of Japan", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Text, "Tokyo")
}

func TestReindex_CanceledWhileWaiting(t *testing.T) {
	emb := &gatedEmbedder{
		LocalProvider: embedder.NewLocalProvider(0),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	defer close(emb.release)

	c, err := chunker.New(chunker.DefaultConfig())
	require.NoError(t, err)
	idx := index.NewMemory()
	r, err := retriever.New(c, emb, idx)
	require.NoError(t, err)
	o, err := rag.New(r, idx, generator.NewExtractive())
	require.NoError(t, err)
	a := &app.App{Logger: zap.NewNop(), Orchestrator: o}

	go func() {
		_, _ = o.Initialize(context.Background(), []types.Document{{ID: "old", Text: "An outdated note."}})
	}()
	<-emb.started

	corpus := writeCorpus(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reindex(ctx, a, corpus)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reindex kept waiting after cancellation")
	}
}
