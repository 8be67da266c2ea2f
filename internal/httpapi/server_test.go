package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/ragcore/internal/chunker"
	"github.com/dshills/ragcore/internal/embedder"
	"github.com/dshills/ragcore/internal/generator"
	"github.com/dshills/ragcore/internal/index"
	"github.com/dshills/ragcore/internal/logging"
	"github.com/dshills/ragcore/internal/metrics"
	"github.com/dshills/ragcore/internal/rag"
	"github.com/dshills/ragcore/internal/retriever"
	"github.com/dshills/ragcore/pkg/types"
)

func setupTestServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	c, err := chunker.New(chunker.Config{ChunkSize: 50, Overlap: 0})
	require.NoError(t, err)
	idx := index.NewMemory()
	r, err := retriever.New(c, embedder.NewLocalProvider(0), idx)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	o, err := rag.New(r, idx, generator.NewExtractive(), rag.WithMetrics(metrics.New(reg)))
	require.NoError(t, err)

	if cfg == nil {
		cfg = &Config{Backend: "memory"}
	}
	cfg.Gatherer = reg

	server, err := NewServer(o, zap.NewNop(), cfg)
	require.NoError(t, err)
	return server
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

var geography = IndexRequest{Documents: []DocumentInput{
	{ID: "paris", Text: "Paris is the capital of France."},
	{ID: "louvre", Text: "The Louvre is in Paris."},
	{ID: "lyon", Text: "Lyon is a city in France.", Metadata: map[string]string{"source": "wiki"}},
}}

func TestNewServer(t *testing.T) {
	t.Run("returns error when orchestrator is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		s := setupTestServer(t, nil)
		_, err := NewServer(s.orchestrator, nil, nil)
		assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		s := setupTestServer(t, nil)
		server, err := NewServer(s.orchestrator, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, ":8080", server.config.Addr)
		assert.Equal(t, prometheus.DefaultGatherer, server.config.Gatherer)
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t, nil)

	rec := do(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestIndexSearchQuery(t *testing.T) {
	server := setupTestServer(t, nil)

	rec := do(t, server, http.MethodPost, "/api/v1/documents", geography)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var indexed IndexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &indexed))
	assert.Equal(t, "replace", indexed.Policy)
	assert.Equal(t, 3, indexed.DocumentsIndexed)

	rec = do(t, server, http.MethodPost, "/api/v1/search", SearchRequest{Query: "capital of France", K: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var search SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &search))
	require.Len(t, search.Results, 1)
	assert.Equal(t, "Paris is the capital of France.", search.Results[0].Text)
	assert.Equal(t, 1, search.Results[0].Rank)
	assert.Equal(t, "paris", search.Results[0].Metadata[types.MetaDocumentID])

	rec = do(t, server, http.MethodPost, "/api/v1/query", QueryRequest{Prompt: "capital of France"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var answer QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "Paris is the capital of France.", answer.Answer)
	assert.False(t, answer.Insufficient)
	assert.Len(t, answer.Sources, rag.DefaultTopK)
}

func TestQueryEmptyIndex(t *testing.T) {
	server := setupTestServer(t, nil)

	rec := do(t, server, http.MethodPost, "/api/v1/query", QueryRequest{Prompt: "anything"})
	require.Equal(t, http.StatusOK, rec.Code)

	var answer QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, rag.InsufficientInformation, answer.Answer)
	assert.True(t, answer.Insufficient)
	assert.Empty(t, answer.Sources)
}

func TestIndexAppend(t *testing.T) {
	server := setupTestServer(t, nil)

	first := IndexRequest{Documents: geography.Documents[:1]}
	rest := IndexRequest{Documents: geography.Documents[1:], Append: true}
	require.Equal(t, http.StatusOK, do(t, server, http.MethodPost, "/api/v1/documents", first).Code)
	require.Equal(t, http.StatusOK, do(t, server, http.MethodPost, "/api/v1/documents", rest).Code)

	rec := do(t, server, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 3, status.Entries)
	assert.Equal(t, embedder.LocalDimension, status.Dimension)
	assert.Equal(t, "memory", status.Backend)
	assert.Equal(t, embedder.ProviderLocal, status.EmbeddingProvider)
	assert.Equal(t, generator.ProviderExtractive, status.GenerationProvider)
}

func TestBadRequests(t *testing.T) {
	server := setupTestServer(t, nil)

	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{"malformed json", "/api/v1/search", `{"query":`},
		{"missing documents", "/api/v1/documents", map[string]interface{}{"append": true}},
		{"empty query", "/api/v1/search", SearchRequest{Query: "  "}},
		{"k too large", "/api/v1/search", SearchRequest{Query: "q", K: 101}},
		{"negative k", "/api/v1/search", SearchRequest{Query: "q", K: -1}},
		{"empty prompt", "/api/v1/query", QueryRequest{}},
		{"query k too large", "/api/v1/query", QueryRequest{Prompt: "q", K: 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, server, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, server, http.MethodPost, "/api/v1/documents", geography).Code)
	require.Equal(t, http.StatusOK, do(t, server, http.MethodPost, "/api/v1/query", QueryRequest{Prompt: "Paris"}).Code)

	rec := do(t, server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ragcore_index_documents_total 3")
	assert.Contains(t, body, `ragcore_queries_total{outcome="answered"} 1`)
}

func TestRateLimit(t *testing.T) {
	server := setupTestServer(t, &Config{RequestsPerSecond: 1})

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		codes = append(codes, do(t, server, http.MethodGet, "/api/v1/status", nil).Code)
	}
	assert.Contains(t, codes, http.StatusTooManyRequests)
	assert.Equal(t, http.StatusOK, do(t, server, http.MethodGet, "/health", nil).Code, "health is not rate limited")
}

func TestRequestLogging(t *testing.T) {
	logger, logs := logging.NewObserved(zapcore.InfoLevel)
	s := setupTestServer(t, nil)
	server, err := NewServer(s.orchestrator, logger, &Config{Gatherer: prometheus.NewRegistry()})
	require.NoError(t, err)

	do(t, server, http.MethodPost, "/api/v1/search", SearchRequest{})

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/v1/search", fields["uri"])
	assert.EqualValues(t, http.StatusBadRequest, fields["status"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("retrieve: %w", types.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("%w: unknown index policy \"merge\"", types.ErrInvalidConfiguration), http.StatusBadRequest},
		{rag.ErrIndexingInProgress, http.StatusConflict},
		{types.NewDimensionError("retrieve", 384, 64, -1), http.StatusUnprocessableEntity},
		{types.NewProviderError("openai", "generate", errors.New("503")), http.StatusBadGateway},
		{fmt.Errorf("generating answer: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestStartShutdown(t *testing.T) {
	server := setupTestServer(t, &Config{Addr: "127.0.0.1:0"})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	require.Eventually(t, func() bool { return server.echo.ListenerAddr() != nil }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + server.echo.ListenerAddr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	assert.ErrorIs(t, <-errCh, http.ErrServerClosed)
}

func TestToDocuments(t *testing.T) {
	meta := map[string]string{"lang": "en"}
	docs := toDocuments([]DocumentInput{
		{ID: "paris", Text: "Paris", Metadata: meta},
		{Text: "Berlin"},
	})

	require.Len(t, docs, 2)
	assert.Equal(t, "paris", docs[0].ID)
	assert.Equal(t, "en", docs[0].Metadata["lang"])
	meta["lang"] = "fr"
	assert.Equal(t, "en", docs[0].Metadata["lang"], "metadata must be copied")

	_, err := uuid.Parse(docs[1].ID)
	assert.NoError(t, err, "missing ids are generated")
}
