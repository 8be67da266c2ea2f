package httpapi

import (
	"github.com/dshills/ragcore/internal/rag"
	"github.com/dshills/ragcore/internal/retriever"
	"github.com/dshills/ragcore/pkg/types"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// DocumentInput is one document in an indexing request
type DocumentInput struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IndexRequest is the request body for POST /api/v1/documents.
type IndexRequest struct {
	Documents []DocumentInput `json:"documents"`
	Append    bool            `json:"append"`
}

// IndexResponse is the response body for POST /api/v1/documents.
type IndexResponse struct {
	Policy           string `json:"policy"`
	DocumentsIndexed int    `json:"documents_indexed"`
	DocumentsSkipped int    `json:"documents_skipped"`
	ChunksCreated    int    `json:"chunks_created"`
	EstimatedTokens  int    `json:"estimated_tokens"`
	DurationMS       int64  `json:"duration_ms"`
}

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

// Passage is one scored search result
type Passage struct {
	Rank     int               `json:"rank"`
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// SearchResponse is the response body for POST /api/v1/search.
type SearchResponse struct {
	Query   string    `json:"query"`
	Results []Passage `json:"results"`
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Prompt string `json:"prompt"`
	K      int    `json:"k,omitempty"`
}

// QueryResponse is the response body for POST /api/v1/query.
type QueryResponse struct {
	Answer       string    `json:"answer"`
	Insufficient bool      `json:"insufficient"`
	Sources      []Passage `json:"sources"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Entries            int    `json:"entries"`
	Dimension          int    `json:"dimension"`
	Indexing           bool   `json:"indexing"`
	Backend            string `json:"backend,omitempty"`
	EmbeddingProvider  string `json:"embedding_provider"`
	EmbeddingModel     string `json:"embedding_model"`
	GenerationProvider string `json:"generation_provider,omitempty"`
	GenerationModel    string `json:"generation_model,omitempty"`
}

func toDocuments(in []DocumentInput) []types.Document {
	docs := make([]types.Document, len(in))
	for i, d := range in {
		docs[i] = types.NewDocument(d.Text, d.Metadata)
		if d.ID != "" {
			docs[i].ID = d.ID
		}
	}
	return docs
}

func toPassages(results []types.Result) []Passage {
	out := make([]Passage, len(results))
	for i, r := range results {
		out[i] = Passage{Rank: r.Rank, ID: r.ID, Score: r.Score, Text: r.Text, Metadata: r.Metadata}
	}
	return out
}

func toIndexResponse(stats *retriever.Statistics, policy rag.Policy) IndexResponse {
	return IndexResponse{
		Policy:           string(policy),
		DocumentsIndexed: stats.DocumentsIndexed,
		DocumentsSkipped: stats.DocumentsSkipped,
		ChunksCreated:    stats.ChunksCreated,
		EstimatedTokens:  stats.EstimatedTokens,
		DurationMS:       stats.Duration.Milliseconds(),
	}
}
