package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/loader"
	"github.com/dshills/ragcore/internal/rag"
	"github.com/dshills/ragcore/internal/retriever"
	"github.com/dshills/ragcore/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeCorpusNotFound     = -32001 // Path or manifest does not exist or holds no documents
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeDimensionMismatch  = -32003 // Query embedding does not match the index
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeProviderError      = -32005 // Embedding or generation provider failed
)

// handleIndexDocuments handles the index_documents tool invocation
func (s *Server) handleIndexDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	docs, err := documentsFromArgs(args)
	if err != nil {
		return nil, err
	}

	policy := rag.PolicyReplace
	if getBoolDefault(args, "append", false) {
		policy = rag.PolicyAppend
	}

	stats, err := s.orchestrator.InitializeWithPolicy(ctx, docs, policy)
	if err != nil {
		s.logger.Warn("index_documents failed", zap.Error(err))
		data := map[string]interface{}{"error": err.Error()}
		if stats != nil {
			data["documents_indexed"] = stats.DocumentsIndexed
		}
		return nil, toolError(err, "indexing failed", data)
	}

	return mcp.NewToolResultText(formatJSON(indexResponse(stats, policy))), nil
}

func indexResponse(stats *retriever.Statistics, policy rag.Policy) map[string]interface{} {
	return map[string]interface{}{
		"indexed":           true,
		"policy":            string(policy),
		"documents_indexed": stats.DocumentsIndexed,
		"documents_skipped": stats.DocumentsSkipped,
		"chunks_created":    stats.ChunksCreated,
		"estimated_tokens":  stats.EstimatedTokens,
		"duration_ms":       stats.Duration.Milliseconds(),
	}
}

// documentsFromArgs resolves exactly one of path, manifest or documents
func documentsFromArgs(args map[string]interface{}) ([]types.Document, error) {
	path := getStringDefault(args, "path", "")
	manifest := getStringDefault(args, "manifest", "")
	inline, hasInline := args["documents"]

	sources := 0
	for _, set := range []bool{path != "", manifest != "", hasInline} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "exactly one of path, manifest or documents is required", map[string]interface{}{
			"param":  "path|manifest|documents",
			"reason": fmt.Sprintf("%d sources given", sources),
		})
	}

	switch {
	case path != "":
		if err := validatePath(path, true); err != nil {
			return nil, pathError("path", err)
		}
		docs, err := loader.LoadDir(path)
		if err != nil {
			return nil, loadError("path", err)
		}
		return docs, nil

	case manifest != "":
		if err := validatePath(manifest, false); err != nil {
			return nil, pathError("manifest", err)
		}
		docs, err := loader.LoadManifest(manifest)
		if err != nil {
			return nil, loadError("manifest", err)
		}
		return docs, nil

	default:
		return parseDocuments(inline)
	}
}

// parseDocuments decodes the inline documents array
func parseDocuments(raw interface{}) ([]types.Document, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "documents must be an array", map[string]interface{}{
			"param": "documents",
		})
	}

	docs := make([]types.Document, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "document must be an object", map[string]interface{}{
				"param": fmt.Sprintf("documents[%d]", i),
			})
		}

		doc := types.Document{
			ID:       getStringDefault(obj, "id", fmt.Sprintf("doc-%d", i)),
			Text:     getStringDefault(obj, "text", ""),
			Metadata: map[string]string{},
		}
		if meta, ok := obj["metadata"].(map[string]interface{}); ok {
			for k, v := range meta {
				doc.Metadata[k] = fmt.Sprint(v)
			}
		}
		docs[i] = doc
	}
	return docs, nil
}

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, err := requireQuery(args, "query")
	if err != nil {
		return nil, err
	}
	k, err := parseK(args, s.orchestrator.TopK())
	if err != nil {
		return nil, err
	}

	results, err := s.orchestrator.Search(ctx, query, k)
	if err != nil {
		return nil, toolError(err, "search failed", map[string]interface{}{"error": err.Error()})
	}

	response := map[string]interface{}{
		"query":   query,
		"k":       k,
		"results": formatResults(results),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAsk handles the ask tool invocation
func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	question, err := requireQuery(args, "question")
	if err != nil {
		return nil, err
	}
	k, err := parseK(args, s.orchestrator.TopK())
	if err != nil {
		return nil, err
	}

	answer, err := s.orchestrator.QueryK(ctx, question, k)
	if err != nil {
		return nil, toolError(err, "query failed", map[string]interface{}{"error": err.Error()})
	}

	response := map[string]interface{}{
		"answer":       answer.Text,
		"insufficient": answer.Insufficient,
		"sources":      formatResults(answer.Passages),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.orchestrator.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":   status.Entries > 0,
		"entries":   status.Entries,
		"dimension": status.Dimension,
		"indexing":  status.Indexing,
		"backend":   s.backend,
		"top_k":     s.orchestrator.TopK(),
		"embedding": map[string]interface{}{
			"provider": status.Provider,
			"model":    status.Model,
		},
		"generation": map[string]interface{}{
			"provider": status.GenerationProvider,
			"model":    status.GenerationModel,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

func formatResults(results []types.Result) []map[string]interface{} {
	out := make([]map[string]interface{}, len(results))
	for i, r := range results {
		out[i] = map[string]interface{}{
			"rank":     r.Rank,
			"id":       r.ID,
			"score":    r.Score,
			"text":     r.Text,
			"metadata": r.Metadata,
		}
	}
	return out
}

func requireQuery(args map[string]interface{}, param string) (string, error) {
	query, ok := args[param].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return "", newMCPError(ErrorCodeEmptyQuery, param+" parameter is required and cannot be empty", map[string]interface{}{
			"param":  param,
			"reason": "missing or empty",
		})
	}
	return query, nil
}

func parseK(args map[string]interface{}, defaultK int) (int, error) {
	k := getIntDefault(args, "k", defaultK)
	if k < minK || k > maxK {
		return 0, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("k must be between %d and %d", minK, maxK), map[string]interface{}{
			"param": "k",
			"value": k,
		})
	}
	return k, nil
}

// toolError maps orchestrator errors to MCP error codes
func toolError(err error, message string, data map[string]interface{}) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, rag.ErrIndexingInProgress):
		code = ErrorCodeIndexingInProgress
	case errors.Is(err, types.ErrDimensionMismatch):
		code = ErrorCodeDimensionMismatch
	case errors.Is(err, types.ErrInvalidArgument):
		code = ErrorCodeInvalidParams
	case errors.Is(err, types.ErrProvider):
		code = ErrorCodeProviderError
	}
	return newMCPError(code, message, data)
}

func pathError(param string, err error) error {
	code := ErrorCodeInvalidParams
	if errors.Is(err, ErrPathNotFound) {
		code = ErrorCodeCorpusNotFound
	}
	return newMCPError(code, "invalid "+param, map[string]interface{}{
		"param":  param,
		"reason": err.Error(),
	})
}

func loadError(param string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, loader.ErrNoDocuments):
		code = ErrorCodeCorpusNotFound
	case errors.Is(err, types.ErrInvalidArgument):
		code = ErrorCodeInvalidParams
	}
	return newMCPError(code, "loading documents failed", map[string]interface{}{
		"param": param,
		"error": err.Error(),
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path is absolute and exists, and is a directory
// when wantDir is set or a regular file otherwise
func validatePath(path string, wantDir bool) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if wantDir && !info.IsDir() {
		return ErrNotDirectory
	}
	if !wantDir && info.IsDir() {
		return ErrNotFile
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNotFile         = errors.New("path is not a file")
)
