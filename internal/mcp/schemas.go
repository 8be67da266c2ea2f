package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Bounds on the k parameter of search and ask
const (
	minK = 1
	maxK = 100
)

// indexDocumentsTool returns the tool definition for index_documents
func indexDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_documents",
		Description: "Build the retrieval index from a directory, a YAML manifest or inline documents",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a directory of .txt and .md files",
				},
				"manifest": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a YAML manifest listing documents",
				},
				"documents": map[string]interface{}{
					"type":        "array",
					"description": "Inline documents",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"id":   map[string]interface{}{"type": "string"},
							"text": map[string]interface{}{"type": "string"},
							"metadata": map[string]interface{}{
								"type":                 "object",
								"additionalProperties": map[string]interface{}{"type": "string"},
							},
						},
						"required": []string{"text"},
					},
				},
				"append": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, add to the existing index instead of replacing it",
					"default":     false,
				},
			},
		},
	}
}

// searchTool returns the tool definition for search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search",
		Description: "Return the passages most similar to a query, with cosine scores and metadata",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of passages to return (1-100)",
					"minimum":     minK,
					"maximum":     maxK,
				},
			},
			Required: []string{"query"},
		},
	}
}

// askTool returns the tool definition for ask
func askTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed documents",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question to answer",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Number of passages to answer from (1-100)",
					"minimum":     minK,
					"maximum":     maxK,
				},
			},
			Required: []string{"question"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report the index size, dimension, backend and providers",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
