// Package mcp implements the Model Context Protocol (MCP) server for ragcore.
//
// The MCP server exposes four tools to AI assistants:
//   - index_documents: Build the index from a directory, a manifest or inline documents
//   - search: Return the top-k passages for a query
//   - ask: Answer a question from the retrieved passages
//   - get_status: Report index size, dimension and providers
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries protocol messages only.
//
// # Basic Usage
//
//	ragcore mcp --docs ./corpus
//
// # Tool: index_documents
//
// Exactly one of path, manifest or documents must be given. The index is
// replaced unless append is true:
//
//	Request:
//	{
//	  "name": "index_documents",
//	  "arguments": {
//	    "documents": [
//	      {"id": "paris", "text": "Paris is the capital of France."},
//	      {"id": "lyon", "text": "Lyon is a city in France.", "metadata": {"source": "wiki"}}
//	    ],
//	    "append": false
//	  }
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "policy": "replace",
//	  "documents_indexed": 2,
//	  "documents_skipped": 0,
//	  "chunks_created": 2,
//	  "estimated_tokens": 14,
//	  "duration_ms": 3
//	}
//
// # Tool: search
//
//	Request:  {"name": "search", "arguments": {"query": "capital of France", "k": 1}}
//	Response: {"query": "capital of France", "k": 1, "results": [
//	            {"rank": 1, "id": "...", "score": 0.71, "text": "Paris is the capital of France.",
//	             "metadata": {"document_id": "paris", "chunk_index": "0"}}]}
//
// # Tool: ask
//
//	Request:  {"name": "ask", "arguments": {"question": "What is the capital of France?"}}
//	Response: {"answer": "...", "insufficient": false, "sources": [...]}
//
// When no passage qualifies, answer is "I don't have enough information to
// answer that." and insufficient is true.
//
// # Error Codes
//
//	-32602  Invalid parameters
//	-32603  Internal error
//	-32001  Corpus not found or empty
//	-32002  Indexing already in progress
//	-32003  Dimension mismatch between query embedding and index
//	-32004  Empty query
//	-32005  Embedding or generation provider error
package mcp
