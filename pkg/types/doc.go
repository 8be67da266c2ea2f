// Package types provides shared type definitions for ragcore.
//
// This package defines the domain types passed between the chunker, the
// embedding port, the vector index, the retriever and the orchestrator, plus
// the error taxonomy all of them report through.
//
// # Core Types
//
// Document is a unit of source text with optional metadata:
//
//	doc := types.Document{
//	    ID:       "geography-facts",
//	    Text:     "Paris is the capital of France.",
//	    Metadata: map[string]string{"source": "atlas.md"},
//	}
//
// Chunk is a contiguous substring of a Document produced by the chunker. It
// carries a copy of the document metadata plus its own identifier:
//
//	chunk.ID          // "geography-facts#0"
//	chunk.DocumentID  // "geography-facts"
//	chunk.Offset      // rune offset inside the document text
//
// Entry is what the vector index stores and Result is what it returns:
//
//	entry := types.Entry{Text: chunk.Text, Metadata: chunk.Metadata, Embedding: vec}
//	result.Score // cosine similarity, higher is closer
//	result.Rank  // 1-based position in the result set
//
// # Errors
//
// Every component reports failures through four sentinels matched with
// errors.Is: ErrInvalidConfiguration, ErrInvalidArgument, ErrDimensionMismatch
// and ErrProvider. DimensionError and ProviderError carry the context needed to
// act on a failure and unwrap to their sentinel:
//
//	var dimErr *types.DimensionError
//	if errors.As(err, &dimErr) {
//	    log.Printf("%s: want %d, got %d", dimErr.Op, dimErr.Expected, dimErr.Got)
//	}
//
// An empty index is not an error: searching it returns an empty slice.
package types
