package types

import (
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// Metadata keys added to every chunk
const (
	MetaDocumentID = "document_id"
	MetaChunkIndex = "chunk_index"
)

// Document is a unit of source text with optional key/value metadata
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// NewDocument creates a document with a generated ID and a private copy of metadata
func NewDocument(text string, metadata map[string]string) Document {
	return Document{
		ID:       uuid.NewString(),
		Text:     text,
		Metadata: CopyMetadata(metadata),
	}
}

// Chunk represents a contiguous piece of a document used as the retrievable unit
type Chunk struct {
	// Identification
	ID         string // "<document id>#<index>"
	DocumentID string
	Index      int // Position within the document (0-based)

	// Content
	Text   string
	Offset int // Rune offset of Text inside the document

	// Copied from the document, plus document_id and chunk_index
	Metadata map[string]string
}

// ChunkID derives the identifier of the index-th chunk of a document
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s#%d", documentID, index)
}

// ValidateContent checks if the chunk is usable for embedding
func (c *Chunk) ValidateContent() error {
	if c.ID == "" {
		return ErrMissingChunkID
	}
	if c.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// Entry is the (text, metadata, embedding) tuple appended to a vector index
type Entry struct {
	Text      string
	Metadata  map[string]string
	Embedding []float32
}

// EntryFromChunk pairs a chunk with its embedding
func EntryFromChunk(c Chunk, embedding []float32) Entry {
	return Entry{
		Text:      c.Text,
		Metadata:  CopyMetadata(c.Metadata),
		Embedding: embedding,
	}
}

// CopyMetadata returns an independent copy. Nil input yields an empty map.
func CopyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	maps.Copy(out, m)
	return out
}
