package chunker

import (
	"fmt"
	"strconv"

	"github.com/dshills/ragcore/pkg/types"
)

const (
	// DefaultChunkSize is the window size in characters
	DefaultChunkSize = 1000

	// DefaultOverlap is the number of characters shared by consecutive chunks
	DefaultOverlap = 200

	// TokensPerChar is the heuristic for estimating tokens (chars/4)
	TokensPerChar = 4
)

// separators are tried coarse to fine: paragraph, line, sentence, word
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
	[]rune(" "),
	[]rune("\t"),
}

// Config holds the chunk window parameters
type Config struct {
	ChunkSize int // Maximum chunk length in characters
	Overlap   int // Characters shared between consecutive chunks
}

// DefaultConfig returns the default window parameters
func DefaultConfig() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
		Overlap:   DefaultOverlap,
	}
}

// Validate checks 0 <= Overlap < ChunkSize and ChunkSize > 0
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", types.ErrInvalidConfiguration, c.ChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", types.ErrInvalidConfiguration, c.Overlap)
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d",
			types.ErrInvalidConfiguration, c.Overlap, c.ChunkSize)
	}
	return nil
}

// Chunker splits documents with a fixed window configuration
type Chunker struct {
	cfg Config
}

// New creates a Chunker after validating cfg
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Config returns the window configuration
func (c *Chunker) Config() Config {
	return c.cfg
}

// Split splits text using the chunker's configuration
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	spans := splitSpans(runes, c.cfg.ChunkSize, c.cfg.Overlap)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = string(runes[s.start:s.end])
	}
	return out
}

// ChunkDocument splits a document into chunks carrying a copy of its metadata
func (c *Chunker) ChunkDocument(doc types.Document) []types.Chunk {
	runes := []rune(doc.Text)
	spans := splitSpans(runes, c.cfg.ChunkSize, c.cfg.Overlap)

	chunks := make([]types.Chunk, 0, len(spans))
	for i, s := range spans {
		meta := types.CopyMetadata(doc.Metadata)
		meta[types.MetaDocumentID] = doc.ID
		meta[types.MetaChunkIndex] = strconv.Itoa(i)

		chunks = append(chunks, types.Chunk{
			ID:         types.ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Index:      i,
			Text:       string(runes[s.start:s.end]),
			Offset:     s.start,
			Metadata:   meta,
		})
	}
	return chunks
}

// Split divides text into chunks of at most chunkSize characters where
// consecutive chunks share exactly overlap characters. Breaks fall after the
// coarsest separator found near the window edge, else the window is hard cut.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	c, err := New(Config{ChunkSize: chunkSize, Overlap: overlap})
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

// span is a half-open rune range [start, end)
type span struct {
	start int
	end   int
}

// splitSpans computes chunk boundaries. Parameters must already be validated.
func splitSpans(runes []rune, size, overlap int) []span {
	if len(runes) == 0 {
		return []span{}
	}

	var spans []span
	start := 0
	for {
		hardEnd := start + size
		if hardEnd >= len(runes) {
			return append(spans, span{start: start, end: len(runes)})
		}

		// The break must leave more than overlap characters so the next window advances
		end := findBreak(runes, start, start+overlap, hardEnd)
		spans = append(spans, span{start: start, end: end})
		start = end - overlap
	}
}

// findBreak returns the end of the chunk starting at start: the position right
// after the last occurrence of the coarsest separator ending in (minEnd, maxEnd],
// or maxEnd when no separator fits.
func findBreak(runes []rune, start, minEnd, maxEnd int) int {
	for _, sep := range separators {
		for i := maxEnd - len(sep); i >= start; i-- {
			end := i + len(sep)
			if end <= minEnd {
				break
			}
			if hasPrefixAt(runes, i, sep) {
				return end
			}
		}
	}
	return maxEnd
}

func hasPrefixAt(runes []rune, i int, sep []rune) bool {
	if i+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}

// EstimateTokenCount estimates the number of tokens in a string
func EstimateTokenCount(text string) int {
	return len(text) / TokensPerChar
}
