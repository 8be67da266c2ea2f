// Package chunker splits document text into overlapping fixed-size chunks.
//
// The chunker advances a window of ChunkSize characters across the text with a
// step of ChunkSize - Overlap. Each window is closed at the nearest natural
// boundary before its edge, so chunks tend to end on whole paragraphs,
// sentences or words.
//
// # Basic Usage
//
//	chunks, err := chunker.Split(text, 1000, 200)
//	if err != nil {
//	    // errors.Is(err, types.ErrInvalidConfiguration)
//	}
//
// Or with a reusable configuration and document metadata:
//
//	c, err := chunker.New(chunker.Config{ChunkSize: 1000, Overlap: 200})
//	for _, chunk := range c.ChunkDocument(doc) {
//	    fmt.Println(chunk.ID, chunk.Offset, len(chunk.Text))
//	}
//
// # Boundary Policy
//
// Separators are tried from coarse to fine, and for each one the last
// occurrence inside the window wins:
//   - Paragraph: "\n\n"
//   - Line: "\n"
//   - Sentence: ". ", "! ", "? "
//   - Word: " ", "\t"
//
// The break falls right after the separator, so whitespace stays attached to
// the chunk that precedes it. A break is only accepted if the chunk is longer
// than Overlap, which guarantees forward progress. When no separator fits,
// the window is cut at exactly ChunkSize characters.
//
// # Guarantees
//
//   - Every chunk has at most ChunkSize characters
//   - Consecutive chunks share exactly Overlap characters
//   - The first chunk plus every later chunk without its first Overlap
//     characters rebuilds the original text
//   - Empty text yields no chunks, text up to ChunkSize yields one chunk
//
// Lengths are counted in runes, so multi-byte characters are never split.
package chunker
