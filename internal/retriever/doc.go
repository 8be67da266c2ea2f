// Package retriever builds a vector index from documents and answers top-k
// retrieval queries against it.
//
// # Basic Usage
//
//	r, err := retriever.New(chunk, emb, index.NewMemory())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stats, err := r.IndexDocuments(ctx, docs)
//	fmt.Printf("Indexed %d documents (%d chunks) in %v\n",
//	    stats.DocumentsIndexed, stats.ChunksCreated, stats.Duration)
//
//	passages, err := r.Retrieve(ctx, "capital of France", 3)
//
// # Indexing Pipeline
//
//  1. Chunk: split each document with the retriever's chunker
//  2. Embed: one EmbedMany call per document
//  3. Append: add the document's chunks to the index, in document order
//
// Steps 1 and 2 run concurrently for up to Workers documents at a time. The
// append step is always sequential, so the index order (and therefore score
// tie-breaking) does not depend on the worker count.
//
// # Partial Progress
//
// If a document fails to embed or append, every earlier document stays in the
// index and IndexDocuments returns the error together with the statistics
// so far. Re-running the build under a replace policy starts over cleanly.
package retriever
