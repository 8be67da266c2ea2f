// Package vectorstore adapts external vector databases to the index.Index
// contract.
//
// Two backends are provided:
//
//   - Chromem: an embedded chromem-go collection, in-memory or persisted to a
//     directory of gob files. No external service is needed.
//   - Qdrant: a remote Qdrant collection over gRPC.
//
// Both stores receive precomputed embeddings and never embed text themselves.
// Searches are exact: every stored vector is scored and the candidates are
// re-ranked with index.Rank, so scores, tie-breaking and zero-vector handling
// match the in-memory index.
//
// # Usage
//
//	store, err := vectorstore.NewChromem(ctx, vectorstore.ChromemConfig{
//	    Path: "~/.local/share/ragcore/chromem",
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	r, err := retriever.New(chunk, emb, store)
package vectorstore
