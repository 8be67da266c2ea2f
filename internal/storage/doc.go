// Package storage provides a SQLite-backed vector index.
//
// SQLite implements index.Index with the same ranking rules as the in-memory
// index, but entries survive process restarts.
//
// # Database Schema
//
// Tables:
//   - schema_version: Applied migrations (semver)
//   - entries: Text, JSON metadata and little-endian float32 embedding per entry
//   - index_meta: Index-level settings (dimension, embedding model)
//
// The entries.seq column is an AUTOINCREMENT key and doubles as the insertion
// order used to break score ties. It is never reused, even after Reset.
//
// # Basic Usage
//
//	idx, err := storage.NewSQLite(ctx, "~/.ragcore/index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer idx.Close()
//
//	ids, err := idx.Add(ctx, entries)
//	results, err := idx.Search(ctx, queryVector, 5)
//
// # Vector Search
//
// Search loads every vector and computes cosine similarity in Go, which keeps
// results identical across drivers. This is exact, O(n*d) per query.
//
// # Build Tags
//
// CGO Build (sqlite_vec tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires C compiler
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// Pure Go Build (default, or purego tag):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build -tags "purego"
package storage
