// Package loader turns files on disk into documents for indexing.
//
// A corpus is either a directory, read with LoadDir and doublestar patterns,
// or a YAML manifest read with LoadManifest. Watcher re-runs a callback when
// files under a corpus directory change; `ragcore serve --watch` uses it to
// rebuild the index.
package loader
