package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/ragcore/pkg/types"
)

// Metadata keys set on loaded documents
const (
	MetaSource   = "source"
	MetaFilename = "filename"
)

// DefaultPatterns select the files LoadDir reads when no pattern is given
var DefaultPatterns = []string{"**/*.txt", "**/*.md"}

// ErrNoDocuments is returned when nothing under the root matches
var ErrNoDocuments = errors.New("no documents found")

// LoadDir reads every regular file under root matching one of the doublestar
// patterns. Document IDs are slash-separated paths relative to root, and the
// result is sorted by ID.
func LoadDir(root string, patterns ...string) ([]types.Document, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: invalid pattern %q", types.ErrInvalidArgument, p)
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", types.ErrInvalidArgument, root)
	}

	fsys := os.DirFS(root)
	seen := make(map[string]struct{})
	var paths []string
	for _, p := range patterns {
		matches, err := doublestar.Glob(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", p, err)
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)

	docs := make([]types.Document, 0, len(paths))
	for _, rel := range paths {
		fi, err := fs.Stat(fsys, rel)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", rel, err)
		}
		if !fi.Mode().IsRegular() {
			continue
		}

		data, err := fs.ReadFile(fsys, rel)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}

		full := filepath.Join(root, filepath.FromSlash(rel))
		docs = append(docs, types.Document{
			ID:   rel,
			Text: string(data),
			Metadata: map[string]string{
				MetaSource:   full,
				MetaFilename: filepath.Base(full),
			},
		})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w under %s matching %s", ErrNoDocuments, root, strings.Join(patterns, ", "))
	}
	return docs, nil
}

// Load reads a directory with LoadDir or a YAML manifest with LoadManifest
func Load(path string) ([]types.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadManifest(path)
}
