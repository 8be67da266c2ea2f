package loader

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dshills/ragcore/pkg/types"
)

// Manifest lists documents inline or by file.
//
//	documents:
//	  - Paris is the capital of France.
//	  - id: louvre
//	    file: notes/louvre.txt
//	    metadata: {topic: museums}
//	metadatas:
//	  - {source: wiki}
//
// Metadatas is matched to Documents by position; documents past its end keep
// only their own metadata.
type Manifest struct {
	Documents []ManifestEntry     `yaml:"documents"`
	Metadatas []map[string]string `yaml:"metadatas"`
}

// ManifestEntry is one manifest document. A bare string is shorthand for {text: ...}.
type ManifestEntry struct {
	ID       string            `yaml:"id"`
	Text     string            `yaml:"text"`
	File     string            `yaml:"file"`
	Metadata map[string]string `yaml:"metadata"`
}

// UnmarshalYAML accepts either a scalar (the text) or a mapping
func (e *ManifestEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.Text = node.Value
		return nil
	}
	type plain ManifestEntry
	return node.Decode((*plain)(e))
}

// LoadManifest reads a YAML manifest. Relative file entries resolve against
// the manifest's directory.
func LoadManifest(path string) ([]types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest %s: %v", types.ErrInvalidArgument, path, err)
	}

	return m.Resolve(filepath.Dir(path))
}

// Resolve converts manifest entries to documents, reading file entries relative to base
func (m *Manifest) Resolve(base string) ([]types.Document, error) {
	if len(m.Documents) == 0 {
		return nil, ErrNoDocuments
	}

	docs := make([]types.Document, len(m.Documents))
	for i, e := range m.Documents {
		if e.Text != "" && e.File != "" {
			return nil, fmt.Errorf("%w: manifest entry %d sets both text and file", types.ErrInvalidArgument, i)
		}

		id := e.ID
		text := e.Text
		meta := make(map[string]string)
		if i < len(m.Metadatas) {
			maps.Copy(meta, m.Metadatas[i])
		}
		maps.Copy(meta, e.Metadata)

		if e.File != "" {
			full := e.File
			if !filepath.IsAbs(full) {
				full = filepath.Join(base, full)
			}
			data, err := os.ReadFile(full)
			if err != nil {
				return nil, fmt.Errorf("manifest entry %d: %w", i, err)
			}
			text = string(data)
			if id == "" {
				id = filepath.ToSlash(e.File)
			}
			if _, ok := meta[MetaSource]; !ok {
				meta[MetaSource] = full
			}
			meta[MetaFilename] = filepath.Base(full)
		}
		if id == "" {
			id = fmt.Sprintf("doc-%d", i)
		}

		docs[i] = types.Document{ID: id, Text: text, Metadata: meta}
	}
	return docs, nil
}
