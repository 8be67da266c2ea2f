package index

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/ragcore/pkg/types"
)

// Memory is the default in-memory Index. Search is a brute-force scan over all
// entries, O(n*d) per query.
type Memory struct {
	mu      sync.RWMutex
	records []record
	dim     int
	nextSeq int64
}

// record is an owned copy of an entry with its precomputed norm
type record struct {
	seq      int64
	id       string
	text     string
	metadata map[string]string
	vector   []float32
	norm     float64
}

var _ Index = (*Memory)(nil)

// NewMemory creates an empty in-memory index
func NewMemory() *Memory {
	return &Memory{}
}

// Add appends entries atomically: either the whole batch becomes visible or none of it
func (m *Memory) Add(ctx context.Context, entries []types.Entry) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []string{}, nil
	}

	// Copy outside the lock so readers are blocked only for the append itself
	prepared := make([]record, len(entries))
	ids := make([]string, len(entries))
	for i := range entries {
		vec := make([]float32, len(entries[i].Embedding))
		copy(vec, entries[i].Embedding)
		ids[i] = uuid.NewString()
		prepared[i] = record{
			id:       ids[i],
			text:     entries[i].Text,
			metadata: types.CopyMetadata(entries[i].Metadata),
			vector:   vec,
			norm:     Norm(vec),
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dim, err := ValidateBatch(m.dim, entries)
	if err != nil {
		return nil, err
	}

	for i := range prepared {
		prepared[i].seq = m.nextSeq
		m.nextSeq++
	}
	m.records = append(m.records, prepared...)
	m.dim = dim

	return ids, nil
}

// Search scores every entry against query and returns the top k
func (m *Memory) Search(ctx context.Context, query []float32, k int) ([]types.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.records) == 0 {
		return []types.Result{}, nil
	}
	if err := ValidateQuery(m.dim, query, k); err != nil {
		return nil, err
	}

	queryNorm := Norm(query)
	candidates := make([]Candidate, len(m.records))
	for i := range m.records {
		r := &m.records[i]
		candidates[i] = Candidate{
			Seq:      r.seq,
			ID:       r.id,
			Text:     r.text,
			Metadata: r.metadata,
			Score:    cosineWithNorms(query, r.vector, queryNorm, r.norm),
		}
	}

	return Rank(candidates, k), nil
}

// Len returns the number of stored entries
func (m *Memory) Len(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Dimension returns the fixed embedding length, 0 while empty
func (m *Memory) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dim
}

// Reset drops all entries. Insertion sequences keep increasing.
func (m *Memory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.dim = 0
	return nil
}

// Close is a no-op for the in-memory index
func (m *Memory) Close() error {
	return nil
}

// Entries returns copies of the stored entries in insertion order
func (m *Memory) Entries() []types.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Entry, len(m.records))
	for i := range m.records {
		r := &m.records[i]
		vec := make([]float32, len(r.vector))
		copy(vec, r.vector)
		out[i] = types.Entry{
			Text:      r.text,
			Metadata:  types.CopyMetadata(r.metadata),
			Embedding: vec,
		}
	}
	return out
}
