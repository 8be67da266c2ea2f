package index

import (
	"math"
	"sort"

	"github.com/dshills/ragcore/pkg/types"
)

// CosineSimilarity computes dot(a,b) / (|a|*|b|). Vectors of different length
// or with zero magnitude score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	return cosineWithNorms(a, b, Norm(a), Norm(b))
}

// Norm returns the Euclidean length of v
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosineWithNorms reuses precomputed norms; the result is clamped to [-1, 1]
func cosineWithNorms(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	sim := dot / (normA * normB)
	switch {
	case math.IsNaN(sim):
		return 0
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	}
	return sim
}

// Candidate is a scored entry awaiting ranking
type Candidate struct {
	Seq      int64 // Insertion sequence, lower is older
	ID       string
	Text     string
	Metadata map[string]string
	Score    float64
}

// SortCandidates orders candidates by descending score, then ascending insertion
// sequence. NaN scores are treated as 0.
func SortCandidates(candidates []Candidate) {
	for i := range candidates {
		if math.IsNaN(candidates[i].Score) {
			candidates[i].Score = 0
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Seq < candidates[j].Seq
	})
}

// Rank sorts candidates and converts the top k into results with 1-based ranks
func Rank(candidates []Candidate, k int) []types.Result {
	SortCandidates(candidates)

	limit := k
	if limit > len(candidates) {
		limit = len(candidates)
	}
	if limit < 0 {
		limit = 0
	}

	results := make([]types.Result, limit)
	for i := 0; i < limit; i++ {
		c := candidates[i]
		results[i] = types.Result{
			ID:       c.ID,
			Rank:     i + 1,
			Score:    c.Score,
			Text:     c.Text,
			Metadata: types.CopyMetadata(c.Metadata),
		}
	}
	return results
}
