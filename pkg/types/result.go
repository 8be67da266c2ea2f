package types

import "errors"

// Result represents a single search hit with its relevance score
type Result struct {
	// Identification
	ID   string
	Rank int // Position in result set (1-based)

	// Scoring
	Score float64 // Cosine similarity in [-1, 1]

	// Payload
	Text     string
	Metadata map[string]string
}

var (
	ErrInvalidRank  = errors.New("rank must be >= 1")
	ErrInvalidScore = errors.New("score must be between -1 and 1")
	ErrMissingID    = errors.New("result ID is required")
)

// Validate checks if the search result is valid
func (r *Result) Validate() error {
	if r.ID == "" {
		return ErrMissingID
	}

	if r.Rank < 1 {
		return ErrInvalidRank
	}

	// Allow a little float slack around the cosine bounds
	if r.Score < -1.0001 || r.Score > 1.0001 {
		return ErrInvalidScore
	}

	return nil
}

// Texts extracts the passage text of each result, preserving order
func Texts(results []Result) []string {
	texts := make([]string, len(results))
	for i := range results {
		texts[i] = results[i].Text
	}
	return texts
}
