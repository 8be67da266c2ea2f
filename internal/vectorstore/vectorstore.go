package vectorstore

import "math"

// clampScore maps a backend similarity into [-1, 1]. NaN, which backends
// report for zero-magnitude vectors, becomes 0.
func clampScore(score float64) float64 {
	switch {
	case math.IsNaN(score):
		return 0
	case score > 1:
		return 1
	case score < -1:
		return -1
	}
	return score
}
