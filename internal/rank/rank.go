// Package rank scores free-text queries against item labels with a bounded
// local alignment (Smith-Waterman with a linear gap penalty).
package rank

import "strings"

const (
	// Threshold is the score a candidate must exceed to be kept for a
	// non-empty query.
	Threshold = 3

	// GapPenalty is subtracted for every skipped character.
	GapPenalty = 1

	matchScore    = 3
	mismatchScore = -3

	// firstBias multiplies the match score when the first query character
	// lines up with the first label character.
	firstBias = 2
)

// Score returns the best local alignment score of query against label,
// ignoring case. Zero means no meaningful alignment.
func Score(query, label string) int {
	q := []rune(strings.ToLower(query))
	l := []rune(strings.ToLower(label))
	if len(q) == 0 || len(l) == 0 {
		return 0
	}

	cols := len(l) + 1
	// Row 0 and column 0 stay zero.
	h := make([]int, (len(q)+1)*cols)

	best := 0
	for i := 1; i <= len(q); i++ {
		for j := 1; j <= len(l); j++ {
			bias := 1
			if i == 1 && j == 1 {
				bias = firstBias
			}

			v := h[(i-1)*cols+j-1] + similarity(q[i-1], l[j-1])*bias
			if up := h[(i-1)*cols+j] - GapPenalty; up > v {
				v = up
			}
			if left := h[i*cols+j-1] - GapPenalty; left > v {
				v = left
			}
			if v < 0 {
				v = 0
			}

			h[i*cols+j] = v
			if v > best {
				best = v
			}
		}
	}

	return best
}

func similarity(a, b rune) int {
	if a == b {
		return matchScore
	}
	return mismatchScore
}
