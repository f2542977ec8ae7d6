// Package similarity provides the normalized string comparison used by the
// matching engine.
package similarity

import "strings"

// Score returns a similarity score between 0.0 and 1.0 for two strings.
// Both inputs are lowercased and trimmed before comparison. An empty input
// scores 0, an exact match after normalization scores 1, anything else is
// scored by Levenshtein distance relative to the longer string.
func Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1.0
	}

	distance := levenshtein(a, b)
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 0.0
	}

	score := 1.0 - float64(distance)/float64(maxLen)
	if score < 0 {
		return 0.0
	}
	return score
}

// levenshtein calculates the edit distance between two strings using two
// rolling rows.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}
