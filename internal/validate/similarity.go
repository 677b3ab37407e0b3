// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package validate

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// suggestThreshold is the minimum similarity for a name to be offered as
// a "did you mean" candidate.
const suggestThreshold = 0.5

// closest returns the scope name most similar to an unknown identifier.
// Candidates must be sorted so ties break deterministically.
func closest(name string, candidates []string) (string, bool) {
	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		if score := similarity(name, c); score > bestScore {
			best = c
			bestScore = score
		}
	}
	if bestScore < suggestThreshold {
		return "", false
	}
	return best, true
}

// similarity scores two strings in [0, 1] by normalized Levenshtein
// distance over their character diff.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	distance := dmp.DiffLevenshtein(diffs)

	return 1.0 - float64(distance)/float64(maxLen)
}
