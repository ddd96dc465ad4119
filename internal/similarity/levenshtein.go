package similarity

import "strings"

// normalizeCode canonicalizes a code string before edit-distance scoring:
// lowercase, unified quote characters, collapsed whitespace, trimmed.
func normalizeCode(code string) string {
	code = strings.ToLower(code)
	code = strings.ReplaceAll(code, "'", `"`)
	code = strings.ReplaceAll(code, "`", `"`)
	code = strings.Join(strings.Fields(code), " ")
	return strings.TrimSpace(code)
}

// stringSimilarity computes normalized Levenshtein distance.
//
// Returns a value between 0.0 (completely different) and 1.0 (identical).
func stringSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := max(len(s1), len(s2))

	return 1.0 - float64(distance)/float64(maxLen)
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	len1, len2 := len(s1), len(s2)
	if len1 == 0 {
		return len2
	}
	if len2 == 0 {
		return len1
	}

	// Two-row rolling matrix keeps memory linear in the shorter string.
	prev := make([]int, len2+1)
	curr := make([]int, len2+1)
	for j := 0; j <= len2; j++ {
		prev[j] = j
	}

	for i := 1; i <= len1; i++ {
		curr[0] = i
		for j := 1; j <= len2; j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}

			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len2]
}
