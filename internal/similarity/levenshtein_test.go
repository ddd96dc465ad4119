package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		s1, s2 string
		want   int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshteinDistance(tt.s1, tt.s2), "%q vs %q", tt.s1, tt.s2)
	}
}

func TestStringSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, stringSimilarity("same", "same"))
	assert.Equal(t, 0.0, stringSimilarity("", "nonempty"))
	assert.InDelta(t, 0.5, stringSimilarity("ab", "ax"), 1e-9)

	sim := stringSimilarity("const x = 1", "const y = 1")
	assert.Greater(t, sim, 0.8)
	assert.Less(t, sim, 1.0)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, `const s = "hi"`, normalizeCode("  Const   s = 'hi'  "))
	assert.Equal(t, `x = "a"`, normalizeCode("x = `a`"))
}
