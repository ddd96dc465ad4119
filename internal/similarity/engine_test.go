package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/patternbank/internal/pattern"
)

func codePattern(id, before, after string) *pattern.Pattern {
	return &pattern.Pattern{
		ID:   id,
		Type: pattern.TypeRefactoring,
		Code: pattern.CodeExample{Before: before, After: after},
	}
}

func TestCalculate_NilArguments(t *testing.T) {
	e := New(DefaultWeights())
	p := codePattern("a", "x", "y")

	assert.Zero(t, e.Calculate(nil, p))
	assert.Zero(t, e.Calculate(p, nil))
	assert.Zero(t, e.Calculate(nil, nil))
}

func TestCalculate_IdenticalID(t *testing.T) {
	e := New(DefaultWeights())
	a := codePattern("same", "foo", "bar")
	b := codePattern("same", "completely", "different")

	assert.Equal(t, 1.0, e.Calculate(a, b))
}

func TestCalculate_IdenticalCode(t *testing.T) {
	e := New(DefaultWeights())
	a := codePattern("a", "var x = 1", "const x = 1")
	b := codePattern("b", "var x = 1", "const x = 1")

	assert.InDelta(t, 1.0, e.Calculate(a, b), 1e-9)
}

func TestCalculate_NormalizationIgnoresFormatting(t *testing.T) {
	e := New(DefaultWeights())
	a := codePattern("a", `const s = "hi"`, `return s`)
	b := codePattern("b", "const   s = 'hi'", "return    s")

	assert.InDelta(t, 1.0, e.Calculate(a, b), 1e-9)
}

func TestCalculate_DifferentLanguageReducesScore(t *testing.T) {
	e := New(DefaultWeights())

	a := codePattern("a", "var x = 1", "const x = 1")
	a.Context.Language = "javascript"
	b := codePattern("b", "var x = 1", "const x = 1")
	b.Context.Language = "typescript"

	score := e.Calculate(a, b)
	assert.Less(t, score, 1.0)

	// Same patterns with matching language score strictly higher: the
	// reduction comes from the context sub-score.
	b.Context.Language = "javascript"
	assert.Greater(t, e.Calculate(a, b), score)
}

func TestCalculate_RenormalizesOverComparableFactors(t *testing.T) {
	e := New(DefaultWeights())

	// No context, no tags, no structural metadata: the score rests on
	// code and type alone, and still lands in [0, 1].
	a := codePattern("a", "func add(a, b int) int { return a + b }", "x")
	b := codePattern("b", "func add(x, y int) int { return x + y }", "x")

	score := e.Calculate(a, b)
	assert.Greater(t, score, 0.5)
	assert.LessOrEqual(t, score, 1.0)
}

func TestCalculate_TagOverlap(t *testing.T) {
	e := New(DefaultWeights())

	a := codePattern("a", "x", "y")
	a.Tags = []string{"sql", "orm"}
	b := codePattern("b", "x", "y")
	b.Tags = []string{"sql", "orm"}
	c := codePattern("c", "x", "y")
	c.Tags = []string{"css"}

	assert.Greater(t, e.Calculate(a, b), e.Calculate(a, c))
}

func TestStructuralSimilarity(t *testing.T) {
	a := &pattern.Metadata{Complexity: pattern.ComplexitySimplified, LinesChanged: 10}
	b := &pattern.Metadata{Complexity: pattern.ComplexitySimplified, LinesChanged: 10}
	score, ok := structuralSimilarity(a, b)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-9)

	c := &pattern.Metadata{Complexity: pattern.ComplexityExpanded, LinesChanged: 40}
	score, ok = structuralSimilarity(a, c)
	assert.True(t, ok)
	assert.Less(t, score, 0.5)

	_, ok = structuralSimilarity(&pattern.Metadata{}, &pattern.Metadata{})
	assert.False(t, ok)
}

func TestDirectoryOverlap(t *testing.T) {
	assert.Equal(t, 1.0, directoryOverlap("src/api", "src/api"))
	assert.InDelta(t, 0.5, directoryOverlap("src/api", "src/web"), 1e-9)
	assert.Zero(t, directoryOverlap("lib", "src"))
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, jaccard([]string{"a", "b"}, []string{"B", "A"}))
	assert.InDelta(t, 1.0/3.0, jaccard([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
	assert.Zero(t, jaccard([]string{"a"}, []string{"b"}))
}
