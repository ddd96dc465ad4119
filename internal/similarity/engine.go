// Package similarity scores how close two stored patterns are.
//
// The score is a weighted blend of four sub-scores (code, context, metadata,
// structure). Sub-scores that had no comparable data on either side are
// dropped and the remaining weights renormalized, so sparse records are not
// penalized for missing fields.
package similarity

import (
	"math"
	"strings"

	"github.com/fyrsmithlabs/patternbank/internal/pattern"
)

// Weights controls the blend of the four sub-scores. They do not need to
// sum to 1; the engine renormalizes over the sub-scores that applied.
type Weights struct {
	Code       float64
	Context    float64
	Metadata   float64
	Structural float64
}

// DefaultWeights is the standard blend: code dominates, then context.
func DefaultWeights() Weights {
	return Weights{
		Code:       0.4,
		Context:    0.3,
		Metadata:   0.2,
		Structural: 0.1,
	}
}

// Engine computes pattern similarity. The zero value is not usable;
// construct with New.
type Engine struct {
	weights Weights
}

// New creates an engine. Zero-valued weights fall back to the defaults.
func New(weights Weights) *Engine {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Engine{weights: weights}
}

// Calculate returns a similarity score in [0, 1] between two patterns.
//
// Identical ids score 1.0, a nil argument scores 0.0.
func (e *Engine) Calculate(a, b *pattern.Pattern) float64 {
	if a == nil || b == nil {
		return 0.0
	}
	if a.ID != "" && a.ID == b.ID {
		return 1.0
	}

	type weighted struct {
		score  float64
		weight float64
	}
	var parts []weighted

	if score, ok := codeSimilarity(a, b); ok {
		parts = append(parts, weighted{score, e.weights.Code})
	}
	if score, ok := contextSimilarity(&a.Context, &b.Context); ok {
		parts = append(parts, weighted{score, e.weights.Context})
	}
	if score, ok := metadataSimilarity(a, b); ok {
		parts = append(parts, weighted{score, e.weights.Metadata})
	}
	if score, ok := structuralSimilarity(&a.Metadata, &b.Metadata); ok {
		parts = append(parts, weighted{score, e.weights.Structural})
	}

	if len(parts) == 0 {
		return 0.0
	}

	var sum, weightSum float64
	for _, p := range parts {
		sum += p.score * p.weight
		weightSum += p.weight
	}
	if weightSum == 0 {
		return 0.0
	}
	return clamp01(sum / weightSum)
}

// codeSimilarity compares the before and after halves of both examples and
// averages them. Identical code content scores 1.0 regardless of formatting.
func codeSimilarity(a, b *pattern.Pattern) (float64, bool) {
	if a.Code.Before == "" && a.Code.After == "" {
		return 0, false
	}
	if b.Code.Before == "" && b.Code.After == "" {
		return 0, false
	}

	before := stringSimilarity(normalizeCode(a.Code.Before), normalizeCode(b.Code.Before))
	after := stringSimilarity(normalizeCode(a.Code.After), normalizeCode(b.Code.After))
	return (before + after) / 2.0, true
}

// contextSimilarity is the fraction of matching context factors among those
// both sides provide.
func contextSimilarity(a, b *pattern.Context) (float64, bool) {
	var matched, compared float64

	compareString := func(x, y string) {
		if x == "" || y == "" {
			return
		}
		compared++
		if strings.EqualFold(x, y) {
			matched++
		}
	}

	compareString(a.Language, b.Language)
	compareString(a.FileType, b.FileType)
	compareString(a.ProjectType, b.ProjectType)
	compareString(a.Framework, b.Framework)

	if a.Directory != "" && b.Directory != "" {
		compared++
		matched += directoryOverlap(a.Directory, b.Directory)
	}

	if len(a.Dependencies) > 0 && len(b.Dependencies) > 0 {
		compared++
		matched += jaccard(a.Dependencies, b.Dependencies)
	}

	if compared == 0 {
		return 0, false
	}
	return matched / compared, true
}

// metadataSimilarity averages type match, category match, and tag overlap
// over the factors present on both records.
func metadataSimilarity(a, b *pattern.Pattern) (float64, bool) {
	var matched, compared float64

	compared++
	if a.Type == b.Type {
		matched++
	}

	if a.Category != "" && b.Category != "" {
		compared++
		if strings.EqualFold(a.Category, b.Category) {
			matched++
		}
	}

	if len(a.Tags) > 0 && len(b.Tags) > 0 {
		compared++
		matched += jaccard(a.Tags, b.Tags)
	}

	return matched / compared, true
}

// structuralSimilarity blends the complexity-class delta with the ratio of
// lines changed.
func structuralSimilarity(a, b *pattern.Metadata) (float64, bool) {
	var scores []float64

	if a.Complexity != "" && b.Complexity != "" {
		delta := math.Abs(complexityScore(a.Complexity) - complexityScore(b.Complexity))
		// Classes are one apart at most 2; normalize and cap.
		scores = append(scores, clamp01(1.0-delta/2.0))
	}

	if a.LinesChanged > 0 && b.LinesChanged > 0 {
		lo, hi := a.LinesChanged, b.LinesChanged
		if lo > hi {
			lo, hi = hi, lo
		}
		scores = append(scores, float64(lo)/float64(hi))
	}

	if len(scores) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores)), true
}

func complexityScore(c pattern.Complexity) float64 {
	switch c {
	case pattern.ComplexitySimplified:
		return 0
	case pattern.ComplexitySimilar:
		return 1
	case pattern.ComplexityExpanded:
		return 2
	}
	return 1
}

// directoryOverlap scores the shared leading path segments of two
// directories against the longer path.
func directoryOverlap(a, b string) float64 {
	segA := splitPath(a)
	segB := splitPath(b)
	if len(segA) == 0 || len(segB) == 0 {
		return 0
	}

	common := 0
	for i := 0; i < len(segA) && i < len(segB); i++ {
		if segA[i] != segB[i] {
			break
		}
		common++
	}
	return float64(common) / float64(max(len(segA), len(segB)))
}

func splitPath(p string) []string {
	p = strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// jaccard computes set overlap, case-insensitive.
func jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, v := range a {
		setA[strings.ToLower(v)] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, v := range b {
		setB[strings.ToLower(v)] = struct{}{}
	}

	inter := 0
	for v := range setA {
		if _, ok := setB[v]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
