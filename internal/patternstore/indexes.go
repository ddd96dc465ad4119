package patternstore

import (
	"fmt"
	"math"
	"strings"

	"github.com/fyrsmithlabs/patternbank/internal/pattern"
)

// indexes holds the four secondary multi-maps. Each maps a bucket key to
// the ids of patterns currently in that bucket. They are incrementally
// maintained on every mutation in eager mode and fully rebuildable from
// the primary map (bulk import, cold start, lazy rebuild).
type indexes struct {
	byType          map[string][]string
	byLanguage      map[string][]string
	byFramework     map[string][]string
	byEffectiveness map[string][]string
}

func newIndexes() *indexes {
	return &indexes{
		byType:          make(map[string][]string),
		byLanguage:      make(map[string][]string),
		byFramework:     make(map[string][]string),
		byEffectiveness: make(map[string][]string),
	}
}

// effectivenessBucket rounds to the nearest 0.1 so nearby scores share
// a bucket ("0.7" holds 0.65 through 0.75).
func effectivenessBucket(e float64) string {
	return fmt.Sprintf("%.1f", math.Round(e*10)/10)
}

func (ix *indexes) add(p *pattern.Pattern) {
	ix.byType[string(p.Type)] = append(ix.byType[string(p.Type)], p.ID)
	if lang := language(p); lang != "" {
		key := strings.ToLower(lang)
		ix.byLanguage[key] = append(ix.byLanguage[key], p.ID)
	}
	if fw := framework(p); fw != "" {
		key := strings.ToLower(fw)
		ix.byFramework[key] = append(ix.byFramework[key], p.ID)
	}
	bucket := effectivenessBucket(p.Effectiveness)
	ix.byEffectiveness[bucket] = append(ix.byEffectiveness[bucket], p.ID)
}

func (ix *indexes) remove(p *pattern.Pattern) {
	ix.byType[string(p.Type)] = removeID(ix.byType[string(p.Type)], p.ID)
	if lang := language(p); lang != "" {
		key := strings.ToLower(lang)
		ix.byLanguage[key] = removeID(ix.byLanguage[key], p.ID)
	}
	if fw := framework(p); fw != "" {
		key := strings.ToLower(fw)
		ix.byFramework[key] = removeID(ix.byFramework[key], p.ID)
	}
	bucket := effectivenessBucket(p.Effectiveness)
	ix.byEffectiveness[bucket] = removeID(ix.byEffectiveness[bucket], p.ID)
}

// rebuild regenerates every index from the primary map.
func (ix *indexes) rebuild(patterns map[string]*pattern.Pattern) {
	ix.byType = make(map[string][]string)
	ix.byLanguage = make(map[string][]string)
	ix.byFramework = make(map[string][]string)
	ix.byEffectiveness = make(map[string][]string)
	for _, p := range patterns {
		ix.add(p)
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
