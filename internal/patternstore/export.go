package patternstore

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternbank/internal/pattern"
)

// ExportOptions filters which patterns an export includes. Bound directly
// from API request bodies, so fields carry json tags.
type ExportOptions struct {
	Type             pattern.Type `json:"type,omitempty"`
	MinEffectiveness float64      `json:"min_effectiveness,omitempty"`
	Language         string       `json:"language,omitempty"`
	Framework        string       `json:"framework,omitempty"`
}

// Export is the cross-project pattern exchange document. It shares the
// snapshot layout so an export can also serve as a restorable backup.
type Export struct {
	Patterns []*pattern.Pattern `json:"patterns"`
	Metadata ExportMetadata     `json:"metadata"`
}

// ExportMetadata describes an export document.
type ExportMetadata struct {
	Version       string    `json:"version"`
	ExportedAt    time.Time `json:"exported_at"`
	TotalPatterns int       `json:"total_patterns"`
}

// ImportOptions controls conflict handling during import.
type ImportOptions struct {
	// Overwrite replaces existing records on id collision. When false,
	// collisions are counted as skipped.
	Overwrite bool
}

// ImportResult summarizes a bulk import. Per-item failures accumulate in
// Errors; they never abort the batch.
type ImportResult struct {
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ExportPatterns returns a filtered snapshot of the store for sharing
// with other projects.
func (s *Store) ExportPatterns(opts ExportOptions) *Export {
	s.mu.RLock()
	out := make([]*pattern.Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		if opts.Type != "" && p.Type != opts.Type {
			continue
		}
		if p.Effectiveness < opts.MinEffectiveness {
			continue
		}
		if opts.Language != "" && language(p) != opts.Language {
			continue
		}
		if opts.Framework != "" && framework(p) != opts.Framework {
			continue
		}
		out = append(out, p.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return &Export{
		Patterns: out,
		Metadata: ExportMetadata{
			Version:       SnapshotVersion,
			ExportedAt:    time.Now(),
			TotalPatterns: len(out),
		},
	}
}

// ImportPatterns validates and merges a pattern list into the store.
// Each item is validated independently; malformed items land in the
// result's error list and the rest of the batch proceeds. Indexes are
// rebuilt once at the end rather than per item.
func (s *Store) ImportPatterns(patterns []*pattern.Pattern, opts ImportOptions) ImportResult {
	var res ImportResult

	s.mu.Lock()
	for i, p := range patterns {
		if p == nil {
			res.Errors = append(res.Errors, fmt.Sprintf("item %d: nil pattern", i))
			continue
		}
		cp := p.Clone()
		cp.Normalize()
		if err := cp.Validate(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("item %d (%s): %v", i, cp.ID, err))
			continue
		}

		if _, exists := s.patterns[cp.ID]; exists {
			if !opts.Overwrite {
				res.Skipped++
				continue
			}
			cp.UpdatedAt = time.Now()
			s.patterns[cp.ID] = cp
			res.Updated++
			continue
		}

		s.patterns[cp.ID] = cp
		res.Imported++
	}
	s.idx.rebuild(s.patterns)
	s.dirty = false
	s.mu.Unlock()

	s.logger.Info("patterns imported",
		zap.Int("imported", res.Imported),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)))

	s.requestPersist()
	return res
}
