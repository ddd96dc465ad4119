package patternstore

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternbank/internal/pattern"
)

// CleanupOptions controls the two-phase eviction pass.
type CleanupOptions struct {
	// MaxAge removes records older than this AND below MinEffectiveness.
	MaxAge time.Duration

	// MinEffectiveness is the floor for the age-based phase.
	MinEffectiveness float64

	// MaxPatterns caps the store size; lowest-effectiveness records are
	// evicted first when over the cap. Zero means no cap.
	MaxPatterns int

	// KeepMinimum is the absolute floor: cleanup never reduces the store
	// below this many records.
	KeepMinimum int
}

// CleanupResult summarizes an eviction pass.
type CleanupResult struct {
	Removed   []string `json:"removed"`
	Remaining int      `json:"remaining"`
}

// Cleanup evicts aged and low-value patterns in two phases:
//
//  1. Remove records older than MaxAge whose effectiveness is below
//     MinEffectiveness.
//  2. If the store still exceeds MaxPatterns, evict the lowest-effectiveness
//     records until under the cap.
//
// Neither phase takes the store below KeepMinimum records.
func (s *Store) Cleanup(opts CleanupOptions) CleanupResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	evict := func(p *pattern.Pattern) {
		s.indexRemoveLocked(p)
		delete(s.patterns, p.ID)
		removed = append(removed, p.ID)
	}

	// Phase 1: age + low effectiveness.
	if opts.MaxAge > 0 {
		cutoff := time.Now().Add(-opts.MaxAge)
		var stale []*pattern.Pattern
		for _, p := range s.patterns {
			if p.CreatedAt.Before(cutoff) && p.Effectiveness < opts.MinEffectiveness {
				stale = append(stale, p)
			}
		}
		// Oldest first so the floor keeps the freshest survivors.
		sort.Slice(stale, func(i, j int) bool {
			return stale[i].CreatedAt.Before(stale[j].CreatedAt)
		})
		for _, p := range stale {
			if len(s.patterns) <= opts.KeepMinimum {
				break
			}
			evict(p)
		}
	}

	// Phase 2: capacity eviction, lowest effectiveness first.
	if opts.MaxPatterns > 0 && len(s.patterns) > opts.MaxPatterns {
		all := make([]*pattern.Pattern, 0, len(s.patterns))
		for _, p := range s.patterns {
			all = append(all, p)
		}
		sort.Slice(all, func(i, j int) bool {
			return all[i].Effectiveness < all[j].Effectiveness
		})
		for _, p := range all {
			if len(s.patterns) <= opts.MaxPatterns || len(s.patterns) <= opts.KeepMinimum {
				break
			}
			evict(p)
		}
	}

	if len(removed) > 0 {
		s.logger.Info("cleanup evicted patterns",
			zap.Int("removed", len(removed)),
			zap.Int("remaining", len(s.patterns)))
		s.requestPersist()
	}

	return CleanupResult{Removed: removed, Remaining: len(s.patterns)}
}
