package patternstore

import (
	"time"
)

// Stats aggregates store-wide counters for monitoring dashboards.
type Stats struct {
	TotalPatterns        int            `json:"total_patterns"`
	ByType               map[string]int `json:"by_type"`
	ByLanguage           map[string]int `json:"by_language"`
	ByFramework          map[string]int `json:"by_framework"`
	AverageEffectiveness float64        `json:"average_effectiveness"`
	TotalUsage           int            `json:"total_usage"`
	OldestPattern        time.Time      `json:"oldest_pattern,omitempty"`
	NewestPattern        time.Time      `json:"newest_pattern,omitempty"`
}

// GetStats computes aggregate counters over the primary map.
func (s *Store) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalPatterns: len(s.patterns),
		ByType:        make(map[string]int),
		ByLanguage:    make(map[string]int),
		ByFramework:   make(map[string]int),
	}

	var effSum float64
	for _, p := range s.patterns {
		stats.ByType[string(p.Type)]++
		if lang := language(p); lang != "" {
			stats.ByLanguage[lang]++
		}
		if fw := framework(p); fw != "" {
			stats.ByFramework[fw]++
		}
		effSum += p.Effectiveness
		stats.TotalUsage += p.UsageCount

		if stats.OldestPattern.IsZero() || p.CreatedAt.Before(stats.OldestPattern) {
			stats.OldestPattern = p.CreatedAt
		}
		if p.CreatedAt.After(stats.NewestPattern) {
			stats.NewestPattern = p.CreatedAt
		}
	}
	if len(s.patterns) > 0 {
		stats.AverageEffectiveness = effSum / float64(len(s.patterns))
	}
	return stats
}
