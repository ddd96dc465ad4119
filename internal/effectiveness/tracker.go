// Package effectiveness tracks per-pattern usage and trust statistics.
//
// The tracker keeps an exponential moving average of observed effectiveness
// per pattern, a reliability score scaled by usage volume, and bounded
// history logs that feed trend classification.
package effectiveness

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// EMAAlpha is the smoothing factor for the effectiveness average.
	EMAAlpha = 0.1

	// DefaultMinUsageForReliability is the usage count at which a pattern
	// is considered fully reliable.
	DefaultMinUsageForReliability = 10

	// historyCap bounds per-pattern history logs; oldest entries are
	// trimmed FIFO.
	historyCap = 1000

	// trendWindow is the sample count per side of the trend comparison.
	trendWindow = 5

	// trendBand is the relative delta beyond which a trend counts as
	// improving or declining.
	trendBand = 0.05
)

// Trend classifies a pattern's recent effectiveness trajectory.
type Trend string

const (
	TrendImproving        Trend = "improving"
	TrendDeclining        Trend = "declining"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// Record holds the tracked state for one pattern.
type Record struct {
	PatternID            string    `json:"pattern_id"`
	TotalUsage           int       `json:"total_usage"`
	SuccessfulUsage      int       `json:"successful_usage"`
	AverageEffectiveness float64   `json:"average_effectiveness"`
	Reliability          float64   `json:"reliability"`
	LastUpdated          time.Time `json:"last_updated"`
}

// sample is one logged effectiveness observation.
type sample struct {
	value float64
	at    time.Time
}

// Stats aggregates tracker-wide counters for dashboards.
type Stats struct {
	TrackedPatterns      int           `json:"tracked_patterns"`
	AverageEffectiveness float64       `json:"average_effectiveness"`
	HighEffectiveness    int           `json:"high_effectiveness"`
	HighReliability      int           `json:"high_reliability"`
	Trends               map[Trend]int `json:"trends"`
	ActiveLast24h        int           `json:"active_last_24h"`
	ActiveLast7d         int           `json:"active_last_7d"`
	ActiveLast30d        int           `json:"active_last_30d"`
}

// Tracker maintains per-pattern effectiveness state. Thread-safe.
type Tracker struct {
	mu       sync.RWMutex
	records  map[string]*Record
	history  map[string][]sample
	minUsage int
	logger   *zap.Logger
}

// New creates a tracker. minUsageForReliability <= 0 takes the default.
func New(minUsageForReliability int, logger *zap.Logger) *Tracker {
	if minUsageForReliability <= 0 {
		minUsageForReliability = DefaultMinUsageForReliability
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		records:  make(map[string]*Record),
		history:  make(map[string][]sample),
		minUsage: minUsageForReliability,
		logger:   logger,
	}
}

// UpdatePattern folds one observation into the pattern's tracked state.
// The effectiveness average moves by EMA; reliability scales with usage.
func (t *Tracker) UpdatePattern(patternID string, observed float64, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[patternID]
	if !ok {
		rec = &Record{PatternID: patternID, AverageEffectiveness: observed}
		t.records[patternID] = rec
	} else {
		rec.AverageEffectiveness = EMAAlpha*observed + (1-EMAAlpha)*rec.AverageEffectiveness
	}

	rec.TotalUsage++
	if success {
		rec.SuccessfulUsage++
	}
	rec.Reliability = float64(rec.TotalUsage) / float64(t.minUsage)
	if rec.Reliability > 1.0 {
		rec.Reliability = 1.0
	}
	rec.LastUpdated = time.Now()

	hist := append(t.history[patternID], sample{value: observed, at: rec.LastUpdated})
	if len(hist) > historyCap {
		hist = hist[len(hist)-historyCap:]
	}
	t.history[patternID] = hist
}

// Get returns the tracked record for a pattern, or nil if never updated.
func (t *Tracker) Get(patternID string) *Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[patternID]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// Forget drops tracked state for a pattern, used after store deletion.
func (t *Tracker) Forget(patternID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, patternID)
	delete(t.history, patternID)
}

// AnalyzeTrend compares the mean of the last trendWindow samples against
// the mean of the previous trendWindow. Deltas beyond the band classify as
// improving or declining; fewer than 2*trendWindow samples is
// insufficient data.
func (t *Tracker) AnalyzeTrend(patternID string) Trend {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.analyzeTrendLocked(patternID)
}

func (t *Tracker) analyzeTrendLocked(patternID string) Trend {
	hist := t.history[patternID]
	if len(hist) < 2*trendWindow {
		return TrendInsufficientData
	}

	recent := mean(hist[len(hist)-trendWindow:])
	previous := mean(hist[len(hist)-2*trendWindow : len(hist)-trendWindow])

	switch {
	case recent > previous*(1+trendBand):
		return TrendImproving
	case recent < previous*(1-trendBand):
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(samples []sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.value
	}
	return sum / float64(len(samples))
}

// GetStats aggregates counters over every tracked pattern.
func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{
		TrackedPatterns: len(t.records),
		Trends:          make(map[Trend]int),
	}

	now := time.Now()
	var effSum float64
	for id, rec := range t.records {
		effSum += rec.AverageEffectiveness
		if rec.AverageEffectiveness > 0.8 {
			stats.HighEffectiveness++
		}
		if rec.Reliability > 0.8 {
			stats.HighReliability++
		}
		stats.Trends[t.analyzeTrendLocked(id)]++

		age := now.Sub(rec.LastUpdated)
		if age <= 24*time.Hour {
			stats.ActiveLast24h++
		}
		if age <= 7*24*time.Hour {
			stats.ActiveLast7d++
		}
		if age <= 30*24*time.Hour {
			stats.ActiveLast30d++
		}
	}
	if len(t.records) > 0 {
		stats.AverageEffectiveness = effSum / float64(len(t.records))
	}
	return stats
}
