// Package learner is the facade the enhancement pipeline talks to.
//
// It extracts pattern features from before/after code pairs, drives the
// store, tracker, and feedback processor, and exposes the
// learn/suggest/feedback/cleanup API.
package learner

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternbank/internal/effectiveness"
	"github.com/fyrsmithlabs/patternbank/internal/feedback"
	"github.com/fyrsmithlabs/patternbank/internal/pattern"
	"github.com/fyrsmithlabs/patternbank/internal/patternstore"
	"github.com/fyrsmithlabs/patternbank/internal/search"
	"github.com/fyrsmithlabs/patternbank/internal/similarity"
)

// Config tunes the engine's learning behavior.
type Config struct {
	// LearningThreshold separates confident successes from tentative
	// ones: improvements above it start with a full success recorded,
	// below it with partial credit.
	LearningThreshold float64

	// FeedbackWeight scales score movement per feedback event.
	FeedbackWeight float64

	// MinSimilarity is the default search cutoff.
	MinSimilarity float64

	// MaxResults caps suggestion lists.
	MaxResults int

	// CacheSize bounds the search result cache.
	CacheSize int

	// PatternLifetime, MinEffectiveness, MaxPatterns, and KeepMinimum
	// parameterize Cleanup.
	PatternLifetime  time.Duration
	MinEffectiveness float64
	MaxPatterns      int
	KeepMinimum      int
}

// DefaultConfig returns the standard engine tuning.
func DefaultConfig() Config {
	return Config{
		LearningThreshold: 0.1,
		FeedbackWeight:    feedback.DefaultWeight,
		MinSimilarity:     search.DefaultMinSimilarity,
		MaxResults:        search.DefaultMaxResults,
		CacheSize:         search.DefaultCacheSize,
		PatternLifetime:   90 * 24 * time.Hour,
		MinEffectiveness:  0.3,
		MaxPatterns:       1000,
		KeepMinimum:       10,
	}
}

// Metrics is the outcome measurement attached to a learning event.
type Metrics struct {
	Improvement float64 `json:"improvement"`
}

// LearnResult reports a stored learning event.
type LearnResult struct {
	PatternID     string       `json:"pattern_id"`
	Type          pattern.Type `json:"type"`
	Effectiveness float64      `json:"effectiveness"`
}

// Learner owns the engine components. Construct one at startup and Close
// it at shutdown to flush pending persistence.
type Learner struct {
	cfg       Config
	store     *patternstore.Store
	strategy  *search.Strategy
	tracker   *effectiveness.Tracker
	processor *feedback.Processor
	logger    *zap.Logger
}

// New wires a learner from its parts. A nil store is an error; a nil
// tracker or logger gets a default.
func New(cfg Config, store *patternstore.Store, logger *zap.Logger) (*Learner, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = search.DefaultMaxResults
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = search.DefaultMinSimilarity
	}

	tracker := effectiveness.New(0, logger)
	processor, err := feedback.New(store, tracker, cfg.FeedbackWeight, logger)
	if err != nil {
		return nil, err
	}

	return &Learner{
		cfg:       cfg,
		store:     store,
		strategy:  search.New(similarity.New(similarity.DefaultWeights()), cfg.CacheSize, logger),
		tracker:   tracker,
		processor: processor,
		logger:    logger,
	}, nil
}

// Close flushes the store's pending snapshot.
func (l *Learner) Close() error {
	return l.store.Close()
}

// LearnFromSuccess records a code transformation and its measured outcome
// as a new pattern. The record is stored unconditionally regardless of how
// the attempt went: remembering what did not work is as valuable as
// remembering what did.
func (l *Learner) LearnFromSuccess(before, after string, metrics Metrics, ctx *pattern.Context) (*LearnResult, error) {
	if ctx == nil {
		return nil, &pattern.ValidationError{Field: "context", Reason: "must be provided"}
	}

	p := pattern.New(classifyDiff(before, after), before, after)
	p.Context = *ctx
	p.Metadata = pattern.Metadata{
		Language:     ctx.Language,
		Framework:    ctx.Framework,
		Complexity:   classifyComplexity(before, after),
		LinesChanged: linesChanged(before, after),
	}
	p.Effectiveness = clamp01(metrics.Improvement)

	// The learning event itself is the first recorded usage, so the
	// success-rate invariant holds from the start.
	if metrics.Improvement > l.cfg.LearningThreshold {
		p.RecordOutcome(true)
	} else {
		p.RecordPartialOutcome()
	}

	if err := l.store.Store(p); err != nil {
		return nil, err
	}

	l.tracker.UpdatePattern(p.ID, p.Effectiveness, metrics.Improvement > l.cfg.LearningThreshold)
	l.strategy.InvalidateCache()

	l.logger.Info("learned pattern",
		zap.String("pattern_id", p.ID),
		zap.String("type", string(p.Type)),
		zap.Float64("effectiveness", p.Effectiveness))

	return &LearnResult{
		PatternID:     p.ID,
		Type:          p.Type,
		Effectiveness: p.Effectiveness,
	}, nil
}

// SimilarPatterns returns stored patterns ranked by similarity to the
// target, excluding the target itself.
func (l *Learner) SimilarPatterns(target *pattern.Pattern, opts search.Options) []search.Match {
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = l.cfg.MinSimilarity
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = l.cfg.MaxResults
	}
	return l.strategy.FindSimilar(target, opts, l.store)
}

// Suggestions ranks prior patterns against a piece of code the pipeline is
// about to transform. The code is wrapped in an ephemeral query pattern;
// nothing is stored. Zero-valued options take the configured defaults.
func (l *Learner) Suggestions(code string, ctx *pattern.Context, opts search.Options) []search.Match {
	query := &pattern.Pattern{
		Type: pattern.TypeGeneral,
		Code: pattern.CodeExample{Before: code, After: code},
	}
	if ctx != nil {
		query.Context = *ctx
		query.Metadata.Language = ctx.Language
		query.Metadata.Framework = ctx.Framework
	}

	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = l.cfg.MinSimilarity
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = l.cfg.MaxResults
	}
	opts.Context = ctx

	// The query has no type information, so rank against the whole store.
	return l.strategy.FindSimilar(query, opts, fullScan{l.store})
}

// fullScan routes every candidate request to the full store, bypassing
// the type index for untyped queries.
type fullScan struct {
	store *patternstore.Store
}

func (f fullScan) ByType(pattern.Type) []*pattern.Pattern { return nil }
func (f fullScan) All() []*pattern.Pattern                { return f.store.All() }

// ProcessFeedback applies one feedback event through the canonical
// mutation path.
func (l *Learner) ProcessFeedback(patternID string, fb pattern.Feedback) (*feedback.Result, error) {
	res, err := l.processor.Process(patternID, fb)
	if err != nil {
		return nil, err
	}
	l.strategy.InvalidateCache()
	return res, nil
}

// UpdatePatternEffectiveness is retained for pipeline compatibility; it
// delegates to ProcessFeedback so there is exactly one mutation formula.
func (l *Learner) UpdatePatternEffectiveness(patternID string, fb pattern.Feedback) (*feedback.Result, error) {
	return l.ProcessFeedback(patternID, fb)
}

// RetypePattern reassigns a stored pattern's type and category, used when
// the caller knows the classification better than the diff heuristics.
func (l *Learner) RetypePattern(id string, typ pattern.Type, category string) (*pattern.Pattern, error) {
	p, err := l.store.Update(id, func(pt *pattern.Pattern) {
		pt.Type = typ
		if category != "" {
			pt.Category = category
		}
	})
	if err != nil {
		return nil, err
	}
	l.strategy.InvalidateCache()
	return p, nil
}

// GetPattern retrieves a stored pattern by id.
func (l *Learner) GetPattern(id string) (*pattern.Pattern, error) {
	return l.store.Get(id)
}

// DeletePattern removes a pattern and its tracked state.
func (l *Learner) DeletePattern(id string) error {
	if err := l.store.Delete(id); err != nil {
		return err
	}
	l.tracker.Forget(id)
	l.processor.Forget(id)
	l.strategy.InvalidateCache()
	return nil
}

// Cleanup evicts aged and low-value patterns per the configured policy.
func (l *Learner) Cleanup() patternstore.CleanupResult {
	res := l.store.Cleanup(patternstore.CleanupOptions{
		MaxAge:           l.cfg.PatternLifetime,
		MinEffectiveness: l.cfg.MinEffectiveness,
		MaxPatterns:      l.cfg.MaxPatterns,
		KeepMinimum:      l.cfg.KeepMinimum,
	})
	for _, id := range res.Removed {
		l.tracker.Forget(id)
		l.processor.Forget(id)
	}
	if len(res.Removed) > 0 {
		l.strategy.InvalidateCache()
	}
	return res
}

// StoreStats exposes store-wide counters for dashboards.
func (l *Learner) StoreStats() patternstore.Stats {
	return l.store.GetStats()
}

// EffectivenessStats exposes tracker-wide counters for dashboards.
func (l *Learner) EffectivenessStats() effectiveness.Stats {
	return l.tracker.GetStats()
}

// FeedbackTrend classifies feedback sentiment over the trailing week.
func (l *Learner) FeedbackTrend() feedback.Trend {
	return l.processor.AnalyzeTrend()
}

// PatternTrend classifies one pattern's effectiveness trajectory.
func (l *Learner) PatternTrend(id string) effectiveness.Trend {
	return l.tracker.AnalyzeTrend(id)
}

// Export returns a filtered snapshot for cross-project sharing.
func (l *Learner) Export(opts patternstore.ExportOptions) *patternstore.Export {
	return l.store.ExportPatterns(opts)
}

// Import merges a pattern list, returning a per-item result summary.
func (l *Learner) Import(patterns []*pattern.Pattern, opts patternstore.ImportOptions) patternstore.ImportResult {
	res := l.store.ImportPatterns(patterns, opts)
	l.strategy.InvalidateCache()
	return res
}

// Search runs a criteria query through the strategy.
func (l *Learner) Search(c patternstore.Criteria) []*pattern.Pattern {
	return l.strategy.Search(c, l.store)
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
