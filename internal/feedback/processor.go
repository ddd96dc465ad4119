// Package feedback applies feedback events to pattern trust scores.
//
// This is the single canonical mutation path for effectiveness and success
// rate: every accept, reject, modify, and rate event flows through
// Processor.Process, which serializes the read-modify-write against the
// store and keeps the tracker in step.
package feedback

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternbank/internal/effectiveness"
	"github.com/fyrsmithlabs/patternbank/internal/pattern"
	"github.com/fyrsmithlabs/patternbank/internal/patternstore"
)

const (
	// DefaultWeight scales how hard one feedback event moves a score.
	DefaultWeight = 0.3

	// logCap bounds the per-pattern feedback log, trimmed FIFO.
	logCap = 100

	// childEffectivenessBump is the head start a spawned child pattern
	// gets over its parent.
	childEffectivenessBump = 0.05

	// trendWindow is the span feedback trend analysis looks back over.
	trendWindow = 7 * 24 * time.Hour

	// minTrendSamples is the floor below which no trend is reported.
	minTrendSamples = 5
)

// Trend classifies recent feedback sentiment.
type Trend string

const (
	TrendPositive         Trend = "positive"
	TrendNegative         Trend = "negative"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// Result reports the outcome of one processed feedback event.
type Result struct {
	PatternID     string  `json:"pattern_id"`
	Effectiveness float64 `json:"effectiveness"`
	SuccessRate   float64 `json:"success_rate"`

	// ChildID is set when "modified" feedback spawned a derived pattern.
	ChildID string `json:"child_id,omitempty"`
}

// Processor mutates pattern trust scores from feedback events.
type Processor struct {
	store   *patternstore.Store
	tracker *effectiveness.Tracker
	weight  float64
	logger  *zap.Logger

	mu   sync.Mutex
	logs map[string][]pattern.Feedback
}

// New creates a processor. weight <= 0 takes DefaultWeight.
func New(store *patternstore.Store, tracker *effectiveness.Tracker, weight float64, logger *zap.Logger) (*Processor, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if weight <= 0 {
		weight = DefaultWeight
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		store:   store,
		tracker: tracker,
		weight:  weight,
		logger:  logger,
		logs:    make(map[string][]pattern.Feedback),
	}, nil
}

// Process validates and applies one feedback event to the identified
// pattern. Returns the pattern's post-event scores.
func (p *Processor) Process(patternID string, fb pattern.Feedback) (*Result, error) {
	if patternID == "" {
		return nil, &pattern.ValidationError{Field: "pattern_id", Reason: "cannot be empty"}
	}
	if err := fb.Validate(); err != nil {
		return nil, err
	}
	fb.PatternID = patternID
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now()
	}

	var updated *pattern.Pattern
	var childID string
	var err error

	switch fb.Action {
	case pattern.ActionAccepted:
		updated, err = p.applyAccepted(patternID)
	case pattern.ActionRejected:
		updated, err = p.applyRejected(patternID)
	case pattern.ActionModified:
		updated, childID, err = p.applyModified(patternID, fb.Modification)
	case pattern.ActionRated:
		updated, err = p.applyRated(patternID, fb.Rating)
	}
	if err != nil {
		return nil, err
	}

	p.appendLog(patternID, fb)

	if p.tracker != nil {
		p.tracker.UpdatePattern(patternID, updated.Effectiveness, fb.Positive())
	}

	p.logger.Debug("feedback processed",
		zap.String("pattern_id", patternID),
		zap.String("action", string(fb.Action)),
		zap.Float64("effectiveness", updated.Effectiveness),
		zap.Float64("success_rate", updated.SuccessRate))

	return &Result{
		PatternID:     patternID,
		Effectiveness: updated.Effectiveness,
		SuccessRate:   updated.SuccessRate,
		ChildID:       childID,
	}, nil
}

func (p *Processor) applyAccepted(id string) (*pattern.Pattern, error) {
	return p.store.Update(id, func(pt *pattern.Pattern) {
		pt.Effectiveness = clamp01(pt.Effectiveness + p.weight*0.1)
		pt.RecordOutcome(true)
		pt.LastUsed = time.Now()
	})
}

func (p *Processor) applyRejected(id string) (*pattern.Pattern, error) {
	return p.store.Update(id, func(pt *pattern.Pattern) {
		pt.Effectiveness = clamp01(pt.Effectiveness - p.weight*0.1)
		pt.RecordOutcome(false)
		pt.LastUsed = time.Now()
	})
}

// applyModified gives the original partial credit and spawns a child
// pattern carrying the user's corrected code, linked via ParentID.
func (p *Processor) applyModified(id string, mod *pattern.Modification) (*pattern.Pattern, string, error) {
	updated, err := p.store.Update(id, func(pt *pattern.Pattern) {
		pt.RecordPartialOutcome()
		pt.LastUsed = time.Now()
	})
	if err != nil {
		return nil, "", err
	}

	child := updated.Clone()
	child.ID = ""
	child.Code.After = mod.Result
	child.Metadata.ParentID = updated.ID
	child.Effectiveness = clamp01(updated.Effectiveness + childEffectivenessBump)
	child.UsageCount = 0
	child.SuccessScore = 0
	child.SuccessRate = 0
	child.CreatedAt = time.Time{}
	child.UpdatedAt = time.Time{}
	child.LastUsed = time.Time{}
	if mod.Reason != "" {
		child.Tags = append(child.Tags, "modified")
	}

	if err := p.store.Store(child); err != nil {
		// The original's partial credit stands; the spawn failure is
		// reported to the caller.
		return nil, "", fmt.Errorf("spawning child pattern: %w", err)
	}

	p.logger.Info("modified feedback spawned child pattern",
		zap.String("parent_id", updated.ID),
		zap.String("child_id", child.ID))

	return updated, child.ID, nil
}

// applyRated blends the normalized rating into effectiveness:
// (1-w)*old + w*((rating-1)/4). Ratings of 3 and above count as successes.
func (p *Processor) applyRated(id string, rating int) (*pattern.Pattern, error) {
	return p.store.Update(id, func(pt *pattern.Pattern) {
		normalized := float64(rating-1) / 4.0
		pt.Effectiveness = clamp01((1-p.weight)*pt.Effectiveness + p.weight*normalized)
		pt.RecordOutcome(rating >= 3)
		pt.LastUsed = time.Now()
	})
}

// appendLog records the event in the pattern's bounded feedback log.
func (p *Processor) appendLog(id string, fb pattern.Feedback) {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := append(p.logs[id], fb)
	if len(log) > logCap {
		log = log[len(log)-logCap:]
	}
	p.logs[id] = log
}

// History returns a copy of the pattern's feedback log, oldest first.
func (p *Processor) History(id string) []pattern.Feedback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pattern.Feedback(nil), p.logs[id]...)
}

// Forget drops the feedback log for a deleted pattern.
func (p *Processor) Forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.logs, id)
}

// AnalyzeTrend classifies overall feedback sentiment over the trailing
// seven days: positive above a 0.6 ratio, negative below 0.4, stable
// between. Fewer than five scoring samples is insufficient data.
func (p *Processor) AnalyzeTrend() Trend {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-trendWindow)
	var positive, negative int
	for _, log := range p.logs {
		for _, fb := range log {
			if fb.Timestamp.Before(cutoff) {
				continue
			}
			switch {
			case fb.Positive():
				positive++
			case fb.Negative():
				negative++
			}
		}
	}

	total := positive + negative
	if total < minTrendSamples {
		return TrendInsufficientData
	}

	ratio := float64(positive) / float64(total)
	switch {
	case ratio > 0.6:
		return TrendPositive
	case ratio < 0.4:
		return TrendNegative
	default:
		return TrendStable
	}
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
