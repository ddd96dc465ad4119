package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/patternbank/internal/telemetry"

// EngineMetrics holds the learning engine's counters.
type EngineMetrics struct {
	meter             metric.Meter
	logger            *zap.Logger
	patternsLearned   metric.Int64Counter
	feedbackProcessed metric.Int64Counter
	searches          metric.Int64Counter
	patternsEvicted   metric.Int64Counter
}

// NewEngineMetrics registers the engine counters on the global meter.
func NewEngineMetrics(logger *zap.Logger) *EngineMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &EngineMetrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *EngineMetrics) init() {
	var err error

	m.patternsLearned, err = m.meter.Int64Counter(
		"patternbank.patterns_learned_total",
		metric.WithDescription("Patterns stored via the learn path, labeled by pattern type."),
		metric.WithUnit("{pattern}"),
	)
	if err != nil {
		m.logger.Warn("failed to create patterns counter", zap.Error(err))
	}

	m.feedbackProcessed, err = m.meter.Int64Counter(
		"patternbank.feedback_processed_total",
		metric.WithDescription("Feedback events applied, labeled by action."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		m.logger.Warn("failed to create feedback counter", zap.Error(err))
	}

	m.searches, err = m.meter.Int64Counter(
		"patternbank.searches_total",
		metric.WithDescription("Similarity searches served."),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		m.logger.Warn("failed to create search counter", zap.Error(err))
	}

	m.patternsEvicted, err = m.meter.Int64Counter(
		"patternbank.patterns_evicted_total",
		metric.WithDescription("Patterns removed by cleanup."),
		metric.WithUnit("{pattern}"),
	)
	if err != nil {
		m.logger.Warn("failed to create eviction counter", zap.Error(err))
	}
}

// RecordLearned counts one stored pattern.
func (m *EngineMetrics) RecordLearned(ctx context.Context, patternType string) {
	if m.patternsLearned == nil {
		return
	}
	m.patternsLearned.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", patternType)))
}

// RecordFeedback counts one processed feedback event.
func (m *EngineMetrics) RecordFeedback(ctx context.Context, action string) {
	if m.feedbackProcessed == nil {
		return
	}
	m.feedbackProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action)))
}

// RecordSearch counts one similarity search.
func (m *EngineMetrics) RecordSearch(ctx context.Context) {
	if m.searches == nil {
		return
	}
	m.searches.Add(ctx, 1)
}

// RecordEvicted counts patterns removed by a cleanup pass.
func (m *EngineMetrics) RecordEvicted(ctx context.Context, n int) {
	if m.patternsEvicted == nil || n == 0 {
		return
	}
	m.patternsEvicted.Add(ctx, int64(n))
}
