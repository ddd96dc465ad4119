package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternbank/internal/effectiveness"
	"github.com/fyrsmithlabs/patternbank/internal/pattern"
	"github.com/fyrsmithlabs/patternbank/internal/patternstore"
)

func newTestProcessor(t *testing.T) (*Processor, *patternstore.Store) {
	t.Helper()
	store, err := patternstore.New(patternstore.Config{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tracker := effectiveness.New(0, zap.NewNop())
	p, err := New(store, tracker, 0.3, zap.NewNop())
	require.NoError(t, err)
	return p, store
}

func storePattern(t *testing.T, store *patternstore.Store, id string, eff float64) {
	t.Helper()
	p := pattern.New(pattern.TypeRefactoring, "var x = 1", "const x = 1")
	p.ID = id
	p.Effectiveness = eff
	require.NoError(t, store.Store(p))
}

func TestProcess_AcceptedIncrements(t *testing.T) {
	proc, store := newTestProcessor(t)
	storePattern(t, store, "p1", 0.5)

	// Three accepts with weight 0.3 move effectiveness by 0.03 each.
	want := 0.5
	for i := 0; i < 3; i++ {
		res, err := proc.Process("p1", pattern.Feedback{Action: pattern.ActionAccepted})
		require.NoError(t, err)
		want += 0.03
		assert.InDelta(t, want, res.Effectiveness, 1e-9)
	}

	got, err := store.Get("p1")
	require.NoError(t, err)
	assert.InDelta(t, 0.59, got.Effectiveness, 1e-9)
	assert.Equal(t, 3, got.UsageCount)
	assert.Equal(t, 1.0, got.SuccessRate)
}

func TestProcess_AcceptedClampsAtOne(t *testing.T) {
	proc, store := newTestProcessor(t)
	storePattern(t, store, "p1", 0.99)

	res, err := proc.Process("p1", pattern.Feedback{Action: pattern.ActionAccepted})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Effectiveness)
}

func TestProcess_RejectedDecrementsAndClamps(t *testing.T) {
	proc, store := newTestProcessor(t)
	storePattern(t, store, "p1", 0.01)

	res, err := proc.Process("p1", pattern.Feedback{Action: pattern.ActionRejected})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Effectiveness)
	assert.Equal(t, 0.0, res.SuccessRate)
}

func TestProcess_RatedBlends(t *testing.T) {
	proc, store := newTestProcessor(t)
	storePattern(t, store, "p1", 0.5)

	// rating 5 normalizes to 1.0: 0.7*0.5 + 0.3*1.0
	res, err := proc.Process("p1", pattern.Feedback{Action: pattern.ActionRated, Rating: 5})
	require.NoError(t, err)
	assert.InDelta(t, 0.65, res.Effectiveness, 1e-9)
	assert.Equal(t, 1.0, res.SuccessRate)

	// rating 1 normalizes to 0.0 and counts as failure.
	res, err = proc.Process("p1", pattern.Feedback{Action: pattern.ActionRated, Rating: 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.455, res.Effectiveness, 1e-9)
	assert.InDelta(t, 0.5, res.SuccessRate, 1e-9)
}

func TestProcess_SuccessRateStaysExact(t *testing.T) {
	proc, store := newTestProcessor(t)
	storePattern(t, store, "p1", 0.5)

	actions := []pattern.Feedback{
		{Action: pattern.ActionAccepted},
		{Action: pattern.ActionRejected},
		{Action: pattern.ActionRated, Rating: 4},
		{Action: pattern.ActionRated, Rating: 2},
		{Action: pattern.ActionAccepted},
	}
	for _, fb := range actions {
		_, err := proc.Process("p1", fb)
		require.NoError(t, err)
	}

	got, err := store.Get("p1")
	require.NoError(t, err)
	require.Equal(t, 5, got.UsageCount)
	// 3 successes out of 5, exactly.
	assert.InDelta(t, 3.0/5.0, got.SuccessRate, 1e-12)
	assert.InDelta(t, got.SuccessScore/float64(got.UsageCount), got.SuccessRate, 1e-12)
}

func TestProcess_ModifiedSpawnsChild(t *testing.T) {
	proc, store := newTestProcessor(t)
	storePattern(t, store, "p1", 0.5)

	res, err := proc.Process("p1", pattern.Feedback{
		Action:       pattern.ActionModified,
		Modification: &pattern.Modification{Result: "let x = 1", Reason: "prefer let"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.ChildID)

	child, err := store.Get(res.ChildID)
	require.NoError(t, err)
	assert.Equal(t, "p1", child.Metadata.ParentID)
	assert.Equal(t, "let x = 1", child.Code.After)
	assert.InDelta(t, 0.55, child.Effectiveness, 1e-9)
	assert.Zero(t, child.UsageCount)

	// Original took partial credit.
	parent, err := store.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, 1, parent.UsageCount)
	assert.InDelta(t, 0.5, parent.SuccessRate, 1e-9)
	assert.InDelta(t, 0.5, parent.Effectiveness, 1e-9)
}

func TestProcess_UnknownPattern(t *testing.T) {
	proc, _ := newTestProcessor(t)

	_, err := proc.Process("ghost", pattern.Feedback{Action: pattern.ActionAccepted})
	assert.ErrorIs(t, err, pattern.ErrNotFound)
}

func TestProcess_InvalidShapes(t *testing.T) {
	proc, store := newTestProcessor(t)
	storePattern(t, store, "p1", 0.5)

	_, err := proc.Process("p1", pattern.Feedback{Action: "shrugged"})
	assert.ErrorIs(t, err, pattern.ErrInvalidAction)

	_, err = proc.Process("p1", pattern.Feedback{Action: pattern.ActionRated, Rating: 9})
	assert.ErrorIs(t, err, pattern.ErrInvalidRating)

	_, err = proc.Process("p1", pattern.Feedback{Action: pattern.ActionModified})
	assert.ErrorIs(t, err, pattern.ErrMissingModified)

	_, err = proc.Process("", pattern.Feedback{Action: pattern.ActionAccepted})
	var verr *pattern.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestProcess_BoundsFeedbackLog(t *testing.T) {
	proc, store := newTestProcessor(t)
	storePattern(t, store, "p1", 0.5)

	for i := 0; i < logCap+20; i++ {
		_, err := proc.Process("p1", pattern.Feedback{Action: pattern.ActionAccepted})
		require.NoError(t, err)
	}

	assert.Len(t, proc.History("p1"), logCap)
}

func TestAnalyzeTrend(t *testing.T) {
	proc, store := newTestProcessor(t)
	storePattern(t, store, "p1", 0.5)

	assert.Equal(t, TrendInsufficientData, proc.AnalyzeTrend())

	for i := 0; i < 8; i++ {
		_, err := proc.Process("p1", pattern.Feedback{Action: pattern.ActionAccepted})
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := proc.Process("p1", pattern.Feedback{Action: pattern.ActionRejected})
		require.NoError(t, err)
	}
	assert.Equal(t, TrendPositive, proc.AnalyzeTrend())
}

func TestAnalyzeTrend_IgnoresOldFeedback(t *testing.T) {
	proc, store := newTestProcessor(t)
	storePattern(t, store, "p1", 0.5)

	// Stale negatives outside the window must not count.
	stale := time.Now().Add(-8 * 24 * time.Hour)
	for i := 0; i < 10; i++ {
		_, err := proc.Process("p1", pattern.Feedback{
			Action:    pattern.ActionRejected,
			Timestamp: stale,
		})
		require.NoError(t, err)
	}
	assert.Equal(t, TrendInsufficientData, proc.AnalyzeTrend())
}
