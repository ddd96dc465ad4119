package patternstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternbank/internal/pattern"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testPattern(id string, typ pattern.Type, eff float64) *pattern.Pattern {
	p := pattern.New(typ, "var x = 1", "const x = 1")
	if id != "" {
		p.ID = id
	}
	p.Effectiveness = eff
	return p
}

func TestStore_StoreAndGet(t *testing.T) {
	s := newTestStore(t)

	p := testPattern("p1", pattern.TypeRefactoring, 0.5)
	require.NoError(t, s.Store(p))

	got, err := s.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, pattern.TypeRefactoring, got.Type)
	assert.Equal(t, 0.5, got.Effectiveness)
}

func TestStore_DuplicateID(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Store(testPattern("p1", pattern.TypeGeneral, 0.5)))

	err := s.Store(testPattern("p1", pattern.TypeGeneral, 0.7))
	assert.ErrorIs(t, err, pattern.ErrDuplicateID)
}

func TestStore_Validation(t *testing.T) {
	s := newTestStore(t)

	p := testPattern("", pattern.TypeGeneral, 0.5)
	p.Code.After = ""
	assert.ErrorIs(t, s.Store(p), pattern.ErrEmptyCodeExample)

	p2 := testPattern("", pattern.TypeGeneral, 1.5)
	assert.ErrorIs(t, s.Store(p2), pattern.ErrInvalidRange)
}

func TestStore_GetUnknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("ghost")
	assert.ErrorIs(t, err, pattern.ErrNotFound)
}

func TestStore_UpdateReindexes(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Store(testPattern("p1", pattern.TypeRefactoring, 0.5)))

	_, err := s.Update("p1", func(p *pattern.Pattern) {
		p.Type = pattern.TypeSecurity
		p.Effectiveness = 0.9
	})
	require.NoError(t, err)

	// Record must appear only under its current type bucket.
	assert.Empty(t, s.ByType(pattern.TypeRefactoring))
	sec := s.ByType(pattern.TypeSecurity)
	require.Len(t, sec, 1)
	assert.Equal(t, "p1", sec[0].ID)
}

func TestStore_UpdatePreservesID(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Store(testPattern("p1", pattern.TypeGeneral, 0.5)))

	updated, err := s.Update("p1", func(p *pattern.Pattern) {
		p.ID = "hijacked"
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", updated.ID)
}

func TestStore_UpdateRejectsInvalidMutation(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Store(testPattern("p1", pattern.TypeGeneral, 0.5)))

	_, err := s.Update("p1", func(p *pattern.Pattern) {
		p.Effectiveness = 3.0
	})
	require.ErrorIs(t, err, pattern.ErrInvalidRange)

	// Original record must be untouched.
	got, err := s.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Effectiveness)
}

func TestStore_UpdateUnknown(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Update("ghost", func(p *pattern.Pattern) {})
	assert.ErrorIs(t, err, pattern.ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Store(testPattern("p1", pattern.TypeSecurity, 0.5)))

	require.NoError(t, s.Delete("p1"))

	_, err := s.Get("p1")
	assert.ErrorIs(t, err, pattern.ErrNotFound)
	assert.Empty(t, s.ByType(pattern.TypeSecurity))

	assert.ErrorIs(t, s.Delete("p1"), pattern.ErrNotFound)
}

func TestStore_Search(t *testing.T) {
	s := newTestStore(t)

	a := testPattern("a", pattern.TypeRefactoring, 0.9)
	a.Context.Language = "go"
	b := testPattern("b", pattern.TypeRefactoring, 0.4)
	b.Context.Language = "python"
	c := testPattern("c", pattern.TypeSecurity, 0.7)
	c.Context.Language = "go"

	for _, p := range []*pattern.Pattern{a, b, c} {
		require.NoError(t, s.Store(p))
	}

	got := s.Search(Criteria{Type: pattern.TypeRefactoring})
	require.Len(t, got, 2)
	// Default sort is effectiveness descending.
	assert.Equal(t, "a", got[0].ID)

	got = s.Search(Criteria{Language: "go", MinEffectiveness: 0.8})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	got = s.Search(Criteria{Limit: 1})
	assert.Len(t, got, 1)
}

func TestStore_SearchSortByUsageCount(t *testing.T) {
	s := newTestStore(t)

	for _, usage := range []int{3, 7, 1, 9} {
		p := testPattern("", pattern.TypeGeneral, 0.5)
		for j := 0; j < usage; j++ {
			p.RecordOutcome(true)
		}
		require.NoError(t, s.Store(p))
	}

	got := s.Search(Criteria{Sort: &Sort{Field: SortByUsageCount, Direction: "desc"}})
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].UsageCount, got[i].UsageCount)
	}
}

func TestStore_EffectivenessBuckets(t *testing.T) {
	assert.Equal(t, "0.7", effectivenessBucket(0.68))
	assert.Equal(t, "0.7", effectivenessBucket(0.74))
	assert.Equal(t, "0.0", effectivenessBucket(0.04))
	assert.Equal(t, "1.0", effectivenessBucket(1.0))
}

func TestStore_LazyIndexRebuild(t *testing.T) {
	s, err := New(Config{
		IndexConsistency: IndexLazy,
		RebuildInterval:  10 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Store(testPattern("p1", pattern.TypeSecurity, 0.5)))

	// Lazy mode leaves the new record invisible to the index until the
	// rebuild tick fires.
	assert.Eventually(t, func() bool {
		return len(s.ByType(pattern.TypeSecurity)) == 1
	}, time.Second, 5*time.Millisecond)
}
