package patternstore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/patternbank/internal/pattern"
)

func TestCleanup_AgePhase(t *testing.T) {
	s := newTestStore(t)

	old := testPattern("old-weak", pattern.TypeGeneral, 0.1)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	oldStrong := testPattern("old-strong", pattern.TypeGeneral, 0.9)
	oldStrong.CreatedAt = time.Now().Add(-48 * time.Hour)
	fresh := testPattern("fresh-weak", pattern.TypeGeneral, 0.1)

	for _, p := range []*pattern.Pattern{old, oldStrong, fresh} {
		require.NoError(t, s.Store(p))
	}

	res := s.Cleanup(CleanupOptions{
		MaxAge:           24 * time.Hour,
		MinEffectiveness: 0.3,
	})

	// Only the record that is both old and weak goes.
	assert.Equal(t, []string{"old-weak"}, res.Removed)
	assert.Equal(t, 2, res.Remaining)
}

func TestCleanup_CapacityPhaseEvictsWeakestFirst(t *testing.T) {
	s := newTestStore(t)

	for i, eff := range []float64{0.9, 0.1, 0.5, 0.3, 0.7} {
		require.NoError(t, s.Store(testPattern(fmt.Sprintf("p%d", i), pattern.TypeGeneral, eff)))
	}

	res := s.Cleanup(CleanupOptions{MaxPatterns: 3})

	assert.Len(t, res.Removed, 2)
	assert.Equal(t, 3, res.Remaining)
	// The weakest two are gone, the strongest survive.
	for _, id := range []string{"p1", "p3"} {
		_, err := s.Get(id)
		assert.ErrorIs(t, err, pattern.ErrNotFound, id)
	}
	for _, id := range []string{"p0", "p2", "p4"} {
		_, err := s.Get(id)
		assert.NoError(t, err, id)
	}
}

func TestCleanup_NeverBelowKeepMinimum(t *testing.T) {
	s := newTestStore(t)

	// Every record is old and far below the effectiveness floor.
	for i := 0; i < 5; i++ {
		p := testPattern(fmt.Sprintf("p%d", i), pattern.TypeGeneral, 0.05)
		p.CreatedAt = time.Now().Add(-72 * time.Hour)
		require.NoError(t, s.Store(p))
	}

	res := s.Cleanup(CleanupOptions{
		MaxAge:           time.Hour,
		MinEffectiveness: 0.5,
		MaxPatterns:      1,
		KeepMinimum:      3,
	})

	assert.Equal(t, 3, res.Remaining)
	assert.Equal(t, 3, s.Len())
}

func TestCleanup_RemovedPatternsLeaveIndexes(t *testing.T) {
	s := newTestStore(t)

	p := testPattern("p0", pattern.TypeSecurity, 0.05)
	p.CreatedAt = time.Now().Add(-72 * time.Hour)
	require.NoError(t, s.Store(p))

	s.Cleanup(CleanupOptions{MaxAge: time.Hour, MinEffectiveness: 0.5})

	assert.Empty(t, s.ByType(pattern.TypeSecurity))
}
