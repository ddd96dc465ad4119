// Package patternstore provides the canonical in-memory pattern store with
// secondary indexes and JSON snapshot persistence.
//
// The store is the single owner of pattern records. All mutations on a given
// pattern id run under the store mutex, so read-modify-write sequences such
// as feedback processing never interleave. Persistence is asynchronous:
// mutations signal a background writer that rewrites the whole snapshot
// file. A crash between a mutation and the next flush loses that delta.
package patternstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternbank/internal/pattern"
)

// IndexConsistency selects how secondary indexes track mutations.
type IndexConsistency string

const (
	// IndexEager re-indexes within every mutating call.
	IndexEager IndexConsistency = "eager"

	// IndexLazy marks indexes dirty and rebuilds on a timer interval.
	// Searches may serve results up to one interval stale.
	IndexLazy IndexConsistency = "lazy"
)

// Config holds store configuration.
type Config struct {
	// SnapshotPath is the JSON snapshot file. Empty disables persistence.
	SnapshotPath string

	// IndexConsistency is eager or lazy (default eager).
	IndexConsistency IndexConsistency

	// RebuildInterval bounds index staleness in lazy mode (default 30s).
	RebuildInterval time.Duration
}

// DefaultRebuildInterval bounds index staleness in lazy mode.
const DefaultRebuildInterval = 30 * time.Second

// Store is the canonical map of pattern id to record, with four secondary
// indexes (type, language, framework, rounded-effectiveness bucket).
type Store struct {
	mu       sync.RWMutex
	patterns map[string]*pattern.Pattern
	idx      *indexes
	dirty    bool

	cfg    Config
	logger *zap.Logger

	persistCh chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a store, loads the snapshot if one exists, and starts the
// background persistence writer (and the index rebuilder in lazy mode).
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IndexConsistency == "" {
		cfg.IndexConsistency = IndexEager
	}
	if cfg.IndexConsistency != IndexEager && cfg.IndexConsistency != IndexLazy {
		return nil, fmt.Errorf("invalid index consistency %q", cfg.IndexConsistency)
	}
	if cfg.RebuildInterval <= 0 {
		cfg.RebuildInterval = DefaultRebuildInterval
	}

	s := &Store{
		patterns:  make(map[string]*pattern.Pattern),
		idx:       newIndexes(),
		cfg:       cfg,
		logger:    logger,
		persistCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	if cfg.SnapshotPath != "" {
		if err := s.loadSnapshot(); err != nil {
			return nil, fmt.Errorf("loading snapshot: %w", err)
		}
	}
	s.idx.rebuild(s.patterns)

	s.wg.Add(1)
	go s.persistLoop()

	if cfg.IndexConsistency == IndexLazy {
		s.wg.Add(1)
		go s.rebuildLoop()
	}

	return s, nil
}

// Close stops background workers and flushes a final snapshot.
func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()
	if s.cfg.SnapshotPath == "" {
		return nil
	}
	return s.writeSnapshot()
}

// Store validates and inserts a new pattern. Fails with ErrDuplicateID
// if the id already exists. Missing defaults (id, type, timestamps) are
// normalized before insert.
func (s *Store) Store(p *pattern.Pattern) error {
	if p == nil {
		return pattern.ErrInvalidPattern
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.patterns[p.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", pattern.ErrDuplicateID, p.ID)
	}
	s.patterns[p.ID] = p.Clone()
	s.indexAddLocked(s.patterns[p.ID])
	s.mu.Unlock()

	s.logger.Debug("pattern stored",
		zap.String("pattern_id", p.ID),
		zap.String("type", string(p.Type)))

	s.requestPersist()
	return nil
}

// Get retrieves a pattern by id. Returns a copy; callers cannot mutate
// store state through the result.
func (s *Store) Get(id string) (*pattern.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patterns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pattern.ErrNotFound, id)
	}
	return p.Clone(), nil
}

// Update merges data into an existing record via the mutate function and
// re-indexes it. The mutation runs under the store lock, so concurrent
// feedback on the same id serializes here.
func (s *Store) Update(id string, mutate func(*pattern.Pattern)) (*pattern.Pattern, error) {
	s.mu.Lock()
	p, ok := s.patterns[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", pattern.ErrNotFound, id)
	}

	next := p.Clone()
	mutate(next)
	next.ID = id // id is immutable
	next.UpdatedAt = time.Now()
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	s.indexRemoveLocked(p)
	s.patterns[id] = next
	s.indexAddLocked(next)
	out := next.Clone()
	s.mu.Unlock()

	s.requestPersist()
	return out, nil
}

// Delete removes a pattern from the map and all indexes.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	p, ok := s.patterns[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", pattern.ErrNotFound, id)
	}
	s.indexRemoveLocked(p)
	delete(s.patterns, id)
	s.mu.Unlock()

	s.logger.Debug("pattern deleted", zap.String("pattern_id", id))
	s.requestPersist()
	return nil
}

// Len returns the number of stored patterns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

// SortField names a sortable pattern attribute for Search.
type SortField string

const (
	SortByEffectiveness SortField = "effectiveness"
	SortByUsageCount    SortField = "usageCount"
	SortBySuccessRate   SortField = "successRate"
	SortByLastUsed      SortField = "lastUsed"
	SortByCreatedAt     SortField = "createdAt"
)

// Sort describes result ordering for Search.
type Sort struct {
	Field     SortField
	Direction string // "asc" or "desc" (default desc)
}

// Criteria filters Search results. Zero values mean "no constraint".
type Criteria struct {
	Type             pattern.Type
	MinEffectiveness float64
	MinUsageCount    int
	Language         string
	Framework        string
	Category         string
	CodeContains     string
	Limit            int
	Sort             *Sort
}

// Search returns patterns matching the criteria, sorted by effectiveness
// descending unless another sort is requested.
func (s *Store) Search(c Criteria) []*pattern.Pattern {
	s.mu.RLock()
	out := make([]*pattern.Pattern, 0)
	for _, p := range s.patterns {
		if !matches(p, c) {
			continue
		}
		out = append(out, p.Clone())
	}
	s.mu.RUnlock()

	sortPatterns(out, c.Sort)

	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}
	return out
}

func matches(p *pattern.Pattern, c Criteria) bool {
	if c.Type != "" && p.Type != c.Type {
		return false
	}
	if p.Effectiveness < c.MinEffectiveness {
		return false
	}
	if p.UsageCount < c.MinUsageCount {
		return false
	}
	if c.Language != "" && !strings.EqualFold(language(p), c.Language) {
		return false
	}
	if c.Framework != "" && !strings.EqualFold(framework(p), c.Framework) {
		return false
	}
	if c.Category != "" && !strings.EqualFold(p.Category, c.Category) {
		return false
	}
	if c.CodeContains != "" &&
		!strings.Contains(p.Code.Before, c.CodeContains) &&
		!strings.Contains(p.Code.After, c.CodeContains) {
		return false
	}
	return true
}

func sortPatterns(ps []*pattern.Pattern, srt *Sort) {
	field := SortByEffectiveness
	desc := true
	if srt != nil {
		if srt.Field != "" {
			field = srt.Field
		}
		desc = srt.Direction != "asc"
	}

	less := func(a, b *pattern.Pattern) bool {
		switch field {
		case SortByUsageCount:
			return a.UsageCount < b.UsageCount
		case SortBySuccessRate:
			return a.SuccessRate < b.SuccessRate
		case SortByLastUsed:
			return a.LastUsed.Before(b.LastUsed)
		case SortByCreatedAt:
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.Effectiveness < b.Effectiveness
		}
	}

	sort.SliceStable(ps, func(i, j int) bool {
		if desc {
			return less(ps[j], ps[i])
		}
		return less(ps[i], ps[j])
	})
}

// language returns the record's language, preferring context over metadata.
func language(p *pattern.Pattern) string {
	if p.Context.Language != "" {
		return p.Context.Language
	}
	return p.Metadata.Language
}

// framework returns the record's framework, preferring context over metadata.
func framework(p *pattern.Pattern) string {
	if p.Context.Framework != "" {
		return p.Context.Framework
	}
	return p.Metadata.Framework
}

// ByType returns candidate patterns of the given type using the type index.
// In lazy mode the index may lag recent writes by up to RebuildInterval.
func (s *Store) ByType(t pattern.Type) []*pattern.Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.idx.byType[string(t)]
	if !ok {
		return nil
	}
	out := make([]*pattern.Pattern, 0, len(ids))
	for _, id := range ids {
		if p, exists := s.patterns[id]; exists {
			out = append(out, p.Clone())
		}
	}
	return out
}

// All returns a copy of every stored pattern. Used as the full-scan
// fallback when no index covers a query.
func (s *Store) All() []*pattern.Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*pattern.Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, p.Clone())
	}
	return out
}

// indexAddLocked maintains the secondary indexes for an insert. Caller
// holds s.mu. In lazy mode the record is only marked for rebuild.
func (s *Store) indexAddLocked(p *pattern.Pattern) {
	if s.cfg.IndexConsistency == IndexLazy {
		s.dirty = true
		return
	}
	s.idx.add(p)
}

func (s *Store) indexRemoveLocked(p *pattern.Pattern) {
	if s.cfg.IndexConsistency == IndexLazy {
		s.dirty = true
		return
	}
	s.idx.remove(p)
}

// RebuildIndexes rebuilds all four indexes from the primary map. Used
// after bulk import and by the lazy rebuild loop.
func (s *Store) RebuildIndexes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx.rebuild(s.patterns)
	s.dirty = false
}

func (s *Store) rebuildLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.RebuildInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.RLock()
			dirty := s.dirty
			s.mu.RUnlock()
			if dirty {
				s.RebuildIndexes()
				s.logger.Debug("indexes rebuilt")
			}
		}
	}
}
