// Package search ranks candidate patterns for a query pattern.
//
// Candidates come from the store's type index (full scan fallback when the
// type has no bucket). Each candidate is scored by the similarity engine,
// filtered by a minimum-similarity threshold, then blended with a
// relevance score (recency, effectiveness, usage, context match) into the
// final rank. Results are memoized in a bounded cache.
package search

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternbank/internal/pattern"
	"github.com/fyrsmithlabs/patternbank/internal/patternstore"
	"github.com/fyrsmithlabs/patternbank/internal/similarity"
)

const instrumentationName = "github.com/fyrsmithlabs/patternbank/internal/search"

const (
	// DefaultMinSimilarity is the similarity cutoff for candidates. One
	// configurable default for every search path.
	DefaultMinSimilarity = 0.3

	// DefaultMaxResults caps ranked results per query.
	DefaultMaxResults = 10

	// DefaultCacheSize bounds the memoized result cache.
	DefaultCacheSize = 100

	// recencyWindow is the span over which recency decays linearly to 0.
	recencyWindow = 30 * 24 * time.Hour
)

// Blend weights for the final rank and the relevance sub-score.
const (
	similarityWeight = 0.7
	relevanceWeight  = 0.3

	recencyFactor       = 0.2
	effectivenessFactor = 0.3
	usageFactor         = 0.2
	contextFactor       = 0.3
)

// Provider supplies candidates. Implemented by *patternstore.Store.
type Provider interface {
	ByType(t pattern.Type) []*pattern.Pattern
	All() []*pattern.Pattern
}

var _ Provider = (*patternstore.Store)(nil)

// Options tunes one similarity query. Zero values take the defaults.
type Options struct {
	MinSimilarity float64
	MaxResults    int

	// Context, when set, contributes the context-match bonus to relevance.
	Context *pattern.Context
}

// Match is one ranked search result.
type Match struct {
	PatternID  string           `json:"pattern_id"`
	Confidence float64          `json:"confidence"`
	Similarity float64          `json:"similarity"`
	Relevance  float64          `json:"relevance"`
	Pattern    *pattern.Pattern `json:"pattern"`
}

// Strategy performs candidate retrieval and ranking.
type Strategy struct {
	engine    *similarity.Engine
	cache     *resultCache
	cacheHits metric.Int64Counter
	logger    *zap.Logger
}

// New creates a strategy. cacheSize <= 0 takes DefaultCacheSize.
func New(engine *similarity.Engine, cacheSize int, logger *zap.Logger) *Strategy {
	if engine == nil {
		engine = similarity.New(similarity.DefaultWeights())
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hits, err := otel.Meter(instrumentationName).Int64Counter(
		"patternbank.search_cache_hits_total",
		metric.WithDescription("Memoized search results served from the cache."),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		logger.Warn("failed to create cache hit counter", zap.Error(err))
	}

	return &Strategy{
		engine:    engine,
		cache:     newResultCache(cacheSize),
		cacheHits: hits,
		logger:    logger,
	}
}

// FindSimilar returns patterns ranked by blended similarity and relevance.
// The target itself is always excluded, even though self-similarity is 1.
func (s *Strategy) FindSimilar(target *pattern.Pattern, opts Options, store Provider) []Match {
	if target == nil || store == nil {
		return nil
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = DefaultMinSimilarity
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}

	key := cacheKey(target, opts)
	if cached, ok := s.cache.get(key); ok {
		if s.cacheHits != nil {
			s.cacheHits.Add(context.Background(), 1)
		}
		s.logger.Debug("search cache hit", zap.String("key", key))
		return cached
	}

	candidates := store.ByType(target.Type)
	if candidates == nil {
		candidates = store.All()
	}

	now := time.Now()
	matches := make([]Match, 0, len(candidates))
	for _, cand := range candidates {
		if cand.ID == target.ID {
			continue
		}
		sim := s.engine.Calculate(target, cand)
		if sim < opts.MinSimilarity {
			continue
		}
		rel := relevance(cand, opts.Context, now)
		matches = append(matches, Match{
			PatternID:  cand.ID,
			Confidence: similarityWeight*sim + relevanceWeight*rel,
			Similarity: sim,
			Relevance:  rel,
			Pattern:    cand,
		})
	}

	sortMatches(matches)
	if len(matches) > opts.MaxResults {
		matches = matches[:opts.MaxResults]
	}

	s.cache.put(key, matches)
	return matches
}

// InvalidateCache drops memoized results. Called after store mutations so
// rankings reflect fresh trust scores.
func (s *Strategy) InvalidateCache() {
	s.cache.purge()
}

// CacheLen reports the number of memoized queries, for monitoring.
func (s *Strategy) CacheLen() int {
	return s.cache.len()
}

// Search filters the full store by criteria; default order lastUsed desc.
func (s *Strategy) Search(c patternstore.Criteria, store *patternstore.Store) []*pattern.Pattern {
	if c.Sort == nil {
		c.Sort = &patternstore.Sort{Field: patternstore.SortByLastUsed, Direction: "desc"}
	}
	return store.Search(c)
}

// relevance blends recency, effectiveness, usage frequency, and context
// match into a 0-1 score.
func relevance(p *pattern.Pattern, queryCtx *pattern.Context, now time.Time) float64 {
	recency := 0.0
	ref := p.LastUsed
	if ref.IsZero() {
		ref = p.UpdatedAt
	}
	if !ref.IsZero() {
		age := now.Sub(ref)
		if age < recencyWindow {
			recency = 1.0 - float64(age)/float64(recencyWindow)
		}
	}

	usage := float64(p.UsageCount) / 10.0
	if usage > 1.0 {
		usage = 1.0
	}

	ctxBonus := 0.0
	if queryCtx != nil {
		ctxBonus = contextMatch(queryCtx, &p.Context)
	}

	return recencyFactor*recency +
		effectivenessFactor*p.Effectiveness +
		usageFactor*usage +
		contextFactor*ctxBonus
}

// contextMatch is the fraction of query context fields the candidate
// matches, over the fields the query actually sets.
func contextMatch(query, cand *pattern.Context) float64 {
	var matched, total float64

	check := func(q, c string) {
		if q == "" {
			return
		}
		total++
		if strings.EqualFold(q, c) {
			matched++
		}
	}

	check(query.Language, cand.Language)
	check(query.Framework, cand.Framework)
	check(query.ProjectType, cand.ProjectType)
	check(query.FileType, cand.FileType)

	if total == 0 {
		return 0
	}
	return matched / total
}

// sortMatches orders highest confidence first, ties broken by similarity.
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Similarity > matches[j].Similarity
	})
}

// cacheKey identifies stored targets by id and ephemeral query patterns by
// a digest of their content. Two queries over different code must never
// share a cache entry. The query context is keyed too: it feeds the
// relevance blend.
func cacheKey(target *pattern.Pattern, opts Options) string {
	id := target.ID
	if id == "" {
		id = digest(target.Code.Before, target.Code.After,
			target.Context.Language, target.Context.Framework,
			target.Context.ProjectType, target.Context.FileType)
	}

	qctx := "-"
	if opts.Context != nil {
		qctx = digest(opts.Context.Language, opts.Context.Framework,
			opts.Context.ProjectType, opts.Context.FileType)
	}

	return fmt.Sprintf("%s|%s|%s|%.3f|%d", target.Type, id, qctx, opts.MinSimilarity, opts.MaxResults)
}

func digest(parts ...string) string {
	h := fnv.New64a()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
