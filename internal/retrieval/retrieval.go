// Package retrieval gathers legal-document context for a query from one or
// more pluggable sources and formats it for council consumption.
package retrieval

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"thailaw-council/pkg/logger"
)

// Chunk is one retrieved excerpt of source material, used both as injected
// context and as a citation.
type Chunk struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Source is a single knowledge source. Implementations return chunks ordered
// best-first; an empty slice is a valid result.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Chunk, error)
}

// Aggregator fans a query out to all configured sources, merges their chunks
// relevance-descending, and truncates to MaxChunks. Source failures are
// absorbed: retrieval degrades to fewer (possibly zero) chunks, never to an
// error.
type Aggregator struct {
	sources   []Source
	maxChunks int
	cache     *resultCache
}

// NewAggregator creates an Aggregator over the given sources. cacheTTL <= 0
// disables caching.
func NewAggregator(sources []Source, maxChunks int, cacheTTL time.Duration) *Aggregator {
	if maxChunks <= 0 {
		maxChunks = 10
	}

	var cache *resultCache
	if cacheTTL > 0 {
		cache = newResultCache(cacheTTL)
	}

	return &Aggregator{
		sources:   sources,
		maxChunks: maxChunks,
		cache:     cache,
	}
}

// Retrieve returns up to MaxChunks context chunks for the query, best first.
// All sources are queried in parallel with the caller's context; a source
// that errors contributes nothing.
func (a *Aggregator) Retrieve(ctx context.Context, query string) []Chunk {
	if a.cache != nil {
		if chunks, ok := a.cache.Get(query); ok {
			return chunks
		}
	}

	var (
		mu     sync.Mutex
		merged []Chunk
		wg     sync.WaitGroup
	)

	for _, src := range a.sources {
		src := src
		wg.Add(1)
		go func() {
			defer wg.Done()
			chunks, err := src.Search(ctx, query, a.maxChunks)
			if err != nil {
				logger.Warn("retrieval source failed",
					zap.String("source", src.Name()),
					zap.Error(err))
				return
			}
			mu.Lock()
			merged = append(merged, chunks...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Stable sort keeps source order for equal scores.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if len(merged) > a.maxChunks {
		merged = merged[:a.maxChunks]
	}

	if a.cache != nil {
		a.cache.Set(query, merged)
	}

	return merged
}
