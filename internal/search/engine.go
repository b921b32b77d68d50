// Package search ranks indexed commits against free-text queries by
// cosine similarity.
//
// Queries are tokenized and vectorized exactly like indexed documents,
// under the vocabulary snapshot the store currently holds. Ranking is
// fully deterministic: score descending, then commit recency, then hash.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	ferrors "github.com/flowcheck/flowcheck/internal/errors"
	"github.com/flowcheck/flowcheck/internal/store"
	"github.com/flowcheck/flowcheck/internal/vectorizer"
)

// DefaultTopK is the result count when the caller does not specify one.
const DefaultTopK = 5

// Result is one ranked search hit.
type Result struct {
	CommitHash   string    `json:"commit_hash"`
	Message      string    `json:"message"`
	Score        float64   `json:"score"`
	Timestamp    time.Time `json:"timestamp"`
	MatchedTerms []string  `json:"matched_terms"`
}

// Options configures an Engine.
type Options struct {
	// CacheSize is the number of cached query results. <= 0 disables
	// caching.
	CacheSize int
	Logger    *slog.Logger
}

// Engine answers queries against one repository's vector store.
type Engine struct {
	store  store.VectorStore
	cache  *lru.Cache[string, []Result]
	logger *slog.Logger
}

// NewEngine creates a search engine over a store.
func NewEngine(s store.VectorStore, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{store: s, logger: logger}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, []Result](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

// Query returns at most topK commits ranked by cosine similarity against
// the query text. topK <= 0 is clamped to 1. An empty index, an empty
// query, or a query of entirely unknown terms yields an empty result
// list, never an error.
func (e *Engine) Query(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 1
	}

	state, err := e.store.LoadState(ctx)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return nil, ferrors.CorruptIndexError("index state is unreadable", err)
		}
		return nil, ferrors.Wrap(ferrors.ErrCodeSearchFailed, err)
	}
	if state == nil {
		return []Result{}, nil
	}

	queryVec := state.Vocab.Transform(vectorizer.Tokenize(query))
	if queryVec.IsEmpty() {
		return []Result{}, nil
	}

	// Cached entries are keyed by the exact index state that produced
	// them; stale entries simply age out of the LRU.
	cacheKey := fmt.Sprintf("%d|%s|%d|%s", state.Epoch, state.Frontier, topK, query)
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			return cached, nil
		}
	}

	termsByID := state.Vocab.TermsByID()

	// The store scans newest-first with hash tiebreak; a stable sort by
	// score alone preserves that order for equal scores.
	var results []Result
	err = e.store.Scan(ctx, func(c store.IndexedCommit) error {
		score := queryVec.Dot(c.Vector)
		if score <= 0 {
			return nil
		}
		results = append(results, Result{
			CommitHash:   c.Hash,
			Message:      c.Message,
			Score:        score,
			Timestamp:    c.Timestamp,
			MatchedTerms: matchedTerms(queryVec, c.Vector, termsByID),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return nil, ferrors.CorruptIndexError("stored vectors are unreadable", err)
		}
		return nil, ferrors.Wrap(ferrors.ErrCodeSearchFailed, err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	if results == nil {
		results = []Result{}
	}

	if e.cache != nil {
		e.cache.Add(cacheKey, results)
	}

	e.logger.Debug("search_complete",
		slog.String("query", query),
		slog.Int("results", len(results)))
	return results, nil
}

// matchedTerms returns the terms carrying non-zero weight in both the
// query and the candidate vector, sorted for deterministic output.
func matchedTerms(query, doc vectorizer.SparseVector, termsByID map[int]string) []string {
	var terms []string
	for id := range query {
		if _, ok := doc[id]; ok {
			terms = append(terms, termsByID[id])
		}
	}
	sort.Strings(terms)
	return terms
}
