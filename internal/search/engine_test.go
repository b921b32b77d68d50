package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcheck/flowcheck/internal/gitlog"
	"github.com/flowcheck/flowcheck/internal/index"
	"github.com/flowcheck/flowcheck/internal/store"
)

// indexedEngine builds a real store via the coordinator so queries run
// against the same state production code produces.
func indexedEngine(t *testing.T, messages []string) (*Engine, store.VectorStore) {
	t.Helper()

	s, err := store.NewSQLiteStore("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	commits := make([]gitlog.Commit, len(messages))
	for i, msg := range messages {
		commits[i] = gitlog.Commit{
			Hash:      []string{"aaa", "bbb", "ccc", "ddd", "eee", "fff"}[i],
			Message:   msg,
			Timestamp: time.Date(2026, 4, 1, 0, i, 0, 0, time.UTC),
		}
	}
	coord := index.NewCoordinator(s, gitlog.NewMemoryExtractorFromCommits(commits), index.Options{Workers: 2})
	_, err = coord.FullIndex(context.Background())
	require.NoError(t, err)

	e, err := NewEngine(s, Options{CacheSize: 16})
	require.NoError(t, err)
	return e, s
}

func TestQuery_RanksBySharedTerms(t *testing.T) {
	// The classic three-commit corpus.
	e, _ := indexedEngine(t, []string{
		"fix oauth token bug",
		"refactor token rotation",
		"update docs",
	})

	results, err := e.Query(context.Background(), "oauth", 5)
	require.NoError(t, err)

	// Only the commit containing "oauth" scores; "update docs" shares
	// nothing and is excluded.
	require.Len(t, results, 1)
	assert.Equal(t, "aaa", results[0].CommitHash)
	assert.Equal(t, []string{"oauth"}, results[0].MatchedTerms)
	assert.Positive(t, results[0].Score)
}

func TestQuery_MultiTermRanking(t *testing.T) {
	e, _ := indexedEngine(t, []string{
		"fix oauth token bug",
		"refactor token rotation",
		"update docs",
	})

	results, err := e.Query(context.Background(), "oauth token", 5)
	require.NoError(t, err)

	// Both token-bearing commits match; the oauth commit ranks first.
	require.Len(t, results, 2)
	assert.Equal(t, "aaa", results[0].CommitHash)
	assert.Equal(t, "bbb", results[1].CommitHash)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, []string{"oauth", "token"}, results[0].MatchedTerms)
	assert.Equal(t, []string{"token"}, results[1].MatchedTerms)
}

func TestQuery_TopKLimitsResults(t *testing.T) {
	e, _ := indexedEngine(t, []string{
		"fix cache bug",
		"fix cache invalidation",
		"fix cache warmup",
	})

	results, err := e.Query(context.Background(), "cache", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestQuery_TopKZeroClampedToOne(t *testing.T) {
	e, _ := indexedEngine(t, []string{
		"fix cache bug",
		"fix cache invalidation",
	})

	results, err := e.Query(context.Background(), "cache", 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = e.Query(context.Background(), "cache", -7)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestQuery_TiesBreakByRecencyThenHash(t *testing.T) {
	// Two commits with identical text score identically; the newer one
	// ranks first.
	e, _ := indexedEngine(t, []string{
		"fix cache bug",
		"fix cache bug",
	})

	results, err := e.Query(context.Background(), "cache", 5)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "bbb", results[0].CommitHash)
	assert.Equal(t, "aaa", results[1].CommitHash)
}

func TestQuery_UnknownTermsReturnEmptyNotError(t *testing.T) {
	e, _ := indexedEngine(t, []string{"fix oauth bug"})

	results, err := e.Query(context.Background(), "kubernetes helm chart", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQuery_StopwordOnlyQueryReturnsEmpty(t *testing.T) {
	e, _ := indexedEngine(t, []string{"fix oauth bug"})

	results, err := e.Query(context.Background(), "the and of", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQuery_EmptyIndexReturnsEmpty(t *testing.T) {
	s, err := store.NewSQLiteStore("", nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	e, err := NewEngine(s, Options{})
	require.NoError(t, err)

	results, err := e.Query(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQuery_DeterministicAcrossRuns(t *testing.T) {
	e, _ := indexedEngine(t, []string{
		"fix oauth token bug",
		"refactor token rotation",
		"add token cache",
	})

	first, err := e.Query(context.Background(), "token", 5)
	require.NoError(t, err)
	second, err := e.Query(context.Background(), "token", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestQuery_IncrementalCommitsAreSearchable(t *testing.T) {
	// Given: ten indexed commits
	s, err := store.NewSQLiteStore("", nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	commits := make([]gitlog.Commit, 10)
	for i := range commits {
		commits[i] = gitlog.Commit{
			Hash:      string(rune('a'+i)) + "00",
			Message:   "routine maintenance work",
			Timestamp: time.Date(2026, 4, 1, 0, i, 0, 0, time.UTC),
		}
	}
	ex := gitlog.NewMemoryExtractorFromCommits(commits)
	coord := index.NewCoordinator(s, ex, index.Options{Workers: 2})
	_, err = coord.FullIndex(context.Background())
	require.NoError(t, err)

	// When: two commits with a brand-new term arrive incrementally
	ex.Append(
		gitlog.Record{Commit: gitlog.Commit{
			Hash: "k00", Message: "add grpc gateway",
			Timestamp: time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC),
		}},
		gitlog.Record{Commit: gitlog.Commit{
			Hash: "l00", Message: "fix grpc deadline",
			Timestamp: time.Date(2026, 4, 1, 1, 1, 0, 0, time.UTC),
		}},
	)
	_, err = coord.IncrementalIndex(context.Background())
	require.NoError(t, err)

	// Then: the new term surfaces exactly the new commits
	e, err := NewEngine(s, Options{})
	require.NoError(t, err)
	results, err := e.Query(context.Background(), "grpc", 5)
	require.NoError(t, err)

	require.Len(t, results, 2)
	hashes := []string{results[0].CommitHash, results[1].CommitHash}
	assert.Contains(t, hashes, "k00")
	assert.Contains(t, hashes, "l00")
}

func TestQuery_CacheServesRepeatedQueries(t *testing.T) {
	e, _ := indexedEngine(t, []string{"fix oauth bug"})
	ctx := context.Background()

	first, err := e.Query(ctx, "oauth", 5)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Cached path returns the identical slice contents.
	second, err := e.Query(ctx, "oauth", 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
