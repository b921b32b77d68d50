package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcheck/flowcheck/internal/config"
	ferrors "github.com/flowcheck/flowcheck/internal/errors"
	"github.com/flowcheck/flowcheck/internal/gitlog"
	"github.com/flowcheck/flowcheck/internal/guardian"
	"github.com/flowcheck/flowcheck/internal/index"
	"github.com/flowcheck/flowcheck/internal/repo"
	"github.com/flowcheck/flowcheck/internal/rules"
	"github.com/flowcheck/flowcheck/internal/search"
	"github.com/flowcheck/flowcheck/internal/store"
)

// fakeResolver maps paths to pre-built handles; unknown paths fail the
// way the real manager does for a directory without a git work tree.
type fakeResolver struct {
	handles map[string]*repo.Handle
}

func (f *fakeResolver) Resolve(path string) (*repo.Handle, error) {
	if h, ok := f.handles[path]; ok {
		return h, nil
	}
	return nil, ferrors.NotARepositoryError(path, nil)
}

func newTestHandle(t *testing.T, commits []gitlog.Commit) (*repo.Handle, *gitlog.MemoryExtractor) {
	t.Helper()

	s, err := store.NewSQLiteStore("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	extractor := gitlog.NewMemoryExtractorFromCommits(commits)
	engine, err := search.NewEngine(s, search.Options{CacheSize: 8})
	require.NoError(t, err)

	return &repo.Handle{
		Root:        "/tmp/repo",
		Config:      config.NewConfig(),
		Store:       s,
		Coordinator: index.NewCoordinator(s, extractor, index.Options{Workers: 1}),
		Engine:      engine,
		Rules:       rules.NewEngine("", rules.DefaultThresholds()),
		Worktree:    extractor,
	}, extractor
}

func newTestServer(t *testing.T, commits []gitlog.Commit) (*Server, *gitlog.MemoryExtractor) {
	t.Helper()

	h, extractor := newTestHandle(t, commits)
	srv, err := NewServer(&fakeResolver{handles: map[string]*repo.Handle{"/tmp/repo": h}}, guardian.NewScanner(), "/tmp/repo")
	require.NoError(t, err)
	return srv, extractor
}

func historyFixture() []gitlog.Commit {
	return []gitlog.Commit{
		{Hash: "aaa", Message: "fix oauth token bug", Timestamp: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		{Hash: "bbb", Message: "refactor token rotation", Timestamp: time.Date(2026, 5, 1, 0, 1, 0, 0, time.UTC)},
		{Hash: "ccc", Message: "update docs", Timestamp: time.Date(2026, 5, 1, 0, 2, 0, 0, time.UTC)},
	}
}

func TestIndexHandler_FullMode(t *testing.T) {
	srv, _ := newTestServer(t, historyFixture())

	_, output, err := srv.mcpIndexHandler(context.Background(), nil, IndexInput{Mode: "full"})
	require.NoError(t, err)

	assert.Equal(t, 3, output.IndexedCount)
	assert.Equal(t, "ccc", output.FrontierHash)
	assert.Equal(t, 1, output.Epoch)
	assert.NotNil(t, output.SkippedHashes)
}

func TestIndexHandler_IncrementalWithoutIndexFails(t *testing.T) {
	srv, _ := newTestServer(t, historyFixture())

	_, _, err := srv.mcpIndexHandler(context.Background(), nil, IndexInput{Mode: "incremental"})
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeEmptyIndex, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "index --full")
}

func TestIndexHandler_UnknownModeRejected(t *testing.T) {
	srv, _ := newTestServer(t, historyFixture())

	_, _, err := srv.mcpIndexHandler(context.Background(), nil, IndexInput{Mode: "turbo"})
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestHandlers_RouteByRepoPath(t *testing.T) {
	// Given: two repositories with disjoint histories behind one server
	ctx := context.Background()
	first, _ := newTestHandle(t, historyFixture())
	second, _ := newTestHandle(t, []gitlog.Commit{
		{Hash: "zzz", Message: "add payment webhook", Timestamp: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
	})
	srv, err := NewServer(&fakeResolver{handles: map[string]*repo.Handle{
		"/tmp/repo":  first,
		"/tmp/other": second,
	}}, nil, "/tmp/repo")
	require.NoError(t, err)

	// When: each repository is indexed through its repo_path
	_, output, err := srv.mcpIndexHandler(ctx, nil, IndexInput{Mode: "full"})
	require.NoError(t, err)
	assert.Equal(t, 3, output.IndexedCount)

	_, output, err = srv.mcpIndexHandler(ctx, nil, IndexInput{RepoPath: "/tmp/other", Mode: "full"})
	require.NoError(t, err)
	assert.Equal(t, 1, output.IndexedCount)

	// Then: searches stay scoped to the addressed repository
	_, results, err := srv.mcpSearchHandler(ctx, nil, SearchInput{RepoPath: "/tmp/other", Query: "payment webhook"})
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	assert.Equal(t, "zzz", results.Results[0].CommitHash)

	_, results, err = srv.mcpSearchHandler(ctx, nil, SearchInput{Query: "payment webhook"})
	require.NoError(t, err)
	assert.Empty(t, results.Results)
}

func TestHandlers_UnknownRepoPathRejected(t *testing.T) {
	srv, _ := newTestServer(t, historyFixture())

	_, _, err := srv.mcpIndexStatusHandler(context.Background(), nil, IndexStatusInput{RepoPath: "/nowhere"})
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "/nowhere")
}

func TestSearchHandler_ReturnsRankedResults(t *testing.T) {
	srv, _ := newTestServer(t, historyFixture())
	ctx := context.Background()

	_, _, err := srv.mcpIndexHandler(ctx, nil, IndexInput{Mode: "full"})
	require.NoError(t, err)

	_, output, err := srv.mcpSearchHandler(ctx, nil, SearchInput{Query: "oauth token"})
	require.NoError(t, err)

	require.Len(t, output.Results, 2)
	assert.Equal(t, "aaa", output.Results[0].CommitHash)
	assert.Contains(t, output.Results[0].MatchedTerms, "oauth")
}

func TestSearchHandler_EmptyQueryRejected(t *testing.T) {
	srv, _ := newTestServer(t, historyFixture())

	_, _, err := srv.mcpSearchHandler(context.Background(), nil, SearchInput{})
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestSearchHandler_UnindexedRepoReturnsEmpty(t *testing.T) {
	srv, _ := newTestServer(t, historyFixture())

	_, output, err := srv.mcpSearchHandler(context.Background(), nil, SearchInput{Query: "oauth"})
	require.NoError(t, err)
	assert.Empty(t, output.Results)
}

func TestIndexStatusHandler(t *testing.T) {
	srv, _ := newTestServer(t, historyFixture())
	ctx := context.Background()

	_, status, err := srv.mcpIndexStatusHandler(ctx, nil, IndexStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, index.StateEmpty, status.State)

	_, _, err = srv.mcpIndexHandler(ctx, nil, IndexInput{Mode: "full"})
	require.NoError(t, err)

	_, status, err = srv.mcpIndexStatusHandler(ctx, nil, IndexStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, index.StateIdle, status.State)
	assert.Equal(t, 3, status.IndexedCount)
	assert.Equal(t, "ccc", status.FrontierHash)
}

func TestFlowStateHandler_ReportsWorktreeHealth(t *testing.T) {
	srv, extractor := newTestServer(t, historyFixture())
	extractor.SetWorktree(gitlog.WorktreeMetrics{
		BranchName:             "feature/api",
		MinutesSinceLastCommit: 95,
		UncommittedFiles:       3,
		UncommittedLines:       120,
	})

	_, state, err := srv.mcpFlowStateHandler(context.Background(), nil, FlowStateInput{})
	require.NoError(t, err)

	assert.Equal(t, "feature/api", state.BranchName)
	assert.Equal(t, 95, state.MinutesSinceLastCommit)
	assert.Equal(t, 120, state.UncommittedLines)
	assert.Equal(t, rules.StatusDanger, state.Status)
}

func TestRecommendationsHandler_HealthyRepo(t *testing.T) {
	srv, extractor := newTestServer(t, historyFixture())
	extractor.SetWorktree(gitlog.WorktreeMetrics{BranchName: "main", MinutesSinceLastCommit: 5})

	_, output, err := srv.mcpRecommendationsHandler(context.Background(), nil, RecommendationsInput{})
	require.NoError(t, err)

	assert.Equal(t, rules.StatusOK, output.Status)
	require.Len(t, output.Recommendations, 1)
	assert.Contains(t, output.Recommendations[0], "healthy")
}

func TestRecommendationsHandler_SurfacesNudges(t *testing.T) {
	srv, extractor := newTestServer(t, historyFixture())
	extractor.SetWorktree(gitlog.WorktreeMetrics{
		BranchName:             "feature/big",
		MinutesSinceLastCommit: 125,
		UncommittedLines:       600,
	})

	_, output, err := srv.mcpRecommendationsHandler(context.Background(), nil, RecommendationsInput{})
	require.NoError(t, err)

	assert.Equal(t, rules.StatusDanger, output.Status)
	require.Len(t, output.Recommendations, 2)
	assert.Contains(t, output.Recommendations[0], "checkpoint commit")
	assert.Contains(t, output.Recommendations[1], "600 uncommitted lines")
}

func TestSetRulesHandler_UpdatesThresholds(t *testing.T) {
	srv, extractor := newTestServer(t, historyFixture())
	extractor.SetWorktree(gitlog.WorktreeMetrics{MinutesSinceLastCommit: 45})
	ctx := context.Background()

	_, state, err := srv.mcpFlowStateHandler(ctx, nil, FlowStateInput{})
	require.NoError(t, err)
	assert.Equal(t, rules.StatusOK, state.Status)

	minutes := 20
	_, output, err := srv.mcpSetRulesHandler(ctx, nil, SetRulesInput{MaxMinutesWithoutCommit: &minutes})
	require.NoError(t, err)
	assert.Equal(t, 20, output.Thresholds.MaxMinutesWithoutCommit)
	assert.Equal(t, 500, output.Thresholds.MaxLinesUncommitted)

	_, state, err = srv.mcpFlowStateHandler(ctx, nil, FlowStateInput{})
	require.NoError(t, err)
	assert.Equal(t, rules.StatusDanger, state.Status)
}

func TestSetRulesHandler_RejectsEmptyAndNonPositive(t *testing.T) {
	srv, _ := newTestServer(t, historyFixture())
	ctx := context.Background()

	_, _, err := srv.mcpSetRulesHandler(ctx, nil, SetRulesInput{})
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)

	lines := -10
	_, _, err = srv.mcpSetRulesHandler(ctx, nil, SetRulesInput{MaxLinesUncommitted: &lines})
	require.Error(t, err)
	mcpErr, ok = err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestScanHandler_DetectsSecrets(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	_, report, err := srv.mcpScanHandler(context.Background(), nil, ScanInput{
		Text: "api_key = sk_live_abcdefghijklmnop1234",
	})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Sanitization.SecretsDetected)
}

func TestScanHandler_EmptyTextRejected(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	_, _, err := srv.mcpScanHandler(context.Background(), nil, ScanInput{})
	require.Error(t, err)
}

func TestMapError_TranslatesFlowErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"consistency", ferrors.ConsistencyError("frontier gone", nil), ErrCodeConsistency},
		{"corrupt", ferrors.CorruptIndexError("bad state", nil), ErrCodeCorruptIndex},
		{"already indexing", ferrors.AlreadyIndexingError("/repo"), ErrCodeAlreadyIndexing},
		{"validation", ferrors.ValidationError("bad input", nil), ErrCodeInvalidParams},
		{"not a repository", ferrors.NotARepositoryError("/nowhere", nil), ErrCodeInvalidParams},
		{"invalid config", ferrors.ConfigInvalidError("bad yaml", nil), ErrCodeInvalidParams},
		{"plain error", assert.AnError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			require.NotNil(t, mapped)
			assert.Equal(t, tt.expected, mapped.Code)
		})
	}
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	mapped := MapError(ferrors.ConsistencyError("frontier gone", nil))
	assert.Contains(t, mapped.Message, "flowcheck index --full")
}

func TestNewServer_RequiresResolver(t *testing.T) {
	_, err := NewServer(nil, nil, "")
	assert.Error(t, err)
}
