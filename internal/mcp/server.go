package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/flowcheck/flowcheck/internal/guardian"
	"github.com/flowcheck/flowcheck/internal/index"
	"github.com/flowcheck/flowcheck/internal/repo"
	"github.com/flowcheck/flowcheck/internal/rules"
	"github.com/flowcheck/flowcheck/internal/watcher"
	"github.com/flowcheck/flowcheck/pkg/version"
)

// RepoResolver resolves a repository path to its wired handle. The
// production implementation is repo.Manager, which caches handles by
// project root.
type RepoResolver interface {
	Resolve(path string) (*repo.Handle, error)
}

// Server is the MCP server for flowcheck. It exposes commit-history
// indexing, semantic search, flow-health monitoring, and text scanning
// to AI clients over JSON-RPC. Every tool accepts an optional repo_path
// and operates on that repository's own index and rules; stdout carries
// the protocol exclusively, all diagnostics go through the structured
// logger.
type Server struct {
	mcp      *mcp.Server
	resolver RepoResolver
	scanner  *guardian.Scanner
	repoPath string
	logger   *slog.Logger
}

// NewServer creates an MCP server. defaultRepoPath is the repository
// used when a tool call omits repo_path.
func NewServer(resolver RepoResolver, scanner *guardian.Scanner, defaultRepoPath string) (*Server, error) {
	if resolver == nil {
		return nil, errors.New("repository resolver is required")
	}
	if defaultRepoPath == "" {
		defaultRepoPath = "."
	}

	s := &Server{
		resolver: resolver,
		scanner:  scanner,
		repoPath: defaultRepoPath,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "flowcheck",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// resolve maps a tool's repo_path argument to a handle, defaulting to
// the server's repository when the argument is empty.
func (s *Server) resolve(repoPath string) (*repo.Handle, error) {
	if repoPath == "" {
		repoPath = s.repoPath
	}
	return s.resolver.Resolve(repoPath)
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_history",
		Description: "Index a repository's commit history for semantic search. Use mode 'full' to rebuild from scratch, 'incremental' to pick up commits since the last run.",
	}, s.mcpIndexHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_history",
		Description: "Search indexed commit history by meaning, not just keywords. Finds commits conceptually related to the query, ranked by relevance.",
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Check whether the commit index exists, how many commits it covers, and where its frontier sits. Use before searching.",
	}, s.mcpIndexStatusHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_flow_state",
		Description: "Get a repository's current flow health: branch, time since last commit, uncommitted change size, branch age, and an ok/warning/danger status.",
	}, s.mcpFlowStateHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_recommendations",
		Description: "Get actionable recommendations for improving commit flow, based on the repository's current flow state.",
	}, s.mcpRecommendationsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "set_rules",
		Description: "Tune the flow-health thresholds for a repository: max_minutes_without_commit and max_lines_uncommitted. Changes persist across sessions.",
	}, s.mcpSetRulesHandler)

	if s.scanner != nil {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        "scan_text",
			Description: "Scan text for secrets, PII, and prompt-injection patterns before sharing it. Returns a sanitized copy and a risk assessment.",
		}, s.mcpScanHandler)
	}

	s.logger.Info("MCP tools registered")
}

// IndexInput defines the input schema for the index_history tool.
type IndexInput struct {
	RepoPath string `json:"repo_path,omitempty" jsonschema:"path to the repository, defaults to the server's repository"`
	Mode     string `json:"mode,omitempty" jsonschema:"indexing mode: full or incremental (default incremental)"`
}

// IndexOutput defines the output schema for the index_history tool.
type IndexOutput struct {
	IndexedCount   int      `json:"indexed_count" jsonschema:"number of commits indexed in this pass"`
	SkippedHashes  []string `json:"skipped_hashes" jsonschema:"hashes of commits that failed extraction and were skipped"`
	FrontierHash   string   `json:"frontier_hash" jsonschema:"last contiguously indexed commit hash"`
	Epoch          int      `json:"epoch" jsonschema:"vocabulary epoch of the index"`
	VocabularySize int      `json:"vocabulary_size" jsonschema:"number of terms in the vocabulary"`
	DurationMS     int64    `json:"duration_ms" jsonschema:"wall time of the pass in milliseconds"`
}

func (s *Server) mcpIndexHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexInput) (
	*mcp.CallToolResult,
	IndexOutput,
	error,
) {
	h, err := s.resolve(input.RepoPath)
	if err != nil {
		return nil, IndexOutput{}, MapError(err)
	}

	var result *index.Result
	switch input.Mode {
	case "full":
		result, err = h.Coordinator.FullIndex(ctx)
	case "", "incremental":
		result, err = h.Coordinator.IncrementalIndex(ctx)
	default:
		return nil, IndexOutput{}, NewInvalidParamsError(
			fmt.Sprintf("unknown mode %q (supported: full, incremental)", input.Mode))
	}
	if err != nil {
		return nil, IndexOutput{}, MapError(err)
	}

	skipped := result.SkippedHashes
	if skipped == nil {
		skipped = []string{}
	}
	return nil, IndexOutput{
		IndexedCount:   result.IndexedCount,
		SkippedHashes:  skipped,
		FrontierHash:   result.FrontierHash,
		Epoch:          result.Epoch,
		VocabularySize: result.VocabularySize,
		DurationMS:     result.Duration.Milliseconds(),
	}, nil
}

// SearchInput defines the input schema for the search_history tool.
type SearchInput struct {
	RepoPath string `json:"repo_path,omitempty" jsonschema:"path to the repository, defaults to the server's repository"`
	Query    string `json:"query" jsonschema:"free-text query describing the change you are looking for"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 5"`
}

// SearchOutput defines the output schema for the search_history tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"ranked list of matching commits"`
}

// SearchResultOutput is one ranked commit.
type SearchResultOutput struct {
	CommitHash   string   `json:"commit_hash" jsonschema:"full commit hash"`
	Message      string   `json:"message" jsonschema:"commit message"`
	Score        float64  `json:"score" jsonschema:"cosine similarity score between 0 and 1"`
	Timestamp    string   `json:"timestamp" jsonschema:"commit timestamp in RFC 3339"`
	MatchedTerms []string `json:"matched_terms" jsonschema:"query terms that matched this commit"`
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	h, err := s.resolve(input.RepoPath)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	topK := h.Config.Search.TopK
	if input.TopK > 0 {
		topK = input.TopK
	}

	results, err := h.Engine.Query(ctx, input.Query, topK)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	output := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		matched := r.MatchedTerms
		if matched == nil {
			matched = []string{}
		}
		output.Results = append(output.Results, SearchResultOutput{
			CommitHash:   r.CommitHash,
			Message:      r.Message,
			Score:        r.Score,
			Timestamp:    r.Timestamp.Format(time.RFC3339),
			MatchedTerms: matched,
		})
	}
	return nil, output, nil
}

// IndexStatusInput defines the input schema for index_status.
type IndexStatusInput struct {
	RepoPath string `json:"repo_path,omitempty" jsonschema:"path to the repository, defaults to the server's repository"`
}

// IndexStatusOutput defines the output schema for index_status.
type IndexStatusOutput struct {
	State          string `json:"state" jsonschema:"index state: empty, idle, or indexing"`
	IndexedCount   int    `json:"indexed_count" jsonschema:"number of indexed commits"`
	FrontierHash   string `json:"frontier_hash,omitempty" jsonschema:"last contiguously indexed commit hash"`
	Epoch          int    `json:"epoch" jsonschema:"vocabulary epoch"`
	VocabularySize int    `json:"vocabulary_size" jsonschema:"number of terms in the vocabulary"`
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	h, err := s.resolve(input.RepoPath)
	if err != nil {
		return nil, nil, MapError(err)
	}

	status, err := h.Coordinator.Status(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, &IndexStatusOutput{
		State:          status.State,
		IndexedCount:   status.IndexedCount,
		FrontierHash:   status.FrontierHash,
		Epoch:          status.Epoch,
		VocabularySize: status.VocabularySize,
	}, nil
}

// FlowStateInput defines the input schema for get_flow_state.
type FlowStateInput struct {
	RepoPath string `json:"repo_path,omitempty" jsonschema:"path to the repository, defaults to the server's repository"`
}

// FlowStateOutput defines the output schema for get_flow_state.
type FlowStateOutput struct {
	BranchName             string `json:"branch_name" jsonschema:"currently checked out branch"`
	MinutesSinceLastCommit int    `json:"minutes_since_last_commit" jsonschema:"minutes elapsed since the last commit"`
	UncommittedFiles       int    `json:"uncommitted_files" jsonschema:"number of files with uncommitted changes"`
	UncommittedLines       int    `json:"uncommitted_lines" jsonschema:"total uncommitted insertions plus deletions"`
	BranchAgeDays          int    `json:"branch_age_days" jsonschema:"days since the branch's first commit"`
	BehindMainByCommits    int    `json:"behind_main_by_commits" jsonschema:"commits on main not reachable from HEAD"`
	Status                 string `json:"status" jsonschema:"flow health: ok, warning, or danger"`
}

func (s *Server) mcpFlowStateHandler(ctx context.Context, _ *mcp.CallToolRequest, input FlowStateInput) (
	*mcp.CallToolResult,
	*FlowStateOutput,
	error,
) {
	state, err := s.flowState(ctx, input.RepoPath)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, flowStateOutput(state), nil
}

// RecommendationsInput defines the input schema for get_recommendations.
type RecommendationsInput struct {
	RepoPath string `json:"repo_path,omitempty" jsonschema:"path to the repository, defaults to the server's repository"`
}

// RecommendationsOutput defines the output schema for get_recommendations.
type RecommendationsOutput struct {
	Status          string   `json:"status" jsonschema:"flow health: ok, warning, or danger"`
	Recommendations []string `json:"recommendations" jsonschema:"actionable suggestions for the current flow state"`
}

func (s *Server) mcpRecommendationsHandler(ctx context.Context, _ *mcp.CallToolRequest, input RecommendationsInput) (
	*mcp.CallToolResult,
	*RecommendationsOutput,
	error,
) {
	h, err := s.resolve(input.RepoPath)
	if err != nil {
		return nil, nil, MapError(err)
	}

	metrics, err := h.Worktree.Worktree(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	state := h.Rules.Evaluate(metrics)

	return nil, &RecommendationsOutput{
		Status:          state.Status,
		Recommendations: h.Rules.Recommendations(state),
	}, nil
}

// SetRulesInput defines the input schema for set_rules. Omitted fields
// keep their current value.
type SetRulesInput struct {
	RepoPath                string `json:"repo_path,omitempty" jsonschema:"path to the repository, defaults to the server's repository"`
	MaxMinutesWithoutCommit *int   `json:"max_minutes_without_commit,omitempty" jsonschema:"minutes without a commit before a warning, must be positive"`
	MaxLinesUncommitted     *int   `json:"max_lines_uncommitted,omitempty" jsonschema:"uncommitted lines before a warning, must be positive"`
}

// SetRulesOutput defines the output schema for set_rules.
type SetRulesOutput struct {
	Thresholds rules.Thresholds `json:"thresholds" jsonschema:"thresholds now in effect"`
	Message    string           `json:"message" jsonschema:"confirmation of the update"`
}

func (s *Server) mcpSetRulesHandler(_ context.Context, _ *mcp.CallToolRequest, input SetRulesInput) (
	*mcp.CallToolResult,
	*SetRulesOutput,
	error,
) {
	h, err := s.resolve(input.RepoPath)
	if err != nil {
		return nil, nil, MapError(err)
	}

	updated, err := h.Rules.Update(rules.Patch{
		MaxMinutesWithoutCommit: input.MaxMinutesWithoutCommit,
		MaxLinesUncommitted:     input.MaxLinesUncommitted,
	})
	if err != nil {
		return nil, nil, MapError(err)
	}

	return nil, &SetRulesOutput{
		Thresholds: updated,
		Message:    "flow rules updated",
	}, nil
}

// flowState measures the working tree and evaluates it against the
// repository's thresholds.
func (s *Server) flowState(ctx context.Context, repoPath string) (rules.FlowState, error) {
	h, err := s.resolve(repoPath)
	if err != nil {
		return rules.FlowState{}, err
	}

	metrics, err := h.Worktree.Worktree(ctx)
	if err != nil {
		return rules.FlowState{}, err
	}
	return h.Rules.Evaluate(metrics), nil
}

func flowStateOutput(state rules.FlowState) *FlowStateOutput {
	return &FlowStateOutput{
		BranchName:             state.BranchName,
		MinutesSinceLastCommit: state.MinutesSinceLastCommit,
		UncommittedFiles:       state.UncommittedFiles,
		UncommittedLines:       state.UncommittedLines,
		BranchAgeDays:          state.BranchAgeDays,
		BehindMainByCommits:    state.BehindMainByCommits,
		Status:                 state.Status,
	}
}

// ScanInput defines the input schema for the scan_text tool.
type ScanInput struct {
	Text string `json:"text" jsonschema:"the text to scan for secrets, PII, and injection patterns"`
}

func (s *Server) mcpScanHandler(_ context.Context, _ *mcp.CallToolRequest, input ScanInput) (
	*mcp.CallToolResult,
	*guardian.Report,
	error,
) {
	if input.Text == "" {
		return nil, nil, NewInvalidParamsError("text parameter is required")
	}
	report := s.scanner.Scan(input.Text)
	return nil, &report, nil
}

// Serve starts the server on the specified transport, blocking until the
// context is canceled. When a ref watcher is supplied, history changes in
// the default repository trigger incremental indexing in the background.
func (s *Server) Serve(ctx context.Context, transport string, refs *watcher.RefWatcher) error {
	s.logger.Info("starting MCP server",
		slog.String("transport", transport),
		slog.String("repo", s.repoPath))

	if refs != nil {
		go s.watchRefs(ctx, refs)
	}

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// watchRefs runs incremental indexing whenever the watcher reports new
// commits. Failures are logged, never fatal: the next ref update retries.
func (s *Server) watchRefs(ctx context.Context, refs *watcher.RefWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-refs.Output():
			if !ok {
				return
			}
			h, err := s.resolve("")
			if err != nil {
				s.logger.Warn("background_index_failed", slog.String("error", err.Error()))
				continue
			}
			result, err := h.Coordinator.IncrementalIndex(ctx)
			if err != nil {
				s.logger.Warn("background_index_failed", slog.String("error", err.Error()))
				continue
			}
			if result.IndexedCount > 0 {
				s.logger.Info("background_index_complete",
					slog.Int("indexed", result.IndexedCount),
					slog.String("frontier", result.FrontierHash))
			}
		}
	}
}
