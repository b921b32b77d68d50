package gitlog

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// WorktreeMetrics captures the working-tree health signals for one
// repository at a point in time.
type WorktreeMetrics struct {
	BranchName             string `json:"branch_name"`
	MinutesSinceLastCommit int    `json:"minutes_since_last_commit"`
	UncommittedFiles       int    `json:"uncommitted_files"`
	UncommittedLines       int    `json:"uncommitted_lines"`
	BranchAgeDays          int    `json:"branch_age_days"`
	BehindMainByCommits    int    `json:"behind_main_by_commits"`
}

// WorktreeAnalyzer reports working-tree metrics for one repository.
type WorktreeAnalyzer interface {
	Worktree(ctx context.Context) (WorktreeMetrics, error)
}

var _ WorktreeAnalyzer = (*GitExtractor)(nil)

// Worktree collects working-tree metrics. Individual probes that fail
// (detached head, empty history, missing main branch) degrade to zero
// values rather than failing the whole analysis.
func (g *GitExtractor) Worktree(ctx context.Context) (WorktreeMetrics, error) {
	m := WorktreeMetrics{BranchName: "HEAD"}

	if out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		if branch := strings.TrimSpace(string(out)); branch != "" {
			m.BranchName = branch
		}
	}

	now := time.Now()
	if ts, ok := g.commitTime(ctx, "log", "-1", "--format=%at"); ok {
		m.MinutesSinceLastCommit = clampMinutes(now.Sub(ts))
	}
	if ts, ok := g.commitTime(ctx, "log", "--reverse", "--format=%at"); ok {
		m.BranchAgeDays = int(now.Sub(ts).Hours() / 24)
	}

	if out, err := g.run(ctx, "status", "--porcelain"); err == nil {
		m.UncommittedFiles = countLines(string(out))
	}

	for _, args := range [][]string{
		{"diff", "--shortstat"},
		{"diff", "--cached", "--shortstat"},
	} {
		if out, err := g.run(ctx, args...); err == nil {
			m.UncommittedLines += parseShortstat(string(out))
		}
	}

	m.BehindMainByCommits = g.commitsBehindMain(ctx, m.BranchName)
	return m, nil
}

// commitTime runs a git log variant and parses the first timestamp line.
func (g *GitExtractor) commitTime(ctx context.Context, args ...string) (time.Time, bool) {
	out, err := g.run(ctx, args...)
	if err != nil {
		return time.Time{}, false
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	unix, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}

// commitsBehindMain counts commits on the main branch not yet on the
// current branch. Zero when main cannot be resolved or is checked out.
func (g *GitExtractor) commitsBehindMain(ctx context.Context, branch string) int {
	main := ""
	for _, candidate := range []string{"main", "master"} {
		if _, err := g.run(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+candidate); err == nil {
			main = candidate
			break
		}
	}
	if main == "" || main == branch {
		return 0
	}

	out, err := g.run(ctx, "rev-list", "--count", "HEAD.."+main)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0
	}
	return n
}

func clampMinutes(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d.Minutes())
}

func countLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// parseShortstat extracts changed line counts from git's shortstat
// summary, e.g. "3 files changed, 10 insertions(+), 2 deletions(-)".
func parseShortstat(s string) int {
	total := 0
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, "insertion") && !strings.Contains(part, "deletion") {
			continue
		}
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		if n, err := strconv.Atoi(fields[0]); err == nil {
			total += n
		}
	}
	return total
}
