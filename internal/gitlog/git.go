package gitlog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// maxMessageLen bounds stored commit messages.
	maxMessageLen = 500
	// maxFiles bounds how many touched paths contribute to DiffText.
	maxFiles = 20

	recordSep = "\x1e"
	fieldSep  = "\x1f"
)

// logFormat emits one record per commit: hash, parents, author time,
// body, then the name-only file list after the trailing field separator.
const logFormat = "--pretty=format:" + recordSep + "%H" + fieldSep + "%P" + fieldSep + "%at" + fieldSep + "%B" + fieldSep

// GitExtractor extracts commit records by invoking the git binary.
type GitExtractor struct {
	repoPath string
	logger   *slog.Logger
}

var _ Extractor = (*GitExtractor)(nil)

// NewGitExtractor creates an extractor for the repository at repoPath.
// Returns ErrNotARepository when the path is not inside a git work tree.
func NewGitExtractor(repoPath string, logger *slog.Logger) (*GitExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.Command("git", "-C", repoPath, "rev-parse", "--is-inside-work-tree")
	if out, err := cmd.Output(); err != nil || strings.TrimSpace(string(out)) != "true" {
		return nil, fmt.Errorf("%w: %s", ErrNotARepository, repoPath)
	}

	return &GitExtractor{repoPath: repoPath, logger: logger}, nil
}

// Log returns the full history oldest-first. limit > 0 restricts output
// to the most recent limit commits.
func (g *GitExtractor) Log(ctx context.Context, limit int) ([]Record, error) {
	args := []string{"log", "--reverse", "--name-only", logFormat}
	if limit > 0 {
		args = append(args, fmt.Sprintf("--max-count=%d", limit))
	}

	out, err := g.run(ctx, args...)
	if err != nil {
		if isEmptyHistory(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("git log failed: %w", err)
	}
	return g.parseLog(out), nil
}

// LogSince returns commits strictly after the frontier, oldest-first.
func (g *GitExtractor) LogSince(ctx context.Context, frontier string) ([]Record, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", g.repoPath,
		"merge-base", "--is-ancestor", frontier, "HEAD")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFrontierUnreachable, frontier)
	}

	out, err := g.run(ctx, "log", "--reverse", "--name-only", logFormat, frontier+"..HEAD")
	if err != nil {
		return nil, fmt.Errorf("git log failed: %w", err)
	}
	return g.parseLog(out), nil
}

// Head returns the current head hash, or "" for a repository with no
// commits.
func (g *GitExtractor) Head(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		if isEmptyHistory(err) {
			return "", nil
		}
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (g *GitExtractor) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", g.repoPath}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// parseLog converts raw git output into records. A malformed record is
// returned with Err set rather than aborting the whole extraction.
func (g *GitExtractor) parseLog(out []byte) []Record {
	chunks := strings.Split(string(out), recordSep)
	records := make([]Record, 0, len(chunks))

	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		records = append(records, g.parseRecord(chunk))
	}
	return records
}

func (g *GitExtractor) parseRecord(chunk string) Record {
	parts := strings.SplitN(chunk, fieldSep, 5)
	if len(parts) < 5 {
		g.logger.Warn("malformed commit record", "fields", len(parts))
		return Record{Err: fmt.Errorf("malformed commit record: %d fields", len(parts))}
	}

	hash := strings.TrimSpace(parts[0])
	parent := firstField(parts[1])
	body := strings.TrimSpace(parts[3])
	if len(body) > maxMessageLen {
		// Back off to a rune boundary so truncation never leaves an
		// invalid UTF-8 tail.
		cut := maxMessageLen
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}

	unix, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
	if err != nil {
		g.logger.Warn("unparseable commit timestamp", "hash", hash)
		return Record{
			Commit: Commit{Hash: hash},
			Err:    fmt.Errorf("unparseable timestamp for %s: %w", hash, err),
		}
	}

	return Record{Commit: Commit{
		Hash:       hash,
		ParentHash: parent,
		Message:    body,
		DiffText:   joinFiles(parts[4]),
		Timestamp:  time.Unix(unix, 0).UTC(),
	}}
}

// firstField returns the first parent from git's space-separated %P list.
func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// joinFiles flattens a name-only file list into a single text blob,
// capped at maxFiles paths.
func joinFiles(blob string) string {
	var files []string
	for _, line := range strings.Split(blob, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		files = append(files, line)
		if len(files) >= maxFiles {
			break
		}
	}
	return strings.Join(files, " ")
}

// isEmptyHistory reports whether a git failure was caused by a repository
// with no commits yet.
func isEmptyHistory(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "does not have any commits") ||
		strings.Contains(msg, "unknown revision") ||
		strings.Contains(msg, "ambiguous argument 'HEAD'")
}
