// Package gitlog extracts ordered commit records from a git repository.
//
// Records are produced parent-first (oldest to newest) so downstream
// indexing can advance a frontier marker through them contiguously.
package gitlog

import (
	"context"
	"errors"
	"time"
)

// ErrFrontierUnreachable is returned by LogSince when the frontier commit
// no longer exists in the current history, typically after a rebase or
// force push. The caller must fall back to a full reindex.
var ErrFrontierUnreachable = errors.New("frontier commit not reachable in current history")

// ErrNotARepository is returned when the target path is not inside a git
// work tree.
var ErrNotARepository = errors.New("not a git repository")

// Commit is one extracted commit record. Hash is globally unique and
// immutable; DiffText is derived from the paths touched by the commit.
type Commit struct {
	Hash       string
	ParentHash string
	Message    string
	DiffText   string
	Timestamp  time.Time
}

// Text returns the commit's searchable text: message plus diff-derived
// text. This is the exact input handed to the vectorizer.
func (c Commit) Text() string {
	if c.DiffText == "" {
		return c.Message
	}
	return c.Message + " " + c.DiffText
}

// Record pairs a commit with a per-commit extraction error. A non-nil Err
// means the record could not be parsed; Commit.Hash is still populated
// when it could be recovered, so callers can report the skip.
type Record struct {
	Commit Commit
	Err    error
}

// Extractor yields ordered commit records for one repository.
type Extractor interface {
	// Log returns the full history oldest-first. limit > 0 caps the
	// number of commits to the most recent limit, still oldest-first.
	Log(ctx context.Context, limit int) ([]Record, error)

	// LogSince returns commits strictly after the frontier hash,
	// oldest-first. Returns ErrFrontierUnreachable when the frontier is
	// no longer an ancestor of the current head.
	LogSince(ctx context.Context, frontier string) ([]Record, error)

	// Head returns the current head commit hash, or "" for an empty
	// repository.
	Head(ctx context.Context) (string, error)
}
