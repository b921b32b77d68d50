package gitlog

import (
	"context"
	"fmt"
)

// MemoryExtractor serves a fixed, ordered record list. It backs tests and
// any caller that already holds extracted history.
type MemoryExtractor struct {
	records []Record
	metrics WorktreeMetrics
}

var (
	_ Extractor        = (*MemoryExtractor)(nil)
	_ WorktreeAnalyzer = (*MemoryExtractor)(nil)
)

// NewMemoryExtractor creates an extractor over pre-built records, which
// must already be ordered oldest-first.
func NewMemoryExtractor(records []Record) *MemoryExtractor {
	return &MemoryExtractor{records: records}
}

// NewMemoryExtractorFromCommits wraps plain commits in error-free records.
func NewMemoryExtractorFromCommits(commits []Commit) *MemoryExtractor {
	records := make([]Record, len(commits))
	for i, c := range commits {
		records[i] = Record{Commit: c}
	}
	return &MemoryExtractor{records: records}
}

// Append adds records to the tail of the history.
func (m *MemoryExtractor) Append(records ...Record) {
	m.records = append(m.records, records...)
}

// Log returns the full history, capped at the most recent limit commits
// when limit > 0.
func (m *MemoryExtractor) Log(_ context.Context, limit int) ([]Record, error) {
	records := m.records
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out, nil
}

// LogSince returns records strictly after the frontier hash.
func (m *MemoryExtractor) LogSince(_ context.Context, frontier string) ([]Record, error) {
	for i, r := range m.records {
		if r.Commit.Hash == frontier {
			out := make([]Record, len(m.records)-i-1)
			copy(out, m.records[i+1:])
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFrontierUnreachable, frontier)
}

// SetWorktree fixes the metrics Worktree will report.
func (m *MemoryExtractor) SetWorktree(metrics WorktreeMetrics) {
	m.metrics = metrics
}

// Worktree returns the fixed metrics set via SetWorktree.
func (m *MemoryExtractor) Worktree(context.Context) (WorktreeMetrics, error) {
	return m.metrics, nil
}

// Head returns the newest commit hash, or "" when empty.
func (m *MemoryExtractor) Head(_ context.Context) (string, error) {
	if len(m.records) == 0 {
		return "", nil
	}
	return m.records[len(m.records)-1].Commit.Hash, nil
}
