// Package store persists the per-repository semantic index: one vector
// per indexed commit, the vocabulary snapshot, and the frontier marker.
//
// The three are always written together in a single transaction. A reader
// never observes a frontier advance without its vectors, nor vectors
// without the frontier.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/flowcheck/flowcheck/internal/vectorizer"
)

// ErrEmptyVector is returned when a caller attempts to store a commit
// with an empty vector. Commits without vectors must never reach the
// store.
var ErrEmptyVector = errors.New("refusing to store commit with empty vector")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// ErrCorrupt is returned when persisted state cannot be decoded. The
// index must be treated as empty and rebuilt; partially loaded state is
// never served.
var ErrCorrupt = errors.New("index state is corrupt")

// IndexedCommit is one commit's persisted search entry.
type IndexedCommit struct {
	Hash      string
	Message   string
	Timestamp time.Time
	Vector    vectorizer.SparseVector
	Norm      float64
	Epoch     int
}

// IndexState is the jointly persisted index marker: frontier hash,
// vocabulary epoch, and the vocabulary snapshot that produced the stored
// vectors.
type IndexState struct {
	Frontier string
	Epoch    int
	Vocab    *vectorizer.Vocabulary
}

// VectorStore persists indexed commits for one repository.
type VectorStore interface {
	// PutBatch writes a batch of vectors and advances the frontier,
	// epoch, and vocabulary snapshot in one atomic unit. Rejects any
	// commit with an empty vector.
	PutBatch(ctx context.Context, commits []IndexedCommit, state IndexState) error

	// ReplaceAll atomically discards every stored vector and writes the
	// batch in its place. Used by full rebuilds.
	ReplaceAll(ctx context.Context, commits []IndexedCommit, state IndexState) error

	// LoadState returns the persisted index state, or nil when the
	// index is empty. Returns ErrCorrupt when state exists but cannot
	// be decoded.
	LoadState(ctx context.Context) (*IndexState, error)

	// Scan streams every stored commit to fn, newest first with ties
	// broken by hash. Scanning stops at the first fn error.
	Scan(ctx context.Context, fn func(IndexedCommit) error) error

	// Count returns the number of stored commits.
	Count(ctx context.Context) (int, error)

	// Reset destroys all persisted state for the repository.
	Reset(ctx context.Context) error

	// Close releases the store.
	Close() error
}
