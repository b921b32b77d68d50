// Package index orchestrates full and incremental indexing passes over
// the vectorizer and the vector store.
//
// The coordinator is the only writer of index state. It enforces
// single-writer discipline in-process (mutex) and across processes
// (file lock), and writes each pass's vectors, vocabulary, and frontier
// as one atomic batch.
package index

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	ferrors "github.com/flowcheck/flowcheck/internal/errors"
	"github.com/flowcheck/flowcheck/internal/gitlog"
	"github.com/flowcheck/flowcheck/internal/store"
	"github.com/flowcheck/flowcheck/internal/vectorizer"
)

// State labels for Status.
const (
	StateEmpty    = "empty"
	StateIdle     = "idle"
	StateIndexing = "indexing"
)

// Result summarizes one indexing pass.
type Result struct {
	IndexedCount   int           `json:"indexed_count"`
	SkippedHashes  []string      `json:"skipped_hashes"`
	FrontierHash   string        `json:"frontier_hash"`
	Epoch          int           `json:"epoch"`
	VocabularySize int           `json:"vocabulary_size"`
	Duration       time.Duration `json:"-"`
}

// Status reports the current index state for one repository.
type Status struct {
	State          string `json:"state"`
	IndexedCount   int    `json:"indexed_count"`
	FrontierHash   string `json:"frontier_hash,omitempty"`
	Epoch          int    `json:"epoch"`
	VocabularySize int    `json:"vocabulary_size"`
}

// Options configures a Coordinator.
type Options struct {
	// LockPath is the cross-process lock file. Empty disables file
	// locking (tests).
	LockPath string
	// Workers bounds parallel vectorization. <= 0 means 1.
	Workers int
	// MaxCommits caps a full pass. 0 means the entire history.
	MaxCommits int
	Logger     *slog.Logger
}

// Coordinator drives indexing passes for one repository.
type Coordinator struct {
	store     store.VectorStore
	extractor gitlog.Extractor
	opts      Options
	logger    *slog.Logger

	mu       sync.Mutex
	indexing atomic.Bool
}

// NewCoordinator creates a coordinator over a store and an extractor.
func NewCoordinator(s store.VectorStore, extractor gitlog.Extractor, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Coordinator{
		store:     s,
		extractor: extractor,
		opts:      opts,
		logger:    logger,
	}
}

// FullIndex rebuilds the index from the entire history: one Fit over all
// documents, every document re-vectorized under the new vocabulary, the
// whole batch replacing prior state atomically under a new epoch.
// Deterministic: identical history yields identical vocabulary bytes and
// identical vectors.
func (c *Coordinator) FullIndex(ctx context.Context) (*Result, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()

	prevEpoch := 0
	state, err := c.store.LoadState(ctx)
	if err != nil && !errors.Is(err, store.ErrCorrupt) {
		return nil, ferrors.Wrap(ferrors.ErrCodeIndexFailed, err)
	}
	// A corrupt state is treated as an empty index; the rebuild below
	// replaces it wholesale.
	if state != nil {
		prevEpoch = state.Epoch
	}

	records, err := c.extractor.Log(ctx, c.opts.MaxCommits)
	if err != nil {
		return nil, ferrors.New(ferrors.ErrCodeGitLogFailed, "failed to read commit history", err)
	}
	if len(records) == 0 {
		return &Result{Epoch: prevEpoch, Duration: time.Since(start)}, nil
	}

	vocab := vectorizer.NewVocabulary()
	docs := tokenizeRecords(records)
	fitDocs := make([][]string, 0, len(docs))
	for i, rec := range records {
		if rec.Err == nil {
			fitDocs = append(fitDocs, docs[i])
		}
	}
	vocab.Fit(fitDocs)

	epoch := prevEpoch + 1
	batch, result := c.vectorize(ctx, vocab, records, docs, "", epoch)
	result.Epoch = epoch
	result.VocabularySize = vocab.Size()

	if err := c.store.ReplaceAll(ctx, batch, store.IndexState{
		Frontier: result.FrontierHash,
		Epoch:    epoch,
		Vocab:    vocab,
	}); err != nil {
		return nil, ferrors.New(ferrors.ErrCodeStoreWrite, "failed to commit index batch", err)
	}

	result.Duration = time.Since(start)
	c.logger.Info("full_index_complete",
		slog.Int("indexed", result.IndexedCount),
		slog.Int("skipped", len(result.SkippedHashes)),
		slog.Int("epoch", epoch),
		slog.Int("vocabulary_size", vocab.Size()),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// IncrementalIndex extends the index with commits after the current
// frontier. The vocabulary grows append-only: new terms get new ids,
// existing term statistics are not recomputed. Stored vectors keep their
// epoch; only the new commits are vectorized.
func (c *Coordinator) IncrementalIndex(ctx context.Context) (*Result, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()

	state, err := c.store.LoadState(ctx)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return nil, ferrors.CorruptIndexError("index state is unreadable", err)
		}
		return nil, ferrors.Wrap(ferrors.ErrCodeIndexFailed, err)
	}
	if state == nil || state.Frontier == "" {
		return nil, ferrors.New(ferrors.ErrCodeEmptyIndex,
			"no existing index to extend", nil).
			WithSuggestion("run 'flowcheck index --full' first")
	}

	records, err := c.extractor.LogSince(ctx, state.Frontier)
	if err != nil {
		if errors.Is(err, gitlog.ErrFrontierUnreachable) {
			return nil, ferrors.ConsistencyError(
				"frontier commit no longer reachable in history", err)
		}
		return nil, ferrors.New(ferrors.ErrCodeGitLogFailed, "failed to read commit history", err)
	}
	if len(records) == 0 {
		return &Result{
			FrontierHash:   state.Frontier,
			Epoch:          state.Epoch,
			VocabularySize: state.Vocab.Size(),
			Duration:       time.Since(start),
		}, nil
	}

	vocab := state.Vocab
	docs := tokenizeRecords(records)
	fitDocs := make([][]string, 0, len(docs))
	for i, rec := range records {
		if rec.Err == nil {
			fitDocs = append(fitDocs, docs[i])
		}
	}
	vocab.Fit(fitDocs)

	batch, result := c.vectorize(ctx, vocab, records, docs, state.Frontier, state.Epoch)
	result.Epoch = state.Epoch
	result.VocabularySize = vocab.Size()

	if err := c.store.PutBatch(ctx, batch, store.IndexState{
		Frontier: result.FrontierHash,
		Epoch:    state.Epoch,
		Vocab:    vocab,
	}); err != nil {
		return nil, ferrors.New(ferrors.ErrCodeStoreWrite, "failed to commit index batch", err)
	}

	result.Duration = time.Since(start)
	c.logger.Info("incremental_index_complete",
		slog.Int("indexed", result.IndexedCount),
		slog.Int("skipped", len(result.SkippedHashes)),
		slog.String("frontier", result.FrontierHash),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// Status reports the persisted index state without taking the writer
// lock.
func (c *Coordinator) Status(ctx context.Context) (*Status, error) {
	state, err := c.store.LoadState(ctx)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return nil, ferrors.CorruptIndexError("index state is unreadable", err)
		}
		return nil, ferrors.Wrap(ferrors.ErrCodeIndexFailed, err)
	}

	count, err := c.store.Count(ctx)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeIndexFailed, err)
	}

	st := &Status{State: StateIdle, IndexedCount: count}
	if state == nil {
		st.State = StateEmpty
	} else {
		st.FrontierHash = state.Frontier
		st.Epoch = state.Epoch
		st.VocabularySize = state.Vocab.Size()
	}
	if c.indexing.Load() {
		st.State = StateIndexing
	}
	return st, nil
}

// acquire takes the in-process and cross-process writer locks. A held
// lock yields an already-indexing error rather than blocking.
func (c *Coordinator) acquire() (func(), error) {
	if !c.mu.TryLock() {
		return nil, ferrors.AlreadyIndexingError(c.opts.LockPath)
	}

	var fl *FileLock
	if c.opts.LockPath != "" {
		fl = NewFileLock(c.opts.LockPath)
		acquired, err := fl.TryLock()
		if err != nil {
			c.mu.Unlock()
			return nil, ferrors.Wrap(ferrors.ErrCodeIndexFailed, err)
		}
		if !acquired {
			c.mu.Unlock()
			return nil, ferrors.AlreadyIndexingError(c.opts.LockPath)
		}
	}

	c.indexing.Store(true)
	return func() {
		c.indexing.Store(false)
		if fl != nil {
			_ = fl.Unlock()
		}
		c.mu.Unlock()
	}, nil
}

// vectorize transforms all successfully extracted records in parallel and
// assembles the store batch. The frontier advances only through the
// contiguous prefix of successful records starting at oldFrontier; a
// skipped commit blocks further advancement so a retry can pick it up.
func (c *Coordinator) vectorize(ctx context.Context, vocab *vectorizer.Vocabulary, records []gitlog.Record, docs [][]string, oldFrontier string, epoch int) ([]store.IndexedCommit, *Result) {
	vectors := make([]vectorizer.SparseVector, len(records))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i := range records {
		if records[i].Err != nil {
			continue
		}
		i := i
		g.Go(func() error {
			vectors[i] = vocab.Transform(docs[i])
			return nil
		})
	}
	// Workers only write disjoint slots and never fail.
	_ = g.Wait()

	result := &Result{FrontierHash: oldFrontier}
	batch := make([]store.IndexedCommit, 0, len(records))
	contiguous := true

	for i, rec := range records {
		if rec.Err != nil {
			result.SkippedHashes = append(result.SkippedHashes, rec.Commit.Hash)
			contiguous = false
			c.logger.Warn("commit_skipped",
				slog.String("hash", rec.Commit.Hash),
				slog.String("error", rec.Err.Error()))
			continue
		}

		result.IndexedCount++
		if contiguous {
			result.FrontierHash = rec.Commit.Hash
		}

		// Empty vectors are legal (all-stopword messages) but are never
		// materialized: a stored commit always carries a non-empty vector.
		if vectors[i].IsEmpty() {
			continue
		}
		batch = append(batch, store.IndexedCommit{
			Hash:      rec.Commit.Hash,
			Message:   rec.Commit.Message,
			Timestamp: rec.Commit.Timestamp,
			Vector:    vectors[i],
			Norm:      vectors[i].Norm(),
			Epoch:     epoch,
		})
	}
	return batch, result
}

// tokenizeRecords tokenizes every record's searchable text.
func tokenizeRecords(records []gitlog.Record) [][]string {
	docs := make([][]string, len(records))
	for i, rec := range records {
		if rec.Err != nil {
			continue
		}
		docs[i] = vectorizer.Tokenize(rec.Commit.Text())
	}
	return docs
}
