package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	ferrors "github.com/flowcheck/flowcheck/internal/errors"
	"github.com/flowcheck/flowcheck/internal/vectorizer"
)

// SQLiteStore implements VectorStore on SQLite. WAL mode allows readers
// to run concurrently with a writer; a single connection serializes
// writes within the process.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ VectorStore = (*SQLiteStore)(nil)

// validateIntegrity checks an existing database before opening it.
// Returns nil if the file is absent (it will be created) or healthy.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteStore opens or creates the index database at path. An empty
// path creates an in-memory store for testing. A corrupted database file
// is cleared so the caller starts from an empty index rather than
// operating on partial state.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			logger.Warn("index_database_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			logger.Info("index_database_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: serializes writes, keeps :memory: stores on one
	// database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores DSN params; pragmas must be explicit.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- One row per indexed commit. vector is a JSON object mapping term
	-- id to weight; the CHECK enforces the no-empty-vector invariant at
	-- the storage boundary as well.
	CREATE TABLE IF NOT EXISTS commits (
		hash      TEXT PRIMARY KEY,
		message   TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		vector    TEXT NOT NULL CHECK (vector != '' AND vector != '{}'),
		norm      REAL NOT NULL,
		epoch     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_commits_timestamp ON commits(timestamp);

	-- Singleton row: frontier, epoch, and vocabulary advance together.
	CREATE TABLE IF NOT EXISTS index_state (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		frontier   TEXT NOT NULL,
		epoch      INTEGER NOT NULL,
		vocabulary TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// PutBatch writes the batch, frontier, epoch, and vocabulary in one
// transaction.
func (s *SQLiteStore) PutBatch(ctx context.Context, commits []IndexedCommit, state IndexState) error {
	return s.write(ctx, commits, state, false)
}

// ReplaceAll clears all stored commits and writes the batch in the same
// transaction.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, commits []IndexedCommit, state IndexState) error {
	return s.write(ctx, commits, state, true)
}

func (s *SQLiteStore) write(ctx context.Context, commits []IndexedCommit, state IndexState, replace bool) error {
	for _, c := range commits {
		if c.Vector.IsEmpty() {
			return ferrors.New(ferrors.ErrCodeEmptyVector,
				"refusing to store commit without a vector: "+c.Hash,
				fmt.Errorf("%w: %s", ErrEmptyVector, c.Hash))
		}
	}
	if state.Vocab == nil {
		return fmt.Errorf("index state requires a vocabulary snapshot")
	}
	vocabJSON, err := state.Vocab.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode vocabulary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM commits`); err != nil {
			return fmt.Errorf("failed to clear commits: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO commits (hash, message, timestamp, vector, norm, epoch)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range commits {
		vecJSON, err := json.Marshal(c.Vector)
		if err != nil {
			return fmt.Errorf("failed to encode vector for %s: %w", c.Hash, err)
		}
		if _, err := stmt.ExecContext(ctx,
			c.Hash, c.Message, c.Timestamp.Unix(), string(vecJSON), c.Norm, c.Epoch); err != nil {
			return fmt.Errorf("failed to insert commit %s: %w", c.Hash, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO index_state (id, frontier, epoch, vocabulary)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			frontier = excluded.frontier,
			epoch = excluded.epoch,
			vocabulary = excluded.vocabulary`,
		state.Frontier, state.Epoch, string(vocabJSON)); err != nil {
		return fmt.Errorf("failed to write index state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// LoadState returns the persisted frontier, epoch, and vocabulary, or
// nil for an empty index.
func (s *SQLiteStore) LoadState(ctx context.Context) (*IndexState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var (
		frontier  string
		epoch     int
		vocabJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT frontier, epoch, vocabulary FROM index_state WHERE id = 1`).
		Scan(&frontier, &epoch, &vocabJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load index state: %w", err)
	}

	vocab, err := vectorizer.DecodeVocabulary([]byte(vocabJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &IndexState{Frontier: frontier, Epoch: epoch, Vocab: vocab}, nil
}

// Scan streams stored commits newest-first, ties broken by hash
// ascending, matching the search ranking order.
func (s *SQLiteStore) Scan(ctx context.Context, fn func(IndexedCommit) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, message, timestamp, vector, norm, epoch
		FROM commits
		ORDER BY timestamp DESC, hash ASC`)
	if err != nil {
		return fmt.Errorf("failed to scan commits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c       IndexedCommit
			unix    int64
			vecJSON string
		)
		if err := rows.Scan(&c.Hash, &c.Message, &unix, &vecJSON, &c.Norm, &c.Epoch); err != nil {
			return fmt.Errorf("failed to read commit row: %w", err)
		}
		c.Timestamp = time.Unix(unix, 0).UTC()

		if err := json.Unmarshal([]byte(vecJSON), &c.Vector); err != nil {
			return fmt.Errorf("%w: vector for %s: %v", ErrCorrupt, c.Hash, err)
		}
		if c.Vector.IsEmpty() {
			return fmt.Errorf("%w: stored vector for %s is empty", ErrCorrupt, c.Hash)
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the number of stored commits.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commits`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count commits: %w", err)
	}
	return n, nil
}

// Reset removes all commits and index state in one transaction.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM commits`); err != nil {
		return fmt.Errorf("failed to clear commits: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_state`); err != nil {
		return fmt.Errorf("failed to clear index state: %w", err)
	}
	return tx.Commit()
}

// Close releases the database handle. Subsequent operations return
// ErrClosed.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
