// Package repo wires per-repository collaborators (store, coordinator,
// search engine, rules engine) and caches them by resolved project root.
//
// Per-repository state is fully isolated under <root>/.flowcheck/, so
// handles for different repositories never share mutable state.
package repo

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/flowcheck/flowcheck/internal/config"
	ferrors "github.com/flowcheck/flowcheck/internal/errors"
	"github.com/flowcheck/flowcheck/internal/gitlog"
	"github.com/flowcheck/flowcheck/internal/index"
	"github.com/flowcheck/flowcheck/internal/rules"
	"github.com/flowcheck/flowcheck/internal/search"
	"github.com/flowcheck/flowcheck/internal/store"
)

// Handle bundles everything operating on one repository.
type Handle struct {
	Root        string
	Config      *config.Config
	Store       store.VectorStore
	Coordinator *index.Coordinator
	Engine      *search.Engine
	Rules       *rules.Engine
	Worktree    gitlog.WorktreeAnalyzer
}

// Close releases the handle's resources.
func (h *Handle) Close() error {
	return h.Store.Close()
}

// Open resolves the project root containing path and wires a handle for
// it. Returns ERR_201_NOT_A_REPOSITORY when the path is not inside a git
// work tree.
func Open(path string, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	root, err := config.FindProjectRoot(path)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeInternal, err)
	}
	return openRoot(root, logger)
}

func openRoot(root string, logger *slog.Logger) (*Handle, error) {
	extractor, err := gitlog.NewGitExtractor(root, logger)
	if err != nil {
		if errors.Is(err, gitlog.ErrNotARepository) {
			return nil, ferrors.NotARepositoryError(root, err)
		}
		return nil, ferrors.Wrap(ferrors.ErrCodeGitLogFailed, err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if _, err := config.DataDir(root); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeInternal, err)
	}

	s, err := store.NewSQLiteStore(config.IndexDBPath(root), logger)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeInternal, err)
	}

	coordinator := index.NewCoordinator(s, extractor, index.Options{
		LockPath:   config.LockPath(root),
		Workers:    cfg.Index.Workers,
		MaxCommits: cfg.Index.MaxCommits,
		Logger:     logger,
	})

	engine, err := search.NewEngine(s, search.Options{
		CacheSize: cfg.Search.CacheSize,
		Logger:    logger,
	})
	if err != nil {
		_ = s.Close()
		return nil, ferrors.Wrap(ferrors.ErrCodeInternal, err)
	}

	return &Handle{
		Root:        root,
		Config:      cfg,
		Store:       s,
		Coordinator: coordinator,
		Engine:      engine,
		Rules:       rules.NewEngine(config.RulesPath(root), rules.DefaultThresholds()),
		Worktree:    extractor,
	}, nil
}

// Manager caches handles by project root so repeated tool calls against
// the same repository share one store, coordinator, and cache.
type Manager struct {
	mu      sync.Mutex
	logger  *slog.Logger
	handles map[string]*Handle
}

// NewManager creates an empty handle cache.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, handles: make(map[string]*Handle)}
}

// Resolve returns the handle for the repository containing path, opening
// and caching it on first use.
func (m *Manager) Resolve(path string) (*Handle, error) {
	root, err := config.FindProjectRoot(path)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeInternal, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.handles[root]; ok {
		return h, nil
	}

	h, err := openRoot(root, m.logger)
	if err != nil {
		return nil, err
	}
	m.handles[root] = h
	m.logger.Info("repository_opened", slog.String("root", root))
	return h, nil
}

// Close closes every cached handle, returning the first error.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for root, h := range m.handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.handles, root)
	}
	return firstErr
}
