// Package config loads and validates flowcheck configuration.
//
// Configuration is resolved in three layers: built-in defaults, the
// per-repository .flowcheck.yaml, and FLOWCHECK_* environment variables
// (highest priority).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"

	ferrors "github.com/flowcheck/flowcheck/internal/errors"
)

// ConfigFileName is the per-repository configuration file.
const ConfigFileName = ".flowcheck.yaml"

// DataDirName is the per-repository data directory holding the index.
const DataDirName = ".flowcheck"

// Config represents the complete flowcheck configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Scan    ScanConfig    `yaml:"scan" json:"scan"`
}

// IndexConfig configures commit indexing.
type IndexConfig struct {
	// MaxCommits caps how many commits a full index pass reads.
	// 0 means the entire history.
	MaxCommits int `yaml:"max_commits" json:"max_commits"`

	// Workers is the number of parallel vectorization workers.
	// Defaults to GOMAXPROCS-equivalent (NumCPU).
	Workers int `yaml:"workers" json:"workers"`
}

// SearchConfig configures the query engine.
type SearchConfig struct {
	// TopK is the default number of results returned.
	TopK int `yaml:"top_k" json:"top_k"`

	// CacheSize is the number of cached query results (LRU entries).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`

	// WatchRefs enables the .git ref watcher that triggers incremental
	// indexing while serving.
	WatchRefs bool `yaml:"watch_refs" json:"watch_refs"`
}

// ScanConfig configures the guardian pattern scanner.
type ScanConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// NewConfig returns the built-in default configuration.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			MaxCommits: 0,
			Workers:    runtime.NumCPU(),
		},
		Search: SearchConfig{
			TopK:      5,
			CacheSize: 128,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
			WatchRefs: true,
		},
		Scan: ScanConfig{
			Enabled: true,
		},
	}
}

// Load resolves configuration for the repository rooted at root.
// A missing config file is not an error; defaults apply.
func Load(root string) (*Config, error) {
	cfg := NewConfig()

	path := filepath.Join(root, ConfigFileName)
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, ferrors.ConfigInvalidError(fmt.Sprintf("failed to parse %s", ConfigFileName), err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", ConfigFileName, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays FLOWCHECK_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("FLOWCHECK_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("FLOWCHECK_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.TopK = n
		}
	}
	if v := os.Getenv("FLOWCHECK_MAX_COMMITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.MaxCommits = n
		}
	}
	if v := os.Getenv("FLOWCHECK_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.Workers = n
		}
	}
}

// Validate checks configuration invariants and normalizes bounds.
func (c *Config) Validate() error {
	if c.Index.MaxCommits < 0 {
		return ferrors.ConfigInvalidError(
			fmt.Sprintf("index.max_commits must be >= 0, got %d", c.Index.MaxCommits), nil)
	}
	if c.Index.Workers <= 0 {
		c.Index.Workers = runtime.NumCPU()
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = 5
	}
	if c.Search.CacheSize <= 0 {
		c.Search.CacheSize = 128
	}
	if c.Server.Transport == "" {
		c.Server.Transport = "stdio"
	}
	return nil
}

// FindProjectRoot finds the repository root by walking up from startDir
// looking for a .git directory or a .flowcheck.yaml file.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ConfigFileName)) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached filesystem root; fall back to where we started.
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// DataDir returns the per-repository data directory, creating it if needed.
func DataDir(root string) (string, error) {
	dir := filepath.Join(root, DataDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// IndexDBPath returns the vector store path for a repository root.
func IndexDBPath(root string) string {
	return filepath.Join(root, DataDirName, "index.db")
}

// LockPath returns the cross-process indexing lock path for a repository root.
func LockPath(root string) string {
	return filepath.Join(root, DataDirName, "index.lock")
}

// RulesPath returns the persisted flow-rule thresholds path for a
// repository root.
func RulesPath(root string) string {
	return filepath.Join(root, DataDirName, "rules.yaml")
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
