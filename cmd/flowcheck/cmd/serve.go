package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flowcheck/flowcheck/internal/guardian"
	"github.com/flowcheck/flowcheck/internal/mcp"
	"github.com/flowcheck/flowcheck/internal/repo"
	"github.com/flowcheck/flowcheck/internal/watcher"
)

type serveOptions struct {
	noWatch bool
}

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the MCP server, exposing index_history, search_history,
index_status, get_flow_state, get_recommendations, set_rules, and
scan_text to MCP clients over stdio. Every tool accepts an optional
repo_path; omitted, it targets the repository the server started in.

Stdout carries the protocol exclusively; diagnostics go to the log file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Disable background indexing on new commits")

	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	manager := repo.NewManager(slog.Default())
	defer func() { _ = manager.Close() }()

	// Open the default repository eagerly so misconfiguration fails
	// before the transport starts.
	h, err := manager.Resolve(".")
	if err != nil {
		return err
	}

	var scanner *guardian.Scanner
	if h.Config.Scan.Enabled {
		scanner = guardian.NewScanner()
	}

	server, err := mcp.NewServer(manager, scanner, h.Root)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var refs *watcher.RefWatcher
	if h.Config.Server.WatchRefs && !opts.noWatch {
		refs, err = watcher.NewRefWatcher(h.Root, watcher.DefaultDebounce, slog.Default())
		if err != nil {
			// The server is still useful without background indexing.
			slog.Warn("ref watcher unavailable", slog.String("error", err.Error()))
			refs = nil
		} else {
			defer refs.Stop()
		}
	}

	return server.Serve(ctx, h.Config.Server.Transport, refs)
}
