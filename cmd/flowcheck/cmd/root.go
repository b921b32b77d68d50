// Package cmd provides the CLI commands for flowcheck.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/flowcheck/flowcheck/internal/logging"
	"github.com/flowcheck/flowcheck/pkg/version"
)

// Debug logging flag, shared by all commands.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the flowcheck CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowcheck",
		Short: "Local repo hygiene assistant with semantic commit search",
		Long: `Flowcheck indexes your repository's commit history for semantic
search, monitors your commit flow health, and scans text for secrets,
PII, and prompt-injection patterns.

It runs entirely locally. Run 'flowcheck serve' to expose the tools to
AI assistants over MCP, or use the subcommands directly.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			// Bare invocation starts the MCP server, matching how MCP
			// clients launch the binary.
			return runServe(cmd, serveOptions{})
		},
	}

	cmd.SetVersionTemplate("flowcheck version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to the flowcheck log directory")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newRulesCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the debug logger when --debug is set.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}

	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

// stopLogging flushes and closes the debug log file.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
