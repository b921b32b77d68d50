package cmd

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowcheck/flowcheck/internal/index"
	"github.com/flowcheck/flowcheck/internal/output"
)

// newIndexCmd creates the index command.
func newIndexCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the repository's commit history",
		Long: `Index the repository's commit history for semantic search.

By default only commits newer than the index frontier are processed.
Use --full to rebuild the index from the entire history.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			w := output.New(cmd.OutOrStdout())

			var result *index.Result
			if full {
				result, err = a.Coordinator.FullIndex(cmd.Context())
			} else {
				result, err = a.Coordinator.IncrementalIndex(cmd.Context())
			}
			if err != nil {
				w.Errorf("indexing failed: %v", err)
				return err
			}

			if result.IndexedCount == 0 && len(result.SkippedHashes) == 0 {
				w.Success("index is up to date")
			} else {
				w.Successf("indexed %d commits in %s", result.IndexedCount, result.Duration.Round(time.Millisecond))
			}
			for _, hash := range result.SkippedHashes {
				w.Warningf("skipped unparseable commit %s", hash)
			}
			if result.FrontierHash != "" {
				w.Field("frontier", result.FrontierHash)
			}
			w.Field("epoch", strconv.Itoa(result.Epoch))
			w.Field("vocabulary", strconv.Itoa(result.VocabularySize))
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Rebuild the index from the entire history")

	return cmd
}
