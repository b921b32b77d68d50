package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowcheck/flowcheck/internal/output"
)

// newSearchCmd creates the search command.
func newSearchCmd() *cobra.Command {
	var topK int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed commit history by meaning",
		Long: `Search the indexed commit history for commits conceptually related
to the query, ranked by relevance.

Run 'flowcheck index --full' first if the repository has not been indexed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			query := strings.Join(args, " ")
			k := topK
			if k <= 0 {
				k = a.Config.Search.TopK
			}

			results, err := a.Engine.Query(cmd.Context(), query, k)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			w := output.New(cmd.OutOrStdout())
			if len(results) == 0 {
				w.Println("no matching commits")
				return nil
			}
			for i, r := range results {
				w.Result(i+1, r.CommitHash, r.Message, r.Score, r.MatchedTerms)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Maximum number of results (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}
