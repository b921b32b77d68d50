package cmd

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/flowcheck/flowcheck/internal/output"
)

// newStatusCmd creates the status command.
func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the commit index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			status, err := a.Coordinator.Status(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			w := output.New(cmd.OutOrStdout())
			w.Printf("flowcheck index for %s", a.Root)
			w.Field("state", status.State)
			w.Field("commits", strconv.Itoa(status.IndexedCount))
			if status.FrontierHash != "" {
				w.Field("frontier", status.FrontierHash)
			}
			w.Field("epoch", strconv.Itoa(status.Epoch))
			w.Field("vocabulary", strconv.Itoa(status.VocabularySize))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	return cmd
}
