package cmd

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/flowcheck/flowcheck/internal/output"
	"github.com/flowcheck/flowcheck/internal/rules"
)

// newRulesCmd creates the rules command.
func newRulesCmd() *cobra.Command {
	var (
		maxMinutes int
		maxLines   int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show or tune the flow-health thresholds",
		Long: `Show the thresholds 'flowcheck check' evaluates against, or change
them with --max-minutes and --max-lines. Changes persist in the
repository's .flowcheck directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			t := a.Rules.Thresholds()
			changed := false
			if cmd.Flags().Changed("max-minutes") || cmd.Flags().Changed("max-lines") {
				patch := rules.Patch{}
				if cmd.Flags().Changed("max-minutes") {
					patch.MaxMinutesWithoutCommit = &maxMinutes
				}
				if cmd.Flags().Changed("max-lines") {
					patch.MaxLinesUncommitted = &maxLines
				}
				if t, err = a.Rules.Update(patch); err != nil {
					return err
				}
				changed = true
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(t)
			}

			w := output.New(cmd.OutOrStdout())
			if changed {
				w.Success("flow rules updated")
			}
			w.Field("max minutes without commit", strconv.Itoa(t.MaxMinutesWithoutCommit))
			w.Field("max lines uncommitted", strconv.Itoa(t.MaxLinesUncommitted))
			return nil
		},
	}

	cmd.Flags().IntVar(&maxMinutes, "max-minutes", 0, "Minutes without a commit before a warning")
	cmd.Flags().IntVar(&maxLines, "max-lines", 0, "Uncommitted lines before a warning")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output thresholds as JSON")

	return cmd
}
