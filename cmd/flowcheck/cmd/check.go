package cmd

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/flowcheck/flowcheck/internal/output"
	"github.com/flowcheck/flowcheck/internal/rules"
)

// newCheckCmd creates the check command.
func newCheckCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the repository's flow health",
		Long: `Measure the working tree (time since last commit, uncommitted change
size, branch age) and evaluate it against the flow-health thresholds.
Prints the status and recommendations for keeping commits small and
frequent.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			metrics, err := a.Worktree.Worktree(cmd.Context())
			if err != nil {
				return err
			}
			state := a.Rules.Evaluate(metrics)
			recs := a.Rules.Recommendations(state)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					rules.FlowState
					Recommendations []string `json:"recommendations"`
				}{FlowState: state, Recommendations: recs})
			}

			w := output.New(cmd.OutOrStdout())
			switch state.Status {
			case rules.StatusDanger:
				w.Errorf("flow status: %s", state.Status)
			case rules.StatusWarning:
				w.Warningf("flow status: %s", state.Status)
			default:
				w.Successf("flow status: %s", state.Status)
			}
			w.Field("branch", state.BranchName)
			w.Field("minutes since last commit", strconv.Itoa(state.MinutesSinceLastCommit))
			w.Field("uncommitted files", strconv.Itoa(state.UncommittedFiles))
			w.Field("uncommitted lines", strconv.Itoa(state.UncommittedLines))
			if state.BranchAgeDays > 0 {
				w.Field("branch age (days)", strconv.Itoa(state.BranchAgeDays))
			}
			if state.BehindMainByCommits > 0 {
				w.Field("behind main", strconv.Itoa(state.BehindMainByCommits))
			}
			w.Newline()
			for _, rec := range recs {
				w.Println(rec)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output flow state as JSON")

	return cmd
}
