package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowcheck/flowcheck/internal/output"
)

// newResetCmd creates the reset command.
func newResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the commit index",
		Long: `Delete all indexed commits and vocabulary state for this repository.

The next 'flowcheck index --full' rebuilds from scratch.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				return fmt.Errorf("refusing to delete the index without --force")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Store.Reset(cmd.Context()); err != nil {
				return err
			}

			w := output.New(cmd.OutOrStdout())
			w.Success("index cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm deletion of the index")

	return cmd
}
