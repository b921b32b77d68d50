package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flowcheck/flowcheck/configs"
	"github.com/flowcheck/flowcheck/internal/config"
	"github.com/flowcheck/flowcheck/internal/output"
)

// newInitCmd creates the init command.
func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a .flowcheck.yaml config file",
		Long: `Write an annotated .flowcheck.yaml template to the project root.

Flowcheck works without one; the file only needs to exist when you want
to override the defaults.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := config.FindProjectRoot(".")
			if err != nil {
				return fmt.Errorf("failed to locate project root: %w", err)
			}

			path := filepath.Join(root, config.ConfigFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			w := output.New(cmd.OutOrStdout())
			w.Successf("wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}
