package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRestoreCmd(a *app) *cobra.Command {
	var forceFlag bool

	cmd := &cobra.Command{
		Use:   "restore <checkpoint>",
		Short: "Restore the workspace to a checkpoint",
		Long: `Restore resets every file in the workspace to the given checkpoint.
Files created after the checkpoint are deleted, except those matched by the
exclude patterns. Later checkpoints of this run are forgotten.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			if a.disabled(cmd) {
				return nil
			}
			sg, err := a.openTask(cmd.Context())
			if err != nil {
				return err
			}

			if !forceFlag {
				confirmed, err := confirm(
					fmt.Sprintf("Restore workspace to %s?", shortHash(args[0])),
					fmt.Sprintf("Uncheckpointed changes in %s will be lost.", sg.WorkspaceDir()),
				)
				if err != nil {
					return err
				}
				if !confirmed {
					return nil
				}
			}

			if err := sg.Restore(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to restore checkpoint: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s to %s\n", sg.WorkspaceDir(), shortHash(args[0]))
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
