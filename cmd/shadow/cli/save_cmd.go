package cli

import (
	"fmt"

	"github.com/entireio/shadow/cmd/shadow/cli/checkpoint"

	"github.com/spf13/cobra"
)

func newSaveCmd(a *app) *cobra.Command {
	var messageFlag string
	var allowEmptyFlag bool
	var quietFlag bool

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a checkpoint of the workspace",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			if a.disabled(cmd) {
				return nil
			}
			sg, err := a.openTask(cmd.Context())
			if err != nil {
				return err
			}

			res, err := sg.Save(cmd.Context(), messageFlag, checkpoint.SaveOptions{
				AllowEmpty:      allowEmptyFlag,
				SuppressMessage: quietFlag,
			})
			if err != nil {
				return fmt.Errorf("failed to save checkpoint: %w", err)
			}
			if quietFlag {
				return nil
			}
			if res == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes to checkpoint.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved checkpoint %s (from %s)\n", shortHash(res.Hash), shortHash(res.FromHash))
			return nil
		}),
	}

	cmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Checkpoint message")
	cmd.Flags().BoolVar(&allowEmptyFlag, "allow-empty", false, "Create a checkpoint even when nothing changed")
	cmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Do not print the result")

	return cmd
}
