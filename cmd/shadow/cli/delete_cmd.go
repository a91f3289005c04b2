package cli

import (
	"fmt"

	"github.com/entireio/shadow/cmd/shadow/cli/checkpoint"
	"github.com/entireio/shadow/cmd/shadow/cli/logging"

	"github.com/spf13/cobra"
)

func newDeleteTaskCmd(a *app) *cobra.Command {
	var forceFlag bool

	cmd := &cobra.Command{
		Use:   "delete-task",
		Short: "Delete all checkpoints of a task",
		Long: `Delete a task's checkpoints. With task scope the task's shadow repository
is removed. With workspace scope the task's branch is deleted from the
workspace's shared shadow repository. Workspace files are never modified.`,
		Args: cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			taskID, err := a.taskID()
			if err != nil {
				return err
			}
			workspace, err := a.workspace()
			if err != nil {
				return err
			}
			scope, err := a.scope()
			if err != nil {
				return err
			}

			if !forceFlag {
				confirmed, err := confirm(
					fmt.Sprintf("Delete checkpoints of task %s?", taskID),
					fmt.Sprintf("Scope: %s. This cannot be undone.", scope),
				)
				if err != nil {
					return err
				}
				if !confirmed {
					return nil
				}
			}

			if err := logging.Init(a.root, taskID); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			ctx := logging.WithWorkspace(logging.WithTask(cmd.Context(), taskID), workspace)

			err = checkpoint.DeleteTask(ctx, checkpoint.DeleteTaskOptions{
				TaskID:       taskID,
				Scope:        scope,
				StorageRoot:  a.root,
				WorkspaceDir: workspace,
				Log:          logging.Sink(ctx, "delete"),
			})
			if err != nil {
				a.telemetry.ReportError(ctx, "delete_task", err)
				return fmt.Errorf("failed to delete task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted checkpoints of task %s.\n", taskID)
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
