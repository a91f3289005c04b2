package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or reopen the shadow repository for a task",
		Long: `Create the shadow repository for a task and record the workspace's current
state as its base commit. Running init again for the same task reopens the
existing repository.

When no task ID is given a new one is generated and printed.`,
		Args: cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			if a.disabled(cmd) {
				return nil
			}
			taskID, err := a.taskID()
			if err != nil {
				taskID = uuid.NewString()
			}

			sg, res, err := a.openShadow(cmd.Context(), taskID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			verb := "Opened"
			if res.Created {
				verb = "Created"
			}
			fmt.Fprintf(out, "%s shadow repository for task %s\n", verb, sg.TaskID())
			fmt.Fprintf(out, "  Workspace:   %s\n", sg.WorkspaceDir())
			fmt.Fprintf(out, "  Checkpoints: %s\n", sg.CheckpointsDir())
			fmt.Fprintf(out, "  Base:        %s\n", shortHash(sg.BaseHash()))
			return nil
		}),
	}
}
