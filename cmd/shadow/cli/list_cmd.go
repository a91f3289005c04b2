package cli

import (
	"fmt"
	"time"

	"github.com/entireio/shadow/cmd/shadow/cli/jsonutil"

	"github.com/spf13/cobra"
)

// maxMessageDisplayLength is the maximum length for checkpoint messages before truncation.
const maxMessageDisplayLength = 72

type checkpointJSON struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func newListCmd(a *app) *cobra.Command {
	var jsonFlag bool
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the checkpoints saved for a task",
		Args:  cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			if a.disabled(cmd) {
				return nil
			}
			sg, err := a.openTask(cmd.Context())
			if err != nil {
				return err
			}

			history, err := sg.History(cmd.Context(), limitFlag)
			if err != nil {
				return fmt.Errorf("failed to list checkpoints: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonFlag {
				items := make([]checkpointJSON, 0, len(history))
				for _, h := range history {
					items = append(items, checkpointJSON(h))
				}
				return jsonutil.Write(out, items)
			}

			if len(history) == 0 {
				fmt.Fprintf(out, "No checkpoints for task %s.\n", sg.TaskID())
				return nil
			}
			for _, h := range history {
				fmt.Fprintf(out, "%s  %s  %s\n",
					shortHash(h.Hash),
					h.Timestamp.Local().Format("2006-01-02 15:04:05"),
					truncate(h.Message, maxMessageDisplayLength),
				)
			}
			fmt.Fprintf(out, "Base: %s\n", shortHash(sg.BaseHash()))
			return nil
		}),
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print checkpoints as JSON")
	cmd.Flags().IntVarP(&limitFlag, "limit", "n", 0, "Show at most this many checkpoints (0 for all)")

	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
