package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

const accessibilityHelp = `
Environment Variables:
  SHADOW_HOME       Storage root for checkpoints, logs and settings
                    (default ~/.config/shadow).
  SHADOW_TASK_ID    Task ID used when --task is not given.
  SHADOW_LOG_LEVEL  Log level (debug, info, warn, error).
  ACCESSIBLE        Set to any value (e.g., ACCESSIBLE=1) to enable accessibility
                    mode. This uses simpler text prompts instead of interactive
                    TUI elements, which works better with screen readers.
`

// Version information (can be set at build time)
var (
	Version = "dev"
	Commit  = "unknown"
)

func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "shadow",
		Short: "Shadow checkpoints for agent workspaces",
		Long: `Shadow snapshots a workspace into an isolated git history so edits made by a
coding agent can be saved, diffed and reverted without touching the
workspace's own version control.
` + accessibilityHelp,
		// Let main.go handle error printing to avoid duplication
		SilenceErrors: true,
		SilenceUsage:  true,
		// Hide completion command from help but keep it functional
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	a.bindFlags(cmd)

	cmd.AddCommand(newInitCmd(a))
	cmd.AddCommand(newSaveCmd(a))
	cmd.AddCommand(newRestoreCmd(a))
	cmd.AddCommand(newDiffCmd(a))
	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newDeleteTaskCmd(a))
	cmd.AddCommand(newDoctorCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Shadow %s (%s)\n", Version, Commit)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
