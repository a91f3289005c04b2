package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/entireio/shadow/cmd/shadow/cli/checkpoint"
	"github.com/entireio/shadow/cmd/shadow/cli/jsonutil"
	"github.com/entireio/shadow/redact"

	"github.com/spf13/cobra"
)

// diffFileJSON is the --json representation of one changed file.
type diffFileJSON struct {
	Path        string `json:"path"`
	Additions   int    `json:"additions"`
	Deletions   int    `json:"deletions"`
	Before      string `json:"before"`
	After       string `json:"after"`
	BeforeError string `json:"before_error,omitempty"`
	AfterError  string `json:"after_error,omitempty"`
}

func newDiffCmd(a *app) *cobra.Command {
	var fromFlag string
	var toFlag string
	var jsonFlag bool
	var statFlag bool
	var redactFlag bool
	var noPagerFlag bool

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show changes between checkpoints or against the workspace",
		Long: `Show per-file changes between two checkpoints, or between a checkpoint and
the current workspace.

  --from  Starting checkpoint (default: the first commit of the shadow history)
  --to    Ending checkpoint (default: the workspace as it is now)`,
		Args: cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			if a.disabled(cmd) {
				return nil
			}
			sg, err := a.openTask(cmd.Context())
			if err != nil {
				return err
			}

			diffs, err := sg.Diff(cmd.Context(), checkpoint.DiffOptions{From: fromFlag, To: toFlag})
			if err != nil {
				return fmt.Errorf("failed to compute diff: %w", err)
			}
			if redactFlag {
				diffs = redactDiffs(diffs)
			}

			if jsonFlag {
				return jsonutil.Write(cmd.OutOrStdout(), diffJSON(diffs))
			}

			var sb strings.Builder
			pal := paletteFor(cmd.OutOrStdout())
			if statFlag {
				renderDiffStat(&sb, diffs, pal)
			} else {
				renderDiff(&sb, diffs, pal)
			}
			if noPagerFlag {
				fmt.Fprint(cmd.OutOrStdout(), sb.String())
			} else {
				outputWithPager(cmd.Context(), cmd.OutOrStdout(), sb.String())
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&fromFlag, "from", "", "Starting checkpoint hash")
	cmd.Flags().StringVar(&toFlag, "to", "", "Ending checkpoint hash")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the diff as JSON")
	cmd.Flags().BoolVar(&statFlag, "stat", false, "Print only per-file line counts")
	cmd.Flags().BoolVar(&redactFlag, "redact", false, "Replace secrets in file contents with "+redact.Placeholder)
	cmd.Flags().BoolVar(&noPagerFlag, "no-pager", false, "Disable pager output")

	return cmd
}

// redactDiffs returns diffs with secrets removed from both sides. Line counts
// are left as computed from the original contents.
func redactDiffs(diffs []checkpoint.FileDiff) []checkpoint.FileDiff {
	out := make([]checkpoint.FileDiff, len(diffs))
	for i, d := range diffs {
		d.Before.Text = redact.String(d.Before.Text)
		d.After.Text = redact.String(d.After.Text)
		out[i] = d
	}
	return out
}

func diffJSON(diffs []checkpoint.FileDiff) []diffFileJSON {
	out := make([]diffFileJSON, 0, len(diffs))
	for _, d := range diffs {
		f := diffFileJSON{
			Path:      d.Relative,
			Additions: d.Additions,
			Deletions: d.Deletions,
			Before:    d.Before.Text,
			After:     d.After.Text,
		}
		if d.Before.Err != nil {
			f.BeforeError = redact.Error(d.Before.Err)
		}
		if d.After.Err != nil {
			f.AfterError = redact.Error(d.After.Err)
		}
		out = append(out, f)
	}
	return out
}

func renderDiffStat(w io.Writer, diffs []checkpoint.FileDiff, pal palette) {
	if len(diffs) == 0 {
		fmt.Fprintln(w, "No changes.")
		return
	}
	width := 0
	for _, d := range diffs {
		width = max(width, len(d.Relative))
	}
	var adds, dels int
	for _, d := range diffs {
		fmt.Fprintf(w, " %-*s | %s %s\n", width, d.Relative,
			pal.added(fmt.Sprintf("+%d", d.Additions)),
			pal.removed(fmt.Sprintf("-%d", d.Deletions)))
		adds += d.Additions
		dels += d.Deletions
	}
	fmt.Fprintf(w, " %d file(s) changed, %d insertion(s), %d deletion(s)\n", len(diffs), adds, dels)
}

func renderDiff(w io.Writer, diffs []checkpoint.FileDiff, pal palette) {
	if len(diffs) == 0 {
		fmt.Fprintln(w, "No changes.")
		return
	}
	for _, d := range diffs {
		before, after := "a/"+d.Relative, "b/"+d.Relative
		if d.Before.Missing() {
			before = "/dev/null"
		}
		if d.After.Missing() {
			after = "/dev/null"
		}
		fmt.Fprintln(w, pal.header("--- "+before))
		fmt.Fprintln(w, pal.header("+++ "+after))
		if d.Before.Err != nil && !d.Before.Missing() {
			fmt.Fprintln(w, pal.note("! before unavailable: "+redact.Error(d.Before.Err)))
		}
		if d.After.Err != nil && !d.After.Missing() {
			fmt.Fprintln(w, pal.note("! after unavailable: "+redact.Error(d.After.Err)))
		}
		for _, l := range d.Lines() {
			switch l.Op {
			case checkpoint.LineInsert:
				fmt.Fprintln(w, pal.added("+"+l.Text))
			case checkpoint.LineDelete:
				fmt.Fprintln(w, pal.removed("-"+l.Text))
			case checkpoint.LineEqual:
				fmt.Fprintf(w, " %s\n", l.Text)
			}
		}
	}
}
