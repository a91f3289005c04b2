package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/entireio/shadow/cmd/shadow/cli/checkpoint"
	"github.com/entireio/shadow/cmd/shadow/cli/paths"
	"github.com/entireio/shadow/cmd/shadow/cli/versioncheck"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// doctorCheck is one diagnostic with its outcome.
type doctorCheck struct {
	Name   string
	Err    error
	Detail string
}

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check whether checkpoints can run here",
		Long: `Check the environment checkpoints depend on:
  - a git binary at or above the minimum supported version
  - a writable storage root
  - a workspace that is not a protected directory
  - no nested git repositories inside the workspace`,
		Args: cobra.NoArgs,
		RunE: a.runE(func(cmd *cobra.Command, _ []string) error {
			workspace, err := a.workspace()
			if err != nil {
				return err
			}
			checks := runDoctorChecks(cmd.Context(), a.root, workspace, checkpoint.DefaultPathLister())
			if printDoctorChecks(cmd.OutOrStdout(), checks, paletteFor(cmd.OutOrStdout())) {
				return NewSilentError(errors.New("doctor found problems"))
			}
			return nil
		}),
	}
}

// runDoctorChecks runs every check concurrently and returns them in a fixed order.
func runDoctorChecks(ctx context.Context, root, workspace string, lister checkpoint.PathLister) []doctorCheck {
	var gitCheck, storageCheck, workspaceCheck, nestedCheck doctorCheck
	var g errgroup.Group

	g.Go(func() error {
		version, err := versioncheck.RequireGit(ctx)
		gitCheck = doctorCheck{Name: "git", Err: err, Detail: version}
		return nil
	})

	g.Go(func() error {
		err := checkWritable(root)
		if err == nil && paths.IsWithin(root, workspace) {
			err = fmt.Errorf("%w: %s", checkpoint.ErrCheckpointsInWorkspace, root)
		}
		storageCheck = doctorCheck{Name: "storage", Err: err, Detail: root}
		return nil
	})

	protected := checkpoint.IsProtected(workspace)
	workspaceCheck = doctorCheck{Name: "workspace", Detail: workspace}
	if protected {
		workspaceCheck.Err = fmt.Errorf("%w: %s", checkpoint.ErrProtectedWorkspace, workspace)
	} else {
		// Scanning a protected directory would walk the whole home directory.
		g.Go(func() error {
			nestedCheck = doctorCheck{Name: "nested repositories", Detail: "none"}
			nested, err := checkpoint.FindNestedRepo(ctx, lister, workspace)
			if err == nil && nested != "" {
				rel, relErr := filepath.Rel(workspace, nested)
				if relErr != nil {
					rel = nested
				}
				err = &checkpoint.NestedRepoError{Path: nested, RelPath: filepath.ToSlash(rel)}
			}
			nestedCheck.Err = err
			return nil
		})
	}

	_ = g.Wait()

	checks := []doctorCheck{gitCheck, storageCheck, workspaceCheck}
	if !protected {
		checks = append(checks, nestedCheck)
	}
	return checks
}

// checkWritable creates and removes a scratch file under dir.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("storage root is not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

// printDoctorChecks writes one line per check and reports whether any failed.
func printDoctorChecks(w io.Writer, checks []doctorCheck, pal palette) bool {
	failed := false
	for _, c := range checks {
		if c.Err != nil {
			failed = true
			fmt.Fprintf(w, "%s %s: %v\n", pal.removed("✗"), c.Name, c.Err)
			continue
		}
		fmt.Fprintf(w, "%s %s: %s\n", pal.added("✓"), c.Name, c.Detail)
	}
	return failed
}
