package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/entireio/shadow/cmd/shadow/cli/paths"
	"github.com/entireio/shadow/cmd/shadow/cli/validation"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

const (
	defaultBranchPollInterval = 100 * time.Millisecond
	defaultBranchPollTimeout  = 5 * time.Second
)

// DeleteTaskOptions identifies the task whose checkpoints DeleteTask removes.
type DeleteTaskOptions struct {
	TaskID       string
	Scope        Scope
	StorageRoot  string
	WorkspaceDir string

	// Log receives diagnostic lines. Defaults to a no-op.
	Log func(string)

	// PollInterval and PollTimeout bound the wait for HEAD to leave the task
	// branch. Zero values mean 100ms and 5s.
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// DeleteTask removes a task's checkpoints. ScopeTask deletes the task's
// checkpoints directory. ScopeWorkspace deletes the task branch, first moving
// the shared repository to its default branch when the task branch is checked
// out. The workspace files are never modified.
func DeleteTask(ctx context.Context, opts DeleteTaskOptions) error {
	if err := validation.ValidateTaskID(opts.TaskID); err != nil {
		return fmt.Errorf("invalid task ID: %w", err)
	}
	if opts.StorageRoot == "" {
		return errors.New("storage root is required")
	}
	logf := func(format string, args ...any) {
		if opts.Log != nil {
			opts.Log(fmt.Sprintf("[%s] %s", opts.TaskID, fmt.Sprintf(format, args...)))
		}
	}

	if opts.Scope == ScopeTask {
		dir := paths.TaskCheckpointsDir(opts.StorageRoot, opts.TaskID)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove task checkpoints: %w", err)
		}
		logf("removed %s", dir)
		return nil
	}

	workspace, err := filepath.Abs(opts.WorkspaceDir)
	if err != nil || opts.WorkspaceDir == "" {
		return fmt.Errorf("invalid workspace directory %q", opts.WorkspaceDir)
	}
	checkpointsDir := paths.WorkspaceCheckpointsDir(opts.StorageRoot, workspace)
	if paths.IsWithin(checkpointsDir, workspace) {
		return fmt.Errorf("%w: %s", ErrCheckpointsInWorkspace, checkpointsDir)
	}
	gitDir := filepath.Join(checkpointsDir, paths.GitDirName)
	if _, err := os.Stat(gitDir); errors.Is(err, fs.ErrNotExist) {
		logf("no shadow repository for %s", workspace)
		return nil
	}

	repo, err := git.PlainOpen(checkpointsDir)
	if err != nil {
		return fmt.Errorf("failed to open shadow repository: %w", err)
	}

	branch := TaskBranchName(opts.TaskID)
	exists, err := branchExists(repo, branch)
	if err != nil {
		return err
	}
	if !exists {
		logf("task branch %s does not exist", branch)
		return nil
	}

	head, err := repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return fmt.Errorf("failed to read shadow HEAD: %w", err)
	}
	attached := &gitCLI{gitDir: gitDir}
	if head.Type() != plumbing.SymbolicReference || head.Target() != plumbing.NewBranchReferenceName(branch) {
		if _, err := attached.run(ctx, "branch", "-D", "--", branch); err != nil {
			return fmt.Errorf("failed to delete task branch: %w", err)
		}
		logf("deleted task branch %s", branch)
		return nil
	}

	return deleteCheckedOutBranch(ctx, repo, checkpointsDir, branch, opts, logf)
}

// deleteCheckedOutBranch detaches the shadow repository from the workspace,
// checks out the default branch into checkpointsDir, deletes the task branch
// and reattaches the workspace.
func deleteCheckedOutBranch(ctx context.Context, repo *git.Repository, checkpointsDir, branch string, opts DeleteTaskOptions, logf func(string, ...any)) (err error) {
	gitDir := filepath.Join(checkpointsDir, paths.GitDirName)

	cfg, err := repo.Config()
	if err != nil {
		return fmt.Errorf("failed to get shadow repository config: %w", err)
	}
	worktree := cfg.Core.Worktree

	defaultBranch, err := findDefaultBranch(repo)
	if err != nil {
		return err
	}

	// Every command below runs against checkpointsDir so the workspace is never
	// reset, cleaned or checked out.
	detached := &gitCLI{gitDir: gitDir, workTree: checkpointsDir}

	if worktree != "" {
		if _, err := detached.run(ctx, "config", "--unset", "core.worktree"); err != nil {
			return fmt.Errorf("failed to detach worktree: %w", err)
		}
		defer func() {
			if _, restoreErr := detached.run(context.WithoutCancel(ctx), "config", "core.worktree", worktree); restoreErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to restore worktree: %w", restoreErr))
			}
		}()
	}

	if _, err := detached.run(ctx, "reset", "--hard"); err != nil {
		return fmt.Errorf("failed to reset detached checkout: %w", err)
	}
	if _, err := detached.run(ctx, "clean", "-f", "-d"); err != nil {
		return fmt.Errorf("failed to clean detached checkout: %w", err)
	}
	if _, err := detached.run(ctx, "checkout", defaultBranch, "--force"); err != nil {
		return fmt.Errorf("failed to check out %s: %w", defaultBranch, err)
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultBranchPollInterval
	}
	timeout := opts.PollTimeout
	if timeout <= 0 {
		timeout = defaultBranchPollTimeout
	}
	if err := waitForBranch(ctx, detached, defaultBranch, interval, timeout); err != nil {
		return err
	}

	if _, err := detached.run(ctx, "branch", "-D", "--", branch); err != nil {
		return fmt.Errorf("failed to delete task branch: %w", err)
	}
	logf("deleted task branch %s after switching to %s", branch, defaultBranch)

	if err := pruneCheckout(checkpointsDir); err != nil {
		return err
	}
	return nil
}

// findDefaultBranch returns main or master, whichever exists.
func findDefaultBranch(repo *git.Repository) (string, error) {
	for _, name := range []string{"main", "master"} {
		ok, err := branchExists(repo, name)
		if err != nil {
			return "", err
		}
		if ok {
			return name, nil
		}
	}
	return "", ErrNoDefaultBranch
}

// waitForBranch polls the current branch until it is want or timeout elapses.
func waitForBranch(ctx context.Context, g *gitCLI, want string, interval, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		current, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
		if err == nil && current == want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: HEAD is %q, want %q", ErrBranchSwitchTimeout, current, want)
		}
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // context cancellation propagates as-is
		case <-ticker.C:
		}
	}
}

// pruneCheckout removes the files the detached checkout wrote next to .git.
func pruneCheckout(checkpointsDir string) error {
	entries, err := os.ReadDir(checkpointsDir)
	if err != nil {
		return fmt.Errorf("failed to read checkpoints directory: %w", err)
	}
	for _, e := range entries {
		if e.Name() == paths.GitDirName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(checkpointsDir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
	}
	return nil
}
