package checkpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrProtectedWorkspace is returned by New when the workspace is the home
	// directory or one of its well-known user folders.
	ErrProtectedWorkspace = errors.New("cannot use checkpoints in a protected system directory")

	// ErrAlreadyInitialized is returned when Initialize is called twice on the same instance.
	ErrAlreadyInitialized = errors.New("shadow repository already initialized")

	// ErrNotInitialized is returned by operations that need an initialized repository.
	ErrNotInitialized = errors.New("shadow repository not initialized")

	// ErrCheckpointsInWorkspace is returned when the metadata directory would live inside the workspace.
	ErrCheckpointsInWorkspace = errors.New("checkpoints directory must not be inside the workspace")

	// ErrBranchSwitchTimeout is returned by DeleteTask when HEAD does not move to the
	// default branch in time.
	ErrBranchSwitchTimeout = errors.New("timed out waiting for branch switch")

	// ErrNoDefaultBranch is returned by DeleteTask when neither main nor master exists.
	ErrNoDefaultBranch = errors.New("no main or master branch in shadow repository")
)

// NestedRepoError reports a version-controlled directory below the workspace root.
// Checkpoints are refused in that case because the inner repository's files
// cannot be tracked reliably.
type NestedRepoError struct {
	// Path is the absolute path of the nested repository.
	Path string
	// RelPath is Path relative to the workspace.
	RelPath string
}

func (e *NestedRepoError) Error() string {
	return fmt.Sprintf("checkpoints are disabled because a nested git repository was detected at: %s", e.RelPath)
}

// WorktreeMismatchError reports an existing shadow repository whose configured
// worktree is not the workspace it is being opened for.
type WorktreeMismatchError struct {
	Configured string
	Workspace  string
}

func (e *WorktreeMismatchError) Error() string {
	return fmt.Sprintf("checkpoints can only be used in the original workspace: configured %s, got %s", e.Configured, e.Workspace)
}
