package checkpoint

import (
	"fmt"
	"strings"

	"github.com/entireio/shadow/cmd/shadow/cli/paths"
)

// Scope selects how shadow repositories are laid out on disk.
type Scope int

const (
	// ScopeTask keeps one shadow repository per task.
	ScopeTask Scope = iota
	// ScopeWorkspace shares one shadow repository per workspace, with a branch per task.
	ScopeWorkspace
)

// TaskBranchPrefix prefixes the per-task branch of a workspace-scoped repository.
const TaskBranchPrefix = "task-"

func (s Scope) String() string {
	switch s {
	case ScopeTask:
		return "task"
	case ScopeWorkspace:
		return "workspace"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// ParseScope converts a settings or flag value into a Scope. Empty means ScopeTask.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "task":
		return ScopeTask, nil
	case "workspace":
		return ScopeWorkspace, nil
	default:
		return ScopeTask, fmt.Errorf("unknown checkpoint scope %q (expected task or workspace)", s)
	}
}

// StorageDir returns the checkpoints directory for the given scope.
// ScopeTask keys on the task ID, ScopeWorkspace on a hash of the workspace path.
func StorageDir(scope Scope, root, taskID, workspaceDir string) string {
	if scope == ScopeWorkspace {
		return paths.WorkspaceCheckpointsDir(root, workspaceDir)
	}
	return paths.TaskCheckpointsDir(root, taskID)
}

// TaskBranchName returns the branch holding a task's checkpoints in a
// workspace-scoped repository.
func TaskBranchName(taskID string) string {
	return TaskBranchPrefix + taskID
}
