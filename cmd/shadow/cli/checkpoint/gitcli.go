package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// isolatedGitEnv lists variables that would redirect git away from the shadow
// repository if inherited from the caller (for example inside a git hook).
var isolatedGitEnv = []string{
	"GIT_DIR",
	"GIT_WORK_TREE",
	"GIT_INDEX_FILE",
	"GIT_OBJECT_DIRECTORY",
	"GIT_ALTERNATE_OBJECT_DIRECTORIES",
	"GIT_NAMESPACE",
	"GIT_PREFIX",
}

// gitCLI runs git porcelain commands against a shadow repository.
// go-git v5 mishandles several of these (reset --hard deletes untracked
// directories, branch deletion ignores packed refs), so they shell out.
type gitCLI struct {
	// gitDir is the shadow repository metadata directory (<checkpointsDir>/.git).
	gitDir string
	// workTree overrides the worktree. Empty means git falls back to
	// core.worktree, or the parent of gitDir when that is unset.
	workTree string
}

func (g *gitCLI) dir() string {
	if g.workTree != "" {
		return g.workTree
	}
	return filepath.Dir(g.gitDir)
}

func (g *gitCLI) env() []string {
	env := make([]string, 0, len(os.Environ())+2)
	for _, kv := range os.Environ() {
		if !isIsolatedVar(kv) {
			env = append(env, kv)
		}
	}
	env = append(env, "GIT_DIR="+g.gitDir)
	if g.workTree != "" {
		env = append(env, "GIT_WORK_TREE="+g.workTree)
	}
	return env
}

func isIsolatedVar(kv string) bool {
	name, _, _ := strings.Cut(kv, "=")
	for _, v := range isolatedGitEnv {
		if name == v {
			return true
		}
	}
	return false
}

// run executes git with args and returns trimmed stdout.
// On failure the error carries git's stderr.
func (g *gitCLI) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir()
	cmd.Env = g.env()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("git %s failed: %s: %w", strings.Join(args, " "), msg, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// exitCode extracts the exit status of a failed git invocation, or -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
