// Package testutil provides shared test helpers for workspaces and shadow
// repositories. It has no build tags so every test package can use it.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/config"
)

// RequireGit skips the test when no git binary is available.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// TempDir returns a fresh temporary directory with symlinks resolved, so
// paths compare equal to what git reports (macOS /var is a symlink).
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("failed to resolve temp dir: %v", err)
	}
	return dir
}

// NewWorkspace returns a workspace directory and a separate storage root.
func NewWorkspace(t *testing.T) (workspace, storage string) {
	t.Helper()
	return TempDir(t), TempDir(t)
}

// InitRepo initializes the user's own git repository in dir with test user config.
func InitRepo(t *testing.T, dir string) {
	t.Helper()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}

	cfg, err := repo.Config()
	if err != nil {
		t.Fatalf("failed to get repo config: %v", err)
	}
	cfg.User.Name = "Test User"
	cfg.User.Email = "test@example.com"

	// Disable GPG signing for test commits
	if cfg.Raw == nil {
		cfg.Raw = config.New()
	}
	cfg.Raw.Section("commit").SetOption("gpgsign", "false")

	if err := repo.SetConfig(cfg); err != nil {
		t.Fatalf("failed to set repo config: %v", err)
	}
}

// WriteFile creates a file with the given content below dir.
// It creates parent directories as needed.
func WriteFile(t *testing.T, dir, path, content string) {
	t.Helper()

	fullPath := filepath.Join(dir, path)

	//nolint:gosec // test code, permissions are intentionally standard
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}

	//nolint:gosec // test code, permissions are intentionally standard
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}

// ReadFile reads a file below dir, failing the test if it is missing.
func ReadFile(t *testing.T, dir, path string) string {
	t.Helper()

	//nolint:gosec // test code, path is from test setup
	data, err := os.ReadFile(filepath.Join(dir, path))
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return string(data)
}

// FileExists checks if a file exists below dir.
func FileExists(dir, path string) bool {
	_, err := os.Stat(filepath.Join(dir, path))
	return err == nil
}

// Branches lists the local branches of the repository whose metadata is in
// <repoDir>/.git, sorted.
func Branches(t *testing.T, repoDir string) []string {
	t.Helper()

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("failed to open git repo: %v", err)
	}

	iter, err := repo.Branches()
	if err != nil {
		t.Fatalf("failed to list branches: %v", err)
	}

	var names []string
	//nolint:errcheck,gosec // ForEach callback doesn't return errors we need to handle
	iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	sort.Strings(names)
	return names
}

// BranchExists checks if a local branch exists in the repository.
func BranchExists(t *testing.T, repoDir, branchName string) bool {
	t.Helper()

	for _, name := range Branches(t, repoDir) {
		if name == branchName {
			return true
		}
	}
	return false
}

// CurrentBranch returns the branch HEAD points at, or "" when detached.
func CurrentBranch(t *testing.T, repoDir string) string {
	t.Helper()

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("failed to open git repo: %v", err)
	}
	head, err := repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		t.Fatalf("failed to read HEAD: %v", err)
	}
	if head.Type() != plumbing.SymbolicReference {
		return ""
	}
	return head.Target().Short()
}

// CommitMessage returns the message of the given commit.
func CommitMessage(t *testing.T, repoDir, hash string) string {
	t.Helper()

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("failed to open git repo: %v", err)
	}
	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		t.Fatalf("failed to get commit %s: %v", hash, err)
	}
	return commit.Message
}

// ConfigValue reads a raw config option from the repository, "" when unset.
func ConfigValue(t *testing.T, repoDir, section, option string) string {
	t.Helper()

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("failed to open git repo: %v", err)
	}
	cfg, err := repo.Config()
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	return cfg.Raw.Section(section).Option(option)
}
