// Package paths defines the on-disk layout of shadow checkpoint storage.
//
// All checkpoint metadata lives under a global storage root, never inside the
// workspace being snapshotted:
//
//	<root>/tasks/<task-id>/checkpoints       one shadow repository per task
//	<root>/checkpoints/<workspace-hash>      one shadow repository per workspace
//	<root>/logs/<task-id>.log                JSON logs
//	<root>/settings.json                     settings (settings.local.json overrides)
package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StorageRootEnvVar overrides the default storage root.
const StorageRootEnvVar = "SHADOW_HOME"

// Directory and file names inside the storage root.
const (
	TasksDirName       = "tasks"
	CheckpointsDirName = "checkpoints"
	LogsDirName        = "logs"
	SettingsFileName   = "settings.json"
	LocalSettingsFile  = "settings.local.json"
	defaultRootDirName = ".config/shadow"
)

// GitDirName is the metadata directory created inside every checkpoints directory.
const GitDirName = ".git"

// WorkspaceHashLength is the number of hex characters kept from the workspace digest.
const WorkspaceHashLength = 8

// StorageRoot returns the global storage root.
// The SHADOW_HOME environment variable wins; otherwise ~/.config/shadow is used.
func StorageRoot() (string, error) {
	if root := os.Getenv(StorageRootEnvVar); root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", StorageRootEnvVar, err)
		}
		return abs, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, defaultRootDirName), nil
}

// WorkspaceHash returns a stable short digest of the absolute workspace path.
// It is used to bucket workspace-scoped shadow repositories.
func WorkspaceHash(workspaceDir string) string {
	abs := workspaceDir
	if a, err := filepath.Abs(workspaceDir); err == nil {
		abs = a
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:WorkspaceHashLength]
}

// TaskCheckpointsDir returns the metadata directory of a task-scoped shadow repository.
func TaskCheckpointsDir(root, taskID string) string {
	return filepath.Join(root, TasksDirName, taskID, CheckpointsDirName)
}

// TaskDir returns the per-task directory that holds the task's checkpoints directory.
func TaskDir(root, taskID string) string {
	return filepath.Join(root, TasksDirName, taskID)
}

// WorkspaceCheckpointsDir returns the metadata directory of a workspace-scoped shadow repository.
func WorkspaceCheckpointsDir(root, workspaceDir string) string {
	return filepath.Join(root, CheckpointsDirName, WorkspaceHash(workspaceDir))
}

// LogsDir returns the directory where log files are written.
func LogsDir(root string) string {
	return filepath.Join(root, LogsDirName)
}

// IsWithin reports whether path equals dir or lies beneath it.
// Both paths are cleaned; neither is resolved against the filesystem.
func IsWithin(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ErrRelativePath is returned by RequireAbs for relative input.
var ErrRelativePath = errors.New("path must be absolute")

// RequireAbs returns the cleaned path if it is absolute.
func RequireAbs(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %s", ErrRelativePath, path)
	}
	return filepath.Clean(path), nil
}
