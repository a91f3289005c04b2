package checkpoint

import (
	"os"
	"path/filepath"
)

// ProtectedDirs returns the directories checkpoints are never taken in:
// the home directory and its Desktop, Documents and Downloads folders.
// Only the environment is consulted, the filesystem is not touched.
func ProtectedDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return nil
	}
	home = filepath.Clean(home)
	return []string{
		home,
		filepath.Join(home, "Desktop"),
		filepath.Join(home, "Documents"),
		filepath.Join(home, "Downloads"),
	}
}

// IsProtected reports whether dir is exactly one of ProtectedDirs.
// Subdirectories of those folders are allowed.
func IsProtected(dir string) bool {
	dir = filepath.Clean(dir)
	for _, p := range ProtectedDirs() {
		if dir == p {
			return true
		}
	}
	return false
}
