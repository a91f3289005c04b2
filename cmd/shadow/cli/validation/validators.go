// Package validation provides input validation functions for the shadow CLI.
// This package has no dependencies to avoid import cycles.
package validation

import (
	"errors"
	"fmt"
	"regexp"
)

// pathSafeRegex matches alphanumeric characters, underscores, dots, and hyphens only.
// Used to validate IDs that will be used in file paths and branch names.
var pathSafeRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidateTaskID validates that a task ID is safe to use as a path component
// and as part of a git branch name.
func ValidateTaskID(id string) error {
	if id == "" {
		return errors.New("task ID cannot be empty")
	}
	if id == "." || id == ".." {
		return fmt.Errorf("invalid task ID %q", id)
	}
	if !pathSafeRegex.MatchString(id) {
		return fmt.Errorf("invalid task ID %q: must be alphanumeric with dots/underscores/hyphens only", id)
	}
	return nil
}
