// Package trailers provides parsing and formatting for shadow checkpoint commit trailers.
// Trailers are key-value metadata appended to git commit messages following the
// git trailer convention (key: value format after a blank line).
package trailers

import (
	"fmt"
	"regexp"
	"strings"
)

// TaskTrailerKey identifies the task that created a checkpoint commit.
const TaskTrailerKey = "Shadow-Task"

var taskTrailerRegex = regexp.MustCompile(`(?m)^` + TaskTrailerKey + `:\s*(\S+)\s*$`)

// FormatCheckpoint creates a checkpoint commit message carrying the task trailer.
func FormatCheckpoint(message, taskID string) string {
	message = strings.TrimRight(message, "\n")
	if message == "" {
		message = "checkpoint"
	}
	return fmt.Sprintf("%s\n\n%s: %s\n", message, TaskTrailerKey, taskID)
}

// ParseTask extracts the task ID from a commit message.
// Returns the task ID and true if found, empty string and false otherwise.
func ParseTask(commitMessage string) (string, bool) {
	matches := taskTrailerRegex.FindStringSubmatch(commitMessage)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1]), true
	}
	return "", false
}

// Subject returns the first line of a commit message.
func Subject(commitMessage string) string {
	if idx := strings.Index(commitMessage, "\n"); idx >= 0 {
		return commitMessage[:idx]
	}
	return commitMessage
}
