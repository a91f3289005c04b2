package logging

import (
	"context"
)

// Context keys for logging values.
// Using private types to avoid key collisions.
type contextKey int

const (
	taskIDKey contextKey = iota
	workspaceKey
	componentKey
)

// WithTask adds a task ID to the context.
func WithTask(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey, taskID)
}

// WithWorkspace adds the workspace directory to the context.
func WithWorkspace(ctx context.Context, workspaceDir string) context.Context {
	return context.WithValue(ctx, workspaceKey, workspaceDir)
}

// WithComponent adds a component name to the context.
// Component names help identify the subsystem generating logs (e.g., "checkpoint", "cli", "delete").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// TaskIDFromContext extracts the task ID from the context.
// Returns empty string if not set.
func TaskIDFromContext(ctx context.Context) string {
	return stringValue(ctx, taskIDKey)
}

// WorkspaceFromContext extracts the workspace directory from the context.
// Returns empty string if not set.
func WorkspaceFromContext(ctx context.Context) string {
	return stringValue(ctx, workspaceKey)
}

// ComponentFromContext extracts the component name from the context.
// Returns empty string if not set.
func ComponentFromContext(ctx context.Context) string {
	return stringValue(ctx, componentKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
