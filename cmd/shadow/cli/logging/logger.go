// Package logging provides structured logging for the shadow checkpoint CLI using slog.
//
// Usage:
//
//	// Initialize logger for a task (typically right after loading settings)
//	if err := logging.Init(storageRoot, taskID); err != nil {
//	    // handle error
//	}
//	defer logging.Close()
//
//	// Add context values
//	ctx = logging.WithWorkspace(ctx, workspaceDir)
//	ctx = logging.WithComponent(ctx, "checkpoint")
//
//	// Log with context - task/workspace/component extracted automatically
//	logging.Info(ctx, "checkpoint saved",
//	    slog.String("hash", hash),
//	)
package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/entireio/shadow/cmd/shadow/cli/paths"
	"github.com/entireio/shadow/cmd/shadow/cli/validation"
)

// LogLevelEnvVar is the environment variable that controls log level.
const LogLevelEnvVar = "SHADOW_LOG_LEVEL"

var (
	// logger is the package-level logger instance
	logger *slog.Logger

	// logFile holds the current log file handle for cleanup
	logFile *os.File

	// logBufWriter wraps logFile with buffered I/O for performance
	logBufWriter *bufio.Writer

	// currentTaskID stores the task ID from Init() to include in all logs
	currentTaskID string

	// mu protects logger, logFile, logBufWriter, and currentTaskID
	mu sync.RWMutex

	// logLevelGetter is an optional callback to get log level from settings.
	logLevelGetter func() string
)

// SetLogLevelGetter installs the fallback source for the log level, normally
// the "log_level" key of the shadow settings file. SHADOW_LOG_LEVEL wins when set.
func SetLogLevelGetter(getter func() string) {
	mu.Lock()
	defer mu.Unlock()
	logLevelGetter = getter
}

// Init initializes the logger for a task, writing JSON logs to
// <root>/logs/<task-id>.log.
//
// If the log file cannot be created, falls back to stderr.
func Init(root, taskID string) error {
	if err := validation.ValidateTaskID(taskID); err != nil {
		return fmt.Errorf("invalid task ID for logging: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	levelStr := os.Getenv(LogLevelEnvVar)
	if levelStr == "" && logLevelGetter != nil {
		levelStr = logLevelGetter()
	}
	level := parseLogLevel(levelStr)

	if levelStr != "" && !isValidLogLevel(levelStr) {
		fmt.Fprintf(os.Stderr, "[shadow] Warning: invalid log level %q, defaulting to INFO\n", levelStr)
	}

	logsPath := paths.LogsDir(root)
	if err := os.MkdirAll(logsPath, 0o750); err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	logFilePath := filepath.Join(logsPath, taskID+".log")
	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // taskID validated above
	if err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	logFile = f
	logBufWriter = bufio.NewWriterSize(f, 8192)
	logger = createLogger(logBufWriter, level)
	currentTaskID = taskID

	return nil
}

// Close closes the log file if one is open.
// Flushes any buffered data before closing.
// Safe to call multiple times.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	if logBufWriter != nil {
		_ = logBufWriter.Flush()
		logBufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	currentTaskID = ""
}

// resetLogger resets the logger to nil (for testing).
func resetLogger() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	logger = nil
}

// getLogger returns the current logger, or a default stderr logger if not initialized.
func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	if logger == nil {
		return slog.Default()
	}
	return logger
}

func getTaskID() string {
	mu.RLock()
	defer mu.RUnlock()
	return currentTaskID
}

// createLogger creates a JSON logger writing to the given writer at the specified level.
func createLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// parseLogLevel parses a log level string to slog.Level.
// Returns slog.LevelInfo for empty or invalid values.
func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isValidLogLevel(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR", "":
		return true
	default:
		return false
	}
}

// Debug logs at DEBUG level with context values automatically extracted.
func Debug(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs at INFO level with context values automatically extracted.
func Info(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs at WARN level with context values automatically extracted.
func Warn(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs at ERROR level with context values automatically extracted.
func Error(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelError, msg, attrs...)
}

// LogDuration logs msg with a duration_ms attribute measured since start.
// The CLI times shadow repository initialization by deferring it:
//
//	defer logging.LogDuration(ctx, slog.LevelDebug, "shadow repository opened", time.Now())
func LogDuration(ctx context.Context, level slog.Level, msg string, start time.Time, attrs ...any) {
	allAttrs := make([]any, 0, len(attrs)+1)
	allAttrs = append(allAttrs, slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	allAttrs = append(allAttrs, attrs...)
	log(ctx, level, msg, allAttrs...)
}

// Sink returns a single-argument diagnostic sink that writes DEBUG records
// tagged with the given component.
func Sink(ctx context.Context, component string) func(string) {
	ctx = WithComponent(ctx, component)
	return func(msg string) {
		Debug(ctx, msg)
	}
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := getLogger()

	var allAttrs []any

	globalTaskID := getTaskID()
	if globalTaskID != "" {
		allAttrs = append(allAttrs, slog.String("task_id", globalTaskID))
	}

	for _, a := range attrsFromContext(ctx, globalTaskID) {
		allAttrs = append(allAttrs, a)
	}
	allAttrs = append(allAttrs, attrs...)

	// Context values were already extracted as attributes.
	l.Log(context.Background(), level, msg, allAttrs...)
}

// attrsFromContext extracts logging attributes from a context.
// If globalTaskID is non-empty, skips adding task_id from context to avoid duplicates.
func attrsFromContext(ctx context.Context, globalTaskID string) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr

	if globalTaskID == "" {
		if s := TaskIDFromContext(ctx); s != "" {
			attrs = append(attrs, slog.String("task_id", s))
		}
	}
	if s := WorkspaceFromContext(ctx); s != "" {
		attrs = append(attrs, slog.String("workspace", s))
	}
	if s := ComponentFromContext(ctx); s != "" {
		attrs = append(attrs, slog.String("component", s))
	}

	return attrs
}
