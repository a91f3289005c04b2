package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/entireio/shadow/cmd/shadow/cli/checkpoint"
	"github.com/entireio/shadow/cmd/shadow/cli/logging"
	"github.com/entireio/shadow/cmd/shadow/cli/paths"
	"github.com/entireio/shadow/cmd/shadow/cli/settings"
	"github.com/entireio/shadow/cmd/shadow/cli/telemetry"
	"github.com/entireio/shadow/cmd/shadow/cli/versioncheck"
	"github.com/entireio/shadow/cmd/shadow/cli/warnings"

	"github.com/spf13/cobra"
)

// TaskIDEnvVar supplies the task ID when --task is not given.
const TaskIDEnvVar = "SHADOW_TASK_ID"

var errTaskRequired = fmt.Errorf("a task ID is required: pass --task or set %s", TaskIDEnvVar)

// app holds the state shared by every command of one invocation.
type app struct {
	storageFlag   string
	workspaceFlag string
	taskFlag      string
	scopeFlag     string

	root      string
	settings  *settings.Settings
	telemetry telemetry.Client
	warnings  *warnings.Notifier
}

func (a *app) bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.storageFlag, "storage", "", "Storage root (default $SHADOW_HOME or ~/.config/shadow)")
	flags.StringVarP(&a.workspaceFlag, "workspace", "w", "", "Workspace directory (default current directory)")
	flags.StringVarP(&a.taskFlag, "task", "t", "", "Task ID (default $"+TaskIDEnvVar+")")
	flags.StringVar(&a.scopeFlag, "scope", "", "Checkpoint scope: task or workspace (default from settings)")
}

// runE wraps a command body so telemetry and logs are flushed whether or not
// it fails.
func (a *app) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.finish(cmd)
		if err := a.load(); err != nil {
			return err
		}
		return fn(cmd, args)
	}
}

// load resolves the storage root and reads settings.
func (a *app) load() error {
	if a.settings != nil {
		return nil
	}
	root := a.storageFlag
	if root == "" {
		r, err := paths.StorageRoot()
		if err != nil {
			return err
		}
		root = r
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve storage root: %w", err)
	}

	s, err := settings.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	a.root = root
	a.settings = s
	a.telemetry = telemetry.NewClient(Version, s.Telemetry)
	a.warnings = warnings.ForStderr(s.MaxWarnings)
	logging.SetLogLevelGetter(func() string { return s.LogLevel })
	return nil
}

func (a *app) finish(cmd *cobra.Command) {
	if a.telemetry != nil {
		scope := ""
		if a.settings != nil {
			scope = a.settings.Scope
		}
		a.telemetry.TrackCommand(cmd, scope)
		a.telemetry.Close()
	}
	logging.Close()
}

func (a *app) workspace() (string, error) {
	dir := a.workspaceFlag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace: %w", err)
	}
	return abs, nil
}

func (a *app) taskID() (string, error) {
	if a.taskFlag != "" {
		return a.taskFlag, nil
	}
	if id := os.Getenv(TaskIDEnvVar); id != "" {
		return id, nil
	}
	return "", errTaskRequired
}

func (a *app) scope() (checkpoint.Scope, error) {
	name := a.scopeFlag
	if name == "" {
		name = a.settings.Scope
	}
	return checkpoint.ParseScope(name)
}

// disabled prints a notice and reports true when checkpoints are turned off.
func (a *app) disabled(cmd *cobra.Command) bool {
	if a.settings.Enabled {
		return false
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Shadow checkpoints are disabled in %s.\n", filepath.Join(a.root, paths.SettingsFileName))
	return true
}

// warn shows a configuration problem and reports it as a telemetry warning.
func (a *app) warn(ctx context.Context, msg string) {
	if a.warnings.Warn(msg) {
		a.telemetry.ReportWarning(ctx, msg)
	}
}

// openShadow builds and initializes the shadow repository for the current
// task and workspace, opening it when it already exists.
func (a *app) openShadow(ctx context.Context, taskID string) (*checkpoint.ShadowGit, checkpoint.InitResult, error) {
	var res checkpoint.InitResult
	workspace, err := a.workspace()
	if err != nil {
		return nil, res, err
	}
	scope, err := a.scope()
	if err != nil {
		return nil, res, err
	}
	if err := logging.Init(a.root, taskID); err != nil {
		return nil, res, fmt.Errorf("failed to initialize logging: %w", err)
	}
	ctx = logging.WithWorkspace(logging.WithTask(ctx, taskID), workspace)
	defer logging.LogDuration(ctx, slog.LevelDebug, "shadow repository opened", time.Now())

	sg, err := checkpoint.New(checkpoint.Options{
		TaskID:        taskID,
		Scope:         scope,
		StorageRoot:   a.root,
		WorkspaceDir:  workspace,
		ExtraExcludes: a.settings.ExcludePatterns,
		Log:           logging.Sink(ctx, "checkpoint"),
		Warn:          func(msg string) { a.warn(ctx, msg) },
		Reporter:      a.telemetry,
	})
	if err != nil {
		return nil, res, silenceConfigError(err)
	}
	sg.Subscribe(checkpoint.AllEvents, eventLogger(logging.WithComponent(ctx, "events")))

	res, err = sg.Initialize(ctx)
	if err != nil {
		return nil, res, silenceConfigError(err)
	}
	return sg, res, nil
}

// openTask resolves the task ID from flags and opens its shadow repository.
func (a *app) openTask(ctx context.Context) (*checkpoint.ShadowGit, error) {
	taskID, err := a.taskID()
	if err != nil {
		return nil, err
	}
	sg, _, err := a.openShadow(ctx, taskID)
	return sg, err
}

// eventLogger records engine events in the task log.
func eventLogger(ctx context.Context) checkpoint.Listener {
	return func(ev checkpoint.Event) {
		switch e := ev.(type) {
		case checkpoint.InitializeEvent:
			logging.Info(ctx, "shadow repository ready",
				slog.String("workspace", e.WorkspaceDir),
				slog.String("base", e.BaseHash),
				slog.Bool("created", e.Created),
				slog.Int64("duration_ms", e.Duration.Milliseconds()),
			)
		case checkpoint.CheckpointEvent:
			logging.Info(ctx, "checkpoint saved",
				slog.String("from", e.FromHash),
				slog.String("to", e.ToHash),
				slog.Int64("duration_ms", e.Duration.Milliseconds()),
			)
		case checkpoint.RestoreEvent:
			logging.Info(ctx, "checkpoint restored",
				slog.String("hash", e.CommitHash),
				slog.Int64("duration_ms", e.Duration.Milliseconds()),
			)
		case checkpoint.ErrorEvent:
			logging.Error(ctx, "checkpoint operation failed", slog.String("error", e.Err.Error()))
		}
	}
}

// shortHash abbreviates a commit hash for display.
func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

// isConfigError reports errors caused by where the workspace or storage live
// rather than by a failed git operation. The engine has already shown them
// through the warnings notifier.
func isConfigError(err error) bool {
	var nested *checkpoint.NestedRepoError
	var mismatch *checkpoint.WorktreeMismatchError
	return errors.As(err, &nested) || errors.As(err, &mismatch) ||
		errors.Is(err, checkpoint.ErrProtectedWorkspace) ||
		errors.Is(err, checkpoint.ErrCheckpointsInWorkspace) ||
		errors.Is(err, versioncheck.ErrGitNotFound) ||
		errors.Is(err, versioncheck.ErrGitTooOld)
}

func silenceConfigError(err error) error {
	if isConfigError(err) {
		return NewSilentError(err)
	}
	return err
}
