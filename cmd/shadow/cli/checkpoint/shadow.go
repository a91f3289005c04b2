// Package checkpoint snapshots a workspace into an isolated "shadow" git
// repository so edits can be captured, diffed and reverted without touching
// the workspace's own version control.
//
// The shadow repository's metadata lives under the storage root in
// <checkpointsDir>/.git while its worktree (core.worktree) points at the
// workspace. Plumbing goes through go-git; porcelain that go-git v5 gets wrong
// (add with exclude files, clean, reset --hard, branch -D, checkout) shells out
// to the git CLI with GIT_DIR and GIT_WORK_TREE set explicitly.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/entireio/shadow/cmd/shadow/cli/logging"
	"github.com/entireio/shadow/cmd/shadow/cli/paths"
	"github.com/entireio/shadow/cmd/shadow/cli/trailers"
	"github.com/entireio/shadow/cmd/shadow/cli/validation"
	"github.com/entireio/shadow/cmd/shadow/cli/versioncheck"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const (
	// AuthorName and AuthorEmail identify checkpoint commits.
	AuthorName  = "Shadow Checkpoint"
	AuthorEmail = "checkpoints@shadow.local"

	// DefaultBranch is the initial branch of a newly created shadow repository.
	DefaultBranch = "main"

	initialCommitMessage = "initial commit"
)

// Reporter receives errors that are swallowed after logging.
type Reporter interface {
	ReportError(ctx context.Context, kind string, err error)
}

type nopReporter struct{}

func (nopReporter) ReportError(context.Context, string, error) {}

// Options configures New.
type Options struct {
	TaskID string
	Scope  Scope

	// StorageRoot is where checkpoints are kept. The directory is derived
	// with StorageDir unless CheckpointsDir is set.
	StorageRoot    string
	CheckpointsDir string

	// WorkspaceDir is the directory being checkpointed.
	WorkspaceDir string

	// ExtraExcludes are appended to the generated exclude patterns.
	ExtraExcludes []string

	// Log receives diagnostic lines. Defaults to the logging package.
	Log func(string)
	// Warn shows configuration problems to the user. Defaults to a no-op.
	Warn func(string)
	// Reporter receives best-effort failures. Defaults to a no-op.
	Reporter Reporter
	// PathLister is used for nested repository detection. Defaults to DefaultPathLister.
	PathLister PathLister
}

// InitResult describes a successful Initialize.
type InitResult struct {
	Created  bool
	Duration time.Duration
}

// Info is one entry of a task's checkpoint history.
type Info struct {
	Hash      string
	Message   string
	Timestamp time.Time
}

// ShadowGit manages the shadow repository of one task in one workspace.
// Operations on an instance must be serialized by the caller.
type ShadowGit struct {
	taskID         string
	scope          Scope
	checkpointsDir string
	workspaceDir   string
	extraExcludes  []string

	log      func(string)
	warn     func(string)
	reporter Reporter
	lister   PathLister

	repo        *git.Repository
	git         *gitCLI
	baseHash    string
	checkpoints []string

	events emitter
}

// New validates opts and returns an uninitialized ShadowGit.
// It performs no filesystem writes; protected workspaces are rejected first.
func New(opts Options) (*ShadowGit, error) {
	warn := opts.Warn
	if warn == nil {
		warn = func(string) {}
	}

	workspace, err := filepath.Abs(opts.WorkspaceDir)
	if err != nil || opts.WorkspaceDir == "" {
		return nil, fmt.Errorf("invalid workspace directory %q", opts.WorkspaceDir)
	}
	if IsProtected(workspace) {
		err := fmt.Errorf("%w: %s", ErrProtectedWorkspace, workspace)
		warn(err.Error())
		return nil, err
	}

	if err := validation.ValidateTaskID(opts.TaskID); err != nil {
		return nil, fmt.Errorf("invalid task ID: %w", err)
	}

	checkpointsDir := opts.CheckpointsDir
	if checkpointsDir == "" {
		if opts.StorageRoot == "" {
			return nil, errors.New("either a storage root or a checkpoints directory is required")
		}
		checkpointsDir = StorageDir(opts.Scope, opts.StorageRoot, opts.TaskID, workspace)
	}
	checkpointsDir, err = filepath.Abs(checkpointsDir)
	if err != nil {
		return nil, fmt.Errorf("invalid checkpoints directory: %w", err)
	}
	if paths.IsWithin(checkpointsDir, workspace) {
		err := fmt.Errorf("%w: %s", ErrCheckpointsInWorkspace, checkpointsDir)
		warn(err.Error())
		return nil, err
	}

	ctx := logging.WithWorkspace(logging.WithTask(context.Background(), opts.TaskID), workspace)
	s := &ShadowGit{
		taskID:         opts.TaskID,
		scope:          opts.Scope,
		checkpointsDir: checkpointsDir,
		workspaceDir:   workspace,
		extraExcludes:  opts.ExtraExcludes,
		log:            opts.Log,
		warn:           warn,
		reporter:       opts.Reporter,
		lister:         opts.PathLister,
	}
	if s.log == nil {
		s.log = logging.Sink(ctx, "checkpoint")
	}
	if s.reporter == nil {
		s.reporter = nopReporter{}
	}
	if s.lister == nil {
		s.lister = DefaultPathLister()
	}
	return s, nil
}

// TaskID returns the task this instance checkpoints.
func (s *ShadowGit) TaskID() string { return s.taskID }

// Scope returns whether the shadow repository is per task or shared by the workspace.
func (s *ShadowGit) Scope() Scope { return s.scope }

// WorkspaceDir returns the absolute workspace path used as the shadow worktree.
func (s *ShadowGit) WorkspaceDir() string { return s.workspaceDir }

// CheckpointsDir returns the directory holding the shadow repository's .git.
func (s *ShadowGit) CheckpointsDir() string { return s.checkpointsDir }

func (s *ShadowGit) gitDir() string { return filepath.Join(s.checkpointsDir, paths.GitDirName) }

// BaseHash returns the commit every checkpoint of this task descends from.
// It is empty before Initialize.
func (s *ShadowGit) BaseHash() string { return s.baseHash }

// Checkpoints returns a copy of the hashes saved through this instance, oldest first.
func (s *ShadowGit) Checkpoints() []string {
	out := make([]string, len(s.checkpoints))
	copy(out, s.checkpoints)
	return out
}

// Initialized reports whether Initialize has succeeded.
func (s *ShadowGit) Initialized() bool { return s.repo != nil }

// Subscribe registers fn for events of kind (or AllEvents) and returns a
// function that removes the subscription.
func (s *ShadowGit) Subscribe(kind EventKind, fn Listener) func() {
	return s.events.subscribe(kind, fn)
}

func (s *ShadowGit) logf(format string, args ...any) {
	s.log(fmt.Sprintf("[%s] %s", s.taskID, fmt.Sprintf(format, args...)))
}

// configError surfaces a fatal configuration problem to the user before returning it.
func (s *ShadowGit) configError(err error) error {
	s.logf("configuration error: %v", err)
	s.warn(err.Error())
	return err
}

// bestEffort logs and reports an error the operation continues past.
func (s *ShadowGit) bestEffort(ctx context.Context, kind string, err error) {
	s.logf("%s failed (continuing): %v", kind, err)
	s.reporter.ReportError(ctx, kind, err)
}

// Initialize opens or creates the shadow repository and establishes the base
// commit. It fails when called twice, when the workspace contains a nested git
// repository, or when an existing repository belongs to another workspace.
func (s *ShadowGit) Initialize(ctx context.Context) (InitResult, error) {
	if s.repo != nil {
		return InitResult{}, ErrAlreadyInitialized
	}
	start := time.Now()

	if _, err := versioncheck.RequireGit(ctx); err != nil {
		return InitResult{}, s.configError(err)
	}

	// An incomplete scan cannot rule out a nested repository.
	nested, err := FindNestedRepo(ctx, s.lister, s.workspaceDir)
	if err != nil {
		return InitResult{}, s.configError(fmt.Errorf("failed to scan for nested repositories: %w", err))
	}
	if nested != "" {
		rel, relErr := filepath.Rel(s.workspaceDir, nested)
		if relErr != nil {
			rel = nested
		}
		return InitResult{}, s.configError(&NestedRepoError{Path: nested, RelPath: filepath.ToSlash(rel)})
	}

	if err := os.MkdirAll(s.checkpointsDir, 0o750); err != nil {
		return InitResult{}, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	gitDir := s.gitDir()
	created := false
	var repo *git.Repository
	if _, statErr := os.Stat(filepath.Join(gitDir, "HEAD")); statErr == nil {
		s.logf("using existing shadow repository at %s", gitDir)
		repo, err = openShadowRepo(gitDir, s.workspaceDir)
		if err != nil {
			return InitResult{}, err
		}
		if err := checkWorktree(repo, s.workspaceDir); err != nil {
			return InitResult{}, s.configError(err)
		}
		// A previous first initialization may have failed before the base
		// commit; finish it now.
		if _, headErr := repo.Head(); errors.Is(headErr, plumbing.ErrReferenceNotFound) {
			s.logf("shadow repository has no base commit, creating it")
			created = true
		}
	} else {
		s.logf("creating shadow repository at %s", gitDir)
		repo, err = createShadowRepo(s.checkpointsDir, s.workspaceDir)
		if err != nil {
			return InitResult{}, err
		}
		created = true
	}

	s.repo = repo
	s.git = &gitCLI{gitDir: gitDir, workTree: s.workspaceDir}
	baseHash, err := s.establishBase(ctx, created)
	if err != nil {
		s.repo = nil
		s.git = nil
		return InitResult{}, err
	}
	s.baseHash = baseHash
	s.checkpoints = nil

	duration := time.Since(start)
	s.logf("initialized shadow repository (base %s, created %t) in %s", baseHash, created, duration)
	s.events.publish(InitializeEvent{
		WorkspaceDir: s.workspaceDir,
		BaseHash:     baseHash,
		Created:      created,
		Duration:     duration,
	})
	return InitResult{Created: created, Duration: duration}, nil
}

// establishBase writes the exclude file and returns the base commit, creating
// it for a new repository.
func (s *ShadowGit) establishBase(ctx context.Context, created bool) (string, error) {
	patterns, err := ExcludePatterns(s.workspaceDir, s.extraExcludes)
	if err != nil {
		return "", fmt.Errorf("failed to build exclude patterns: %w", err)
	}
	if err := writeExcludeFile(s.gitDir(), patterns); err != nil {
		return "", err
	}

	var base string
	if created {
		s.stageAll(ctx)
		hash, err := s.commit(initialCommitMessage, true)
		if err != nil {
			return "", fmt.Errorf("failed to create initial commit: %w", err)
		}
		base = hash.String()
	} else {
		head, err := s.repo.Head()
		if err != nil {
			return "", fmt.Errorf("failed to read shadow HEAD: %w", err)
		}
		base = head.Hash().String()
	}

	if s.scope == ScopeWorkspace {
		tip, err := s.checkoutTaskBranch(ctx)
		if err != nil {
			return "", err
		}
		base = tip
	}
	return base, nil
}

// createShadowRepo initializes <checkpointsDir>/.git and points its worktree
// at workspaceDir. Nothing is written inside the workspace.
func createShadowRepo(checkpointsDir, workspaceDir string) (*git.Repository, error) {
	repo, err := git.PlainInitWithOptions(checkpointsDir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(DefaultBranch),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init shadow repository: %w", err)
	}

	cfg, err := repo.Config()
	if err != nil {
		return nil, fmt.Errorf("failed to get shadow repository config: %w", err)
	}
	cfg.Core.Worktree = workspaceDir
	cfg.User.Name = AuthorName
	cfg.User.Email = AuthorEmail
	cfg.Raw.Section("commit").SetOption("gpgsign", "false")
	cfg.Raw.Section("gc").SetOption("auto", "0")
	if err := repo.SetConfig(cfg); err != nil {
		return nil, fmt.Errorf("failed to configure shadow repository: %w", err)
	}

	return openShadowRepo(filepath.Join(checkpointsDir, paths.GitDirName), workspaceDir)
}

// openShadowRepo opens the metadata directory with the workspace as worktree.
func openShadowRepo(gitDir, workspaceDir string) (*git.Repository, error) {
	storage := filesystem.NewStorage(osfs.New(gitDir), cache.NewObjectLRUDefault())
	repo, err := git.Open(storage, osfs.New(workspaceDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open shadow repository: %w", err)
	}
	return repo, nil
}

func checkWorktree(repo *git.Repository, workspaceDir string) error {
	cfg, err := repo.Config()
	if err != nil {
		return fmt.Errorf("failed to get shadow repository config: %w", err)
	}
	configured := cfg.Core.Worktree
	if configured == "" || filepath.Clean(configured) != workspaceDir {
		return &WorktreeMismatchError{Configured: configured, Workspace: workspaceDir}
	}
	return nil
}

// History returns the commits reachable from HEAD that carry this task's
// trailer, newest first. It includes checkpoints saved by earlier processes.
// limit <= 0 means no limit.
func (s *ShadowGit) History(ctx context.Context, limit int) ([]Info, error) {
	if s.repo == nil {
		return nil, ErrNotInitialized
	}
	if s.scope == ScopeWorkspace {
		if _, err := s.checkoutTaskBranch(ctx); err != nil {
			return nil, err
		}
	}
	head, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	iter, err := s.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to get commit log: %w", err)
	}
	defer iter.Close()

	var infos []Info
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck // context cancellation propagates as-is
		}
		task, ok := trailers.ParseTask(c.Message)
		if !ok || task != s.taskID {
			return nil
		}
		infos = append(infos, Info{
			Hash:      c.Hash.String(),
			Message:   trailers.Subject(c.Message),
			Timestamp: c.Author.When,
		})
		if limit > 0 && len(infos) >= limit {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}
	return infos, nil
}
