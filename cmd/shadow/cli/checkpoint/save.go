package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entireio/shadow/cmd/shadow/cli/trailers"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// SaveOptions controls Save.
type SaveOptions struct {
	// AllowEmpty records a checkpoint even when nothing changed.
	AllowEmpty bool
	// SuppressMessage is passed through to the CheckpointEvent for consumers
	// that announce checkpoints.
	SuppressMessage bool
}

// SaveResult describes a recorded checkpoint.
type SaveResult struct {
	Hash     string
	FromHash string
	Duration time.Duration
}

// Save stages the whole workspace and commits it as a new checkpoint.
// It returns nil, nil when nothing changed and AllowEmpty is unset.
func (s *ShadowGit) Save(ctx context.Context, message string, opts SaveOptions) (*SaveResult, error) {
	if s.repo == nil {
		return nil, ErrNotInitialized
	}
	start := time.Now()

	result, err := s.save(ctx, message, opts)
	if err != nil {
		s.logf("failed to save checkpoint: %v", err)
		s.events.publish(ErrorEvent{Err: err})
		return nil, err
	}
	if result == nil {
		s.logf("no changes to checkpoint")
		return nil, nil
	}

	result.Duration = time.Since(start)
	s.checkpoints = append(s.checkpoints, result.Hash)
	s.logf("saved checkpoint %s in %s", result.Hash, result.Duration)
	s.events.publish(CheckpointEvent{
		FromHash:        result.FromHash,
		ToHash:          result.Hash,
		Duration:        result.Duration,
		SuppressMessage: opts.SuppressMessage,
	})
	return result, nil
}

func (s *ShadowGit) save(ctx context.Context, message string, opts SaveOptions) (*SaveResult, error) {
	if s.scope == ScopeWorkspace {
		if _, err := s.checkoutTaskBranch(ctx); err != nil {
			return nil, err
		}
	}
	s.stageAll(ctx)

	hash, err := s.commit(trailers.FormatCheckpoint(message, s.taskID), opts.AllowEmpty)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint: %w", err)
	}
	if hash.IsZero() {
		return nil, nil
	}

	from := s.baseHash
	if n := len(s.checkpoints); n > 0 {
		from = s.checkpoints[n-1]
	}
	return &SaveResult{Hash: hash.String(), FromHash: from}, nil
}

// stageAll adds every non-excluded change in the workspace to the shadow index.
// Failures are logged and reported but do not stop the caller.
func (s *ShadowGit) stageAll(ctx context.Context) {
	if _, err := s.git.run(ctx, "add", "-A", "--ignore-errors", "."); err != nil {
		s.bestEffort(ctx, "stage", err)
	}
}

// commit records the index as a commit on HEAD. A zero hash with a nil error
// means there was nothing to commit.
func (s *ShadowGit) commit(message string, allowEmpty bool) (plumbing.Hash, error) {
	wt, err := s.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get worktree: %w", err)
	}

	sig := &object.Signature{
		Name:  AuthorName,
		Email: AuthorEmail,
		When:  time.Now(),
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: allowEmpty,
		Author:            sig,
		Committer:         sig,
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return plumbing.ZeroHash, nil
	}
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to commit: %w", err)
	}
	return hash, nil
}
