package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Restore resets the workspace to the checkpoint hash, deleting untracked
// files that are not excluded. Checkpoints saved after hash are dropped from
// the in-memory sequence. Restoring the base commit leaves the sequence as is.
func (s *ShadowGit) Restore(ctx context.Context, hash string) error {
	if s.repo == nil {
		return ErrNotInitialized
	}
	start := time.Now()

	full, err := s.restore(ctx, hash)
	if err != nil {
		s.logf("failed to restore checkpoint %s: %v", hash, err)
		s.events.publish(ErrorEvent{Err: err})
		return err
	}

	for i, h := range s.checkpoints {
		if h == full {
			s.checkpoints = s.checkpoints[:i+1]
			break
		}
	}

	duration := time.Since(start)
	s.logf("restored checkpoint %s in %s", full, duration)
	s.events.publish(RestoreEvent{CommitHash: full, Duration: duration})
	return nil
}

// restore returns the full hash of the restored commit.
func (s *ShadowGit) restore(ctx context.Context, hash string) (string, error) {
	if hash == "" {
		return "", errors.New("failed to restore: empty commit hash")
	}
	if s.scope == ScopeWorkspace {
		if _, err := s.checkoutTaskBranch(ctx); err != nil {
			return "", err
		}
	}
	// Resolve first so a bad hash fails before any file is removed.
	commit, _, err := commitTree(s.repo, hash)
	if err != nil {
		return "", fmt.Errorf("failed to restore: %w", err)
	}
	full := commit.Hash.String()
	if _, err := s.git.run(ctx, "clean", "-f", "-d", "-f"); err != nil {
		return "", fmt.Errorf("failed to clean workspace: %w", err)
	}
	if _, err := s.git.run(ctx, "reset", "--hard", full); err != nil {
		return "", fmt.Errorf("failed to reset workspace: %w", err)
	}
	return full, nil
}
