package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// checkoutTaskBranch points HEAD of a workspace-scoped repository at the
// task's branch, creating it from the current tip when missing, and returns
// the branch tip. The workspace files are not touched; only the shadow index
// is reset to the branch.
func (s *ShadowGit) checkoutTaskBranch(ctx context.Context) (string, error) {
	refName := plumbing.NewBranchReferenceName(TaskBranchName(s.taskID))

	head, err := s.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", fmt.Errorf("failed to read shadow HEAD: %w", err)
	}
	if head.Type() == plumbing.SymbolicReference && head.Target() == refName {
		tip, err := s.repo.Reference(refName, true)
		if err != nil {
			return "", fmt.Errorf("failed to resolve task branch: %w", err)
		}
		return tip.Hash().String(), nil
	}

	tip, err := s.repo.Reference(refName, true)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		current, headErr := s.repo.Head()
		if headErr != nil {
			return "", fmt.Errorf("failed to resolve shadow HEAD: %w", headErr)
		}
		tip = plumbing.NewHashReference(refName, current.Hash())
		if err := s.repo.Storer.SetReference(tip); err != nil {
			return "", fmt.Errorf("failed to create task branch: %w", err)
		}
		s.logf("created task branch %s at %s", refName.Short(), current.Hash())
	case err != nil:
		return "", fmt.Errorf("failed to resolve task branch: %w", err)
	}

	if err := s.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, refName)); err != nil {
		return "", fmt.Errorf("failed to switch to task branch: %w", err)
	}
	if _, err := s.git.run(ctx, "reset", "-q"); err != nil {
		return "", fmt.Errorf("failed to reset shadow index: %w", err)
	}
	s.logf("switched to task branch %s", refName.Short())
	return tip.Hash().String(), nil
}

// branchExists reports whether refs/heads/<name> exists in repo.
func branchExists(repo *git.Repository, name string) (bool, error) {
	_, err := repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up branch %s: %w", name, err)
	}
	return true, nil
}
