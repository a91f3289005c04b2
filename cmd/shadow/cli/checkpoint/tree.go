package checkpoint

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// errStop is a sentinel error used to break out of git log iteration.
var errStop = errors.New("stop iteration")

// FlattenTree recursively collects the file entries of tree into entries,
// keyed by slash-separated path from the tree root.
func FlattenTree(repo *git.Repository, tree *object.Tree, prefix string, entries map[string]object.TreeEntry) error {
	for _, entry := range tree.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = prefix + "/" + entry.Name
		}

		if entry.Mode == filemode.Dir {
			subtree, err := repo.TreeObject(entry.Hash)
			if err != nil {
				return fmt.Errorf("failed to get subtree %s: %w", fullPath, err)
			}
			if err := FlattenTree(repo, subtree, fullPath, entries); err != nil {
				return err
			}
			continue
		}
		entries[fullPath] = object.TreeEntry{
			Name: fullPath,
			Mode: entry.Mode,
			Hash: entry.Hash,
		}
	}
	return nil
}

// commitTree resolves a revision (full or abbreviated hash, or ref) to its commit and tree.
func commitTree(repo *git.Repository, rev string) (*object.Commit, *object.Tree, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve %s: %w", rev, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get commit %s: %w", rev, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get tree for %s: %w", rev, err)
	}
	return commit, tree, nil
}

// rootCommit returns the parentless commit at the end of HEAD's first-parent chain.
func rootCommit(repo *git.Repository) (plumbing.Hash, error) {
	head, err := repo.Head()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get HEAD: %w", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get HEAD commit: %w", err)
	}
	for commit.NumParents() > 0 {
		commit, err = commit.Parent(0)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to walk to root commit: %w", err)
		}
	}
	return commit.Hash, nil
}

// blobText reads the file at relPath in tree as text.
func blobText(tree *object.Tree, relPath string) FileContent {
	f, err := tree.File(relPath)
	if err != nil {
		return FileContent{Err: fmt.Errorf("failed to find %s: %w", relPath, err)}
	}
	text, err := f.Contents()
	if err != nil {
		return FileContent{Err: fmt.Errorf("failed to read %s: %w", relPath, err)}
	}
	return FileContent{Text: text}
}
