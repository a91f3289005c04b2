package checkpoint

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// nestedRepoPattern matches the HEAD file of any repository below the workspace.
const nestedRepoPattern = "**/.git/HEAD"

// PathType distinguishes files from folders in PathLister results.
type PathType int

const (
	PathFile PathType = iota
	PathFolder
)

// PathEntry is one listed path, relative to the listing root with forward slashes.
type PathEntry struct {
	Path string
	Type PathType
}

// PathLister lists paths below root matching a glob, hidden files included.
type PathLister interface {
	ListPaths(ctx context.Context, root, pattern string) ([]PathEntry, error)
}

// RipgrepLister lists files with ripgrep. Paths ignored by the workspace's
// ignore files are skipped, as rg does by default.
type RipgrepLister struct {
	// Binary is the rg executable. Empty means "rg" on PATH.
	Binary string
}

func (l *RipgrepLister) ListPaths(ctx context.Context, root, pattern string) ([]PathEntry, error) {
	bin := l.Binary
	if bin == "" {
		bin = "rg"
	}
	cmd := exec.CommandContext(ctx, bin, "--files", "--hidden", "--follow", "-g", pattern, root) //nolint:gosec // fixed argv, no shell
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	if runErr != nil {
		switch exitCode(runErr) {
		case 1:
			// Nothing matched.
			return nil, nil
		case 2:
			// Some paths errored (e.g. a dangling symlink); matches may still
			// have been printed.
		default:
			return nil, fmt.Errorf("rg failed: %s: %w", strings.TrimSpace(stderr.String()), runErr)
		}
	}

	var entries []PathEntry
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rel, err := filepath.Rel(root, line)
		if err != nil {
			rel = line
		}
		entries = append(entries, PathEntry{Path: filepath.ToSlash(rel), Type: PathFile})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rg output: %w", err)
	}
	if runErr != nil && len(entries) == 0 {
		return nil, fmt.Errorf("rg failed: %s: %w", strings.TrimSpace(stderr.String()), runErr)
	}
	return entries, nil
}

// WalkLister lists paths by walking the tree and matching each path against
// the glob with gitignore semantics. It needs no external binary.
type WalkLister struct{}

func (WalkLister) ListPaths(ctx context.Context, root, pattern string) ([]PathEntry, error) {
	matcher := gitignore.ParsePattern(pattern, nil)

	var entries []PathEntry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable subtrees are skipped rather than failing the listing.
			if d != nil && d.IsDir() && p != root {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck // context cancellation propagates as-is
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil //nolint:nilerr // paths outside root are not listed
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if matcher.Match(parts, d.IsDir()) != gitignore.Exclude {
			return nil
		}
		typ := PathFile
		if d.IsDir() {
			typ = PathFolder
		}
		entries = append(entries, PathEntry{Path: filepath.ToSlash(rel), Type: typ})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return entries, nil
}

// DefaultPathLister prefers ripgrep and falls back to walking the tree.
//
//nolint:ireturn // the concrete lister depends on what is installed
func DefaultPathLister() PathLister {
	if bin, err := exec.LookPath("rg"); err == nil {
		return &RipgrepLister{Binary: bin}
	}
	return WalkLister{}
}

// FindNestedRepo returns the absolute path of a git repository nested below
// workspaceDir, or "" if there is none. The workspace's own .git is ignored.
func FindNestedRepo(ctx context.Context, lister PathLister, workspaceDir string) (string, error) {
	if lister == nil {
		return "", errors.New("path lister is required")
	}
	entries, err := lister.ListPaths(ctx, workspaceDir, nestedRepoPattern)
	if err != nil {
		return "", fmt.Errorf("failed to list repository markers: %w", err)
	}

	var repos []string
	for _, e := range entries {
		if e.Type != PathFile {
			continue
		}
		rel := path.Clean(filepath.ToSlash(e.Path))
		if rel == ".git/HEAD" {
			continue
		}
		gitDir := path.Dir(rel)
		if path.Base(rel) != "HEAD" || path.Base(gitDir) != ".git" {
			continue
		}
		repos = append(repos, path.Dir(gitDir))
	}
	if len(repos) == 0 {
		return "", nil
	}
	sort.Strings(repos)
	return filepath.Join(workspaceDir, filepath.FromSlash(repos[0])), nil
}
