package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffOptions selects the commits to compare. An empty From means the root
// commit of HEAD; an empty To means the current working tree.
type DiffOptions struct {
	From string
	To   string
}

// FileContent is one side of a file diff. A read failure leaves Text empty
// and records the cause in Err.
type FileContent struct {
	Text string
	Err  error
}

// Missing reports whether this side does not exist, as for the before side
// of an added file or the after side of a deleted one.
func (c FileContent) Missing() bool {
	return errors.Is(c.Err, object.ErrFileNotFound) || errors.Is(c.Err, fs.ErrNotExist)
}

// FileDiff describes one changed file.
type FileDiff struct {
	// Relative is the slash-separated path inside the workspace.
	Relative string
	// Absolute is the file's path on disk.
	Absolute  string
	Before    FileContent
	After     FileContent
	Additions int
	Deletions int
}

// LineOp is the kind of a rendered diff line.
type LineOp int

const (
	LineEqual LineOp = iota
	LineInsert
	LineDelete
)

// Line is one line of a rendered file diff, without its trailing newline.
type Line struct {
	Op   LineOp
	Text string
}

// Diff stages the workspace and returns the files that differ between
// opts.From and opts.To, sorted by path.
func (s *ShadowGit) Diff(ctx context.Context, opts DiffOptions) ([]FileDiff, error) {
	if s.repo == nil {
		return nil, ErrNotInitialized
	}
	if s.scope == ScopeWorkspace {
		if _, err := s.checkoutTaskBranch(ctx); err != nil {
			return nil, err
		}
	}

	from := opts.From
	if from == "" {
		root, err := rootCommit(s.repo)
		if err != nil {
			return nil, err
		}
		from = root.String()
	}

	s.stageAll(ctx)

	_, fromTree, err := commitTree(s.repo, from)
	if err != nil {
		return nil, err
	}

	var diffs []FileDiff
	if opts.To != "" {
		diffs, err = s.diffTrees(ctx, fromTree, opts.To)
	} else {
		diffs, err = s.diffWorkingTree(ctx, fromTree)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Relative < diffs[j].Relative })
	for i := range diffs {
		diffs[i].Additions, diffs[i].Deletions = LineStats(diffs[i].Before.Text, diffs[i].After.Text)
	}
	return diffs, nil
}

func (s *ShadowGit) diffTrees(ctx context.Context, fromTree *object.Tree, to string) ([]FileDiff, error) {
	_, toTree, err := commitTree(s.repo, to)
	if err != nil {
		return nil, err
	}
	changes, err := fromTree.DiffContext(ctx, toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	diffs := make([]FileDiff, 0, len(changes))
	for _, change := range changes {
		name := change.To.Name
		if name == "" {
			name = change.From.Name
		}
		diffs = append(diffs, FileDiff{
			Relative: name,
			Absolute: s.absPath(name),
			Before:   blobText(fromTree, name),
			After:    blobText(toTree, name),
		})
	}
	return diffs, nil
}

// diffWorkingTree compares fromTree with the freshly staged index. The after
// side is read from disk.
func (s *ShadowGit) diffWorkingTree(ctx context.Context, fromTree *object.Tree) ([]FileDiff, error) {
	committed := make(map[string]object.TreeEntry)
	if err := FlattenTree(s.repo, fromTree, "", committed); err != nil {
		return nil, err
	}

	idx, err := s.repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("failed to read shadow index: %w", err)
	}
	staged := make(map[string]plumbing.Hash, len(idx.Entries))
	for _, e := range idx.Entries {
		staged[e.Name] = e.Hash
	}

	changed := make(map[string]struct{})
	for name, entry := range committed {
		if hash, ok := staged[name]; !ok || hash != entry.Hash {
			changed[name] = struct{}{}
		}
	}
	for name := range staged {
		if _, ok := committed[name]; !ok {
			changed[name] = struct{}{}
		}
	}

	diffs := make([]FileDiff, 0, len(changed))
	for name := range changed {
		if err := ctx.Err(); err != nil {
			return nil, err //nolint:wrapcheck // context cancellation propagates as-is
		}
		abs := s.absPath(name)
		diffs = append(diffs, FileDiff{
			Relative: name,
			Absolute: abs,
			Before:   blobText(fromTree, name),
			After:    readWorkingFile(abs),
		})
	}
	return diffs, nil
}

func (s *ShadowGit) absPath(rel string) string {
	return filepath.Join(s.workspaceDir, filepath.FromSlash(rel))
}

func readWorkingFile(path string) FileContent {
	data, err := os.ReadFile(path) //nolint:gosec // path is inside the workspace
	if err != nil {
		return FileContent{Err: fmt.Errorf("failed to read %s: %w", path, err)}
	}
	return FileContent{Text: string(data)}
}

// LineStats counts inserted and deleted lines between before and after.
func LineStats(before, after string) (additions, deletions int) {
	for _, d := range lineDiff(before, after) {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += countLines(d.Text)
		case diffmatchpatch.DiffEqual:
		}
	}
	return additions, deletions
}

// Lines renders the file diff line by line.
func (d FileDiff) Lines() []Line {
	var lines []Line
	for _, chunk := range lineDiff(d.Before.Text, d.After.Text) {
		op := LineEqual
		switch chunk.Type {
		case diffmatchpatch.DiffInsert:
			op = LineInsert
		case diffmatchpatch.DiffDelete:
			op = LineDelete
		case diffmatchpatch.DiffEqual:
		}
		if chunk.Text == "" {
			continue
		}
		for _, l := range strings.Split(strings.TrimSuffix(chunk.Text, "\n"), "\n") {
			lines = append(lines, Line{Op: op, Text: l})
		}
	}
	return lines
}

func lineDiff(before, after string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	return dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)
}

// countLines counts lines in content, with or without a trailing newline.
func countLines(content string) int {
	if content == "" {
		return 0
	}
	lines := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		lines++
	}
	return lines
}
