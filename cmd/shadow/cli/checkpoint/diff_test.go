package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/stretchr/testify/assert"
)

func TestLineStats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		before    string
		after     string
		additions int
		deletions int
	}{
		{"identical", "a\nb\n", "a\nb\n", 0, 0},
		{"append", "a\n", "a\nb\n", 1, 0},
		{"remove", "a\nb\nc\n", "a\nc\n", 0, 1},
		{"replace", "a\nb\n", "a\nB\n", 1, 1},
		{"new file", "", "x\ny\nz", 3, 0},
		{"deleted file", "x\ny\n", "", 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			adds, dels := LineStats(tt.before, tt.after)
			assert.Equal(t, tt.additions, adds, "additions")
			assert.Equal(t, tt.deletions, dels, "deletions")
		})
	}
}

func TestFileDiffLines(t *testing.T) {
	t.Parallel()

	d := FileDiff{
		Before: FileContent{Text: "keep\nold\n"},
		After:  FileContent{Text: "keep\nnew\n"},
	}
	assert.Equal(t, []Line{
		{Op: LineEqual, Text: "keep"},
		{Op: LineDelete, Text: "old"},
		{Op: LineInsert, Text: "new"},
	}, d.Lines())
}

func TestCountLines(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, countLines(""))
	assert.Equal(t, 1, countLines("a"))
	assert.Equal(t, 1, countLines("a\n"))
	assert.Equal(t, 2, countLines("a\nb"))
}

func TestFileContentMissing(t *testing.T) {
	t.Parallel()

	assert.False(t, FileContent{Text: "x"}.Missing())
	assert.True(t, FileContent{Err: fmt.Errorf("failed to find a.txt: %w", object.ErrFileNotFound)}.Missing())
	assert.True(t, FileContent{Err: fmt.Errorf("failed to read a.txt: %w", fs.ErrNotExist)}.Missing())
	assert.False(t, FileContent{Err: errors.New("permission denied")}.Missing())
}
