package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"", ScopeTask, false},
		{"task", ScopeTask, false},
		{"Workspace", ScopeWorkspace, false},
		{" workspace ", ScopeWorkspace, false},
		{"global", ScopeTask, true},
	}
	for _, tt := range tests {
		got, err := ParseScope(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "task", ScopeTask.String())
	assert.Equal(t, "workspace", ScopeWorkspace.String())
}

func TestStorageDir(t *testing.T) {
	t.Parallel()
	root := filepath.FromSlash("/data/shadow")

	assert.Equal(t, filepath.Join(root, "tasks", "t1", "checkpoints"), StorageDir(ScopeTask, root, "t1", "/ws"))

	ws := StorageDir(ScopeWorkspace, root, "t1", "/ws")
	assert.Equal(t, filepath.Join(root, "checkpoints"), filepath.Dir(ws))
	assert.Len(t, filepath.Base(ws), 8)
	assert.Equal(t, ws, StorageDir(ScopeWorkspace, root, "other-task", "/ws"), "workspace scope ignores the task")
	assert.NotEqual(t, ws, StorageDir(ScopeWorkspace, root, "t1", "/other"))
}

func TestTaskBranchName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "task-abc123", TaskBranchName("abc123"))
}
