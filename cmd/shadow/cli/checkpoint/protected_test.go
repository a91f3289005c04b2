package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsProtected(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		dir  string
		want bool
	}{
		{home, true},
		{home + string(filepath.Separator), true},
		{filepath.Join(home, "Desktop"), true},
		{filepath.Join(home, "Documents"), true},
		{filepath.Join(home, "Downloads"), true},
		{filepath.Join(home, "Documents", "project"), false},
		{filepath.Join(home, "code"), false},
		{filepath.Dir(home), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsProtected(tt.dir), tt.dir)
	}
}
