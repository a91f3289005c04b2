package validation

import "testing"

func TestValidateTaskID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "uuid", id: "3f2b9c1e-7a4d-4e8b-9f10-2c3d4e5f6a7b", wantErr: false},
		{name: "timestamp style", id: "1718000000000", wantErr: false},
		{name: "dotted", id: "task.v2_final", wantErr: false},
		{name: "empty", id: "", wantErr: true},
		{name: "dot", id: ".", wantErr: true},
		{name: "dot dot", id: "..", wantErr: true},
		{name: "slash", id: "a/b", wantErr: true},
		{name: "backslash", id: `a\b`, wantErr: true},
		{name: "space", id: "a b", wantErr: true},
		{name: "traversal", id: "../etc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateTaskID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTaskID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}
