package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !s.Enabled {
		t.Error("Enabled should default to true")
	}
	if s.Scope != ScopeTask {
		t.Errorf("Scope = %q, want %q", s.Scope, ScopeTask)
	}
	if s.MaxWarnings != DefaultMaxWarnings {
		t.Errorf("MaxWarnings = %d, want %d", s.MaxWarnings, DefaultMaxWarnings)
	}
	if s.Telemetry != nil {
		t.Error("Telemetry should default to nil")
	}
}

func TestLoad_LocalOverrides(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "settings.json", `{"enabled": true, "scope": "task", "exclude_patterns": ["*.gen.go"], "log_level": "info"}`)
	writeFile(t, root, "settings.local.json", `{"scope": "Workspace", "exclude_patterns": ["tmp/"], "telemetry": false, "max_warnings": 2}`)

	s, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Scope != ScopeWorkspace {
		t.Errorf("Scope = %q, want %q", s.Scope, ScopeWorkspace)
	}
	if s.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", s.LogLevel, "info")
	}
	if len(s.ExcludePatterns) != 2 || s.ExcludePatterns[0] != "*.gen.go" || s.ExcludePatterns[1] != "tmp/" {
		t.Errorf("ExcludePatterns = %v, want [*.gen.go tmp/]", s.ExcludePatterns)
	}
	if s.Telemetry == nil || *s.Telemetry {
		t.Errorf("Telemetry = %v, want false", s.Telemetry)
	}
	if s.MaxWarnings != 2 {
		t.Errorf("MaxWarnings = %d, want 2", s.MaxWarnings)
	}
}

func TestLoad_InvalidScope(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "settings.json", `{"scope": "galaxy"}`)

	if _, err := Load(root); err == nil {
		t.Error("Load() should reject an unknown scope")
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "settings.json", `{"scope":`)

	if _, err := Load(root); err == nil {
		t.Error("Load() should fail on malformed JSON")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "nested", "root")
	enabled := true
	in := Default()
	in.Scope = ScopeWorkspace
	in.Telemetry = &enabled

	if err := Save(root, in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	out, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out.Scope != ScopeWorkspace || out.Telemetry == nil || !*out.Telemetry {
		t.Errorf("Load() after Save() = %+v", out)
	}
}
