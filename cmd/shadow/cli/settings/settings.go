// Package settings provides configuration loading for the shadow checkpoint CLI.
// This package is separate from cli to allow the logging and checkpoint packages
// to read it without creating an import cycle.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/entireio/shadow/cmd/shadow/cli/jsonutil"
	"github.com/entireio/shadow/cmd/shadow/cli/paths"
)

// Scope names accepted in settings and on the command line.
const (
	ScopeTask      = "task"
	ScopeWorkspace = "workspace"
)

// DefaultMaxWarnings caps how many distinct configuration warnings are shown per process.
const DefaultMaxWarnings = 5

// Settings represents <root>/settings.json.
type Settings struct {
	// Enabled indicates whether checkpoints are active. When false, commands
	// print a disabled message and exit. Defaults to true.
	Enabled bool `json:"enabled"`

	// Scope selects task-scoped ("task") or workspace-scoped ("workspace") shadow repositories.
	Scope string `json:"scope"`

	// LogLevel sets the logging verbosity (debug, info, warn, error).
	// Can be overridden by SHADOW_LOG_LEVEL environment variable.
	LogLevel string `json:"log_level,omitempty"`

	// ExcludePatterns are appended to the built-in exclude patterns.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`

	// MaxWarnings caps the number of distinct warnings shown per process.
	MaxWarnings int `json:"max_warnings,omitempty"`

	// Telemetry controls anonymous usage analytics and error reporting.
	// nil = not configured (disabled), true = opted in, false = opted out
	Telemetry *bool `json:"telemetry,omitempty"`
}

// Load loads settings from <root>/settings.json, then applies any overrides
// from <root>/settings.local.json if it exists.
// Returns default settings if neither file exists.
func Load(root string) (*Settings, error) {
	s, err := loadFromFile(filepath.Join(root, paths.SettingsFileName))
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	localData, err := os.ReadFile(filepath.Join(root, paths.LocalSettingsFile)) //nolint:gosec // path is built from the storage root
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading local settings file: %w", err)
		}
	} else if err := mergeJSON(s, localData); err != nil {
		return nil, fmt.Errorf("merging local settings: %w", err)
	}

	applyDefaults(s)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes settings to <root>/settings.json.
func Save(root string, s *Settings) error {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return fmt.Errorf("creating storage root: %w", err)
	}
	data, err := jsonutil.MarshalIndentWithNewline(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, paths.SettingsFileName), data, 0o600); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}

// Default returns the settings used when no file exists.
func Default() *Settings {
	s := &Settings{Enabled: true}
	applyDefaults(s)
	return s
}

// Validate reports settings that cannot be used.
func (s *Settings) Validate() error {
	switch s.Scope {
	case ScopeTask, ScopeWorkspace:
	default:
		return fmt.Errorf("invalid scope %q: must be %q or %q", s.Scope, ScopeTask, ScopeWorkspace)
	}
	if s.MaxWarnings < 0 {
		return fmt.Errorf("invalid max_warnings %d: must not be negative", s.MaxWarnings)
	}
	return nil
}

// loadFromFile loads settings from a specific file path.
// Returns default settings if the file doesn't exist.
func loadFromFile(filePath string) (*Settings, error) {
	s := &Settings{Enabled: true}

	data, err := os.ReadFile(filePath) //nolint:gosec // path is from caller
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("%w", err)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	return s, nil
}

// mergeJSON merges JSON data into existing settings.
// Only fields present in the JSON override existing settings.
func mergeJSON(s *Settings, data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	if v, ok := raw["enabled"]; ok {
		var e bool
		if err := json.Unmarshal(v, &e); err != nil {
			return fmt.Errorf("parsing enabled field: %w", err)
		}
		s.Enabled = e
	}

	if v, ok := raw["scope"]; ok {
		var sc string
		if err := json.Unmarshal(v, &sc); err != nil {
			return fmt.Errorf("parsing scope field: %w", err)
		}
		if sc != "" {
			s.Scope = sc
		}
	}

	if v, ok := raw["log_level"]; ok {
		var ll string
		if err := json.Unmarshal(v, &ll); err != nil {
			return fmt.Errorf("parsing log_level field: %w", err)
		}
		if ll != "" {
			s.LogLevel = ll
		}
	}

	// Local exclude patterns extend the shared list rather than replacing it.
	if v, ok := raw["exclude_patterns"]; ok {
		var patterns []string
		if err := json.Unmarshal(v, &patterns); err != nil {
			return fmt.Errorf("parsing exclude_patterns field: %w", err)
		}
		s.ExcludePatterns = append(s.ExcludePatterns, patterns...)
	}

	if v, ok := raw["max_warnings"]; ok {
		var mw int
		if err := json.Unmarshal(v, &mw); err != nil {
			return fmt.Errorf("parsing max_warnings field: %w", err)
		}
		s.MaxWarnings = mw
	}

	if v, ok := raw["telemetry"]; ok {
		var t bool
		if err := json.Unmarshal(v, &t); err != nil {
			return fmt.Errorf("parsing telemetry field: %w", err)
		}
		s.Telemetry = &t
	}

	return nil
}

func applyDefaults(s *Settings) {
	s.Scope = strings.ToLower(strings.TrimSpace(s.Scope))
	if s.Scope == "" {
		s.Scope = ScopeTask
	}
	if s.MaxWarnings == 0 {
		s.MaxWarnings = DefaultMaxWarnings
	}
}
