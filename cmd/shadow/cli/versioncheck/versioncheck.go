// Package versioncheck verifies that the installed git binary is new enough
// for the porcelain commands the checkpoint engine shells out to.
package versioncheck

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/entireio/shadow/cmd/shadow/cli/logging"
	"golang.org/x/mod/semver"
)

// MinGitVersion is the oldest git release the engine is tested against.
const MinGitVersion = "v2.20.0"

// commandTimeout bounds "git --version".
const commandTimeout = 5 * time.Second

var (
	// ErrGitNotFound is returned when no git binary is on PATH.
	ErrGitNotFound = errors.New("git must be installed to use checkpoints")

	// ErrGitTooOld is returned when the installed git is older than MinGitVersion.
	ErrGitTooOld = errors.New("installed git is too old for checkpoints")
)

// gitVersionRegex captures the numeric part of "git version 2.39.3 (Apple Git-146)"
// or "git version 2.43.0.windows.1".
var gitVersionRegex = regexp.MustCompile(`git version (\d+)\.(\d+)(?:\.(\d+))?`)

// runGitVersion is a var to allow overriding in tests.
var runGitVersion = func(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", "--version").Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrGitNotFound
		}
		return "", fmt.Errorf("running git --version: %w", err)
	}
	return string(out), nil
}

var (
	cacheMu     sync.Mutex
	cachedValue string
)

// ParseGitVersion extracts a semver string ("v2.39.3") from git --version output.
func ParseGitVersion(output string) (string, error) {
	m := gitVersionRegex.FindStringSubmatch(strings.TrimSpace(output))
	if m == nil {
		return "", fmt.Errorf("unrecognized git version output %q", strings.TrimSpace(output))
	}
	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	v := fmt.Sprintf("v%s.%s.%s", m[1], m[2], patch)
	if !semver.IsValid(v) {
		return "", fmt.Errorf("invalid git version %q", v)
	}
	return v, nil
}

// IsSupported reports whether version (with or without "v") meets MinGitVersion.
func IsSupported(version string) bool {
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return semver.IsValid(version) && semver.Compare(version, MinGitVersion) >= 0
}

// RequireGit returns the installed git version, or an error when git is
// missing or older than MinGitVersion. A successful result is remembered for
// the life of the process.
func RequireGit(ctx context.Context) (string, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cachedValue != "" {
		return cachedValue, nil
	}

	out, err := runGitVersion(ctx)
	if err != nil {
		return "", err
	}
	version, err := ParseGitVersion(out)
	if err != nil {
		return "", err
	}
	if !IsSupported(version) {
		return "", fmt.Errorf("%w: found %s, need %s or newer", ErrGitTooOld, version, MinGitVersion)
	}

	logging.Debug(ctx, "git version check passed", "version", version)
	cachedValue = version
	return version, nil
}

// resetCache forgets the remembered version. Used by tests.
func resetCache() {
	cacheMu.Lock()
	cachedValue = ""
	cacheMu.Unlock()
}
