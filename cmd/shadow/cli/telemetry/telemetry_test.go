package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

func TestNewClientOptOut(t *testing.T) {
	t.Setenv(OptOutEnvVar, "1")
	enabled := true

	client := NewClient("1.0.0", &enabled)

	if _, ok := client.(*NoOpClient); !ok {
		t.Errorf("%s=1 should return NoOpClient", OptOutEnvVar)
	}
}

func TestNewClientTelemetryDisabledInSettings(t *testing.T) {
	t.Setenv(OptOutEnvVar, "")
	disabled := false
	client := NewClient("1.0.0", &disabled)

	if _, ok := client.(*NoOpClient); !ok {
		t.Error("telemetryEnabled=false should return NoOpClient")
	}
}

func TestNewClientNilTelemetryDefaultsToDisabled(t *testing.T) {
	t.Setenv(OptOutEnvVar, "")

	client := NewClient("1.0.0", nil)

	if _, ok := client.(*NoOpClient); !ok {
		t.Error("telemetryEnabled=nil should return NoOpClient (disabled by default)")
	}
}

func TestNoOpClientMethods(_ *testing.T) {
	client := &NoOpClient{}

	// Should not panic
	client.TrackCommand(nil, "")
	client.TrackCommand(&cobra.Command{Use: "test"}, "task")
	client.ReportError(context.Background(), "stage", errors.New("boom"))
	client.ReportWarning(context.Background(), "warning")
	client.Close()
}

func TestPostHogClientNilInternalClient(_ *testing.T) {
	client := &PostHogClient{machineID: "test-id"}

	// None of these may panic when the PostHog client is missing.
	client.TrackCommand(nil, "")
	client.TrackCommand(&cobra.Command{Use: "hidden", Hidden: true}, "task")
	client.TrackCommand(&cobra.Command{Use: "save"}, "task")
	client.ReportError(context.Background(), "stage", nil)
	client.ReportError(context.Background(), "stage", errors.New("boom"))
	client.ReportWarning(context.Background(), "nested repository")
	client.Close()
}

func TestTrackCommandUsesCommandPath(t *testing.T) {
	cmd := &cobra.Command{Use: "save"}
	rootCmd := &cobra.Command{Use: "shadow"}
	rootCmd.AddCommand(cmd)

	if cmd.CommandPath() != "shadow save" {
		t.Errorf("CommandPath() = %q, want %q", cmd.CommandPath(), "shadow save")
	}
}

func TestSanitize(t *testing.T) {
	t.Setenv("HOME", "/home/alice")

	got := Sanitize("failed to open /home/alice/project/.git")
	if got != "failed to open ~/project/.git" {
		t.Errorf("Sanitize() = %q", got)
	}

	long := strings.Repeat("x", maxErrorLength+50)
	got = Sanitize(long)
	if len(got) != maxErrorLength+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("Sanitize() did not truncate: len %d", len(got))
	}
}

func TestSanitizeKeepsRunesWhole(t *testing.T) {
	t.Setenv("HOME", "/home/alice")

	// "é" is two bytes, so an odd prefix shifts every rune off the limit.
	msg := "x" + strings.Repeat("é", maxErrorLength)
	got := Sanitize(msg)
	if !utf8.ValidString(got) {
		t.Fatalf("Sanitize() split a rune: %q", got[len(got)-8:])
	}
	if !strings.HasSuffix(got, "...") || len(got) > maxErrorLength+3 {
		t.Errorf("Sanitize() did not truncate: len %d", len(got))
	}
	if !strings.HasPrefix(msg, strings.TrimSuffix(got, "...")) {
		t.Error("Sanitize() result is not a prefix of the input")
	}
}

// The engine's Reporter capability is satisfied by every Client.
var _ interface {
	ReportError(ctx context.Context, kind string, err error)
} = Client(nil)
