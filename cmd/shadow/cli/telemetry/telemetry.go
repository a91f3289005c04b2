package telemetry

import (
	"context"
	"net"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/denisbrodbeck/machineid"
	"github.com/entireio/shadow/redact"
	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// PostHogAPIKey is set at build time for production
	PostHogAPIKey = "phc_development_key"
	// PostHogEndpoint is set at build time for production
	PostHogEndpoint = "https://eu.i.posthog.com"
)

// OptOutEnvVar disables telemetry when set to any value.
const OptOutEnvVar = "SHADOW_TELEMETRY_OPTOUT"

// machineIDAppKey scopes the hashed machine ID to this tool.
const machineIDAppKey = "shadow-cli"

// maxErrorLength bounds reported error strings.
const maxErrorLength = 512

// Client defines the telemetry interface. It doubles as the checkpoint
// engine's error sink.
type Client interface {
	TrackCommand(cmd *cobra.Command, scope string)
	ReportError(ctx context.Context, kind string, err error)
	ReportWarning(ctx context.Context, message string)
	Close()
}

// NoOpClient is a no-op implementation for when telemetry is disabled
type NoOpClient struct{}

func (n *NoOpClient) TrackCommand(_ *cobra.Command, _ string)          {}
func (n *NoOpClient) ReportError(_ context.Context, _ string, _ error) {}
func (n *NoOpClient) ReportWarning(_ context.Context, _ string)        {}
func (n *NoOpClient) Close()                                           {}

// silentLogger suppresses PostHog log output - expected for CLI best-effort telemetry
type silentLogger struct{}

func (silentLogger) Logf(_ string, _ ...interface{})   {}
func (silentLogger) Debugf(_ string, _ ...interface{}) {}
func (silentLogger) Warnf(_ string, _ ...interface{})  {}
func (silentLogger) Errorf(_ string, _ ...interface{}) {}

// PostHogClient is the real telemetry client
type PostHogClient struct {
	client     posthog.Client
	machineID  string
	cliVersion string
	mu         sync.RWMutex
}

// NewClient creates a new telemetry client based on opt-out settings.
// The telemetryEnabled parameter comes from settings; nil means not configured (default to disabled).
//
//nolint:ireturn // Factory function - returns NoOpClient or PostHogClient based on settings
func NewClient(version string, telemetryEnabled *bool) Client {
	// Environment variable takes priority
	if os.Getenv(OptOutEnvVar) != "" {
		return &NoOpClient{}
	}

	if telemetryEnabled == nil || !*telemetryEnabled {
		return &NoOpClient{}
	}

	id, err := machineid.ProtectedID(machineIDAppKey)
	if err != nil {
		return &NoOpClient{}
	}

	// Fast timeouts: telemetry must never hold up a checkpoint or CLI exit.
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 100 * time.Millisecond,
		}).DialContext,
		TLSHandshakeTimeout:   100 * time.Millisecond,
		ResponseHeaderTimeout: 100 * time.Millisecond,
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:           PostHogEndpoint,
		ShutdownTimeout:    100 * time.Millisecond,
		BatchUploadTimeout: 200 * time.Millisecond,
		Transport:          transport,
		Logger:             silentLogger{},
		DisableGeoIP:       posthog.Ptr(true),
		DefaultEventProperties: posthog.NewProperties().
			Set("cli_version", version).
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH),
	})
	if err != nil {
		return &NoOpClient{}
	}

	return &PostHogClient{
		client:     client,
		machineID:  id,
		cliVersion: version,
	}
}

func (p *PostHogClient) snapshot() (posthog.Client, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client, p.machineID
}

func (p *PostHogClient) enqueue(event string, props posthog.Properties) {
	c, id := p.snapshot()
	if c == nil {
		return
	}
	//nolint:errcheck // Best-effort telemetry, failures should not affect CLI
	_ = c.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      event,
		Properties: props,
	})
}

// TrackCommand records the command execution
func (p *PostHogClient) TrackCommand(cmd *cobra.Command, scope string) {
	if cmd == nil || cmd.Hidden {
		return
	}

	// Collect flag names (not values) for privacy
	var flags []string
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		flags = append(flags, flag.Name)
	})

	props := posthog.NewProperties().
		Set("command", cmd.CommandPath()).
		Set("scope", scope)
	if len(flags) > 0 {
		props.Set("flags", strings.Join(flags, ","))
	}

	p.enqueue("cli_command_executed", props)
}

// ReportError records a swallowed engine error. The message is redacted and
// truncated; paths and secrets never leave the machine verbatim.
func (p *PostHogClient) ReportError(_ context.Context, kind string, err error) {
	if err == nil {
		return
	}
	p.enqueue("checkpoint_error", posthog.NewProperties().
		Set("kind", kind).
		Set("error", Sanitize(redact.Error(err))))
}

// ReportWarning records a configuration warning shown to the user.
func (p *PostHogClient) ReportWarning(_ context.Context, message string) {
	p.enqueue("checkpoint_warning", posthog.NewProperties().
		Set("message", Sanitize(redact.String(message))))
}

// Close flushes pending events
func (p *PostHogClient) Close() {
	c, _ := p.snapshot()
	if c != nil {
		_ = c.Close()
	}
}

// Sanitize replaces the user's home directory with "~" and truncates s on a
// rune boundary.
func Sanitize(s string) string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		s = strings.ReplaceAll(s, home, "~")
	}
	if len(s) > maxErrorLength {
		cut := maxErrorLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
