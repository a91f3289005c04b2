// Package warnings shows configuration problems to the user without flooding
// the terminal. Each distinct message is shown once, and at most a fixed
// number of messages are shown per process.
package warnings

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// DefaultMax is the number of distinct warnings shown when no cap is configured.
const DefaultMax = 5

const dialogTitle = "Shadow checkpoints"

// Notifier is a bounded, de-duplicating warning sink. It is safe for
// concurrent use.
type Notifier struct {
	mu    sync.Mutex
	max   int
	seen  map[string]struct{}
	shown int

	out         io.Writer
	interactive bool

	// dialog renders a message on an interactive terminal.
	dialog func(msg string) error
}

// NewNotifier returns a Notifier writing to out. When interactive is true
// messages are rendered as a dialog, falling back to out if the dialog fails.
// A max of zero or less means DefaultMax.
func NewNotifier(maxWarnings int, out io.Writer, interactive bool) *Notifier {
	if maxWarnings <= 0 {
		maxWarnings = DefaultMax
	}
	return &Notifier{
		max:         maxWarnings,
		seen:        make(map[string]struct{}),
		out:         out,
		interactive: interactive,
		dialog:      showDialog,
	}
}

// ForStderr returns a Notifier for the process's stderr, interactive when
// stderr is a terminal.
func ForStderr(maxWarnings int) *Notifier {
	return NewNotifier(maxWarnings, os.Stderr, IsTerminal(os.Stderr))
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Warn shows msg unless it was already shown or the cap is reached. It
// reports whether the message was shown.
func (n *Notifier) Warn(msg string) bool {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return false
	}

	n.mu.Lock()
	if _, dup := n.seen[msg]; dup || n.shown >= n.max {
		n.mu.Unlock()
		return false
	}
	n.seen[msg] = struct{}{}
	n.shown++
	n.mu.Unlock()

	if n.interactive && n.dialog != nil {
		err := n.dialog(msg)
		if err == nil || errors.Is(err, huh.ErrUserAborted) {
			return true
		}
	}
	fmt.Fprintf(n.out, "Warning: %s\n", msg)
	return true
}

// Shown returns the number of warnings shown so far.
func (n *Notifier) Shown() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shown
}

func showDialog(msg string) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title(dialogTitle).
				Description(msg),
		),
	)
	if os.Getenv("ACCESSIBLE") != "" {
		form = form.WithAccessible(true)
	}
	if err := form.Run(); err != nil {
		return fmt.Errorf("failed to show warning: %w", err)
	}
	return nil
}
