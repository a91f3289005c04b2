package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// isAccessibleMode reports whether ACCESSIBLE is set, in which case forms use
// plain text prompts that work with screen readers.
func isAccessibleMode() bool {
	return os.Getenv("ACCESSIBLE") != ""
}

// NewAccessibleForm builds a huh form that honors ACCESSIBLE.
func NewAccessibleForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...)
	if isAccessibleMode() {
		form = form.WithAccessible(true)
	}
	return form
}

// confirm asks a yes/no question. An aborted prompt counts as no.
func confirm(title, description string) (bool, error) {
	var confirmed bool
	field := huh.NewConfirm().
		Title(title).
		Value(&confirmed)
	if description != "" {
		field = field.Description(description)
	}

	if err := NewAccessibleForm(huh.NewGroup(field)).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get confirmation: %w", err)
	}
	return confirmed, nil
}

// outputWithPager writes content through $PAGER when w is a terminal and the
// content does not fit on one screen.
func outputWithPager(ctx context.Context, w io.Writer, content string) {
	if f, ok := w.(*os.File); ok && f == os.Stdout && term.IsTerminal(int(f.Fd())) {
		_, height, err := term.GetSize(int(f.Fd()))
		if err != nil {
			height = 24
		}

		if strings.Count(content, "\n") > height-2 {
			pager := os.Getenv("PAGER")
			if pager == "" {
				pager = "less"
			}

			cmd := exec.CommandContext(ctx, pager) //nolint:gosec // pager from env is expected
			cmd.Stdin = strings.NewReader(content)
			cmd.Stdout = f
			cmd.Stderr = os.Stderr

			if err := cmd.Run(); err != nil {
				fmt.Fprint(w, content)
			}
			return
		}
	}

	fmt.Fprint(w, content)
}
