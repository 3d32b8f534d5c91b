// Package cliutil holds the terminal-facing helpers shared across the
// CLI subcommands: TTY/color detection, terminal width, and Markdown
// rendering for the interactive history pager and --message echo.
package cliutil

import (
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
)

// DefaultTermWidth is the fallback terminal width when detection fails
// or stdout is not a terminal.
const DefaultTermWidth = 120

// Display holds the detected terminal parameters for one command
// invocation. It is the single source of truth for whether output
// should be styled and how wide to wrap it.
type Display struct {
	TermWidth int
	IsTTY     bool
}

// NewDisplay auto-detects terminal width and TTY-ness from stdout.
func NewDisplay() *Display {
	fd := os.Stdout.Fd()
	isTTY := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)

	width := DefaultTermWidth
	if isTTY {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}

	return &Display{TermWidth: width, IsTTY: isTTY}
}

// NewDisplayWithWidth builds a Display with a fixed width and IsTTY
// forced true, for tests.
func NewDisplayWithWidth(width int) *Display {
	return &Display{TermWidth: width, IsTTY: true}
}

// Color reports whether styled output should be produced: quiet mode
// and non-tty output both force plain rendering (spec's "Colour
// rendering... is bypassed for -q/non-tty output").
func (d *Display) Color(quiet bool) bool {
	return d.IsTTY && !quiet
}
