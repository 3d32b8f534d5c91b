package cliutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

// ShouldPrompt reports whether a y/N confirmation should be shown:
// both stdout and stdin must be a terminal, and the caller must not
// have passed -y/--yes already.
func ShouldPrompt(yes bool) bool {
	if yes {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stdin.Fd())
}

// Confirm prompts message with a "[y/N]" suffix on stdout and reads a
// line from in. A blank or non-affirmative response is a no.
func Confirm(in io.Reader, message string) bool {
	if message == "" {
		message = "Apply changes?"
	}
	fmt.Printf("%s %s ", message, hintStyle.Render("[y/N]"))
	reader := bufio.NewReader(in)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
