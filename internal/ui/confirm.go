package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmDangerousOperation displays a warning box on out and reads one line
// from in. It returns true only when the line equals phrase.
func ConfirmDangerousOperation(in io.Reader, out io.Writer, title string, warnings []string, phrase string) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf(" %s  WARNING  ─  %s", WarningMarker, title)), ""}
	for _, warning := range warnings {
		lines = append(lines, lipgloss.NewStyle().Foreground(TextColor).Render(" • "+warning))
	}
	lines = append(lines, "")

	fmt.Fprintln(out, boxStyle(width, lipgloss.DoubleBorder(), WarningColor).Render(strings.Join(lines, "\n")))
	fmt.Fprintln(out)
	fmt.Fprint(out, WarningTitleStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", phrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}
	if strings.TrimSpace(input) == phrase {
		return true
	}

	fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}

// ConfirmCommand asks before sending a command that interrupts connectivity.
// The user confirms by typing the command name.
func ConfirmCommand(in io.Reader, out io.Writer, name, host string) bool {
	warnings := []string{
		fmt.Sprintf("%q will interrupt connectivity on %s", name, host),
		"Clients may disconnect and the router may take minutes to return",
	}
	if name == "shutdown" {
		warnings = append(warnings, "The router stays off until it is power cycled")
	}
	return ConfirmDangerousOperation(in, out, strings.ToUpper(name), warnings, name)
}
