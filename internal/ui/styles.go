package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette for CLI output
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - success, added entities
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors, removed entities
	WarningColor = lipgloss.Color("#FFA500") // Orange - warnings, updated fields
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Layout constants
const (
	MinTerminalWidth = 60  // Minimum supported terminal width
	MaxContentWidth  = 100 // Maximum content width before capping
	DefaultPadding   = 2   // Default padding inside boxes
)

var (
	// HeaderTitleStyle is for the main title (e.g., "MESH NODES")
	HeaderTitleStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true).
				PaddingLeft(2)

	// HeaderCommandStyle is for the subtitle line under a title
	HeaderCommandStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2)

	HeaderParamKeyStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2)

	HeaderParamValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	SuccessTitleStyle = lipgloss.NewStyle().
				Foreground(SuccessColor).
				Bold(true)

	ErrorTitleStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	ErrorMessageStyle = lipgloss.NewStyle().
				Foreground(ErrorColor)

	WarningTitleStyle = lipgloss.NewStyle().
				Foreground(WarningColor).
				Bold(true)

	// ResultKeyStyle is for detail keys in result boxes and snapshots
	ResultKeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(24)

	ResultValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	TroubleshootingTitleStyle = lipgloss.NewStyle().
					Foreground(MutedColor).
					Bold(true)

	TroubleshootingItemStyle = lipgloss.NewStyle().
					Foreground(MutedColor)

	// EntityTitleStyle is for entity ids inside a snapshot
	EntityTitleStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true).
				PaddingLeft(2)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	AddedStyle   = lipgloss.NewStyle().Foreground(SuccessColor)
	RemovedStyle = lipgloss.NewStyle().Foreground(ErrorColor)
	UpdatedStyle = lipgloss.NewStyle().Foreground(WarningColor)
)

// Markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	WarningMarker = "⚠"
	AddedMarker   = "+"
	RemovedMarker = "-"
	UpdatedMarker = "~"
)

// GetTerminalWidth returns the current terminal width, with fallback
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// boxStyle returns a bordered box in the given color.
func boxStyle(width int, border lipgloss.Border, color lipgloss.Color) lipgloss.Style {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	return lipgloss.NewStyle().
		Border(border).
		BorderForeground(color).
		Width(width-2).
		Padding(0, DefaultPadding)
}

// RenderHorizontalDivider creates a horizontal line of the specified width
func RenderHorizontalDivider(width int, char string) string {
	if width < 1 {
		width = 1
	}
	return lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Render(strings.Repeat(char, width))
}
