package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/multy/internal/zapi"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result represents a result box (success, failure, or warning)
type Result struct {
	Type            ResultType        // Success, failure, or warning
	Title           string            // e.g., "reboot sent"
	Details         map[string]string // Key-value details, rendered sorted by key
	Error           error             // Error (for failure results)
	Troubleshooting []string          // Troubleshooting tips (for failure results)
	Width           int               // Terminal width
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details map[string]string) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewErrorResult builds a failure box for a router call. The message and
// the tips come from the error classification.
func NewErrorResult(title string, err error) *Result {
	return NewFailureResult(title, err, hintLines(err))
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string, details map[string]string) *Result {
	return &Result{
		Type:    ResultWarning,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail adds a detail key-value pair
func (r *Result) AddDetail(key, value string) *Result {
	if r.Details == nil {
		r.Details = make(map[string]string)
	}
	r.Details[key] = value
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	var (
		title string
		color lipgloss.Color
	)
	switch r.Type {
	case ResultFailure:
		title = ErrorTitleStyle.Render(fmt.Sprintf(" %s  FAILED  ─  %s", FailureMarker, r.Title))
		color = ErrorColor
	case ResultWarning:
		title = WarningTitleStyle.Render(fmt.Sprintf(" %s  WARNING  ─  %s", WarningMarker, r.Title))
		color = WarningColor
	default:
		title = SuccessTitleStyle.Render(fmt.Sprintf(" %s  SUCCESS  ─  %s", SuccessMarker, r.Title))
		color = SuccessColor
	}

	lines := []string{"", title, ""}
	lines = append(lines, r.detailLines()...)

	if r.Type == ResultFailure {
		if r.Error != nil {
			lines = append(lines, ErrorMessageStyle.Render(" Error: "+zapi.ShortMessage(r.Error)))
			lines = append(lines, ErrorMessageStyle.Render(" "+r.Error.Error()))
			lines = append(lines, "")
		}
		if len(r.Troubleshooting) > 0 {
			lines = append(lines, r.renderTroubleshootingBox(r.Width), "")
		}
	}

	return boxStyle(r.Width, lipgloss.DoubleBorder(), color).Render(strings.Join(lines, "\n"))
}

func (r *Result) detailLines() []string {
	if len(r.Details) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.Details))
	for k := range r.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		lines = append(lines, ResultKeyStyle.Render(" "+key+":")+" "+ResultValueStyle.Render(r.Details[key]))
	}
	return append(lines, "")
}

// renderTroubleshootingBox renders the inner troubleshooting box
func (r *Result) renderTroubleshootingBox(width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, TroubleshootingItemStyle.Render("  • "+tip))
	}

	innerWidth := width - 12
	if innerWidth < 40 {
		innerWidth = 40
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(innerWidth).
		Padding(0, 1).
		MarginLeft(1).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

// hintLines turns the multi-line troubleshooting hint into bullet items,
// dropping its heading lines.
func hintLines(err error) []string {
	if err == nil {
		return nil
	}
	var tips []string
	for _, line := range strings.Split(zapi.TroubleshootingHint(err), "\n") {
		line = strings.TrimSpace(line)
		if tip, ok := strings.CutPrefix(line, "•"); ok {
			tips = append(tips, strings.TrimSpace(tip))
		}
	}
	return tips
}

// RenderSuccess renders a success box with the given title and details
func RenderSuccess(title string, details map[string]string) string {
	return NewSuccessResult(title, details).Render()
}

// RenderFailure renders a failure box for err with tips derived from it.
func RenderFailure(title string, err error) string {
	return NewErrorResult(title, err).Render()
}

// RenderWarning renders a warning box with the given title and details
func RenderWarning(title string, details map[string]string) string {
	return NewWarningResult(title, details).Render()
}
