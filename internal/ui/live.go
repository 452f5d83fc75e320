package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/multy/internal/state"
)

// DefaultLiveLines is how many rendered event lines the live view keeps.
const DefaultLiveLines = 200

// ResourceStatus reports the availability of polled resources.
type ResourceStatus interface {
	Available(resource string) bool
}

// EventMsg carries one event from the cache subscription.
type EventMsg state.Event

type streamClosedMsg struct{}

type liveKeyMap struct {
	Pause key.Binding
	Clear key.Binding
	Quit  key.Binding
}

func (k liveKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Clear, k.Quit}
}

func (k liveKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Pause, k.Clear, k.Quit}}
}

// LiveModel is the full-screen view of multy-cli watch: a status line per
// resource over a scrolling log of rendered events.
type LiveModel struct {
	Title     string
	Resources []string
	Filter    string

	events <-chan state.Event
	status ResourceStatus

	lines    []string
	limit    int
	received int
	paused   bool
	closed   bool

	width   int
	height  int
	spinner spinner.Model
	help    help.Model
	keys    liveKeyMap
}

// NewLiveModel builds a live view reading from events.
func NewLiveModel(title string, resources []string, events <-chan state.Event, status ResourceStatus) LiveModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	return LiveModel{
		Title:     title,
		Resources: resources,
		events:    events,
		status:    status,
		limit:     DefaultLiveLines,
		width:     GetTerminalWidth(),
		height:    24,
		spinner:   s,
		help:      help.New(),
		keys: liveKeyMap{
			Pause: key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "pause")),
			Clear: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
			Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
		},
	}
}

// waitForEvent blocks on the subscription and turns the next event into a message.
func waitForEvent(events <-chan state.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return EventMsg(ev)
	}
}

// Init implements tea.Model
func (m LiveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update implements tea.Model
func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.lines = nil
		}
		return m, nil

	case EventMsg:
		m.received++
		if !m.paused {
			m.lines = append(m.lines, strings.Split(strings.TrimRight(RenderEvent(state.Event(msg)), "\n"), "\n")...)
			if over := len(m.lines) - m.limit; over > 0 {
				m.lines = m.lines[over:]
			}
		}
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.closed = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m LiveModel) View() string {
	var b strings.Builder

	b.WriteString(HeaderTitleStyle.Render(strings.ToUpper(m.Title)))
	if m.Filter != "" {
		b.WriteString("  " + TimestampStyle.Render("filter: "+m.Filter))
	}
	b.WriteString("\n")
	b.WriteString(m.statusLine() + "\n")
	b.WriteString(RenderHorizontalDivider(max(m.width-2, 10), "─") + "\n")

	body := m.visibleLines()
	switch {
	case len(body) > 0:
		b.WriteString(strings.Join(body, "\n") + "\n")
	case m.received == 0:
		b.WriteString(fmt.Sprintf("  %s waiting for changes\n", m.spinner.View()))
	}

	footer := fmt.Sprintf("%d events", m.received)
	if m.paused {
		footer += " (paused)"
	}
	b.WriteString("\n" + TimestampStyle.Render("  "+footer) + "  " + m.help.View(m.keys))
	return b.String()
}

func (m LiveModel) statusLine() string {
	parts := make([]string, 0, len(m.Resources))
	for _, r := range m.Resources {
		if m.status == nil || m.status.Available(r) {
			parts = append(parts, AddedStyle.Render(SuccessMarker+" "+r))
		} else {
			parts = append(parts, RemovedStyle.Render(FailureMarker+" "+r))
		}
	}
	return "  " + strings.Join(parts, "  ")
}

// visibleLines returns the tail of the log that fits under the header.
func (m LiveModel) visibleLines() []string {
	room := m.height - 6
	if room < 1 {
		room = 1
	}
	if len(m.lines) <= room {
		return m.lines
	}
	return m.lines[len(m.lines)-room:]
}

// RunLive runs the model full screen until the user quits, ctx is cancelled
// or the event stream closes.
func RunLive(ctx context.Context, m LiveModel) error {
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
