package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/multy/internal/state"
)

type fakeStatus map[string]bool

func (f fakeStatus) Available(resource string) bool { return f[resource] }

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func changeEvent(resource string) EventMsg {
	return EventMsg(state.Event{
		Kind:     state.EventChange,
		Resource: resource,
		Added:    []state.Entity{{ID: "d1"}},
		At:       testTime,
	})
}

func TestLiveModelEvents(t *testing.T) {
	events := make(chan state.Event, 1)
	m := NewLiveModel("watch", []string{"wan-status", "mesh-nodes"}, events, fakeStatus{"wan-status": true})

	if view := m.View(); !strings.Contains(view, "waiting for changes") {
		t.Errorf("initial View() = %s", view)
	}

	next, cmd := m.Update(changeEvent("network-devices"))
	m = next.(LiveModel)
	if cmd == nil {
		t.Fatal("Update(EventMsg) should wait for the next event")
	}
	if m.received != 1 || len(m.lines) != 2 {
		t.Errorf("received = %d, lines = %v", m.received, m.lines)
	}

	events <- state.Event{Kind: state.EventRecovered, Resource: "wan-status", At: testTime}
	if msg, ok := cmd().(EventMsg); !ok || msg.Kind != state.EventRecovered {
		t.Errorf("next command returned %#v", msg)
	}

	view := m.View()
	for _, want := range []string{"WATCH", "✓ wan-status", "✗ mesh-nodes", "+ d1", "1 events"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q in:\n%s", want, view)
		}
	}
}

func TestLiveModelKeys(t *testing.T) {
	m := NewLiveModel("watch", nil, make(chan state.Event), nil)

	next, _ := m.Update(keyMsg("p"))
	m = next.(LiveModel)
	if !m.paused {
		t.Fatal("p should pause")
	}
	next, _ = m.Update(changeEvent("mesh-nodes"))
	m = next.(LiveModel)
	if m.received != 1 || len(m.lines) != 0 {
		t.Errorf("paused model logged lines: %v", m.lines)
	}
	if !strings.Contains(m.View(), "(paused)") {
		t.Error("View() should show the paused state")
	}

	next, _ = m.Update(keyMsg("p"))
	m = next.(LiveModel)
	next, _ = m.Update(changeEvent("mesh-nodes"))
	m = next.(LiveModel)
	if len(m.lines) == 0 {
		t.Fatal("resumed model should log events")
	}

	next, _ = m.Update(keyMsg("c"))
	m = next.(LiveModel)
	if len(m.lines) != 0 {
		t.Errorf("c should clear the log, got %v", m.lines)
	}

	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}
}

func TestLiveModelStreamClosed(t *testing.T) {
	events := make(chan state.Event)
	close(events)
	m := NewLiveModel("watch", nil, events, nil)

	msg := waitForEvent(events)()
	next, cmd := m.Update(msg)
	if !next.(LiveModel).closed {
		t.Error("closed stream should mark the model closed")
	}
	if cmd == nil {
		t.Fatal("closed stream should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("closed stream should return tea.Quit")
	}
}

func TestLiveModelScrollback(t *testing.T) {
	m := NewLiveModel("watch", nil, make(chan state.Event), nil)
	m.limit = 4

	for i := 0; i < 5; i++ {
		next, _ := m.Update(changeEvent("mesh-nodes"))
		m = next.(LiveModel)
	}
	if len(m.lines) != 4 {
		t.Errorf("lines = %d, want limit 4", len(m.lines))
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 8})
	m = next.(LiveModel)
	if got := len(m.visibleLines()); got != 2 {
		t.Errorf("visibleLines() = %d, want 2 for height 8", got)
	}
}
