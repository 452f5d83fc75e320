package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/muurk/multy/internal/commands"
	"github.com/muurk/multy/internal/discovery"
	"github.com/muurk/multy/internal/state"
	"github.com/muurk/multy/internal/zapi"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRenderSnapshot(t *testing.T) {
	snap := &state.Snapshot{
		Resource: "network-devices",
		TakenAt:  testTime,
		Entities: map[string]state.Fields{
			"d2": {"name": "tv", "alive-status": "offline"},
			"d1": {"name": "laptop", "rssi": float64(-52)},
		},
	}

	out := RenderSnapshot(snap, true)
	for _, want := range []string{"NETWORK-DEVICES", "available", "d1", "d2", "laptop", "-52", "alive-status"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderSnapshot() missing %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, "d1") > strings.Index(out, "d2") {
		t.Error("RenderSnapshot() entities should be sorted")
	}

	out = RenderSnapshot(&state.Snapshot{Resource: "wan-status", TakenAt: testTime}, false)
	if !strings.Contains(out, "unavailable") || !strings.Contains(out, "(no entities)") {
		t.Errorf("RenderSnapshot(empty, unavailable) = %s", out)
	}
}

func TestRenderEvent(t *testing.T) {
	tests := []struct {
		name  string
		event state.Event
		want  []string
	}{
		{
			name: "change",
			event: state.Event{
				Kind:     state.EventChange,
				Resource: "mesh-nodes",
				Added:    []state.Entity{{ID: "aa:bb"}},
				Removed:  []state.Entity{{ID: "cc:dd"}},
				Updated:  []state.FieldChange{{Entity: "ee:ff", Field: "status", Old: "online", New: "offline"}},
				At:       testTime,
			},
			want: []string{"mesh-nodes: +1 -1 ~1", "+ aa:bb", "- cc:dd", "~ ee:ff status: online → offline"},
		},
		{
			name:  "unavailable",
			event: state.Event{Kind: state.EventUnavailable, Resource: "wan-status", Error: "timeout", At: testTime},
			want:  []string{"✗", "wan-status unavailable: timeout"},
		},
		{
			name:  "recovered",
			event: state.Event{Kind: state.EventRecovered, Resource: "wan-status", At: testTime},
			want:  []string{"✓", "wan-status recovered"},
		},
		{
			name: "nil values",
			event: state.Event{
				Kind:     state.EventChange,
				Resource: "system-state",
				Updated:  []state.FieldChange{{Entity: "system-state", Field: "uptime", Old: nil, New: float64(12)}},
				At:       testTime,
			},
			want: []string{"uptime: - → 12"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RenderEvent(tt.event)
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("RenderEvent() missing %q in:\n%s", want, out)
				}
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "-"},
		{"", `""`},
		{"on", "on"},
		{float64(100), "100"},
		{float64(1.5), "1.5"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderCommandResult(t *testing.T) {
	out := RenderCommandResult(&commands.Result{
		Command:   "api-version",
		Output:    map[string]any{"version": "1.4", "modules": []any{"easy123"}},
		Refreshed: []string{"mesh-nodes"},
	})
	for _, want := range []string{"SUCCESS", "api-version", "version", "1.4", "modules/0", "refreshed"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderCommandResult() missing %q in:\n%s", want, out)
		}
	}

	out = RenderCommandResult(&commands.Result{Command: "reboot", RefreshErr: errors.New("poll failed")})
	if !strings.Contains(out, "WARNING") || !strings.Contains(out, "poll failed") {
		t.Errorf("RenderCommandResult(refresh error) = %s", out)
	}
}

func TestNewErrorResult(t *testing.T) {
	r := NewErrorResult("login", zapi.NewAuthError("bad password"))
	if len(r.Troubleshooting) == 0 {
		t.Fatal("auth failure should carry troubleshooting tips")
	}
	for _, tip := range r.Troubleshooting {
		if strings.HasPrefix(tip, "•") || tip == "" {
			t.Errorf("tip %q should have its bullet stripped", tip)
		}
	}
	out := r.Render()
	if !strings.Contains(out, "FAILED") || !strings.Contains(out, "Troubleshooting:") {
		t.Errorf("Render() = %s", out)
	}

	if tips := NewErrorResult("x", errors.New("plain")).Troubleshooting; len(tips) != 0 {
		t.Errorf("unclassified error tips = %v, want none", tips)
	}
}

func TestRenderRouters(t *testing.T) {
	out := RenderRouters(nil, 5*time.Second)
	if !strings.Contains(out, "No Multy routers found") {
		t.Errorf("RenderRouters(nil) = %s", out)
	}

	out = RenderRouters([]*discovery.Router{
		{IP: "192.168.212.1", Hostname: "Multy-1A.local.", Model: "WSQ50"},
		{IP: "192.168.212.2", Hostname: "Multy-2B.local."},
	}, 1200*time.Millisecond)
	for _, want := range []string{"Found 2 router(s)", "192.168.212.1", "WSQ50", "Multy-2B.local."} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderRouters() missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderCommands(t *testing.T) {
	out := RenderCommands(commands.All())
	for _, want := range []string{"reboot", "switch-led", "led-switch", "(required)"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderCommands() missing %q", want)
		}
	}
}

func TestHeaderParamsSorted(t *testing.T) {
	out := NewHeader("watch", "multy-cli watch", map[string]string{"Router": "10.0.0.1", "Filter": "true"}).
		SetWidth(80).Render()
	if !strings.Contains(out, "WATCH") {
		t.Errorf("Render() missing title: %s", out)
	}
	if strings.Index(out, "Filter:") > strings.Index(out, "Router:") {
		t.Error("header params should render sorted by key")
	}
}

func TestConfirmCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"typed name", "reboot\n", true},
		{"surrounding spaces", "  reboot  \n", true},
		{"no newline", "reboot", true},
		{"wrong word", "yes\n", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			got := ConfirmCommand(strings.NewReader(tt.input), &out, "reboot", "192.168.212.1")
			if got != tt.want {
				t.Errorf("ConfirmCommand(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "REBOOT") {
				t.Errorf("prompt missing title: %s", out.String())
			}
		})
	}
}
