package state

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func devices(t *testing.T, list ...map[string]any) *Snapshot {
	t.Helper()
	items := make([]any, len(list))
	for i, d := range list {
		items[i] = d
	}
	snap, err := FromTree("network-devices", map[string]any{"device": items}, List("device", "id"), t0)
	if err != nil {
		t.Fatalf("FromTree() error = %v", err)
	}
	return snap
}

// ignoreEventMeta drops the per-event ID and timestamp from comparisons.
var ignoreEventMeta = cmpopts.IgnoreFields(Event{}, "ID", "At")

func TestCache_UpdateSingleFieldChange(t *testing.T) {
	c := NewCache()
	c.Update(devices(t, map[string]any{"id": "d1", "alive-status": "online"}))

	ev, ok := c.Update(devices(t, map[string]any{"id": "d1", "alive-status": "offline"}))
	if !ok {
		t.Fatal("Update() reported no change")
	}

	want := Event{
		Kind:     EventChange,
		Resource: "network-devices",
		Updated: []FieldChange{
			{Entity: "d1", Field: "alive-status", Old: "online", New: "offline"},
		},
	}
	if diff := cmp.Diff(want, ev, ignoreEventMeta); diff != "" {
		t.Errorf("Update() mismatch (-want +got):\n%s", diff)
	}
}

func TestCache_UpdateAddedAndRemoved(t *testing.T) {
	c := NewCache()
	c.Update(devices(t,
		map[string]any{"id": "d1", "name": "laptop"},
		map[string]any{"id": "E", "name": "printer"},
	))

	ev, ok := c.Update(devices(t,
		map[string]any{"id": "d1", "name": "laptop"},
		map[string]any{"id": "F", "name": "phone"},
	))
	if !ok {
		t.Fatal("Update() reported no change")
	}

	want := Event{
		Kind:     EventChange,
		Resource: "network-devices",
		Added:    []Entity{{ID: "F", Fields: Fields{"id": "F", "name": "phone"}}},
		Removed:  []Entity{{ID: "E", Fields: Fields{"id": "E", "name": "printer"}}},
	}
	if diff := cmp.Diff(want, ev, ignoreEventMeta); diff != "" {
		t.Errorf("Update() mismatch (-want +got):\n%s", diff)
	}
}

func TestCache_UpdateIdenticalSnapshotIsSilent(t *testing.T) {
	c := NewCache()
	ch, cancel := c.Subscribe(8)
	defer cancel()

	d := map[string]any{"id": "d1", "alive-status": "online", "rssi": float64(-40)}
	if _, ok := c.Update(devices(t, d)); !ok {
		t.Fatal("first Update() should report the entity as added")
	}
	if ev, ok := c.Update(devices(t, d)); ok {
		t.Errorf("second Update() = %+v, want no event", ev)
	}

	if got := len(ch); got != 1 {
		t.Errorf("subscriber received %d events, want 1", got)
	}
	if got := len(c.History("network-devices")); got != 1 {
		t.Errorf("History() length = %d, want 1", got)
	}
}

func TestCache_PreloadSuppressesInitialAdds(t *testing.T) {
	c := NewCache()
	c.Preload([]*Snapshot{devices(t, map[string]any{"id": "d1", "alive-status": "online"})})

	if _, ok := c.Update(devices(t, map[string]any{"id": "d1", "alive-status": "online"})); ok {
		t.Error("Update() after Preload reported a change for identical state")
	}
}

func TestCache_SnapshotReadsLastCommitted(t *testing.T) {
	c := NewCache()
	if _, ok := c.Snapshot("network-devices"); ok {
		t.Error("Snapshot() ok = true for unknown resource")
	}

	c.Update(devices(t, map[string]any{"id": "d1"}))
	c.Update(devices(t, map[string]any{"id": "d2"}))

	snap, ok := c.Snapshot("network-devices")
	if !ok {
		t.Fatal("Snapshot() ok = false")
	}
	if diff := cmp.Diff([]string{"d2"}, snap.IDs()); diff != "" {
		t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"network-devices"}, c.Resources()); diff != "" {
		t.Errorf("Resources() mismatch (-want +got):\n%s", diff)
	}
}

func TestCache_Availability(t *testing.T) {
	c := NewCache()
	ch, cancel := c.Subscribe(8)
	defer cancel()

	if _, ok := c.MarkAvailable("wan-status"); ok {
		t.Error("MarkAvailable() emitted for a resource that was never unavailable")
	}

	ev, ok := c.MarkUnavailable("wan-status", errors.New("timeout"))
	if !ok {
		t.Fatal("MarkUnavailable() reported no transition")
	}
	if ev.Kind != EventUnavailable || ev.Error != "timeout" {
		t.Errorf("MarkUnavailable() = %+v", ev)
	}
	if _, ok := c.MarkUnavailable("wan-status", errors.New("timeout")); ok {
		t.Error("second MarkUnavailable() emitted again")
	}
	if c.Available("wan-status") {
		t.Error("Available() = true while unavailable")
	}
	if got := c.Unavailable(); len(got) != 1 || got[0] != "wan-status" {
		t.Errorf("Unavailable() = %v, want [wan-status]", got)
	}

	ev, ok = c.MarkAvailable("wan-status")
	if !ok || ev.Kind != EventRecovered {
		t.Errorf("MarkAvailable() = %+v, %v", ev, ok)
	}
	if got := c.Unavailable(); len(got) != 0 {
		t.Errorf("Unavailable() = %v after recovery, want none", got)
	}

	var kinds []EventKind
	for len(ch) > 0 {
		kinds = append(kinds, (<-ch).Kind)
	}
	if diff := cmp.Diff([]EventKind{EventUnavailable, EventRecovered}, kinds); diff != "" {
		t.Errorf("subscriber events mismatch (-want +got):\n%s", diff)
	}
}

func TestCache_SlowSubscriberDropsEvents(t *testing.T) {
	c := NewCache()
	_, cancel := c.Subscribe(1)
	defer cancel()

	for i := range 3 {
		c.Update(devices(t, map[string]any{"id": "d1", "seq": float64(i)}))
	}

	if got := c.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestCache_CancelClosesChannel(t *testing.T) {
	c := NewCache()
	ch, cancel := c.Subscribe(1)
	cancel()
	cancel()

	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}
	if c.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", c.Subscribers())
	}

	// Publishing after cancel must not panic
	c.Update(devices(t, map[string]any{"id": "d1"}))
}

func TestCache_HistoryBounded(t *testing.T) {
	c := NewCacheWithConfig(Config{HistoryLimit: 3})
	for i := range 10 {
		c.Update(devices(t, map[string]any{"id": "d1", "seq": float64(i)}))
	}

	h := c.History("network-devices")
	if len(h) != 3 {
		t.Fatalf("History() length = %d, want 3", len(h))
	}
	if got := h[2].Updated[0].New; got != float64(9) {
		t.Errorf("newest event value = %v, want 9", got)
	}
}
