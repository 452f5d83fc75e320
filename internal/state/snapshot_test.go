package state

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFromTree_ObjectFlattensNestedFields(t *testing.T) {
	tree := map[string]any{
		"connected": true,
		"wan": map[string]any{
			"ipv4": map[string]any{"address": "203.0.113.7"},
			"dns":  []any{"1.1.1.1", "8.8.8.8"},
		},
		"ports": []any{},
	}

	snap, err := FromTree("wan-status", tree, Object, t0)
	if err != nil {
		t.Fatalf("FromTree() error = %v", err)
	}

	want := map[string]Fields{
		"wan-status": {
			"connected":        true,
			"wan/ipv4/address": "203.0.113.7",
			"wan/dns/0":        "1.1.1.1",
			"wan/dns/1":        "8.8.8.8",
			"ports":            []any{},
		},
	}
	if diff := cmp.Diff(want, snap.Entities); diff != "" {
		t.Errorf("Entities mismatch (-want +got):\n%s", diff)
	}
}

func TestFromTree_ListShapes(t *testing.T) {
	tests := []struct {
		name string
		tree any
		ids  []string
	}{
		{
			name: "list keyed by mac",
			tree: map[string]any{"device": []any{
				map[string]any{"mac": "aa:aa", "role": "controller"},
				map[string]any{"mac": "bb:bb", "role": "satellite"},
			}},
			ids: []string{"aa:aa", "bb:bb"},
		},
		{
			name: "single object instead of list",
			tree: map[string]any{"device": map[string]any{"mac": "aa:aa"}},
			ids:  []string{"aa:aa"},
		},
		{
			name: "missing list",
			tree: map[string]any{},
			ids:  []string{},
		},
		{
			name: "element without id",
			tree: map[string]any{"device": []any{map[string]any{"role": "x"}}},
			ids:  []string{"#0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := FromTree("mesh-nodes", tt.tree, List("device", "mac"), t0)
			if err != nil {
				t.Fatalf("FromTree() error = %v", err)
			}
			if diff := cmp.Diff(tt.ids, snap.IDs()); diff != "" {
				t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromTree_RejectsWrongShape(t *testing.T) {
	if _, err := FromTree("mesh-nodes", map[string]any{"device": "nope"}, List("device", "mac"), t0); err == nil {
		t.Error("FromTree() error = nil for scalar list")
	}
	if _, err := FromTree("system-state", []any{1}, Object, t0); err == nil {
		t.Error("FromTree() error = nil for array object")
	}
}

func TestDiff_NumericNormalization(t *testing.T) {
	old := &Snapshot{Resource: "bandwidth", Entities: map[string]Fields{"bandwidth": {"download": uint64(340)}}}
	next := &Snapshot{Resource: "bandwidth", Entities: map[string]Fields{"bandwidth": {"download": float64(340)}}}

	if ev := Diff(old, next); !ev.Empty() {
		t.Errorf("Diff() = %+v, want empty", ev)
	}
}

func TestDiff_FieldRemoved(t *testing.T) {
	old := &Snapshot{Resource: "r", Entities: map[string]Fields{"e": {"a": "1", "b": "2"}}}
	next := &Snapshot{Resource: "r", Entities: map[string]Fields{"e": {"a": "1"}}}

	want := []FieldChange{{Entity: "e", Field: "b", Old: "2", New: nil}}
	if diff := cmp.Diff(want, Diff(old, next).Updated); diff != "" {
		t.Errorf("Updated mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SaveLoad(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "state.cbor"))

	snaps, err := store.Load()
	if err != nil || snaps != nil {
		t.Fatalf("Load() on missing file = %v, %v", snaps, err)
	}

	in := []*Snapshot{{
		Resource: "network-devices",
		TakenAt:  t0,
		Entities: map[string]Fields{
			"d1": {"id": "d1", "alive-status": "online", "rssi": float64(-40), "tags": []any{}, "blocked": false},
		},
	}}
	if err := store.Save(in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Load() returned %d snapshots, want 1", len(out))
	}
	if !out[0].TakenAt.Equal(t0) {
		t.Errorf("TakenAt = %v, want %v", out[0].TakenAt, t0)
	}
	if ev := Diff(in[0], out[0]); !ev.Empty() {
		t.Errorf("round-tripped snapshot differs: %+v", ev)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Errorf("Clear() on missing file error = %v", err)
	}
}
