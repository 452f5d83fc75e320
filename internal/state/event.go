package state

import (
	"fmt"
	"time"
)

// EventKind distinguishes change events from availability events.
type EventKind string

const (
	// EventChange reports added, removed or updated entities
	EventChange EventKind = "change"
	// EventUnavailable reports a resource that repeatedly failed to poll
	EventUnavailable EventKind = "resource-unavailable"
	// EventRecovered reports a previously unavailable resource polling again
	EventRecovered EventKind = "resource-recovered"
)

// Entity is one keyed member of a snapshot.
type Entity struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// FieldChange is a single updated field of an entity.
type FieldChange struct {
	Entity string `json:"entity"`
	Field  string `json:"field"`
	Old    any    `json:"old"`
	New    any    `json:"new"`
}

func (c FieldChange) String() string {
	return fmt.Sprintf("%s.%s: %v→%v", c.Entity, c.Field, c.Old, c.New)
}

// Event is delivered to subscribers and kept in the per-resource history.
type Event struct {
	ID       string        `json:"id"`
	Kind     EventKind     `json:"kind"`
	Resource string        `json:"resource"`
	Added    []Entity      `json:"added,omitempty"`
	Removed  []Entity      `json:"removed,omitempty"`
	Updated  []FieldChange `json:"updated,omitempty"`
	// Error describes the last failure for EventUnavailable
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// Empty reports whether a change event carries no changes.
func (e Event) Empty() bool {
	return e.Kind == EventChange && len(e.Added) == 0 && len(e.Removed) == 0 && len(e.Updated) == 0
}

// Summary returns a one-line description used by the CLI and logs.
func (e Event) Summary() string {
	switch e.Kind {
	case EventUnavailable:
		return fmt.Sprintf("%s unavailable: %s", e.Resource, e.Error)
	case EventRecovered:
		return fmt.Sprintf("%s recovered", e.Resource)
	default:
		return fmt.Sprintf("%s: +%d -%d ~%d", e.Resource, len(e.Added), len(e.Removed), len(e.Updated))
	}
}
