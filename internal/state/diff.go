package state

import "sort"

// Diff compares two snapshots of the same resource. A nil old snapshot
// reports every entity of next as added. Results are sorted by entity ID and
// then field path.
func Diff(old, next *Snapshot) Event {
	ev := Event{Kind: EventChange}
	if next != nil {
		ev.Resource = next.Resource
	} else if old != nil {
		ev.Resource = old.Resource
	}

	var oldEntities, newEntities map[string]Fields
	if old != nil {
		oldEntities = old.Entities
	}
	if next != nil {
		newEntities = next.Entities
	}

	for _, id := range sortedKeys(newEntities) {
		fields := newEntities[id]
		prev, ok := oldEntities[id]
		if !ok {
			ev.Added = append(ev.Added, Entity{ID: id, Fields: fields})
			continue
		}
		ev.Updated = append(ev.Updated, diffFields(id, prev, fields)...)
	}

	for _, id := range sortedKeys(oldEntities) {
		if _, ok := newEntities[id]; !ok {
			ev.Removed = append(ev.Removed, Entity{ID: id, Fields: oldEntities[id]})
		}
	}

	return ev
}

func diffFields(id string, old, next Fields) []FieldChange {
	var changes []FieldChange
	seen := make(map[string]bool, len(next))

	for _, field := range sortedKeys(next) {
		seen[field] = true
		prev, ok := old[field]
		if ok && equalValue(prev, next[field]) || !ok && next[field] == nil {
			continue
		}
		changes = append(changes, FieldChange{Entity: id, Field: field, Old: prev, New: next[field]})
	}
	for _, field := range sortedKeys(old) {
		if seen[field] || old[field] == nil {
			continue
		}
		changes = append(changes, FieldChange{Entity: id, Field: field, Old: old[field], New: nil})
	}

	sort.SliceStable(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return changes
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
