package state

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// PathSeparator joins nested keys into a flattened field path.
const PathSeparator = "/"

// Fields maps flattened field paths to scalar values.
type Fields map[string]any

// Shape tells FromTree how to split a resource tree into entities.
type Shape struct {
	// ListKey names the array holding entities. Empty means the whole tree
	// is one entity.
	ListKey string
	// IDField names the entity field used as the stable key.
	IDField string
}

// Object is the shape of single-entity resources.
var Object = Shape{}

// List returns the shape of a keyed entity list.
func List(listKey, idField string) Shape {
	return Shape{ListKey: listKey, IDField: idField}
}

// Snapshot is one fully-formed reading of a resource. Snapshots are replaced
// wholesale and must not be mutated after they reach the cache.
type Snapshot struct {
	Resource string            `json:"resource" cbor:"resource"`
	Entities map[string]Fields `json:"entities" cbor:"entities"`
	TakenAt  time.Time         `json:"taken_at" cbor:"taken_at"`
}

// IDs returns the entity IDs in sorted order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.Entities))
	for id := range s.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FromTree flattens a decoded reply tree into a snapshot.
//
// For list shapes each element becomes an entity keyed by its IDField; an
// element without one is keyed by its position. A single object where a list
// is expected is treated as a one-element list. Object shapes produce one
// entity keyed by the resource name.
func FromTree(resource string, tree any, shape Shape, takenAt time.Time) (*Snapshot, error) {
	snap := &Snapshot{
		Resource: resource,
		Entities: map[string]Fields{},
		TakenAt:  takenAt,
	}

	if shape.ListKey == "" {
		obj, ok := tree.(map[string]any)
		if !ok && tree != nil {
			return nil, fmt.Errorf("resource %s: expected object, got %T", resource, tree)
		}
		fields := Fields{}
		flatten("", obj, fields)
		snap.Entities[resource] = fields
		return snap, nil
	}

	var items []any
	if obj, ok := tree.(map[string]any); ok {
		switch list := obj[shape.ListKey].(type) {
		case []any:
			items = list
		case map[string]any:
			items = []any{list}
		case nil:
			// router omits empty lists
		default:
			return nil, fmt.Errorf("resource %s: %s is %T, not a list", resource, shape.ListKey, list)
		}
	} else if tree != nil {
		return nil, fmt.Errorf("resource %s: expected object, got %T", resource, tree)
	}

	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("resource %s: element %d is %T, not an object", resource, i, item)
		}
		id := entityID(obj[shape.IDField])
		if id == "" {
			id = "#" + strconv.Itoa(i)
		}
		fields := Fields{}
		flatten("", obj, fields)
		snap.Entities[id] = fields
	}
	return snap, nil
}

func entityID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}

// flatten writes every leaf of v into out under slash-joined paths. Empty
// containers are kept as leaves so that emptying a list is a visible change.
func flatten(prefix string, v any, out Fields) {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			if prefix != "" {
				out[prefix] = map[string]any{}
			}
			return
		}
		for k, child := range val {
			flatten(join(prefix, k), child, out)
		}
	case []any:
		if len(val) == 0 {
			if prefix != "" {
				out[prefix] = []any{}
			}
			return
		}
		for i, child := range val {
			flatten(join(prefix, strconv.Itoa(i)), child, out)
		}
	default:
		if prefix != "" {
			out[prefix] = normalize(val)
		}
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + PathSeparator + key
}

// normalize converts numeric values to float64 so that values decoded from
// JSON and from the snapshot store compare equal.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// equalValue compares two flattened leaves.
func equalValue(a, b any) bool {
	a, b = normalize(a), normalize(b)
	switch av := a.(type) {
	case nil:
		return b == nil
	case string, bool, float64:
		return a == b
	case []any:
		bv, ok := b.([]any)
		return ok && len(av) == 0 && len(bv) == 0
	case map[string]any:
		bv, ok := b.(map[string]any)
		return ok && len(av) == 0 && len(bv) == 0
	default:
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}
