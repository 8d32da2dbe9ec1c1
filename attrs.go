package chronicle

import (
	"reflect"
	"time"
)

// Attributes is the open attribute map of a tracked item: attribute name to
// typed value. Snapshots and diffs operate on this representation so that
// the engine never depends on the host's concrete record types.
type Attributes map[string]any

// Clone returns a shallow copy of the attribute map.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Normalize returns a copy with all values passed through normalizeValue.
// Time values are pinned to UTC so that serialized snapshots are canonical
// regardless of the zone the host handed us.
func (a Attributes) Normalize() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		u := t.UTC()
		return u
	default:
		return v
	}
}

// valueEqual compares two attribute values for diffing purposes. Stored
// values are compared exactly; the only normalization applied is pinning
// time instants to UTC so that equal instants in different zones compare
// equal.
func valueEqual(a, b any) bool {
	a = normalizeValue(a)
	b = normalizeValue(b)
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
