package chronicle

import "sort"

// Changeset maps an attribute name to its [old, new] value pair for one
// lifecycle event. Attributes whose value did not change are omitted.
type Changeset map[string][]any

// Empty reports whether the changeset carries no changed attributes.
// A recorded touch event produces an empty changeset.
func (c Changeset) Empty() bool {
	return len(c) == 0
}

// Keys returns the changed attribute names in sorted order.
func (c Changeset) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Old returns the pre-event value for an attribute, or nil if the attribute
// is not part of the changeset.
func (c Changeset) Old(name string) any {
	if pair, ok := c[name]; ok && len(pair) == 2 {
		return pair[0]
	}
	return nil
}

// New returns the post-event value for an attribute, or nil if the attribute
// is not part of the changeset.
func (c Changeset) New(name string) any {
	if pair, ok := c[name]; ok && len(pair) == 2 {
		return pair[1]
	}
	return nil
}

// Diff computes the changeset between two attribute maps. An attribute
// appears in the result when its value differs between before and after,
// including attributes that exist on only one side (the missing side reads
// as nil). Equality is exact; numeric tolerance is a presentation concern
// of the consumer.
func Diff(before, after Attributes) Changeset {
	cs := Changeset{}
	for k, bv := range before {
		av, ok := after[k]
		if !ok {
			if bv != nil {
				cs[k] = []any{normalizeValue(bv), nil}
			}
			continue
		}
		if !valueEqual(bv, av) {
			cs[k] = []any{normalizeValue(bv), normalizeValue(av)}
		}
	}
	for k, av := range after {
		if _, ok := before[k]; ok {
			continue
		}
		if av != nil {
			cs[k] = []any{nil, normalizeValue(av)}
		}
	}
	return cs
}

// DestroyChangeset derives the changeset for a destroy event from the last
// known attribute state: every previously non-nil attribute transitions to
// nil ("was X, now gone").
func DestroyChangeset(last Attributes) Changeset {
	cs := Changeset{}
	for k, v := range last {
		if v == nil {
			continue
		}
		cs[k] = []any{normalizeValue(v), nil}
	}
	return cs
}
