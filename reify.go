package chronicle

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// ReifyOptions control the association-copy policy applied while
// reconstructing an item.
type ReifyOptions struct {
	// IncludeHasOne attaches declared has-one slots to the reconstructed
	// item. The historical has-one cannot be reliably reconstructed from
	// this item's own log, so a requested slot is attached as nil; by
	// default the slot is left absent and lookups fall through to the
	// live association.
	IncludeHasOne bool
	// SkipHasMany suppresses the default attachment of the current live
	// has-many collections.
	SkipHasMany bool
}

// Reified is a historical reconstruction of an item: its attribute state as
// it was before the source version's event. It represents history, not
// current truth, and keeps a back-reference to the version it came from.
type Reified struct {
	// TypeName is the concrete type of the reconstruction. When the
	// snapshot carries a discriminator naming a registered subtype, this
	// is the subtype, not the base type.
	TypeName   string
	Attributes Attributes
	// Relations holds the related objects attached per the copy policy.
	Relations map[string]any

	source  Version
	tracker *Tracker
}

// Live always reports false: a reified item is never current truth.
func (r *Reified) Live() bool {
	return false
}

// SourceVersion returns the version this reconstruction was built from.
func (r *Reified) SourceVersion() *Version {
	return &r.source
}

// PreviousVersion reifies the version preceding the source version, or nil
// when there is none or the neighbor is the create version (which has no
// reifiable state).
func (r *Reified) PreviousVersion(ctx context.Context) (*Reified, error) {
	return r.neighbor(ctx, -1)
}

// NextVersion reifies the version following the source version, or nil when
// the source version is the last.
func (r *Reified) NextVersion(ctx context.Context) (*Reified, error) {
	return r.neighbor(ctx, 1)
}

func (r *Reified) neighbor(ctx context.Context, direction int) (*Reified, error) {
	if r.source.ItemID == nil {
		return nil, nil
	}
	log, err := r.tracker.Versions(ctx, r.source.ItemType, *r.source.ItemID)
	if err != nil {
		return nil, err
	}
	var v *Version
	if direction < 0 {
		v = log.Previous(&r.source)
	} else {
		v = log.Next(&r.source)
	}
	if v == nil {
		return nil, nil
	}
	return r.tracker.Reify(ctx, v, ReifyOptions{})
}

// Reify reconstructs the item state stored in the version's snapshot.
// Reifying the create version returns nil: there is no "before creation"
// state. A snapshot that cannot be decoded is a fatal error; no partial
// object is returned. Schema drift is not an error: snapshot attributes
// outside the current schema are dropped, schema attributes missing from an
// older snapshot default to nil.
func (t *Tracker) Reify(ctx context.Context, v *Version, opts ReifyOptions) (*Reified, error) {
	if v == nil || len(v.Object) == 0 {
		return nil, nil
	}

	raw := map[string]any{}
	if err := t.ser.Load(v.Object, &raw); err != nil {
		return nil, fmt.Errorf("decode snapshot of version %d: %w", v.ID, err)
	}

	out := &Reified{tracker: t, source: *v}

	def, ok := t.registry.Lookup(v.ItemType)
	if !ok {
		// Unregistered type: no schema to reconcile against, keep the
		// snapshot as decoded.
		out.TypeName = v.ItemType
		out.Attributes = Attributes(raw).Clone()
		return out, nil
	}

	// Tagged-variant dispatch: a stored discriminator naming a registered
	// type reifies as that type.
	out.TypeName = def.Name
	if def.Discriminator != "" {
		if tag, ok := raw[def.Discriminator].(string); ok && tag != "" {
			if sub, found := t.registry.Lookup(tag); found {
				def = sub
				out.TypeName = sub.Name
			}
		}
	}

	out.Attributes = reifyAttributes(def, raw)

	relations, err := t.attachRelations(ctx, v, def, opts)
	if err != nil {
		return nil, err
	}
	out.Relations = relations

	return out, nil
}

// attachRelations applies the association-copy policy. "Copy" means
// attaching the current live related rows to the in-memory reconstruction
// so they are usable without a reload; it is not a historical replay of the
// relation.
func (t *Tracker) attachRelations(ctx context.Context, v *Version, def TypeDef, opts ReifyOptions) (map[string]any, error) {
	var relations map[string]any
	attach := func(name string, value any) {
		if relations == nil {
			relations = map[string]any{}
		}
		relations[name] = value
	}
	for _, rel := range def.Relations {
		switch rel.Kind {
		case HasOne:
			if opts.IncludeHasOne {
				attach(rel.Name, nil)
			}
		case HasMany, HasManyThrough, PolymorphicHasMany:
			if opts.SkipHasMany || t.relations == nil || v.ItemID == nil {
				continue
			}
			current, err := t.relations(ctx, v.ItemType, *v.ItemID, rel)
			if err != nil {
				return nil, fmt.Errorf("load relation %q: %w", rel.Name, err)
			}
			attach(rel.Name, current)
		}
	}
	return relations, nil
}

// reifyAttributes reconciles a decoded snapshot against the current schema:
// intersect the snapshot keys with the schema keys, default the rest.
func reifyAttributes(def TypeDef, raw map[string]any) Attributes {
	attrs := make(Attributes, len(def.Attributes))
	for name, kind := range def.Attributes {
		value, ok := raw[name]
		if !ok {
			attrs[name] = nil
			continue
		}
		attrs[name] = coerceValue(kind, value)
	}
	return attrs
}

// coerceValue rebuilds a typed attribute value from its decoded form. The
// codec may have widened types (JSON numbers decode as float64, instants as
// strings). A value that cannot be coerced is treated like schema drift and
// defaults to nil rather than failing the reification.
func coerceValue(kind Kind, v any) any {
	if v == nil {
		return nil
	}
	switch kind {
	case KindAny:
		return v
	case KindString:
		switch s := v.(type) {
		case string:
			return s
		case []byte:
			return string(s)
		default:
			return fmt.Sprintf("%v", v)
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b
		}
	case KindInt:
		switch n := v.(type) {
		case int:
			return int64(n)
		case int32:
			return int64(n)
		case int64:
			return n
		case uint64:
			return int64(n)
		case float64:
			return int64(n)
		case float32:
			return int64(n)
		case string:
			if parsed, err := strconv.ParseInt(n, 10, 64); err == nil {
				return parsed
			}
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case string:
			if parsed, err := strconv.ParseFloat(n, 64); err == nil {
				return parsed
			}
		}
	case KindTime:
		switch ts := v.(type) {
		case time.Time:
			return ts.UTC()
		case string:
			if parsed, err := ParseTimestamp(ts); err == nil {
				return parsed.UTC()
			}
		}
	}
	return nil
}
