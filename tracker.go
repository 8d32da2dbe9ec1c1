// Package chronicle is an audit-trail and temporal-versioning engine. It
// records a linear history of snapshots and diffs for mutable domain
// objects, answers point-in-time and range queries over that history, and
// reconstructs ("reifies") an object's exact attribute state at any past
// instant, including who made each change.
//
// The engine is storage agnostic: it needs only a VersionStore, an
// append-only ordered log keyed by (item type, item id). MemoryStore and
// the postgres subpackage provide the two bundled implementations.
package chronicle

import (
	"context"
	"fmt"
	"time"

	"github.com/chronicle-engine/chronicle/serializer"
)

// ChangesetAdapter replaces the default changeset decode path when
// configured. The default serializer path stays available and correct when
// no adapter is set.
type ChangesetAdapter interface {
	LoadChangeset(v *Version) (Changeset, error)
}

// RelationLoader is the host-supplied callback that returns the current
// live value of a declared relation. The reifier uses it for the has-many
// "copy current" policy. The full Relation is passed so the loader can
// resolve the related item type (Target) and the join relation (Through)
// without a registry lookup of its own.
type RelationLoader func(ctx context.Context, itemType, itemID string, rel Relation) (any, error)

// Item is the view of a live tracked object the engine needs from the host
// persistence layer.
type Item interface {
	ItemType() string
	ItemID() string
	ItemAttributes() Attributes
	// ItemUpdatedAt is the item's own last-modified timestamp; it becomes
	// the semantic CreatedAt of create/update versions so that the log
	// aligns with the item's temporal attributes.
	ItemUpdatedAt() time.Time
}

// Tracker wires the engine together: store, serializer, optional changeset
// adapter, metadata provider, schema registry and relation loader.
type Tracker struct {
	store     VersionStore
	registry  *Registry
	ser       serializer.Serializer
	adapter   ChangesetAdapter
	meta      MetadataProvider
	relations RelationLoader
	clock     func() time.Time
	recorder  *Recorder
}

type Option func(*Tracker)

func WithSerializer(s serializer.Serializer) Option {
	return func(t *Tracker) {
		if s != nil {
			t.ser = s
		}
	}
}

func WithChangesetAdapter(a ChangesetAdapter) Option {
	return func(t *Tracker) { t.adapter = a }
}

func WithMetadata(p MetadataProvider) Option {
	return func(t *Tracker) { t.meta = p }
}

func WithRelationLoader(l RelationLoader) Option {
	return func(t *Tracker) { t.relations = l }
}

func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTracker builds a tracker over the given store and registry. The
// default codec is JSON; a nil registry behaves as an empty one.
func NewTracker(store VersionStore, registry *Registry, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		registry: registry,
		ser:      serializer.JSON{},
		clock:    time.Now,
	}
	if t.registry == nil {
		t.registry = NewRegistry()
	}
	for _, opt := range opts {
		opt(t)
	}
	t.recorder = NewRecorder(t.ser, t.meta, t.clock)
	return t
}

// Serializer exposes the configured codec to collaborating packages.
func (t *Tracker) Serializer() serializer.Serializer {
	return t.ser
}

// RecordCreate records the creation of a live item and appends the version.
// Returns (nil, nil) when recording is disabled for the item's type.
func (t *Tracker) RecordCreate(ctx context.Context, item Item) (*Version, error) {
	return t.record(ctx, RecordInput{
		ItemType:  item.ItemType(),
		ItemID:    item.ItemID(),
		Event:     EventCreate,
		After:     item.ItemAttributes(),
		Timestamp: item.ItemUpdatedAt(),
	})
}

// RecordUpdate records an update; before is the attribute state immediately
// prior to the event, as supplied by the host persistence layer.
func (t *Tracker) RecordUpdate(ctx context.Context, item Item, before Attributes) (*Version, error) {
	return t.record(ctx, RecordInput{
		ItemType:  item.ItemType(),
		ItemID:    item.ItemID(),
		Event:     EventUpdate,
		Before:    before,
		After:     item.ItemAttributes(),
		Timestamp: item.ItemUpdatedAt(),
	})
}

// RecordTouch records an update event with no attribute differences. The
// version carries an empty changeset and a full snapshot; calling this is
// how the host indicates that a touch occurred.
func (t *Tracker) RecordTouch(ctx context.Context, item Item) (*Version, error) {
	attrs := item.ItemAttributes()
	return t.record(ctx, RecordInput{
		ItemType:  item.ItemType(),
		ItemID:    item.ItemID(),
		Event:     EventUpdate,
		Before:    attrs,
		After:     attrs,
		Timestamp: item.ItemUpdatedAt(),
	})
}

// RecordDestroy records the destruction of an item; last is its final known
// attribute state. CreatedAt is the tracker clock, since no post-event item
// state exists to draw a semantic timestamp from.
func (t *Tracker) RecordDestroy(ctx context.Context, itemType, itemID string, last Attributes) (*Version, error) {
	return t.record(ctx, RecordInput{
		ItemType: itemType,
		ItemID:   itemID,
		Event:    EventDestroy,
		Before:   last,
	})
}

func (t *Tracker) record(ctx context.Context, in RecordInput) (*Version, error) {
	v, err := t.recorder.Record(ctx, in)
	if err != nil || v == nil {
		return nil, err
	}
	if err := t.store.Append(ctx, v); err != nil {
		return nil, fmt.Errorf("append version: %w", err)
	}
	return v, nil
}

// Versions loads an item's log without live state, suitable for navigation
// over a destroyed item's history.
func (t *Tracker) Versions(ctx context.Context, itemType, itemID string) (*Log, error) {
	versions, err := t.store.ForItem(ctx, itemType, itemID)
	if err != nil {
		return nil, fmt.Errorf("load versions: %w", err)
	}
	return NewLog(itemType, itemID, versions, nil), nil
}

// LogFor loads a live item's log with its current state attached, enabling
// the temporal queries that fall through to "how it looks now".
func (t *Tracker) LogFor(ctx context.Context, item Item) (*Log, error) {
	versions, err := t.store.ForItem(ctx, item.ItemType(), item.ItemID())
	if err != nil {
		return nil, fmt.Errorf("load versions: %w", err)
	}
	live := &LiveState{
		Attributes: item.ItemAttributes(),
		UpdatedAt:  item.ItemUpdatedAt(),
	}
	return NewLog(item.ItemType(), item.ItemID(), versions, live), nil
}

// Changeset decodes a version's stored changeset, through the configured
// adapter when one is set.
func (t *Tracker) Changeset(v *Version) (Changeset, error) {
	if t.adapter != nil {
		return t.adapter.LoadChangeset(v)
	}
	if len(v.ObjectChanges) == 0 {
		return Changeset{}, nil
	}
	cs := Changeset{}
	if err := t.ser.Load(v.ObjectChanges, &cs); err != nil {
		return nil, fmt.Errorf("decode changeset of version %d: %w", v.ID, err)
	}
	return cs, nil
}
