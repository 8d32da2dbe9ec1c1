package chronicle

import (
	"context"
	"fmt"
	"time"

	"github.com/chronicle-engine/chronicle/serializer"
)

// RecordInput carries one lifecycle event into the recorder: the attribute
// maps immediately before and after the event, as supplied by the host
// persistence layer. Before is empty for create, After is empty for
// destroy.
type RecordInput struct {
	ItemType string
	// ItemID is empty for items that were never persisted.
	ItemID string
	Event  Event
	Before Attributes
	After  Attributes
	// Timestamp is the semantic event time: the item's own post-event
	// updated-at for create/update. Zero means "use the recorder clock",
	// which is the destroy case, where no post-event item state exists.
	Timestamp time.Time
}

// Recorder turns lifecycle events into Version values. It performs no
// persistence; appending the result to a store is the caller's
// responsibility. Recording control is consulted before any diffing or
// serialization work happens.
type Recorder struct {
	ser   serializer.Serializer
	meta  MetadataProvider
	clock func() time.Time
}

// NewRecorder builds a recorder. ser must be non-nil; meta may be nil when
// no extension metadata is configured; a nil clock defaults to time.Now.
func NewRecorder(ser serializer.Serializer, meta MetadataProvider, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{ser: ser, meta: meta, clock: clock}
}

// Record produces the Version for one lifecycle event, or (nil, nil) when
// recording is disabled for the item type. It never fails for valid inputs;
// a metadata provider error is fatal for the event and is returned as-is.
func (r *Recorder) Record(ctx context.Context, in RecordInput) (*Version, error) {
	if !RecordingEnabled(ctx, in.ItemType) {
		return nil, nil
	}
	if err := validateEvent(in.Event); err != nil {
		return nil, err
	}
	if in.ItemType == "" {
		return nil, fmt.Errorf("record: item type is required")
	}

	var changes Changeset
	switch in.Event {
	case EventDestroy:
		changes = DestroyChangeset(in.Before)
	case EventCreate:
		changes = Diff(nil, in.After)
	default:
		changes = Diff(in.Before, in.After)
	}

	v := &Version{
		ItemType: in.ItemType,
		Event:    in.Event,
	}
	if in.ItemID != "" {
		id := in.ItemID
		v.ItemID = &id
	}

	// The create event has no "before" state; Object stays nil.
	if in.Event != EventCreate {
		object, err := r.ser.Dump(in.Before.Normalize())
		if err != nil {
			return nil, fmt.Errorf("serialize snapshot: %w", err)
		}
		v.Object = object
	}

	encoded, err := r.ser.Dump(changes)
	if err != nil {
		return nil, fmt.Errorf("serialize changeset: %w", err)
	}
	v.ObjectChanges = encoded

	if in.Timestamp.IsZero() {
		v.CreatedAt = r.clock().UTC()
	} else {
		v.CreatedAt = in.Timestamp.UTC()
	}

	if who, ok := WhodunnitFromContext(ctx); ok {
		v.Whodunnit = &who
	}
	if txn, ok := TransactionFromContext(ctx); ok {
		id := txn
		v.TransactionID = &id
	}

	// Metadata derives from the item state the event left behind; for
	// destroy that is the last known state.
	metaItem := in.After
	if in.Event == EventDestroy {
		metaItem = in.Before
	}
	meta, err := collectMetadata(ctx, r.meta, in.Event, metaItem)
	if err != nil {
		return nil, err
	}
	v.Meta = meta

	return v, nil
}
