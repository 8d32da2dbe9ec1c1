package chronicle

import (
	"time"

	"github.com/google/uuid"
)

// Version is one immutable entry in an item's audit log. It captures the
// item's full serialized state as it was before the event (Object) and the
// serialized attribute changeset the event applied (ObjectChanges).
//
// Versions for one item form a total order by (CreatedAt, ID); CreatedAt
// alone is not unique enough, the append sequence breaks ties.
type Version struct {
	// ID is the monotonic append sequence assigned by the store.
	ID       int64
	ItemType string
	// ItemID is nil for items that were never persisted.
	ItemID *string
	Event  Event
	// Object holds the serialized snapshot of the item before this event.
	// It is nil exactly for the create event: "before creation" has no
	// state. The live item's current state is never stored as a version.
	Object []byte
	// ObjectChanges holds the serialized changeset for this event.
	ObjectChanges []byte
	// Whodunnit identifies the actor responsible, when known.
	Whodunnit *string
	// TransactionID groups versions recorded within one logical operation.
	TransactionID *uuid.UUID
	// Meta carries extension attributes supplied by the metadata provider.
	Meta map[string]any
	// CreatedAt is the semantic timestamp of the event: the item's own
	// post-event updated-at for create/update, wall clock for destroy.
	CreatedAt time.Time
}

// Persisted reports whether the version has been appended to a store.
func (v *Version) Persisted() bool {
	return v.ID != 0
}

// before returns true when a holds an earlier position in the log than b.
func before(a, b *Version) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
