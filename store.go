package chronicle

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a version id does not exist in the store.
var ErrNotFound = errors.New("version not found")

// VersionStore is the append-only, queryable ordered log keyed by
// (item type, item id). Implementations assign the monotonic ID on append
// and must never reorder stored versions.
type VersionStore interface {
	// Append writes the version and assigns its ID.
	Append(ctx context.Context, v *Version) error
	// ForItem returns an item's versions ordered by (CreatedAt, ID).
	ForItem(ctx context.Context, itemType, itemID string) ([]Version, error)
	// GetByID returns one version by its append sequence.
	GetByID(ctx context.Context, id int64) (Version, error)
	// UpdateCreatedAt is the administrative timestamp-correction path.
	// It is not concurrency safe and must be serialized by the caller.
	UpdateCreatedAt(ctx context.Context, id int64, createdAt time.Time) error
}
