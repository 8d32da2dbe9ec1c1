package chronicle

import (
	"context"

	"github.com/google/uuid"
)

type whodunnitKey struct{}
type transactionKey struct{}
type disabledKey struct{}

// WithWhodunnit attaches the acting identity to the operation context.
// The value is scoped to this context chain only; concurrent operations
// with their own contexts are isolated from each other.
func WithWhodunnit(ctx context.Context, who string) context.Context {
	return context.WithValue(ctx, whodunnitKey{}, who)
}

// WhodunnitFromContext retrieves the acting identity, if set.
func WhodunnitFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	who, ok := ctx.Value(whodunnitKey{}).(string)
	return who, ok
}

// WithTransaction stamps the context with a fresh transaction id. Every
// version recorded under the returned context carries the same id, grouping
// the versions written by one logical operation.
func WithTransaction(ctx context.Context) context.Context {
	return context.WithValue(ctx, transactionKey{}, uuid.New())
}

// TransactionFromContext retrieves the operation's transaction id, if set.
func TransactionFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(transactionKey{}).(uuid.UUID)
	return id, ok
}

// disableMarks counts outstanding disable markers per item type. The map is
// copied on write so sibling contexts never observe each other's markers.
type disableMarks map[string]int

func marksFromContext(ctx context.Context) disableMarks {
	if ctx == nil {
		return nil
	}
	marks, _ := ctx.Value(disabledKey{}).(disableMarks)
	return marks
}

func (m disableMarks) clone() disableMarks {
	out := make(disableMarks, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithRecordingDisabled pushes a disable marker for the item type onto the
// operation context. Markers stack: recording resumes only after a matching
// WithRecordingEnabled removes the last marker.
func WithRecordingDisabled(ctx context.Context, itemType string) context.Context {
	marks := marksFromContext(ctx).clone()
	marks[itemType]++
	return context.WithValue(ctx, disabledKey{}, marks)
}

// WithRecordingEnabled removes one disable marker for the item type.
// Removing a marker that was never pushed is a no-op.
func WithRecordingEnabled(ctx context.Context, itemType string) context.Context {
	current := marksFromContext(ctx)
	if current[itemType] == 0 {
		return ctx
	}
	marks := current.clone()
	if marks[itemType] <= 1 {
		delete(marks, itemType)
	} else {
		marks[itemType]--
	}
	return context.WithValue(ctx, disabledKey{}, marks)
}

// RecordingEnabled reports whether recording should run for the item type
// under this context: the process-wide flag must be on and no disable
// marker may be outstanding for the type.
func RecordingEnabled(ctx context.Context, itemType string) bool {
	if !Enabled() {
		return false
	}
	return marksFromContext(ctx)[itemType] == 0
}
