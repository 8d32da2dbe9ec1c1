package chronicle

import "fmt"

// Event identifies the lifecycle transition a version records.
type Event string

const (
	EventCreate  Event = "create"
	EventUpdate  Event = "update"
	EventDestroy Event = "destroy"
)

// Valid reports whether the event is one of the built-in lifecycle events.
// Custom events are allowed at the recorder level; they are validated only
// for being non-empty.
func (e Event) Valid() bool {
	switch e {
	case EventCreate, EventUpdate, EventDestroy:
		return true
	default:
		return e != ""
	}
}

func validateEvent(e Event) error {
	if !e.Valid() {
		return fmt.Errorf("invalid event %q", string(e))
	}
	return nil
}
