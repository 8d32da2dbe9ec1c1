package chronicle

import (
	"context"
	"fmt"
)

// MetadataProvider supplies extension attributes merged into every recorded
// version. A provider error is fatal for the lifecycle event being
// recorded: the recorder surfaces it instead of writing a version with
// half-computed metadata.
type MetadataProvider interface {
	// Static returns item- and event-independent metadata.
	Static() map[string]any
	// Independent returns metadata derived from the event and the ambient
	// operation context (who is making the change, request data, ...).
	Independent(ctx context.Context, event Event) (map[string]any, error)
	// Dependent returns metadata derived from the acting item's state.
	Dependent(item Attributes) (map[string]any, error)
}

// Accessor computes one metadata value from the acting item's attributes.
type Accessor func(item Attributes) (any, error)

// MetaConfig is the host-supplied metadata configuration and the default
// MetadataProvider implementation. Accessors maps a metadata field name to
// a function evaluated against the item at event time.
type MetaConfig struct {
	Values    map[string]any
	OnEvent   func(ctx context.Context, event Event) (map[string]any, error)
	OnItem    func(item Attributes) (map[string]any, error)
	Accessors map[string]Accessor
}

func (m MetaConfig) Static() map[string]any {
	return m.Values
}

func (m MetaConfig) Independent(ctx context.Context, event Event) (map[string]any, error) {
	if m.OnEvent == nil {
		return nil, nil
	}
	return m.OnEvent(ctx, event)
}

func (m MetaConfig) Dependent(item Attributes) (map[string]any, error) {
	var out map[string]any
	if m.OnItem != nil {
		derived, err := m.OnItem(item)
		if err != nil {
			return nil, err
		}
		out = derived
	}
	if len(m.Accessors) > 0 {
		if out == nil {
			out = map[string]any{}
		}
		for field, fn := range m.Accessors {
			value, err := fn(item)
			if err != nil {
				return nil, fmt.Errorf("metadata accessor %q: %w", field, err)
			}
			out[field] = value
		}
	}
	return out, nil
}

// collectMetadata merges provider output in precedence order: static first,
// then event-derived, then item-derived values.
func collectMetadata(ctx context.Context, provider MetadataProvider, event Event, item Attributes) (map[string]any, error) {
	if provider == nil {
		return nil, nil
	}
	merged := map[string]any{}
	for k, v := range provider.Static() {
		merged[k] = v
	}
	independent, err := provider.Independent(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("event metadata: %w", err)
	}
	for k, v := range independent {
		merged[k] = v
	}
	dependent, err := provider.Dependent(item)
	if err != nil {
		return nil, fmt.Errorf("item metadata: %w", err)
	}
	for k, v := range dependent {
		merged[k] = v
	}
	if len(merged) == 0 {
		return nil, nil
	}
	return merged, nil
}
