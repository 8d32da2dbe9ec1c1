package chronicle

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/chronicle-engine/chronicle/serializer"
)

func widgetRegistry(t *testing.T) *Registry {
	t.Helper()
	attrs := map[string]Kind{
		"type":       KindString,
		"name":       KindString,
		"size":       KindInt,
		"price":      KindFloat,
		"active":     KindBool,
		"shipped_at": KindTime,
		"note":       KindAny,
	}
	reg := NewRegistry()
	defs := []TypeDef{
		{
			Name:          "widget",
			Attributes:    attrs,
			Discriminator: "type",
			Relations: []Relation{
				{Name: "fluxors", Kind: HasMany},
				{Name: "parts", Kind: HasManyThrough, Through: "assemblies"},
				{Name: "owner", Kind: HasOne, TargetType: "user"},
			},
		},
		{Name: "gadget", Attributes: attrs, Discriminator: "type"},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			t.Fatalf("register %s: %v", def.Name, err)
		}
	}
	return reg
}

func dump(t *testing.T, v any) []byte {
	t.Helper()
	data, err := (serializer.JSON{}).Dump(v)
	if err != nil {
		t.Fatalf("failed to encode payload: %v", err)
	}
	return data
}

func snapshotVersion(t *testing.T, id int64, snapshot map[string]any) *Version {
	t.Helper()
	return &Version{
		ID:        id,
		ItemType:  "widget",
		ItemID:    strPtr("1"),
		Event:     EventUpdate,
		Object:    dump(t, snapshot),
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestReifyCreateVersionReturnsNil(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), widgetRegistry(t))
	ctx, _ := widgetTimeline(t, tracker)

	log, err := tracker.Versions(ctx, "widget", "1")
	if err != nil {
		t.Fatalf("load versions: %v", err)
	}

	reified, err := tracker.Reify(ctx, log.First(), ReifyOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reified != nil {
		t.Errorf("expected nil for the create version, got %+v", reified)
	}
}

func TestReifyCoercesDecodedValues(t *testing.T) {
	shipped := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	tracker := NewTracker(NewMemoryStore(), widgetRegistry(t))
	ctx := context.Background()

	created := testItem{typ: "widget", id: "1", attrs: Attributes{
		"type":       "widget",
		"name":       "Widget",
		"size":       3,
		"price":      2.5,
		"active":     true,
		"shipped_at": shipped,
	}, updatedAt: shipped}
	if _, err := tracker.RecordCreate(ctx, created); err != nil {
		t.Fatalf("record create: %v", err)
	}
	renamed := testItem{typ: "widget", id: "1", attrs: created.attrs.Clone(), updatedAt: shipped.Add(time.Hour)}
	renamed.attrs["name"] = "Fidget"
	if _, err := tracker.RecordUpdate(ctx, renamed, created.attrs); err != nil {
		t.Fatalf("record update: %v", err)
	}

	log, _ := tracker.Versions(ctx, "widget", "1")
	reified, err := tracker.Reify(ctx, log.Version(1), ReifyOptions{})
	if err != nil {
		t.Fatalf("reify: %v", err)
	}

	if reified.Live() {
		t.Error("expected a reified item to never report live")
	}
	if reified.TypeName != "widget" {
		t.Errorf("expected type widget, got %s", reified.TypeName)
	}
	if got := reified.Attributes["name"]; got != "Widget" {
		t.Errorf("expected pre-event name Widget, got %v", got)
	}
	if got := reified.Attributes["size"]; got != int64(3) {
		t.Errorf("expected size int64(3), got %v (%T)", got, got)
	}
	if got := reified.Attributes["price"]; got != 2.5 {
		t.Errorf("expected price 2.5, got %v (%T)", got, got)
	}
	if got := reified.Attributes["active"]; got != true {
		t.Errorf("expected active true, got %v", got)
	}
	got, ok := reified.Attributes["shipped_at"].(time.Time)
	if !ok || !got.Equal(shipped) {
		t.Errorf("expected shipped_at %v, got %v", shipped, reified.Attributes["shipped_at"])
	}
	if reified.SourceVersion().ID != log.Version(1).ID {
		t.Errorf("expected back-reference to version %d", log.Version(1).ID)
	}
}

func TestReifyToleratesSchemaDrift(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), widgetRegistry(t))
	v := snapshotVersion(t, 7, map[string]any{
		"name":        "Old",
		"legacy_flag": true,
	})

	reified, err := tracker.Reify(context.Background(), v, ReifyOptions{})
	if err != nil {
		t.Fatalf("reify: %v", err)
	}

	if got := reified.Attributes["name"]; got != "Old" {
		t.Errorf("expected name Old, got %v", got)
	}
	if _, present := reified.Attributes["legacy_flag"]; present {
		t.Error("expected the removed attribute to be dropped")
	}
	for _, added := range []string{"size", "price", "shipped_at"} {
		got, present := reified.Attributes[added]
		if !present || got != nil {
			t.Errorf("expected %s to default to nil, got %v (present=%v)", added, got, present)
		}
	}
}

func TestReifyUncoercibleValueDefaultsToNil(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), widgetRegistry(t))
	v := snapshotVersion(t, 8, map[string]any{
		"size":       "not a number",
		"shipped_at": "not a timestamp",
	})

	reified, err := tracker.Reify(context.Background(), v, ReifyOptions{})
	if err != nil {
		t.Fatalf("reify: %v", err)
	}
	if got := reified.Attributes["size"]; got != nil {
		t.Errorf("expected uncoercible size to be nil, got %v", got)
	}
	if got := reified.Attributes["shipped_at"]; got != nil {
		t.Errorf("expected uncoercible shipped_at to be nil, got %v", got)
	}
}

func TestReifyDispatchesOnDiscriminator(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), widgetRegistry(t))

	v := snapshotVersion(t, 9, map[string]any{"type": "gadget", "name": "G"})
	reified, err := tracker.Reify(context.Background(), v, ReifyOptions{})
	if err != nil {
		t.Fatalf("reify: %v", err)
	}
	if reified.TypeName != "gadget" {
		t.Errorf("expected subtype gadget, got %s", reified.TypeName)
	}

	// A tag that names no registered type falls back to the base type.
	v = snapshotVersion(t, 10, map[string]any{"type": "contraption", "name": "C"})
	reified, err = tracker.Reify(context.Background(), v, ReifyOptions{})
	if err != nil {
		t.Fatalf("reify: %v", err)
	}
	if reified.TypeName != "widget" {
		t.Errorf("expected fallback to widget, got %s", reified.TypeName)
	}
}

func TestReifyUnregisteredTypeKeepsSnapshot(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), nil)
	v := &Version{
		ID:       11,
		ItemType: "mystery",
		ItemID:   strPtr("1"),
		Event:    EventUpdate,
		Object:   dump(t, map[string]any{"anything": "goes", "count": 2.0}),
	}

	reified, err := tracker.Reify(context.Background(), v, ReifyOptions{})
	if err != nil {
		t.Fatalf("reify: %v", err)
	}
	want := Attributes{"anything": "goes", "count": 2.0}
	if !reflect.DeepEqual(reified.Attributes, want) {
		t.Errorf("expected snapshot kept as decoded, got %v", reified.Attributes)
	}
}

func TestReifyRelationPolicy(t *testing.T) {
	fluxors := []string{"f1", "f2"}
	parts := []string{"p1"}
	loaded := map[string]Relation{}
	loader := func(ctx context.Context, itemType, itemID string, rel Relation) (any, error) {
		if itemType != "widget" || itemID != "1" {
			t.Errorf("unexpected relation lookup %s/%s %s", itemType, itemID, rel.Name)
		}
		loaded[rel.Name] = rel
		switch rel.Name {
		case "fluxors":
			return fluxors, nil
		case "parts":
			return parts, nil
		}
		t.Errorf("unexpected relation %q", rel.Name)
		return nil, nil
	}
	tracker := NewTracker(NewMemoryStore(), widgetRegistry(t), WithRelationLoader(loader))
	v := snapshotVersion(t, 12, map[string]any{"name": "Widget"})
	ctx := context.Background()

	reified, err := tracker.Reify(ctx, v, ReifyOptions{})
	if err != nil {
		t.Fatalf("reify: %v", err)
	}
	if !reflect.DeepEqual(reified.Relations["fluxors"], fluxors) {
		t.Errorf("expected the current fluxors attached, got %v", reified.Relations["fluxors"])
	}
	if !reflect.DeepEqual(reified.Relations["parts"], parts) {
		t.Errorf("expected the current parts attached, got %v", reified.Relations["parts"])
	}
	if _, present := reified.Relations["owner"]; present {
		t.Error("expected the has-one slot absent by default")
	}

	// The loader sees the full declaration: derived target type and the
	// join relation for through-associations.
	if got := loaded["fluxors"].Target(); got != "fluxor" {
		t.Errorf("expected target fluxor derived from the relation name, got %q", got)
	}
	if got := loaded["parts"].Target(); got != "part" {
		t.Errorf("expected target part, got %q", got)
	}
	if got := loaded["parts"].Through; got != "assemblies" {
		t.Errorf("expected the join relation assemblies, got %q", got)
	}

	reified, err = tracker.Reify(ctx, v, ReifyOptions{IncludeHasOne: true})
	if err != nil {
		t.Fatalf("reify: %v", err)
	}
	owner, present := reified.Relations["owner"]
	if !present || owner != nil {
		t.Errorf("expected a nil has-one slot when requested, got %v (present=%v)", owner, present)
	}

	reified, err = tracker.Reify(ctx, v, ReifyOptions{SkipHasMany: true})
	if err != nil {
		t.Fatalf("reify: %v", err)
	}
	if _, present := reified.Relations["fluxors"]; present {
		t.Error("expected no has-many attachment when skipped")
	}
}

func TestReifyRelationLoaderFailureIsFatal(t *testing.T) {
	boom := errors.New("relation backend down")
	loader := func(ctx context.Context, itemType, itemID string, rel Relation) (any, error) {
		return nil, boom
	}
	tracker := NewTracker(NewMemoryStore(), widgetRegistry(t), WithRelationLoader(loader))
	v := snapshotVersion(t, 13, map[string]any{"name": "Widget"})

	_, err := tracker.Reify(context.Background(), v, ReifyOptions{})
	if err == nil || !errors.Is(err, boom) {
		t.Errorf("expected wrapped loader error, got %v", err)
	}
}

func TestRelationTargetDerivation(t *testing.T) {
	if got := (Relation{Name: "fluxors"}).Target(); got != "fluxor" {
		t.Errorf("expected fluxor, got %q", got)
	}
	if got := (Relation{Name: "entries"}).Target(); got != "entry" {
		t.Errorf("expected entry, got %q", got)
	}
	if got := (Relation{Name: "owner", TargetType: "user"}).Target(); got != "user" {
		t.Errorf("expected the declared target to win, got %q", got)
	}
}

func TestReifyCorruptSnapshotIsFatal(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), widgetRegistry(t))
	v := &Version{
		ID:       14,
		ItemType: "widget",
		ItemID:   strPtr("1"),
		Event:    EventUpdate,
		Object:   []byte("{not json"),
	}

	reified, err := tracker.Reify(context.Background(), v, ReifyOptions{})
	if err == nil {
		t.Fatal("expected decode error for a corrupt snapshot")
	}
	if reified != nil {
		t.Error("expected no partial object on decode failure")
	}
}

func TestReifiedNeighborNavigation(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), widgetRegistry(t), WithClock(steppingClock(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))))
	ctx, _ := widgetTimeline(t, tracker)
	if _, err := tracker.RecordDestroy(ctx, "widget", "1", Attributes{"name": "Digit"}); err != nil {
		t.Fatalf("record destroy: %v", err)
	}

	log, _ := tracker.Versions(ctx, "widget", "1")

	// Version 3 snapshots "Fidget", the state before the second rename.
	reified, err := tracker.Reify(ctx, log.Version(2), ReifyOptions{})
	if err != nil {
		t.Fatalf("reify: %v", err)
	}
	if reified.Attributes["name"] != "Fidget" {
		t.Fatalf("expected Fidget, got %v", reified.Attributes["name"])
	}

	prev, err := reified.PreviousVersion(ctx)
	if err != nil {
		t.Fatalf("previous: %v", err)
	}
	if prev == nil || prev.Attributes["name"] != "Widget" {
		t.Fatalf("expected previous state Widget, got %+v", prev)
	}

	// The neighbor before that is the create version, which has no state.
	first, err := prev.PreviousVersion(ctx)
	if err != nil {
		t.Fatalf("previous of first update: %v", err)
	}
	if first != nil {
		t.Errorf("expected nil before the first update, got %+v", first)
	}

	next, err := reified.NextVersion(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next == nil || next.Attributes["name"] != "Digit" {
		t.Errorf("expected next state Digit from the destroy version, got %+v", next)
	}
}
