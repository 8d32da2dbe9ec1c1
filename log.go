package chronicle

import (
	"fmt"
	"sort"
	"time"
)

// LiveState describes the current live item when the caller has it at hand.
// It lets the temporal queries answer "how does it look now" without a
// reload, and it is what makes an item count as live at all: a log without
// live state is treated as the log of a destroyed (or unknown) item.
type LiveState struct {
	Attributes Attributes
	UpdatedAt  time.Time
	Whodunnit  *string
}

// Log is one item's ordered, append-only version history plus optional live
// state. It is the scope of all temporal queries and of previous/next
// navigation.
type Log struct {
	ItemType string
	ItemID   string
	versions []Version
	live     *LiveState
}

// NewLog builds a log over the given versions, sorting them into their
// total order by (CreatedAt, ID).
func NewLog(itemType, itemID string, versions []Version, live *LiveState) *Log {
	sorted := make([]Version, len(versions))
	copy(sorted, versions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return before(&sorted[i], &sorted[j])
	})
	return &Log{ItemType: itemType, ItemID: itemID, versions: sorted, live: live}
}

// Versions returns the versions in creation order.
func (l *Log) Versions() []Version {
	return l.versions
}

func (l *Log) Len() int {
	return len(l.versions)
}

// Version returns the i-th version, or nil when out of range.
func (l *Log) Version(i int) *Version {
	if i < 0 || i >= len(l.versions) {
		return nil
	}
	return &l.versions[i]
}

func (l *Log) First() *Version {
	return l.Version(0)
}

func (l *Log) Last() *Version {
	return l.Version(len(l.versions) - 1)
}

// Live returns the live state attached to the log, or nil when the item no
// longer exists (or the log was loaded without it).
func (l *Log) Live() *LiveState {
	return l.live
}

// Index returns the zero-based position of the version in the log, or -1
// when the version does not belong to it.
func (l *Log) Index(v *Version) int {
	if v == nil {
		return -1
	}
	for i := range l.versions {
		if l.versions[i].ID == v.ID {
			return i
		}
	}
	return -1
}

// Previous returns the immediately preceding version, or nil if v is the
// first (or not part of the log).
func (l *Log) Previous(v *Version) *Version {
	i := l.Index(v)
	if i <= 0 {
		return nil
	}
	return &l.versions[i-1]
}

// Next returns the immediately following version, or nil if v is the last
// (or not part of the log).
func (l *Log) Next(v *Version) *Version {
	i := l.Index(v)
	if i < 0 {
		return nil
	}
	return l.Version(i + 1)
}

// Originator returns the whodunnit of the item's first version, i.e. who
// brought the item into existence.
func (l *Log) Originator() *string {
	first := l.First()
	if first == nil {
		return nil
	}
	return first.Whodunnit
}

// OriginatorOf returns the whodunnit of the version preceding v: the actor
// whose event brought the state captured by v into being. For the destroy
// version that is the last updater; for the first version there is no
// preceding actor and the result is nil.
func (l *Log) OriginatorOf(v *Version) *string {
	prev := l.Previous(v)
	if prev == nil {
		return nil
	}
	return prev.Whodunnit
}

// Terminator returns the whodunnit of the version itself: the actor whose
// event ended the previous state's validity.
func (l *Log) Terminator(v *Version) *string {
	if v == nil {
		return nil
	}
	return v.Whodunnit
}

// VersionAt locates the version that answers "how did the item look
// immediately after at": the earliest version whose CreatedAt is strictly
// greater than at. Reifying that version yields the state as of at; for the
// create version reification yields nil, which is exactly the "did not
// exist yet" answer.
//
// When no such version exists the second return value reports whether the
// item is live: (nil, true) means "the current live state applies",
// (nil, false) means the item is gone (or at predates an empty log).
func (l *Log) VersionAt(at time.Time) (*Version, bool) {
	for i := range l.versions {
		if l.versions[i].CreatedAt.After(at) {
			return &l.versions[i], false
		}
	}
	return nil, l.live != nil
}

// VersionAtString is VersionAt for timestamps given in textual form.
func (l *Log) VersionAtString(at string) (*Version, bool, error) {
	t, err := ParseTimestamp(at)
	if err != nil {
		return nil, false, err
	}
	v, live := l.VersionAt(t)
	return v, live, nil
}

// RangeEntry is one element of a VersionsBetween result: either a stored
// version or the implicit trailing live state.
type RangeEntry struct {
	Version *Version
	Live    bool
}

// VersionsBetween returns every stored version with CreatedAt in
// [start, finish], in order, plus a trailing live entry when the live
// item's own updated-at also falls in range.
//
// The trailing entry double-counts a state that is usually already covered
// by the last stored version's window; the behavior is preserved for
// compatibility with the historical contract and is deliberately not
// extended anywhere else.
func (l *Log) VersionsBetween(start, finish time.Time) []RangeEntry {
	entries := []RangeEntry{}
	for i := range l.versions {
		at := l.versions[i].CreatedAt
		if at.Before(start) || at.After(finish) {
			continue
		}
		entries = append(entries, RangeEntry{Version: &l.versions[i]})
	}
	if l.live != nil {
		at := l.live.UpdatedAt
		if !at.Before(start) && !at.After(finish) {
			entries = append(entries, RangeEntry{Live: true})
		}
	}
	return entries
}

// timestampLayouts are the accepted textual timestamp forms, tried in
// order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a textual timestamp in any accepted layout.
// Layouts without an explicit zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
