package chronicle

import (
	"fmt"
	"sync"

	"github.com/jinzhu/inflection"
)

// Kind declares the semantic type of an attribute so that reification can
// coerce decoded values back into typed form. Snapshots may be stale
// relative to the current schema; the kind table describes the schema as it
// is now.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
)

// RelationKind classifies a declared relation for the reifier's
// association-copy policy.
type RelationKind int

const (
	HasOne RelationKind = iota
	HasMany
	HasManyThrough
	PolymorphicHasMany
)

// Relation describes one relation of a tracked type: which collection (or
// single association) to consider when reifying, and how.
type Relation struct {
	Name string
	Kind RelationKind
	// TargetType names the related item type. When empty it is derived
	// from the relation name (singularized), e.g. "fluxors" -> "fluxor".
	TargetType string
	// Through names the join relation for HasManyThrough.
	Through string
}

// Target returns the related item type, deriving it from the relation name
// when not declared explicitly.
func (r Relation) Target() string {
	if r.TargetType != "" {
		return r.TargetType
	}
	return inflection.Singular(r.Name)
}

// TypeDef is the declarative schema of one tracked item type: its current
// attribute set, the attribute that stores a concrete-type discriminator
// (if any), and its declared relations.
type TypeDef struct {
	Name string
	// Attributes maps the current schema's attribute names to their kinds.
	// Snapshot keys outside this set are dropped during reification;
	// schema keys absent from an older snapshot default to nil.
	Attributes map[string]Kind
	// Discriminator names the attribute holding a stored subtype tag.
	// A snapshot whose discriminator value names a registered type reifies
	// as that type.
	Discriminator string
	Relations     []Relation
}

// Registry holds the tracked type definitions. Reification dispatches on
// stored discriminator values strictly through registered definitions,
// never via open-ended dynamic resolution.
type Registry struct {
	mu    sync.RWMutex
	types map[string]TypeDef
}

func NewRegistry() *Registry {
	return &Registry{types: map[string]TypeDef{}}
}

// Register adds or replaces a type definition.
func (r *Registry) Register(def TypeDef) error {
	if def.Name == "" {
		return fmt.Errorf("type definition requires a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[def.Name] = def
	return nil
}

// Lookup returns the definition for a type name.
func (r *Registry) Lookup(name string) (TypeDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.types[name]
	return def, ok
}
