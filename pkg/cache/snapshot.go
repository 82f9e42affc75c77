package cache

import (
	"fmt"
	"sort"
)

// relationKind discriminates the cardinality of a relation field value.
type relationKind int

const (
	relationNone relationKind = iota
	relationSingle
	relationMany
)

// Relation is the detached value of a relation field. It holds the identity
// (or ordered identities) of the related object(s), never the objects
// themselves. The zero value means "no value".
type Relation struct {
	kind relationKind
	oid  OID
	oids []OID
}

// NoRelation returns a Relation carrying no value, for a relation field that
// is loaded but empty (e.g. a null reference).
func NoRelation() Relation {
	return Relation{}
}

// RelationTo returns a Relation to a single related object.
func RelationTo(oid OID) Relation {
	return Relation{kind: relationSingle, oid: oid}
}

// RelationToAll returns a Relation to an ordered collection of related
// objects. The slice is copied.
func RelationToAll(oids []OID) Relation {
	cp := make([]OID, len(oids))
	copy(cp, oids)
	return Relation{kind: relationMany, oids: cp}
}

// IsSet returns true if the relation carries a value.
func (r Relation) IsSet() bool {
	return r.kind != relationNone
}

// Single returns the related OID for a single-valued relation.
func (r Relation) Single() (OID, bool) {
	if r.kind != relationSingle {
		return OID{}, false
	}
	return r.oid, true
}

// All returns a copy of the related OIDs for a collection-valued relation.
func (r Relation) All() ([]OID, bool) {
	if r.kind != relationMany {
		return nil, false
	}
	cp := make([]OID, len(r.oids))
	copy(cp, r.oids)
	return cp, true
}

// CachedPC is the detached snapshot of one persistent object: a flattened
// copy of its scalar field values, a loaded/unloaded flag per field, and
// relation field values reduced to identities.
//
// A CachedPC never holds a reference to another CachedPC or to a live domain
// object. Relation fields carry only OIDs, so evicting or replacing one
// entry can never cascade into another. The caller constructing the snapshot
// is responsible for translating object references into OIDs before Put
// (see the package documentation).
//
// CachedPC is immutable after construction. An update is modeled as a full
// replacement via Put, not in-place mutation. All accessors that return
// slices or maps return copies.
type CachedPC struct {
	class     string
	version   any
	fields    []any
	loaded    []bool
	relations map[int]Relation
}

// NewCachedPC builds a snapshot for an object of the given class.
//
// fields holds one slot per persistent field, aligned to the stable per-class
// field ordering supplied by the caller's metadata; slots for relation fields
// hold nil. loaded marks which slots carry real data and must have the same
// length as fields. relations maps relation-field indexes to their detached
// values. version is the optional optimistic-locking version, nil if unused.
//
// All inputs are copied; the caller keeps ownership of the slices and map.
// NewCachedPC panics if the loaded mask length does not match fields.
func NewCachedPC(class string, fields []any, loaded []bool, relations map[int]Relation, version any) *CachedPC {
	if len(loaded) != len(fields) {
		panic(fmt.Sprintf("cache: loaded mask length %d does not match %d fields", len(loaded), len(fields)))
	}
	pc := &CachedPC{
		class:   class,
		version: version,
		fields:  make([]any, len(fields)),
		loaded:  make([]bool, len(loaded)),
	}
	copy(pc.fields, fields)
	copy(pc.loaded, loaded)
	if len(relations) > 0 {
		pc.relations = make(map[int]Relation, len(relations))
		for i, r := range relations {
			pc.relations[i] = r
		}
	}
	return pc
}

// Class returns the fully qualified name of the snapshotted type.
func (pc *CachedPC) Class() string {
	return pc.class
}

// Version returns the optimistic-locking version, or nil.
func (pc *CachedPC) Version() any {
	return pc.version
}

// NumFields returns the number of persistent field slots.
func (pc *CachedPC) NumFields() int {
	return len(pc.fields)
}

// FieldValue returns the value of field i and whether the field is loaded.
// The value of an unloaded field is always nil.
func (pc *CachedPC) FieldValue(i int) (any, bool) {
	if i < 0 || i >= len(pc.fields) {
		return nil, false
	}
	if !pc.loaded[i] {
		return nil, false
	}
	return pc.fields[i], true
}

// Fields returns a copy of all field value slots.
func (pc *CachedPC) Fields() []any {
	cp := make([]any, len(pc.fields))
	copy(cp, pc.fields)
	return cp
}

// LoadedFields returns a copy of the loaded mask.
func (pc *CachedPC) LoadedFields() []bool {
	cp := make([]bool, len(pc.loaded))
	copy(cp, pc.loaded)
	return cp
}

// Relation returns the relation value for field i and whether one is present.
func (pc *CachedPC) Relation(i int) (Relation, bool) {
	r, ok := pc.relations[i]
	return r, ok
}

// Relations returns a copy of the relation value map.
func (pc *CachedPC) Relations() map[int]Relation {
	if len(pc.relations) == 0 {
		return nil
	}
	cp := make(map[int]Relation, len(pc.relations))
	for i, r := range pc.relations {
		cp[i] = r
	}
	return cp
}

// RelationFields returns the sorted indexes of fields that carry a relation
// value.
func (pc *CachedPC) RelationFields() []int {
	if len(pc.relations) == 0 {
		return nil
	}
	idxs := make([]int, 0, len(pc.relations))
	for i := range pc.relations {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	return idxs
}

// Copy returns an independent deep copy of the snapshot.
func (pc *CachedPC) Copy() *CachedPC {
	return NewCachedPC(pc.class, pc.fields, pc.loaded, pc.relations, pc.version)
}
