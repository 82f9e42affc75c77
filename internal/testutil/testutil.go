// Package testutil provides testing utilities for the level-2 cache.
package testutil

import (
	"github.com/openpersist/l2cache/pkg/cache"
)

// Hierarchy is a map-backed cache.TypeOracle: child class -> parent class.
// It walks the parent chain, so transitive subtypes are covered.
type Hierarchy map[string]string

// IsSubtypeOf reports whether class equals ancestor or inherits from it.
func (h Hierarchy) IsSubtypeOf(class, ancestor string) bool {
	for c := class; c != ""; c = h[c] {
		if c == ancestor {
			return true
		}
	}
	return false
}

// Snapshot builds a fully loaded CachedPC with the given scalar fields and
// no relations.
func Snapshot(class string, fields ...any) *cache.CachedPC {
	loaded := make([]bool, len(fields))
	for i := range loaded {
		loaded[i] = true
	}
	return cache.NewCachedPC(class, fields, loaded, nil, nil)
}

// SnapshotWithRelations builds a fully loaded CachedPC carrying relation
// values. Relation field slots in fields should hold nil.
func SnapshotWithRelations(class string, fields []any, relations map[int]cache.Relation) *cache.CachedPC {
	loaded := make([]bool, len(fields))
	for i := range loaded {
		loaded[i] = true
	}
	return cache.NewCachedPC(class, fields, loaded, relations, nil)
}
