package cache

import (
	"context"
)

// TypeOracle answers subtype questions about the caller's persistable type
// hierarchy. The cache has no type model of its own; class-level pin and
// evict rules with subclasses enabled delegate to this oracle.
//
// IsSubtypeOf reports whether class is the same as, or a subtype of,
// ancestor. Implementations must be safe for concurrent use.
type TypeOracle interface {
	IsSubtypeOf(class, ancestor string) bool
}

// PinnedClass is a class-level pin rule: every instance of Class (and of its
// subtypes, if Subclasses is set) is treated as pinned. Two rules are equal
// only if both the class name and the subclasses flag match; rules for the
// same class differing only in the flag are distinct and both retained.
type PinnedClass struct {
	Class      string
	Subclasses bool
}

// Matches reports whether the rule covers the given class. A nil oracle
// restricts subclass rules to exact class matches.
func (p PinnedClass) Matches(class string, oracle TypeOracle) bool {
	if p.Class == class {
		return true
	}
	if p.Subclasses && oracle != nil {
		return oracle.IsSubtypeOf(class, p.Class)
	}
	return false
}

// Cache is the shared level-2 object cache contract. Objects are stored as
// detached CachedPC snapshots keyed by OID, shared between independent
// units of work. Implementations must be safe for concurrent use by many
// readers and writers without external locking.
//
// Entries live in one of two disjoint partitions, pinned or unpinned. Only
// unpinned entries are eligible for automatic, policy-driven eviction;
// explicit Evict calls always succeed regardless of pin state.
//
// After Close, all data and mutation operations return ErrCacheClosed.
// Accounting queries (Size, NumPinned, NumUnpinned, IsEmpty, Contains)
// remain callable and report an empty cache.
type Cache interface {
	// Get returns the snapshot stored under oid, or ErrCacheMiss if absent.
	// The returned CachedPC is an immutable shared value, never a mutable
	// handle into internal storage.
	Get(ctx context.Context, oid OID) (*CachedPC, error)

	// GetAll returns the snapshots for the given OIDs. OIDs not present in
	// the cache are silently omitted from the result; a missing OID is not
	// an error.
	GetAll(ctx context.Context, oids ...OID) (map[OID]*CachedPC, error)

	// Put inserts or replaces the snapshot stored under oid and returns the
	// previously stored snapshot, or nil if there was none. A Put for a
	// class configured as non-cacheable is a no-op returning (nil, nil).
	Put(ctx context.Context, oid OID, pc *CachedPC) (*CachedPC, error)

	// PutAll applies Put for every entry. Each individual insertion is
	// atomic; no atomicity across the whole batch is guaranteed.
	PutAll(ctx context.Context, objs map[OID]*CachedPC) error

	// Evict removes the entry stored under oid, pinned or not. Evicting an
	// absent OID is a no-op.
	Evict(ctx context.Context, oid OID) error

	// EvictAll removes the entries stored under the given OIDs.
	EvictAll(ctx context.Context, oids ...OID) error

	// EvictClass removes every entry whose class matches, including
	// subtypes when subclasses is set.
	EvictClass(ctx context.Context, class string, subclasses bool) error

	// Clear removes every entry from the cache. Pin rules and pin intents
	// are retained.
	Clear(ctx context.Context) error

	// Pin moves the entry stored under oid into the pinned partition. If
	// the OID is not yet cached, the pin intent is recorded so a future Put
	// of that OID starts pinned.
	Pin(ctx context.Context, oid OID) error

	// PinAll applies Pin for every OID.
	PinAll(ctx context.Context, oids ...OID) error

	// PinClass registers a class-level pin rule and retroactively pins all
	// currently stored matching entries. The rule persists and is evaluated
	// on every future Put.
	PinClass(ctx context.Context, class string, subclasses bool) error

	// Unpin moves the entry stored under oid into the unpinned partition,
	// making it immediately eligible for automatic eviction, and clears any
	// recorded pin intent for the OID. Unpin of an absent or already
	// unpinned OID is a no-op.
	Unpin(ctx context.Context, oid OID) error

	// UnpinAll applies Unpin for every OID.
	UnpinAll(ctx context.Context, oids ...OID) error

	// UnpinClass removes the matching class-level pin rule, if registered,
	// and retroactively unpins all currently stored matching entries.
	UnpinClass(ctx context.Context, class string, subclasses bool) error

	// Contains reports whether an entry is stored under oid.
	Contains(ctx context.Context, oid OID) bool

	// Size returns the total number of stored entries.
	Size(ctx context.Context) int

	// NumPinned returns the number of entries in the pinned partition.
	NumPinned(ctx context.Context) int

	// NumUnpinned returns the number of entries in the unpinned partition.
	NumUnpinned(ctx context.Context) int

	// IsEmpty reports whether the cache holds no entries.
	IsEmpty(ctx context.Context) bool

	// Close releases held resources. Close is idempotent; after it returns,
	// every subsequent data or mutation operation fails with ErrCacheClosed.
	Close() error
}
