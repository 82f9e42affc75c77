package cache

import "container/list"

// EvictionPolicy selects the strategy used for automatic eviction of
// unpinned entries under capacity pressure.
type EvictionPolicy string

const (
	// EvictionLRU evicts the least recently used unpinned entry. Get counts
	// as a use. Default for bounded caches.
	EvictionLRU EvictionPolicy = "lru"

	// EvictionFIFO evicts the least recently inserted unpinned entry;
	// access order is ignored.
	EvictionFIFO EvictionPolicy = "fifo"

	// EvictionNone disables automatic eviction; the cache is unbounded.
	EvictionNone EvictionPolicy = "none"
)

// entry is the per-OID record owned by a shard. elem is the entry's position
// in the shard's eviction list and is nil exactly while the entry is pinned.
type entry struct {
	oid    OID
	pc     *CachedPC
	pinned bool
	elem   *list.Element
}

// evictionList orders the unpinned entries of one shard by eviction
// priority. All methods are called under the shard lock. Pinned entries are
// never linked into the list, which makes the pin-exclusion guarantee
// structural: a victim can only ever be an unpinned entry.
type evictionList struct {
	policy EvictionPolicy
	ll     *list.List
}

func newEvictionList(policy EvictionPolicy) evictionList {
	el := evictionList{policy: policy}
	if policy != EvictionNone {
		el.ll = list.New()
	}
	return el
}

// add links a newly unpinned (or newly inserted) entry at highest retention
// priority.
func (el *evictionList) add(e *entry) {
	if el.ll == nil {
		return
	}
	e.elem = el.ll.PushFront(e)
}

// touch records a use of the entry. Only recency-based policies react.
func (el *evictionList) touch(e *entry) {
	if el.policy != EvictionLRU || e.elem == nil {
		return
	}
	el.ll.MoveToFront(e.elem)
}

// remove unlinks the entry, e.g. on explicit eviction or on pinning.
func (el *evictionList) remove(e *entry) {
	if e.elem == nil {
		return
	}
	el.ll.Remove(e.elem)
	e.elem = nil
}

// len returns the number of linked (unpinned) entries.
func (el *evictionList) len() int {
	if el.ll == nil {
		return 0
	}
	return el.ll.Len()
}

// victim returns the next entry automatic eviction should remove, or nil if
// none is eligible. The selection is deterministic for a fixed operation
// history: always the back of the list.
func (el *evictionList) victim() *entry {
	if el.ll == nil {
		return nil
	}
	back := el.ll.Back()
	if back == nil {
		return nil
	}
	e := back.Value.(*entry)
	if e.pinned {
		// Pinned entries are unlinked before the flag is set, so a pinned
		// victim means the partition bookkeeping is corrupt.
		panic("cache: eviction selected a pinned entry")
	}
	return e
}
