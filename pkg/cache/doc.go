// Package cache implements a shared level-2 object cache: a process-wide
// store of detached object snapshots sitting between an application's
// transactional unit-of-work layer and the durable store.
//
// The cache stores CachedPC values keyed by OID. A CachedPC holds a
// flattened copy of one object's scalar field values, a loaded flag per
// field, and relation field values reduced to the identities of the related
// objects. Snapshots never reference other snapshots or live domain objects,
// so each entry is isolated: evicting or replacing one entry cannot cascade
// into another, and cached graphs never keep unrelated objects alive.
//
// Entries are partitioned into pinned and unpinned. Pinned entries are
// protected from automatic, policy-driven eviction and can only be removed
// by explicit Evict calls; unpinned entries are eligible for eviction under
// capacity pressure. Pinning is driven per identity (Pin/Unpin) or per class
// (PinClass/UnpinClass, optionally covering subtypes through an injected
// TypeOracle).
//
// # Basic Usage
//
//	l2 := cache.NewMemoryCache(cache.Config{
//		MaxEntries: 10000,
//		Policy:     cache.EvictionLRU,
//	})
//	defer l2.Close()
//
//	oid := cache.NewOID("app.Customer", "42")
//	pc := cache.NewCachedPC("app.Customer",
//		[]any{"Ada", int64(7), nil},
//		[]bool{true, true, true},
//		map[int]cache.Relation{2: cache.RelationTo(cache.NewOID("app.Account", "9"))},
//		nil)
//
//	prev, err := l2.Put(ctx, oid, pc)
//	got, err := l2.Get(ctx, oid)
//
// # Snapshot Construction Contract
//
// The cache never constructs snapshots; the serialization layer does, and it
// must sever object-graph edges before Put: every field referencing another
// persistent object is translated to that object's OID (or a collection of
// OIDs) via RelationTo/RelationToAll. Storing live references defeats the
// isolation the cache exists to provide.
//
// # Pinning
//
//	// Keep all reference-data instances resident, subtypes included.
//	l2.PinClass(ctx, "app.Currency", true)
//
//	// Pin one identity; applies even before the instance is first cached.
//	l2.Pin(ctx, cache.NewOID("app.Config", "global"))
//
// Class rules apply retroactively to already-stored entries and are kept for
// future Puts. Explicit eviction always wins over pinning.
//
// # Metrics
//
// The package exports Prometheus metrics, labelled by backend:
//
//   - l2cache_hits_total{backend} / l2cache_misses_total{backend}
//   - l2cache_evictions_total{backend, reason}
//   - l2cache_pinned_objects{backend} / l2cache_unpinned_objects{backend}
//   - l2cache_errors_total{backend, operation}
//
// An alternative Redis-backed implementation of the same Cache interface
// lives in pkg/rediscache, for deployments that want the level-2 tier shared
// between processes.
package cache
