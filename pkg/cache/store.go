package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const backendMemory = "memory"

// Config holds the configuration for a MemoryCache.
type Config struct {
	// MaxEntries bounds the number of unpinned entries held by the cache.
	// 0 means unbounded. The bound is split evenly across shards; callers
	// that need an exact global bound should set Shards to 1.
	MaxEntries int

	// Policy selects the automatic eviction strategy. Leaving it empty
	// picks EvictionLRU when MaxEntries is set, EvictionNone otherwise.
	Policy EvictionPolicy

	// Shards is the number of lock shards, rounded up to a power of two.
	// Defaults to 16.
	Shards int

	// TypeOracle answers subtype questions for class-level rules with
	// subclasses enabled. May be nil; subclass rules then match only their
	// exact class.
	TypeOracle TypeOracle

	// Cacheable reports whether instances of a class may be cached at all.
	// A Put for a non-cacheable class is a no-op. nil means every class is
	// cacheable.
	Cacheable func(class string) bool

	// Logger receives cache events. The zero Logger discards everything.
	Logger zerolog.Logger
}

// DefaultConfig returns an unbounded cache configuration with 16 shards.
func DefaultConfig() Config {
	return Config{
		Shards: 16,
	}
}

// shard holds one partition of the keyspace: its own map, lock and eviction
// list. Operations on different shards never serialize against each other.
type shard struct {
	mu      sync.Mutex
	entries map[OID]*entry
	evict   evictionList
}

// MemoryCache is the in-memory, in-process implementation of Cache. It is
// meant to be constructed once per logical application and shared between
// units of work (open, operate, Close), injected explicitly rather than held
// as an implicit singleton.
//
// The keyspace is hash-partitioned across shards, each with its own lock, so
// operations on different identities proceed concurrently. Within a shard,
// pinned entries are excluded from the eviction list entirely; automatic
// eviction can only ever select unpinned entries.
type MemoryCache struct {
	cfg      Config
	logger   zerolog.Logger
	pins     *PinRegistry
	shards   []*shard
	perShard int
	closed   atomic.Bool
	pinned   atomic.Int64
	unpinned atomic.Int64
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a cache with the given configuration.
func NewMemoryCache(cfg Config) *MemoryCache {
	if cfg.Shards <= 0 {
		cfg.Shards = 16
	}
	n := 1
	for n < cfg.Shards {
		n <<= 1
	}
	cfg.Shards = n

	if cfg.Policy == "" {
		if cfg.MaxEntries > 0 {
			cfg.Policy = EvictionLRU
		} else {
			cfg.Policy = EvictionNone
		}
	}

	c := &MemoryCache{
		cfg:    cfg,
		logger: cfg.Logger,
		pins:   NewPinRegistry(cfg.TypeOracle),
		shards: make([]*shard, cfg.Shards),
	}
	if cfg.MaxEntries > 0 && cfg.Policy != EvictionNone {
		c.perShard = (cfg.MaxEntries + cfg.Shards - 1) / cfg.Shards
		if c.perShard < 1 {
			c.perShard = 1
		}
	}
	for i := range c.shards {
		c.shards[i] = &shard{
			entries: make(map[OID]*entry),
			evict:   newEvictionList(cfg.Policy),
		}
	}
	return c
}

// PinnedClasses returns the currently registered class-level pin rules. The
// slice is a copy; pin state is only mutated through Pin/PinClass and their
// unpin counterparts, which keep the partitions coherent with the rules.
func (c *MemoryCache) PinnedClasses() []PinnedClass {
	return c.pins.Rules()
}

// HasPinIntent reports whether a pin intent is recorded for the identity,
// whether or not it is currently cached.
func (c *MemoryCache) HasPinIntent(oid OID) bool {
	return c.pins.HasOID(oid)
}

func (c *MemoryCache) shardFor(oid OID) *shard {
	return c.shards[oid.shardIndex(uint32(len(c.shards)))]
}

func (c *MemoryCache) cacheable(class string) bool {
	return c.cfg.Cacheable == nil || c.cfg.Cacheable(class)
}

func (c *MemoryCache) addPinned(d int64) {
	PinnedObjects.WithLabelValues(backendMemory).Set(float64(c.pinned.Add(d)))
}

func (c *MemoryCache) addUnpinned(d int64) {
	UnpinnedObjects.WithLabelValues(backendMemory).Set(float64(c.unpinned.Add(d)))
}

// Get returns the snapshot stored under oid, or ErrCacheMiss. For
// recency-based policies a hit on an unpinned entry counts as a use; hits on
// pinned entries never affect eviction ordering.
func (c *MemoryCache) Get(ctx context.Context, oid OID) (*CachedPC, error) {
	if oid.IsZero() {
		return nil, ErrInvalidOID
	}
	s := c.shardFor(oid)
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	e, ok := s.entries[oid]
	if !ok {
		CacheMisses.WithLabelValues(backendMemory).Inc()
		return nil, ErrCacheMiss
	}
	if !e.pinned {
		s.evict.touch(e)
	}
	CacheHits.WithLabelValues(backendMemory).Inc()
	return e.pc, nil
}

// GetAll returns the stored snapshots for the given OIDs, silently omitting
// those not present. Zero OIDs in the batch are skipped.
func (c *MemoryCache) GetAll(ctx context.Context, oids ...OID) (map[OID]*CachedPC, error) {
	result := make(map[OID]*CachedPC, len(oids))
	for _, oid := range oids {
		if oid.IsZero() {
			continue
		}
		pc, err := c.Get(ctx, oid)
		if errors.Is(err, ErrCacheMiss) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[oid] = pc
	}
	return result, nil
}

// Put inserts or replaces the snapshot stored under oid and returns the
// previous snapshot, or nil. A new entry starts pinned if a pin intent or a
// class-level rule covers the OID; a replaced entry keeps its partition,
// except an unpinned entry is promoted when a rule or intent now matches.
// Puts for non-cacheable classes are no-ops returning (nil, nil).
func (c *MemoryCache) Put(ctx context.Context, oid OID, pc *CachedPC) (*CachedPC, error) {
	if oid.IsZero() {
		return nil, ErrInvalidOID
	}
	if pc == nil {
		return nil, ErrNilSnapshot
	}
	if !c.cacheable(oid.Class) {
		c.logger.Debug().Str("oid", oid.String()).Msg("put skipped, class not cacheable")
		return nil, nil
	}

	s := c.shardFor(oid)
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	// The coverage check must happen under the shard lock so it serializes
	// against concurrent Pin/PinClass on the same identity; a Pin that
	// completed before this insert must yield a pinned entry.
	covered := c.pins.Covers(oid)

	if e, ok := s.entries[oid]; ok {
		prev := e.pc
		e.pc = pc
		if !e.pinned {
			if covered {
				c.promoteLocked(s, e)
			} else {
				s.evict.touch(e)
			}
		}
		return prev, nil
	}

	e := &entry{oid: oid, pc: pc, pinned: covered}
	s.entries[oid] = e
	if covered {
		c.addPinned(1)
	} else {
		s.evict.add(e)
		c.addUnpinned(1)
		c.enforceLocked(s)
	}
	return nil, nil
}

// PutAll applies Put for every entry in objs. Each insertion is individually
// atomic; the batch as a whole is not. The first failing insertion aborts
// the remainder.
func (c *MemoryCache) PutAll(ctx context.Context, objs map[OID]*CachedPC) error {
	for oid, pc := range objs {
		if _, err := c.Put(ctx, oid, pc); err != nil {
			return fmt.Errorf("put %s: %w", oid, err)
		}
	}
	return nil
}

// Evict removes the entry stored under oid regardless of its pin state.
// Explicit eviction always succeeds, even for pinned entries. A recorded pin
// intent for the OID survives eviction and still applies to a future Put.
func (c *MemoryCache) Evict(ctx context.Context, oid OID) error {
	if oid.IsZero() {
		return ErrInvalidOID
	}
	s := c.shardFor(oid)
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.removeLocked(s, oid, evictReasonExplicit)
	return nil
}

// EvictAll removes the entries stored under the given OIDs. Absent OIDs are
// skipped.
func (c *MemoryCache) EvictAll(ctx context.Context, oids ...OID) error {
	for _, oid := range oids {
		if oid.IsZero() {
			continue
		}
		if err := c.Evict(ctx, oid); err != nil {
			return err
		}
	}
	return nil
}

// EvictClass removes every entry whose class matches, including subtypes
// when subclasses is set and a TypeOracle is configured.
func (c *MemoryCache) EvictClass(ctx context.Context, class string, subclasses bool) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	rule := PinnedClass{Class: class, Subclasses: subclasses}
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for oid, e := range s.entries {
			if rule.Matches(e.oid.Class, c.cfg.TypeOracle) {
				c.removeLocked(s, oid, evictReasonClass)
				n++
			}
		}
		s.mu.Unlock()
	}
	c.logger.Debug().Str("class", class).Bool("subclasses", subclasses).Int("evicted", n).Msg("class evicted")
	return nil
}

// Clear removes every entry. Pin rules and pin intents are retained and
// still apply to future Puts.
func (c *MemoryCache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	for _, s := range c.shards {
		s.mu.Lock()
		for oid := range s.entries {
			c.removeLocked(s, oid, evictReasonClear)
		}
		s.mu.Unlock()
	}
	return nil
}

// Pin moves the entry stored under oid into the pinned partition. If the OID
// is not yet cached, the pin intent is recorded so a future Put of that OID
// starts pinned. Pinning an already pinned entry is a no-op.
func (c *MemoryCache) Pin(ctx context.Context, oid OID) error {
	if oid.IsZero() {
		return ErrInvalidOID
	}
	s := c.shardFor(oid)
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.pins.AddOID(oid)
	if e, ok := s.entries[oid]; ok && !e.pinned {
		c.promoteLocked(s, e)
	}
	return nil
}

// PinAll applies Pin for every OID.
func (c *MemoryCache) PinAll(ctx context.Context, oids ...OID) error {
	for _, oid := range oids {
		if oid.IsZero() {
			continue
		}
		if err := c.Pin(ctx, oid); err != nil {
			return err
		}
	}
	return nil
}

// PinClass registers a class-level pin rule and retroactively pins every
// currently stored matching entry. The rule persists and is evaluated on
// every future Put, so not-yet-cached instances start pinned too.
func (c *MemoryCache) PinClass(ctx context.Context, class string, subclasses bool) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	rule := PinnedClass{Class: class, Subclasses: subclasses}
	c.pins.AddRule(rule)
	for _, s := range c.shards {
		s.mu.Lock()
		for _, e := range s.entries {
			if !e.pinned && rule.Matches(e.oid.Class, c.cfg.TypeOracle) {
				c.promoteLocked(s, e)
			}
		}
		s.mu.Unlock()
	}
	c.logger.Debug().Str("class", class).Bool("subclasses", subclasses).Msg("class pinned")
	return nil
}

// Unpin moves the entry stored under oid into the unpinned partition, making
// it immediately eligible for automatic eviction, and clears any recorded
// pin intent. Unpin of an absent or already unpinned OID is a no-op.
func (c *MemoryCache) Unpin(ctx context.Context, oid OID) error {
	if oid.IsZero() {
		return ErrInvalidOID
	}
	s := c.shardFor(oid)
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.pins.RemoveOID(oid)
	if e, ok := s.entries[oid]; ok && e.pinned {
		c.demoteLocked(s, e)
	}
	return nil
}

// UnpinAll applies Unpin for every OID.
func (c *MemoryCache) UnpinAll(ctx context.Context, oids ...OID) error {
	for _, oid := range oids {
		if oid.IsZero() {
			continue
		}
		if err := c.Unpin(ctx, oid); err != nil {
			return err
		}
	}
	return nil
}

// UnpinClass removes the matching class-level pin rule, if registered, and
// retroactively unpins every currently stored matching entry, clearing
// single-OID pin intents for swept entries as well. Only the rule with the
// exact same subclasses flag is removed.
func (c *MemoryCache) UnpinClass(ctx context.Context, class string, subclasses bool) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	rule := PinnedClass{Class: class, Subclasses: subclasses}
	c.pins.RemoveRule(rule)
	for _, s := range c.shards {
		s.mu.Lock()
		for _, e := range s.entries {
			if e.pinned && rule.Matches(e.oid.Class, c.cfg.TypeOracle) {
				c.pins.RemoveOID(e.oid)
				c.demoteLocked(s, e)
			}
		}
		s.mu.Unlock()
	}
	c.logger.Debug().Str("class", class).Bool("subclasses", subclasses).Msg("class unpinned")
	return nil
}

// Contains reports whether an entry is stored under oid. Contains does not
// affect eviction ordering.
func (c *MemoryCache) Contains(ctx context.Context, oid OID) bool {
	if oid.IsZero() {
		return false
	}
	s := c.shardFor(oid)
	s.mu.Lock()
	_, ok := s.entries[oid]
	s.mu.Unlock()
	return ok
}

// Size returns the total number of stored entries.
func (c *MemoryCache) Size(ctx context.Context) int {
	return int(c.pinned.Load() + c.unpinned.Load())
}

// NumPinned returns the size of the pinned partition.
func (c *MemoryCache) NumPinned(ctx context.Context) int {
	return int(c.pinned.Load())
}

// NumUnpinned returns the size of the unpinned partition.
func (c *MemoryCache) NumUnpinned(ctx context.Context) int {
	return int(c.unpinned.Load())
}

// IsEmpty reports whether the cache holds no entries.
func (c *MemoryCache) IsEmpty(ctx context.Context) bool {
	return c.Size(ctx) == 0
}

// Close empties the cache and marks it closed. Close is idempotent; it
// serializes behind in-flight operations through the shard locks, and every
// subsequent data or mutation operation fails with ErrCacheClosed.
func (c *MemoryCache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, s := range c.shards {
		s.mu.Lock()
		for oid, e := range s.entries {
			if e.pinned {
				c.addPinned(-1)
			} else {
				s.evict.remove(e)
				c.addUnpinned(-1)
			}
			delete(s.entries, oid)
		}
		s.mu.Unlock()
	}
	c.logger.Info().Msg("level-2 cache closed")
	return nil
}

// promoteLocked moves an unpinned entry into the pinned partition. Caller
// holds the shard lock.
func (c *MemoryCache) promoteLocked(s *shard, e *entry) {
	s.evict.remove(e)
	e.pinned = true
	c.addUnpinned(-1)
	c.addPinned(1)
}

// demoteLocked moves a pinned entry into the unpinned partition and applies
// capacity pressure, since the entry is eligible for eviction immediately.
// Caller holds the shard lock.
func (c *MemoryCache) demoteLocked(s *shard, e *entry) {
	e.pinned = false
	s.evict.add(e)
	c.addPinned(-1)
	c.addUnpinned(1)
	c.enforceLocked(s)
}

// removeLocked deletes the entry stored under oid, pinned or not. Caller
// holds the shard lock.
func (c *MemoryCache) removeLocked(s *shard, oid OID, reason string) {
	e, ok := s.entries[oid]
	if !ok {
		return
	}
	if e.pinned {
		c.addPinned(-1)
	} else {
		s.evict.remove(e)
		c.addUnpinned(-1)
	}
	delete(s.entries, oid)
	CacheEvictions.WithLabelValues(backendMemory, reason).Inc()
}

// enforceLocked applies the shard's capacity bound, evicting eviction-list
// victims until the shard's unpinned count fits. Caller holds the shard
// lock.
func (c *MemoryCache) enforceLocked(s *shard) {
	if c.perShard == 0 {
		return
	}
	for s.evict.len() > c.perShard {
		victim := s.evict.victim()
		if victim == nil {
			return
		}
		s.evict.remove(victim)
		delete(s.entries, victim.oid)
		c.addUnpinned(-1)
		CacheEvictions.WithLabelValues(backendMemory, evictReasonPolicy).Inc()
		c.logger.Debug().Str("oid", victim.oid.String()).Msg("evicted under capacity pressure")
	}
}
