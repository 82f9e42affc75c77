// Package rediscache provides a Redis-backed implementation of the level-2
// cache contract, for deployments that want the cache tier shared between
// processes or surviving restarts.
//
// Snapshots are stored as JSON values under deterministic keys, with a
// per-class member set so class-level eviction works without scanning the
// keyspace. Pinning is not supported by this backend: pin and unpin
// operations are logged no-ops, and every stored entry counts as unpinned.
// Deployments that rely on pinning should put the in-memory backend in
// front.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/openpersist/l2cache/pkg/cache"
)

const backendRedis = "redis"

// Config holds the configuration for a Redis-backed cache.
type Config struct {
	// Client is the Redis client to use. Required. The cache does not
	// close it; the caller owns its lifecycle.
	Client *redis.Client

	// KeyPrefix namespaces all keys written by this cache. Defaults to
	// "l2".
	KeyPrefix string

	// TTL is the server-side expiry applied to stored snapshots. 0 means
	// entries never expire. With a TTL set, Size and class eviction are
	// best-effort: member sets are pruned lazily when expired entries are
	// looked up.
	TTL time.Duration

	// TypeOracle answers subtype questions for class-level eviction with
	// subclasses enabled. May be nil.
	TypeOracle cache.TypeOracle

	// Cacheable reports whether instances of a class may be cached at all.
	// nil means every class is cacheable.
	Cacheable func(class string) bool

	// Logger receives cache events. The zero Logger discards everything.
	Logger zerolog.Logger
}

// Cache is the Redis-backed level-2 cache.
type Cache struct {
	client *redis.Client
	prefix string
	cfg    Config
	logger zerolog.Logger
	closed atomic.Bool
}

var _ cache.Cache = (*Cache)(nil)

// New creates a Redis-backed cache. It panics if cfg.Client is nil.
func New(cfg Config) *Cache {
	if cfg.Client == nil {
		panic("rediscache: redis client cannot be nil")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "l2"
	}
	return &Cache{
		client: cfg.Client,
		prefix: cfg.KeyPrefix,
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// entryKey is the key holding the snapshot for one OID.
// Format: <prefix>:pc:<class>:<key>
func (c *Cache) entryKey(oid cache.OID) string {
	return c.prefix + ":pc:" + oid.Class + ":" + oid.Key
}

// classKey is the set of primary keys cached for one class.
func (c *Cache) classKey(class string) string {
	return c.prefix + ":cls:" + class
}

// classesKey is the set of class names with cached entries.
func (c *Cache) classesKey() string {
	return c.prefix + ":classes"
}

func (c *Cache) cacheable(class string) bool {
	return c.cfg.Cacheable == nil || c.cfg.Cacheable(class)
}

// Get returns the snapshot stored under oid, or cache.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, oid cache.OID) (*cache.CachedPC, error) {
	if oid.IsZero() {
		return nil, cache.ErrInvalidOID
	}
	if c.closed.Load() {
		return nil, cache.ErrCacheClosed
	}

	data, err := c.client.Get(ctx, c.entryKey(oid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			cache.CacheMisses.WithLabelValues(backendRedis).Inc()
			// Prune the member set in case the entry expired server-side.
			c.client.SRem(ctx, c.classKey(oid.Class), oid.Key)
			return nil, cache.ErrCacheMiss
		}
		cache.CacheErrors.WithLabelValues(backendRedis, "get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	pc, err := unmarshalPC(data)
	if err != nil {
		cache.CacheErrors.WithLabelValues(backendRedis, "get").Inc()
		return nil, err
	}
	cache.CacheHits.WithLabelValues(backendRedis).Inc()
	return pc, nil
}

// GetAll returns the stored snapshots for the given OIDs, silently omitting
// those not present.
func (c *Cache) GetAll(ctx context.Context, oids ...cache.OID) (map[cache.OID]*cache.CachedPC, error) {
	result := make(map[cache.OID]*cache.CachedPC, len(oids))
	for _, oid := range oids {
		if oid.IsZero() {
			continue
		}
		pc, err := c.Get(ctx, oid)
		if errors.Is(err, cache.ErrCacheMiss) {
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
// previously stored snapshot, or nil. Puts for non-cacheable classes are
// no-ops returning (nil, nil).
func (c *Cache) Put(ctx context.Context, oid cache.OID, pc *cache.CachedPC) (*cache.CachedPC, error) {
	if oid.IsZero() {
		return nil, cache.ErrInvalidOID
	}
	if pc == nil {
		return nil, cache.ErrNilSnapshot
	}
	if c.closed.Load() {
		return nil, cache.ErrCacheClosed
	}
	if !c.cacheable(oid.Class) {
		c.logger.Debug().Str("oid", oid.String()).Msg("put skipped, class not cacheable")
		return nil, nil
	}

	data, err := marshalPC(pc)
	if err != nil {
		cache.CacheErrors.WithLabelValues(backendRedis, "put").Inc()
		return nil, err
	}

	// SET with GET returns the replaced value atomically with the write, so
	// concurrent Puts of the same OID each observe a distinct predecessor.
	pipe := c.client.TxPipeline()
	setCmd := pipe.SetArgs(ctx, c.entryKey(oid), data, redis.SetArgs{TTL: c.cfg.TTL, Get: true})
	pipe.SAdd(ctx, c.classKey(oid.Class), oid.Key)
	pipe.SAdd(ctx, c.classesKey(), oid.Class)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		cache.CacheErrors.WithLabelValues(backendRedis, "put").Inc()
		return nil, fmt.Errorf("redis set: %w", err)
	}

	var prev *cache.CachedPC
	if raw, err := setCmd.Bytes(); err == nil {
		prev, err = unmarshalPC(raw)
		if err != nil {
			// Unreadable previous value; it has been replaced anyway.
			c.logger.Warn().Err(err).Str("oid", oid.String()).Msg("discarding unreadable previous snapshot")
			prev = nil
		}
	}
	return prev, nil
}

// PutAll applies Put for every entry. Each insertion is individually atomic;
// the batch as a whole is not.
func (c *Cache) PutAll(ctx context.Context, objs map[cache.OID]*cache.CachedPC) error {
	for oid, pc := range objs {
		if _, err := c.Put(ctx, oid, pc); err != nil {
			return fmt.Errorf("put %s: %w", oid, err)
		}
	}
	return nil
}

// Evict removes the entry stored under oid. Evicting an absent OID is a
// no-op.
func (c *Cache) Evict(ctx context.Context, oid cache.OID) error {
	if oid.IsZero() {
		return cache.ErrInvalidOID
	}
	if c.closed.Load() {
		return cache.ErrCacheClosed
	}
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.entryKey(oid))
	pipe.SRem(ctx, c.classKey(oid.Class), oid.Key)
	if _, err := pipe.Exec(ctx); err != nil {
		cache.CacheErrors.WithLabelValues(backendRedis, "evict").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	cache.CacheEvictions.WithLabelValues(backendRedis, "explicit").Inc()
	return nil
}

// EvictAll removes the entries stored under the given OIDs.
func (c *Cache) EvictAll(ctx context.Context, oids ...cache.OID) error {
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
func (c *Cache) EvictClass(ctx context.Context, class string, subclasses bool) error {
	if c.closed.Load() {
		return cache.ErrCacheClosed
	}
	classes, err := c.matchingClasses(ctx, class, subclasses)
	if err != nil {
		return err
	}
	for _, cls := range classes {
		if err := c.evictWholeClass(ctx, cls); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every entry written by this cache.
func (c *Cache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return cache.ErrCacheClosed
	}
	classes, err := c.client.SMembers(ctx, c.classesKey()).Result()
	if err != nil {
		return fmt.Errorf("redis smembers: %w", err)
	}
	for _, cls := range classes {
		if err := c.evictWholeClass(ctx, cls); err != nil {
			return err
		}
	}
	return nil
}

// matchingClasses returns the cached classes covered by a class rule.
func (c *Cache) matchingClasses(ctx context.Context, class string, subclasses bool) ([]string, error) {
	if !subclasses || c.cfg.TypeOracle == nil {
		return []string{class}, nil
	}
	known, err := c.client.SMembers(ctx, c.classesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	rule := cache.PinnedClass{Class: class, Subclasses: true}
	matched := make([]string, 0, len(known))
	for _, cls := range known {
		if rule.Matches(cls, c.cfg.TypeOracle) {
			matched = append(matched, cls)
		}
	}
	if len(matched) == 0 {
		matched = append(matched, class)
	}
	return matched, nil
}

// evictWholeClass drops every entry of one class along with its member set.
func (c *Cache) evictWholeClass(ctx context.Context, class string) error {
	keys, err := c.client.SMembers(ctx, c.classKey(class)).Result()
	if err != nil {
		return fmt.Errorf("redis smembers: %w", err)
	}
	pipe := c.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, c.entryKey(cache.NewOID(class, key)))
	}
	pipe.Del(ctx, c.classKey(class))
	pipe.SRem(ctx, c.classesKey(), class)
	if _, err := pipe.Exec(ctx); err != nil {
		cache.CacheErrors.WithLabelValues(backendRedis, "evict").Inc()
		return fmt.Errorf("redis del class %s: %w", class, err)
	}
	cache.CacheEvictions.WithLabelValues(backendRedis, "class").Add(float64(len(keys)))
	c.logger.Debug().Str("class", class).Int("evicted", len(keys)).Msg("class evicted")
	return nil
}

// Pin is not supported by the Redis backend; the call is a logged no-op.
func (c *Cache) Pin(ctx context.Context, oid cache.OID) error {
	if c.closed.Load() {
		return cache.ErrCacheClosed
	}
	c.logger.Warn().Str("oid", oid.String()).Msg("pinning not supported by redis backend")
	return nil
}

// PinAll is not supported by the Redis backend; the call is a logged no-op.
func (c *Cache) PinAll(ctx context.Context, oids ...cache.OID) error {
	if c.closed.Load() {
		return cache.ErrCacheClosed
	}
	c.logger.Warn().Int("oids", len(oids)).Msg("pinning not supported by redis backend")
	return nil
}

// PinClass is not supported by the Redis backend; the call is a logged
// no-op.
func (c *Cache) PinClass(ctx context.Context, class string, subclasses bool) error {
	if c.closed.Load() {
		return cache.ErrCacheClosed
	}
	c.logger.Warn().Str("class", class).Msg("pinning not supported by redis backend")
	return nil
}

// Unpin is not supported by the Redis backend; the call is a no-op.
func (c *Cache) Unpin(ctx context.Context, oid cache.OID) error {
	if c.closed.Load() {
		return cache.ErrCacheClosed
	}
	return nil
}

// UnpinAll is not supported by the Redis backend; the call is a no-op.
func (c *Cache) UnpinAll(ctx context.Context, oids ...cache.OID) error {
	if c.closed.Load() {
		return cache.ErrCacheClosed
	}
	return nil
}

// UnpinClass is not supported by the Redis backend; the call is a no-op.
func (c *Cache) UnpinClass(ctx context.Context, class string, subclasses bool) error {
	if c.closed.Load() {
		return cache.ErrCacheClosed
	}
	return nil
}

// Contains reports whether an entry is stored under oid. Errors are logged
// and reported as absent.
func (c *Cache) Contains(ctx context.Context, oid cache.OID) bool {
	if oid.IsZero() || c.closed.Load() {
		return false
	}
	n, err := c.client.Exists(ctx, c.entryKey(oid)).Result()
	if err != nil {
		c.logger.Warn().Err(err).Str("oid", oid.String()).Msg("contains check failed")
		return false
	}
	return n > 0
}

// Size returns the number of stored entries, summed over per-class member
// sets. With a TTL configured the count is an upper bound until expired
// members are pruned.
func (c *Cache) Size(ctx context.Context) int {
	if c.closed.Load() {
		return 0
	}
	classes, err := c.client.SMembers(ctx, c.classesKey()).Result()
	if err != nil {
		c.logger.Warn().Err(err).Msg("size query failed")
		return 0
	}
	total := 0
	for _, cls := range classes {
		n, err := c.client.SCard(ctx, c.classKey(cls)).Result()
		if err != nil {
			c.logger.Warn().Err(err).Str("class", cls).Msg("size query failed")
			return 0
		}
		total += int(n)
	}
	return total
}

// NumPinned always returns 0; the Redis backend cannot pin.
func (c *Cache) NumPinned(ctx context.Context) int {
	return 0
}

// NumUnpinned returns the total entry count; every entry is unpinned.
func (c *Cache) NumUnpinned(ctx context.Context) int {
	return c.Size(ctx)
}

// IsEmpty reports whether the cache holds no entries.
func (c *Cache) IsEmpty(ctx context.Context) bool {
	return c.Size(ctx) == 0
}

// Close marks the cache closed. The underlying Redis client and its data
// are left untouched; the caller owns both. Close is idempotent.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.logger.Info().Msg("redis level-2 cache closed")
	return nil
}
