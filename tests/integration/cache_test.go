package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/openpersist/l2cache/internal/testutil"
	"github.com/openpersist/l2cache/pkg/cache"
	"github.com/openpersist/l2cache/pkg/rediscache"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// TestRedisCacheContract exercises the full cache contract against a real
// Redis instance.
func TestRedisCacheContract(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	oracle := testutil.Hierarchy{
		"app.Premium": "app.Customer",
		"app.VIP":     "app.Premium",
	}
	l2 := rediscache.New(rediscache.Config{
		Client:     redisClient,
		TypeOracle: oracle,
	})
	ctx := context.Background()

	// Put/Get round trip, relations included.
	custOID := cache.NewOID("app.Customer", "1")
	cust := testutil.SnapshotWithRelations("app.Customer",
		[]any{"alice", nil},
		map[int]cache.Relation{1: cache.RelationToAll([]cache.OID{
			cache.NewOID("app.Order", "100"),
			cache.NewOID("app.Order", "101"),
		})})
	if _, err := l2.Put(ctx, custOID, cust); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := l2.Get(ctx, custOID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	rel, ok := got.Relation(1)
	if !ok {
		t.Fatal("relation lost in Redis round trip")
	}
	oids, _ := rel.All()
	if len(oids) != 2 || oids[0] != cache.NewOID("app.Order", "100") {
		t.Errorf("relation OIDs = %v, order must be preserved", oids)
	}

	// Batch put and partial GetAll.
	batch := map[cache.OID]*cache.CachedPC{}
	for i := 0; i < 5; i++ {
		oid := cache.NewOID("app.Premium", fmt.Sprintf("p%d", i))
		batch[oid] = testutil.Snapshot("app.Premium", i)
	}
	if err := l2.PutAll(ctx, batch); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}
	found, err := l2.GetAll(ctx,
		cache.NewOID("app.Premium", "p0"),
		cache.NewOID("app.Premium", "p4"),
		cache.NewOID("app.Premium", "missing"))
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("GetAll returned %d entries, want 2 (missing OID omitted)", len(found))
	}

	if got, want := l2.Size(ctx), 6; got != want {
		t.Errorf("Size = %d, want %d", got, want)
	}

	// Class eviction spanning subtypes removes Premium but not Customer.
	if err := l2.EvictClass(ctx, "app.Premium", true); err != nil {
		t.Fatalf("EvictClass failed: %v", err)
	}
	if l2.Contains(ctx, cache.NewOID("app.Premium", "p0")) {
		t.Error("Premium entries should be gone")
	}
	if !l2.Contains(ctx, custOID) {
		t.Error("Customer entry must survive a Premium eviction")
	}

	// Subtype eviction from the ancestor class.
	if _, err := l2.Put(ctx, cache.NewOID("app.VIP", "v1"), testutil.Snapshot("app.VIP")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := l2.EvictClass(ctx, "app.Customer", true); err != nil {
		t.Fatalf("EvictClass failed: %v", err)
	}
	if l2.Contains(ctx, custOID) || l2.Contains(ctx, cache.NewOID("app.VIP", "v1")) {
		t.Error("ancestor class eviction with subclasses must cover the whole subtree")
	}
	if !l2.IsEmpty(ctx) {
		t.Errorf("Size = %d after full eviction, want 0", l2.Size(ctx))
	}

	// Closed-cache guard.
	if err := l2.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := l2.Get(ctx, custOID); !errors.Is(err, cache.ErrCacheClosed) {
		t.Errorf("Get after Close = %v, want ErrCacheClosed", err)
	}
}

// TestRedisCacheTTLExpiry verifies server-side expiry with a configured TTL.
func TestRedisCacheTTLExpiry(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	l2 := rediscache.New(rediscache.Config{
		Client: redisClient,
		TTL:    500 * time.Millisecond,
	})
	defer l2.Close()
	ctx := context.Background()

	oid := cache.NewOID("app.Session", "s1")
	if _, err := l2.Put(ctx, oid, testutil.Snapshot("app.Session", "data")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := l2.Get(ctx, oid); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	time.Sleep(time.Second)

	if _, err := l2.Get(ctx, oid); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("Get after expiry = %v, want ErrCacheMiss", err)
	}
	// The miss prunes the member set, so Size converges.
	if got := l2.Size(ctx); got != 0 {
		t.Errorf("Size = %d after expiry and prune, want 0", got)
	}
}

// TestTieredSetup verifies the documented deployment shape: an in-memory
// cache with pinning in front, Redis behind, both implementing the same
// contract.
func TestTieredSetup(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()
	ctx := context.Background()

	var tiers []cache.Cache
	mem := cache.NewMemoryCache(cache.Config{MaxEntries: 100})
	shared := rediscache.New(rediscache.Config{Client: redisClient})
	tiers = append(tiers, mem, shared)

	oid := cache.NewOID("app.Currency", "EUR")
	pc := testutil.Snapshot("app.Currency", "Euro", "978")
	for _, tier := range tiers {
		if _, err := tier.Put(ctx, oid, pc); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	// Pinning sticks on the memory tier and is a no-op on Redis.
	for _, tier := range tiers {
		if err := tier.PinClass(ctx, "app.Currency", true); err != nil {
			t.Fatalf("PinClass failed: %v", err)
		}
	}
	if mem.NumPinned(ctx) != 1 {
		t.Error("memory tier should pin the entry")
	}
	if shared.NumPinned(ctx) != 0 {
		t.Error("redis tier reports no pinned entries")
	}

	for _, tier := range tiers {
		got, err := tier.Get(ctx, oid)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if v, _ := got.FieldValue(0); v != "Euro" {
			t.Errorf("FieldValue(0) = %v, want Euro", v)
		}
		tier.Close()
	}
}
