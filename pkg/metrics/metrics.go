// Package metrics provides the centralized Prometheus metrics registry for
// the level-2 cache. All metrics are defined in pkg/cache via promauto and
// shared by every backend through the "backend" label, to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the cache. All
// metrics are automatically registered via promauto in pkg/cache.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache, shared by all backends):
//   - l2cache_hits_total{backend} (Counter): Cache hits by backend (memory, redis)
//   - l2cache_misses_total{backend} (Counter): Cache misses by backend
//   - l2cache_evictions_total{backend, reason} (Counter): Evictions by reason
//     (explicit, class, clear, policy)
//   - l2cache_pinned_objects{backend} (Gauge): Current pinned partition size
//   - l2cache_unpinned_objects{backend} (Gauge): Current unpinned partition size
//   - l2cache_errors_total{backend, operation} (Counter): Operation errors
//     (get, put, evict)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(l2cache_hits_total[5m])) /
//   (sum(rate(l2cache_hits_total[5m])) + sum(rate(l2cache_misses_total[5m])))
//
//   # Automatic Eviction Pressure
//   rate(l2cache_evictions_total{reason="policy"}[5m])
//
//   # Partition Sizes
//   l2cache_pinned_objects + l2cache_unpinned_objects
//
//   # Backend Error Rate
//   rate(l2cache_errors_total{backend="redis"}[5m])
