package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend (memory, redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "l2cache_hits_total",
			Help: "Total number of level-2 cache hits",
		},
		[]string{"backend"},
	)

	// CacheMisses tracks cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "l2cache_misses_total",
			Help: "Total number of level-2 cache misses",
		},
		[]string{"backend"},
	)

	// CacheEvictions tracks evictions by backend and reason
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "l2cache_evictions_total",
			Help: "Total number of level-2 cache evictions",
		},
		[]string{"backend", "reason"}, // "explicit", "class", "clear", "policy"
	)

	// PinnedObjects tracks the current size of the pinned partition
	PinnedObjects = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "l2cache_pinned_objects",
			Help: "Current number of pinned objects in the level-2 cache",
		},
		[]string{"backend"},
	)

	// UnpinnedObjects tracks the current size of the unpinned partition
	UnpinnedObjects = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "l2cache_unpinned_objects",
			Help: "Current number of unpinned objects in the level-2 cache",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors by backend and operation
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "l2cache_errors_total",
			Help: "Total number of level-2 cache operation errors",
		},
		[]string{"backend", "operation"}, // "get", "put", "evict"
	)
)

// Eviction reason label values.
const (
	evictReasonExplicit = "explicit"
	evictReasonClass    = "class"
	evictReasonClear    = "clear"
	evictReasonPolicy   = "policy"
)
