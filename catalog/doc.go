// Package catalog mediates access to entity metadata: it defines the
// MetadataStore interface over the host's catalog tables, and the two
// process-scoped caches layered above it (the dependency graph cache, and the
// base-table to entity lookup cache). Both caches are invalidated wholesale
// whenever an entity is created or dropped.
package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	graphCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_catalog_graph_cache_hits_total",
		Help: "Cumulative number of dependency graph cache hits.",
	})
	graphCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_catalog_graph_cache_misses_total",
		Help: "Cumulative number of dependency graph cache misses (graph rebuilds).",
	})
	lookupCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_catalog_lookup_cache_hits_total",
		Help: "Cumulative number of table-to-entity lookup cache hits.",
	})
	lookupCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_catalog_lookup_cache_misses_total",
		Help: "Cumulative number of table-to-entity lookup cache misses.",
	})
	cacheInvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_catalog_invalidations_total",
		Help: "Cumulative number of wholesale cache invalidations (entity create / drop).",
	})
	cacheRebuildPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_catalog_rebuild_panics_total",
		Help: "Cumulative number of panics recovered while rebuilding the graph cache.",
	})
)
