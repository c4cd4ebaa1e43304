package catalog

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.matview.dev/core/depgraph"
)

// ErrLockPoisoned is wrapped into errors returned by GraphCache.Load when a
// rebuild panicked while the exclusive lock was held. The cache recovers by
// discarding the partial state; the next Load rebuilds from scratch.
var ErrLockPoisoned = errors.New("graph cache rebuild panicked")

// GraphCache memoizes the loaded dependency Graph across transactions of this
// process. Readers share a read lock; rebuilds take the write lock and swap
// the Graph wholesale, so a reader never observes a partially-built graph.
type GraphCache struct {
	store    MetadataStore
	maxDepth int
	disabled bool // Load bypasses the cache entirely.

	mu    sync.RWMutex
	graph *depgraph.Graph
}

// NewGraphCache returns a GraphCache over |store|. |maxDepth| bounds static
// dependency depth (depgraph.DefaultMaxDepth where zero). If |disabled|,
// every Load rebuilds, which is useful when metadata churns in tests.
func NewGraphCache(store MetadataStore, maxDepth int, disabled bool) *GraphCache {
	return &GraphCache{store: store, maxDepth: maxDepth, disabled: disabled}
}

// Load returns the cached Graph, building it from the MetadataStore if
// required.
func (c *GraphCache) Load(ctx context.Context) (*depgraph.Graph, error) {
	if c.disabled {
		return c.build(ctx)
	}

	c.mu.RLock()
	var graph = c.graph
	c.mu.RUnlock()

	if graph != nil {
		graphCacheHitsTotal.Inc()
		return graph, nil
	}
	graphCacheMissesTotal.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.graph != nil { // Another loader won the race.
		return c.graph, nil
	}
	var built, err = c.rebuildLocked(ctx)
	if err != nil {
		return nil, err
	}
	c.graph = built
	return built, nil
}

// Invalidate discards the cached Graph. It must be called whenever an entity
// is created or dropped.
func (c *GraphCache) Invalidate() {
	c.mu.Lock()
	c.graph = nil
	c.mu.Unlock()
	cacheInvalidationsTotal.Inc()
}

// Cached returns whether a Graph is currently memoized.
func (c *GraphCache) Cached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph != nil
}

// rebuildLocked builds a fresh Graph while holding the write lock. A panic
// during the build would otherwise leave later callers wedged on state they
// cannot trust; it's recovered here, the cached value is discarded, and the
// panic surfaces as ErrLockPoisoned.
func (c *GraphCache) rebuildLocked(ctx context.Context) (graph *depgraph.Graph, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.graph = nil
			cacheRebuildPanicsTotal.Inc()
			log.WithField("panic", r).Error("panic during dependency graph rebuild")
			graph, err = nil, errors.WithMessagef(ErrLockPoisoned, "recovered %v", r)
		}
	}()
	return c.build(ctx)
}

func (c *GraphCache) build(ctx context.Context) (*depgraph.Graph, error) {
	var defs, err = c.store.LoadEntities(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "loading entity definitions")
	}
	graph, err := depgraph.NewGraph(defs, c.maxDepth)
	if err != nil {
		return nil, errors.WithMessage(err, "building dependency graph")
	}
	return graph, nil
}
