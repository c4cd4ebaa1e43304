package catalog

import (
	"context"

	"github.com/hashicorp/golang-lru"
)

// LookupCache caches the mapping from a changed base table to the entity
// whose refresh key must be enqueued. Row-change notifications consult it on
// the hot path of every write to a tracked table, so hits must be cheap.
// Only positive lookups are cached: untracked tables are the common case for
// a miss and re-asking the MetadataStore keeps negative results from pinning
// cache space.
type LookupCache struct {
	store    MetadataStore
	cache    *lru.Cache
	disabled bool
}

// NewLookupCache returns a LookupCache of the given |size| (which must be > 0)
// over |store|. If |disabled|, every lookup falls through to the store.
func NewLookupCache(store MetadataStore, size int, disabled bool) *LookupCache {
	var cache, err = lru.New(size)
	if err != nil {
		panic(err.Error()) // Only errors on size <= 0.
	}
	return &LookupCache{store: store, cache: cache, disabled: disabled}
}

// EntityForTable resolves the entity backed by base |table|, consulting the
// cache first. |ok| is false if the table backs no entity.
func (c *LookupCache) EntityForTable(ctx context.Context, table string) (entity string, ok bool, err error) {
	if !c.disabled {
		if v, hit := c.cache.Get(table); hit {
			lookupCacheHitsTotal.Inc()
			return v.(string), true, nil
		}
		lookupCacheMissesTotal.Inc()
	}

	if entity, ok, err = c.store.EntityForTable(ctx, table); err != nil || !ok {
		return "", false, err
	}
	if !c.disabled {
		c.cache.Add(table, entity)
	}
	return entity, true, nil
}

// Invalidate clears all cached lookups. It must be called whenever an entity
// is created or dropped.
func (c *LookupCache) Invalidate() { c.cache.Purge() }

// Len returns the number of cached lookups.
func (c *LookupCache) Len() int { return c.cache.Len() }
