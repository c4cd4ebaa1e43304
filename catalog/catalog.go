package catalog

// Options configure Catalog cache behavior. The zero value is ready to use.
type Options struct {
	// MaxDepth bounds the static dependency depth of loaded graphs
	// (depgraph.DefaultMaxDepth if zero).
	MaxDepth int
	// LookupCacheSize is the capacity of the table lookup cache (1024 if zero).
	LookupCacheSize int
	// DisableGraphCache forces every graph load to rebuild from metadata.
	DisableGraphCache bool
	// DisableLookupCache forces every table lookup through to metadata.
	DisableLookupCache bool
}

// Catalog bundles a MetadataStore with its process-scoped caches.
type Catalog struct {
	Store  MetadataStore
	Graph  *GraphCache
	Lookup *LookupCache
}

// NewCatalog returns a Catalog over |store| with caches per |opts|.
func NewCatalog(store MetadataStore, opts Options) *Catalog {
	if opts.LookupCacheSize == 0 {
		opts.LookupCacheSize = 1024
	}
	return &Catalog{
		Store:  store,
		Graph:  NewGraphCache(store, opts.MaxDepth, opts.DisableGraphCache),
		Lookup: NewLookupCache(store, opts.LookupCacheSize, opts.DisableLookupCache),
	}
}

// Invalidate clears both caches wholesale. Call on entity create or drop.
func (c *Catalog) Invalidate() {
	c.Graph.Invalidate()
	c.Lookup.Invalidate()
}

// Stats is a point-in-time summary of cache state.
type Stats struct {
	GraphCached   bool `json:"graphCached"`
	LookupEntries int  `json:"lookupEntries"`
}

// Stats returns current cache Stats.
func (c *Catalog) Stats() Stats {
	return Stats{
		GraphCached:   c.Graph.Cached(),
		LookupEntries: c.Lookup.Len(),
	}
}
