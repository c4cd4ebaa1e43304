// Package catalogtest provides an in-memory MetadataStore for tests of
// packages which consume catalog metadata.
package catalogtest

import (
	"context"
	"sync"

	"go.matview.dev/core/depgraph"
)

// MemoryStore is an in-memory catalog.MetadataStore. It tracks call counts,
// and can be primed to fail or panic, to exercise caller error paths.
type MemoryStore struct {
	mu     sync.Mutex
	defs   []depgraph.EntityDefinition
	tables map[string]string // Base table => entity.

	// LoadErr, if set, is returned by the next LoadEntities call.
	LoadErr error
	// LoadPanic, if set, causes the next LoadEntities call to panic.
	LoadPanic string

	// Loads and Lookups count LoadEntities and EntityForTable calls.
	Loads, Lookups int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]string)}
}

// SetEntity adds or replaces a definition, with its backing base table named
// "tb_" + entity.
func (s *MemoryStore) SetEntity(def depgraph.EntityDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.defs {
		if s.defs[i].Name == def.Name {
			s.defs[i] = def
			return
		}
	}
	s.defs = append(s.defs, def)
	s.tables["tb_"+def.Name] = def.Name
}

// DropEntity removes a definition and its table mapping.
func (s *MemoryStore) DropEntity(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.defs {
		if s.defs[i].Name == name {
			s.defs = append(s.defs[:i], s.defs[i+1:]...)
			break
		}
	}
	delete(s.tables, "tb_"+name)
}

// LoadEntities implements catalog.MetadataStore.
func (s *MemoryStore) LoadEntities(context.Context) ([]depgraph.EntityDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Loads++
	if s.LoadPanic != "" {
		var msg = s.LoadPanic
		s.LoadPanic = ""
		panic(msg)
	}
	if err := s.LoadErr; err != nil {
		s.LoadErr = nil
		return nil, err
	}
	return append([]depgraph.EntityDefinition{}, s.defs...), nil
}

// EntityForTable implements catalog.MetadataStore.
func (s *MemoryStore) EntityForTable(_ context.Context, table string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Lookups++
	var entity, ok = s.tables[table]
	return entity, ok, nil
}
