package depgraph

// ValidateNewEdge checks whether adding a dependency of entity |from| upon
// entity |to| keeps |defs| a valid graph. It is the entity-creation time
// check, distinct from the runtime propagation breaker: a failure here means
// the definition must be rejected before anything is persisted.
//
// |from| need not yet be defined; a minimal definition is assumed for it.
// Errors are those of NewGraph: *DuplicateEntityError, *MetadataError,
// *CycleError, or *DepthExceededError.
func ValidateNewEdge(defs []EntityDefinition, from, to string, maxDepth int) error {
	var (
		trial = make([]EntityDefinition, 0, len(defs)+1)
		found = false
		edge  = Dependency{Target: to, Kind: Scalar}
	)
	for _, def := range defs {
		if def.Name == from {
			def.Dependencies = append(append([]Dependency{}, def.Dependencies...), edge)
			found = true
		}
		trial = append(trial, def)
	}
	if !found {
		trial = append(trial, EntityDefinition{
			Name:         from,
			Dependencies: []Dependency{edge},
		})
	}
	var _, err = NewGraph(trial, maxDepth)
	return err
}
