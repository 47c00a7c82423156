package upl

import "uplregistry/internal/domain/upl/entities"

// ReadCache is the read-through cache the registry consults before
// touching the active collection, and invalidates synchronously inside
// the same critical section as every mutation. A nil ReadCache disables
// caching entirely.
type ReadCache interface {
	Get(id entities.UplId) (*entities.Upl, bool)
	Set(id entities.UplId, upl *entities.Upl)
	Delete(id entities.UplId)
}
