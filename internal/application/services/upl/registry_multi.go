package upl

import (
	"fmt"

	"uplregistry/internal/domain/upl/entities"
	apperrors "uplregistry/pkg/errors"
)

// The helpers in this file assume the caller already holds every shard
// lock involved (acquired via lockIDs), and therefore must not re-enter
// lockID/lockIDs themselves. They back the multi-id operations layer:
// split, divide, merge, close-cart.

func (r *Registry) getActiveNoLock(id entities.UplId) (*entities.Upl, bool) {
	r.activeMu.RLock()
	defer r.activeMu.RUnlock()
	upl, ok := r.active[id]
	return upl, ok
}

func (r *Registry) archivedExistsNoLock(id entities.UplId) bool {
	r.archiveMu.RLock()
	defer r.archiveMu.RUnlock()
	_, ok := r.archive[id]
	return ok
}

func (r *Registry) saveActiveNoLock(upl *entities.Upl) error {
	if err := r.activeStore.Save(upl); err != nil {
		return apperrors.WrapInternalError(err, fmt.Sprintf("persisting upl %s", upl.ID))
	}
	r.invalidate(upl.ID)
	return nil
}

func (r *Registry) insertActiveNoLock(upl *entities.Upl) error {
	r.activeMu.Lock()
	if _, exists := r.active[upl.ID]; exists {
		r.activeMu.Unlock()
		return apperrors.NewConflictError(fmt.Sprintf("upl %s already exists", upl.ID))
	}
	r.activeMu.Unlock()
	if r.archivedExistsNoLock(upl.ID) {
		return apperrors.NewConflictError(fmt.Sprintf("upl %s already exists in archive", upl.ID))
	}
	if err := r.activeStore.Insert(upl); err != nil {
		return apperrors.WrapInternalError(err, fmt.Sprintf("persisting upl %s", upl.ID))
	}
	r.activeMu.Lock()
	r.active[upl.ID] = upl
	r.activeMu.Unlock()
	return nil
}

func (r *Registry) removeActiveNoLock(id entities.UplId) error {
	r.activeMu.Lock()
	if _, ok := r.active[id]; !ok {
		r.activeMu.Unlock()
		return apperrors.NewNotFoundError(fmt.Sprintf("upl %s not found", id))
	}
	delete(r.active, id)
	r.activeMu.Unlock()

	if err := r.activeStore.Remove(id); err != nil {
		return apperrors.WrapInternalError(err, fmt.Sprintf("removing upl %s", id))
	}
	r.invalidate(id)
	return nil
}
