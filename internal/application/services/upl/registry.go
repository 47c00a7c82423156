package upl

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"uplregistry/internal/domain/upl/entities"
	"uplregistry/internal/domain/upl/repositories"
	apperrors "uplregistry/pkg/errors"
)

const numShards = 256

// Registry is the process-wide, in-memory home of every tracked UPL: a
// keyed active collection and a keyed archive collection, each guarded
// by its own membership lock, plus a sharded set of per-id mutexes that
// every mutating transition runs under. No two writers on the same id
// interleave, and a writer excludes readers on that id; multi-id
// operations acquire their ids' shards in ascending id-string order to
// preclude deadlock.
type Registry struct {
	activeMu sync.RWMutex
	active   map[entities.UplId]*entities.Upl

	archiveMu sync.RWMutex
	archive   map[entities.UplId]*entities.Upl

	shards [numShards]sync.Mutex

	activeStore  repositories.Store
	archiveStore repositories.Store
	mover        repositories.BatchMover
	cache        ReadCache
	clock        func() time.Time
	log          zerolog.Logger
}

func NewRegistry(activeStore, archiveStore repositories.Store, cache ReadCache, log zerolog.Logger) *Registry {
	return &Registry{
		active:       make(map[entities.UplId]*entities.Upl),
		archive:      make(map[entities.UplId]*entities.Upl),
		activeStore:  activeStore,
		archiveStore: archiveStore,
		cache:        cache,
		clock:        time.Now,
		log:          log,
	}
}

// SetBatchMover wires a transactional batch mover for close-cart style
// archiving. Call it once at startup, after NewRegistry, when the
// active and archive stores share a backend with a multi-row
// transaction primitive (Postgres); leave unset to fall back to
// sequential per-id Remove+Insert through the two Store instances.
func (r *Registry) SetBatchMover(m repositories.BatchMover) {
	r.mover = m
}

// Load populates both collections from the external document store. It
// is meant to run once at startup; an I/O error here is fatal to the
// caller, not something the registry itself recovers from.
func (r *Registry) Load() error {
	active, err := r.activeStore.LoadAll()
	if err != nil {
		return fmt.Errorf("loading active upl collection: %w", err)
	}
	archive, err := r.archiveStore.LoadAll()
	if err != nil {
		return fmt.Errorf("loading archive upl collection: %w", err)
	}
	r.activeMu.Lock()
	r.active = active
	r.activeMu.Unlock()
	r.archiveMu.Lock()
	r.archive = archive
	r.archiveMu.Unlock()
	r.log.Info().Int("active", len(active)).Int("archive", len(archive)).Msg("upl registry loaded")
	return nil
}

func (r *Registry) shardFor(id entities.UplId) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % numShards)
}

// lockID acquires the single shard id's mutex falls in and returns the
// function that releases it.
func (r *Registry) lockID(id entities.UplId) func() {
	idx := r.shardFor(id)
	r.shards[idx].Lock()
	return func() { r.shards[idx].Unlock() }
}

// lockIDs acquires every distinct shard touched by ids, in ascending
// shard-index order derived from the ids sorted ascending by string, so
// two concurrent multi-id operations can never deadlock against each
// other regardless of the order their ids were supplied in.
func (r *Registry) lockIDs(ids []entities.UplId) func() {
	sorted := append([]entities.UplId(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	seen := make(map[int]bool, len(sorted))
	var order []int
	for _, id := range sorted {
		idx := r.shardFor(id)
		if !seen[idx] {
			seen[idx] = true
			order = append(order, idx)
		}
	}
	sort.Ints(order)
	for _, idx := range order {
		r.shards[idx].Lock()
	}
	return func() {
		for i := len(order) - 1; i >= 0; i-- {
			r.shards[order[i]].Unlock()
		}
	}
}

func (r *Registry) invalidate(id entities.UplId) {
	if r.cache != nil {
		r.cache.Delete(id)
	}
}

// Get returns a copy of the active UPL by id, consulting the read cache
// first.
func (r *Registry) Get(id entities.UplId) (*entities.Upl, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(id); ok {
			return cached, nil
		}
	}
	unlock := r.lockID(id)
	defer unlock()

	r.activeMu.RLock()
	upl, ok := r.active[id]
	r.activeMu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("upl %s not found", id))
	}
	cp := *upl
	if r.cache != nil {
		r.cache.Set(id, &cp)
	}
	return &cp, nil
}

// GetArchived returns a copy of the archived UPL by id, flagged
// is_archived on the returned view only.
func (r *Registry) GetArchived(id entities.UplId) (*entities.Upl, error) {
	unlock := r.lockID(id)
	defer unlock()

	r.archiveMu.RLock()
	upl, ok := r.archive[id]
	r.archiveMu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("archived upl %s not found", id))
	}
	cp := *upl
	cp.IsArchived = true
	return &cp, nil
}

// Insert adds a newly constructed UPL to the active collection. It fails
// if the id is already present in either collection.
func (r *Registry) Insert(upl *entities.Upl) error {
	unlock := r.lockID(upl.ID)
	defer unlock()

	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	if _, exists := r.active[upl.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("upl %s already exists", upl.ID))
	}
	r.archiveMu.RLock()
	_, archived := r.archive[upl.ID]
	r.archiveMu.RUnlock()
	if archived {
		return apperrors.NewConflictError(fmt.Sprintf("upl %s already exists in archive", upl.ID))
	}

	if err := r.activeStore.Insert(upl); err != nil {
		return apperrors.WrapInternalError(err, fmt.Sprintf("persisting upl %s", upl.ID))
	}
	r.active[upl.ID] = upl
	return nil
}

// Remove deletes an id from the active collection. Used only by
// operations that also insert into the archive, or that destroy a
// merged child.
func (r *Registry) Remove(id entities.UplId) error {
	unlock := r.lockID(id)
	defer unlock()

	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	if _, ok := r.active[id]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("upl %s not found", id))
	}
	if err := r.activeStore.Remove(id); err != nil {
		return apperrors.WrapInternalError(err, fmt.Sprintf("removing upl %s", id))
	}
	delete(r.active, id)
	r.invalidate(id)
	return nil
}

// Update applies fn to the stored UPL under that id's exclusive guard,
// held across both the mutation and the durable-store write, then
// returns a copy of the result. The guard is never released and
// re-acquired mid-operation, closing the window a release-then-refetch
// pattern would leave for a concurrent close-cart to remove the id.
func (r *Registry) Update(id entities.UplId, fn func(*entities.Upl) error) (*entities.Upl, error) {
	unlock := r.lockID(id)
	defer unlock()

	r.activeMu.RLock()
	upl, ok := r.active[id]
	r.activeMu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("upl %s not found", id))
	}

	if err := fn(upl); err != nil {
		return nil, err
	}
	if err := r.activeStore.Save(upl); err != nil {
		return nil, apperrors.WrapInternalError(err, fmt.Sprintf("persisting upl %s", id))
	}
	r.invalidate(id)

	cp := *upl
	return &cp, nil
}

// Scan takes a shared lock on the active collection and returns copies
// of every entry matching predicate. Result ordering is unspecified.
func (r *Registry) Scan(predicate func(*entities.Upl) bool) []*entities.Upl {
	r.activeMu.RLock()
	defer r.activeMu.RUnlock()

	results := make([]*entities.Upl, 0)
	for _, u := range r.active {
		if predicate(u) {
			cp := *u
			results = append(results, &cp)
		}
	}
	return results
}

// now returns the registry's clock, overridable in tests.
func (r *Registry) now() time.Time {
	return r.clock()
}

// archiveBatchLocked moves every id in ids from active to archive as one
// operation. Callers must already hold activeMu and archiveMu
// exclusively (as CloseCart does for its whole batch), so the map
// mutations below need no locking of their own.
//
// When a BatchMover is wired, the whole batch's store-level removes and
// inserts run inside one transaction; otherwise each id moves through a
// sequential Store.Remove/Store.Insert pair, matching the file backend's
// lack of a multi-row transaction primitive.
func (r *Registry) archiveBatchLocked(ctx context.Context, ids []entities.UplId) ([]*entities.Upl, error) {
	upls := make([]*entities.Upl, 0, len(ids))
	for _, id := range ids {
		u, ok := r.active[id]
		if !ok {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("upl %s not found", id))
		}
		upls = append(upls, u)
	}

	if r.mover != nil {
		if err := r.mover.MoveBatch(ctx, upls); err != nil {
			return nil, apperrors.WrapInternalError(err, "archiving upl batch")
		}
	} else {
		for _, u := range upls {
			if err := r.activeStore.Remove(u.ID); err != nil {
				return nil, apperrors.WrapInternalError(err, fmt.Sprintf("removing upl %s from active store", u.ID))
			}
			if err := r.archiveStore.Insert(u); err != nil {
				return nil, apperrors.WrapInternalError(err, fmt.Sprintf("inserting upl %s into archive store", u.ID))
			}
		}
	}

	for _, u := range upls {
		delete(r.active, u.ID)
		r.archive[u.ID] = u
		r.invalidate(u.ID)
	}
	return upls, nil
}
