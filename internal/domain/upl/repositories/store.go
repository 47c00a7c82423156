package repositories

import (
	"context"

	"uplregistry/internal/domain/upl/entities"
)

// Store is the keyed document store contract a UPL collection is built
// on: load-all, insert, mutate-in-place and remove. Lookup by id and
// scans are served from the registry's in-memory maps, not the store.
// Concrete backends (local JSON file, Postgres JSONB) live under
// internal/infrastructure/repositories; the registry above this
// interface supplies the per-id and per-collection concurrency the
// store itself does not need to know about.
type Store interface {
	// LoadAll returns every document currently on durable storage, keyed
	// by id. Called once at startup.
	LoadAll() (map[entities.UplId]*entities.Upl, error)

	// Insert persists a new document. Implementations may assume the
	// caller has already checked for id collisions.
	Insert(upl *entities.Upl) error

	// Save persists an in-place mutation of an existing document.
	Save(upl *entities.Upl) error

	// Remove deletes a document by id. Removing an absent id is not an
	// error: callers already hold the registry's membership guarantee.
	Remove(id entities.UplId) error
}

// BatchMover atomically moves a batch of UPLs from one collection's
// backing store into another's. Only backends with a multi-row
// transaction primitive (Postgres) implement it; the registry falls
// back to sequential per-id Store.Remove/Store.Insert when no mover is
// wired for the active pair of stores.
type BatchMover interface {
	MoveBatch(ctx context.Context, upls []*entities.Upl) error
}
