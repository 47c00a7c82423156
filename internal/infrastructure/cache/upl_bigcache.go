// Package cache provides the in-process read-through cache the upl
// registry consults before touching its active collection.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/rs/zerolog"

	"uplregistry/internal/domain/upl/entities"
)

// UplCache implements the registry's ReadCache interface on top of
// bigcache: an in-process, GC-friendly byte cache keyed by id. Deletes
// from the registry's own mutating path keep it synchronously
// consistent, so stale reads only ever happen within the cache's TTL
// window on a restart that lost its Load().
type UplCache struct {
	bc     *bigcache.BigCache
	logger zerolog.Logger
}

func NewUplCache(ttl time.Duration, logger zerolog.Logger) (*UplCache, error) {
	config := bigcache.DefaultConfig(ttl)
	config.Shards = 256
	config.CleanWindow = ttl / 4
	config.Verbose = false

	bc, err := bigcache.New(context.Background(), config)
	if err != nil {
		return nil, err
	}
	return &UplCache{bc: bc, logger: logger}, nil
}

func (c *UplCache) Get(id entities.UplId) (*entities.Upl, bool) {
	data, err := c.bc.Get(string(id))
	if err != nil {
		return nil, false
	}
	var upl entities.Upl
	if err := json.Unmarshal(data, &upl); err != nil {
		c.logger.Warn().Err(err).Str("upl_id", string(id)).Msg("discarding corrupt cache entry")
		return nil, false
	}
	return &upl, true
}

func (c *UplCache) Set(id entities.UplId, upl *entities.Upl) {
	data, err := json.Marshal(upl)
	if err != nil {
		c.logger.Warn().Err(err).Str("upl_id", string(id)).Msg("failed to encode upl for cache")
		return
	}
	if err := c.bc.Set(string(id), data); err != nil {
		c.logger.Warn().Err(err).Str("upl_id", string(id)).Msg("failed to populate cache")
	}
}

func (c *UplCache) Delete(id entities.UplId) {
	if err := c.bc.Delete(string(id)); err != nil && err != bigcache.ErrEntryNotFound {
		c.logger.Warn().Err(err).Str("upl_id", string(id)).Msg("failed to invalidate cache entry")
	}
}

func (c *UplCache) Close() error {
	return c.bc.Close()
}
