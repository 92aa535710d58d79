// Package cache stores rendered collection pages in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "shoplist:page:"
	keyGeneration = "shoplist:generation"
)

// PageCache caches item and list collection responses.
//
// Page keys embed a generation number. Every write to the store bumps the
// generation, so pages cached before the write can no longer be read, and a
// page computed from rows read before the write is never stored under the new
// generation. Old pages expire through their TTL. A nil *PageCache is valid
// and never hits.
type PageCache struct {
	rdb *redis.Client
	ttl time.Duration

	// stale is set when a bump failed. Reads and writes are skipped until a
	// later bump succeeds.
	stale atomic.Bool
}

// Entry identifies a page at the generation it was looked up in. The zero
// Entry is never stored.
type Entry struct {
	key   string
	gen   int64
	valid bool
}

// New returns a PageCache backed by rdb.
func New(rdb *redis.Client, ttl time.Duration) *PageCache {
	return &PageCache{rdb: rdb, ttl: ttl}
}

// Key builds the cache key for a collection page at generation gen. Query
// parameters are encoded in sorted order so equivalent requests share a key.
func Key(gen int64, collection string, q url.Values) string {
	return keyPrefix + strconv.FormatInt(gen, 10) + ":" + collection + "?" + q.Encode()
}

// Get looks up a collection page and decodes it into dst. It reports false on
// a miss. The returned Entry is passed to Set once the page has been computed.
func (c *PageCache) Get(ctx context.Context, collection string, q url.Values, dst any) (Entry, bool, error) {
	if c == nil {
		return Entry{}, false, nil
	}
	if c.stale.Load() {
		if err := c.bump(ctx); err != nil {
			return Entry{}, false, err
		}
	}

	gen, err := c.generation(ctx, c.rdb)
	if err != nil {
		return Entry{}, false, err
	}
	e := Entry{key: Key(gen, collection, q), gen: gen, valid: true}

	b, err := c.rdb.Get(ctx, e.key).Bytes()
	if err == redis.Nil {
		return e, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return e, false, err
	}
	return e, true, nil
}

// Set stores v for e, unless the generation moved on since e was looked up.
func (c *PageCache) Set(ctx context.Context, e Entry, v any) error {
	if c == nil || !e.valid || c.stale.Load() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		gen, err := c.generation(ctx, tx)
		if err != nil {
			return err
		}
		if gen != e.gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, e.key, b, c.ttl)
			return nil
		})
		return err
	}, keyGeneration)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// InvalidateAll makes every cached page unreadable. If Redis cannot be
// reached the cache stops serving pages until a later bump succeeds.
func (c *PageCache) InvalidateAll(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bump(ctx)
}

// Ping checks the Redis connection.
func (c *PageCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *PageCache) bump(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, keyGeneration).Err(); err != nil {
		c.stale.Store(true)
		return err
	}
	c.stale.Store(false)
	return nil
}

// getter is satisfied by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (c *PageCache) generation(ctx context.Context, cmd getter) (int64, error) {
	gen, err := cmd.Get(ctx, keyGeneration).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}
