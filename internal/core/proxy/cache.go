package proxy

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"electoral-service/internal/observability"
	"electoral-service/internal/store"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"
)

// Outcome describes how a lookup was served.
type Outcome string

const (
	OutcomeHit   Outcome = "hit"
	OutcomeMiss  Outcome = "miss"
	OutcomeStale Outcome = "stale"
	OutcomeError Outcome = "error"
)

// Fetcher loads a fresh value from the upstream.
type Fetcher[T any] func(ctx context.Context) (T, error)

// BucketStats counts entries and lookups of one payload shape.
type BucketStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
	Stale   uint64
	Errors  uint64
}

// cache is the get-or-fetch mechanism shared by every payload shape.
type cache[T any] struct {
	bucket   string
	store    *store.Store[T]
	clone    func(T) T
	now      func() time.Time
	logger   hclog.Logger
	coalesce bool
	group    singleflight.Group

	hits, misses, stale, errors atomic.Uint64
}

func newCache[T any](bucket string, clone func(T) T, o *options) *cache[T] {
	return &cache[T]{
		bucket:   bucket,
		store:    store.New[T](o.storeOpts...),
		clone:    clone,
		now:      o.now,
		logger:   o.logger,
		coalesce: o.coalesce,
	}
}

func (c *cache[T]) get(ctx context.Context, key store.Key, ttl time.Duration, fetch Fetcher[T]) (T, Outcome, error) {
	if ent, ok := c.store.Get(key); ok && c.now().Sub(ent.StoredAt) < ttl {
		c.record(OutcomeHit)
		return c.clone(ent.Value), OutcomeHit, nil
	}

	val, err := c.fetch(ctx, key, fetch)
	if err == nil {
		c.store.Set(key, c.clone(val), c.now())
		c.record(OutcomeMiss)
		return c.clone(val), OutcomeMiss, nil
	}

	if ent, ok := c.store.Get(key); ok {
		c.record(OutcomeStale)
		c.logger.Warn("upstream failed, serving stale entry",
			"bucket", c.bucket, "key", string(key), "age", c.now().Sub(ent.StoredAt), "error", err)
		return c.clone(ent.Value), OutcomeStale, nil
	}

	c.record(OutcomeError)
	c.logger.Error("upstream failed with no cached entry", "bucket", c.bucket, "key", string(key), "error", err)
	var zero T
	return zero, OutcomeError, err
}

func (c *cache[T]) fetch(ctx context.Context, key store.Key, fetch Fetcher[T]) (T, error) {
	if !c.coalesce {
		return callFetcher(ctx, fetch)
	}
	v, err, _ := c.group.Do(string(key), func() (any, error) {
		return callFetcher(ctx, fetch)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// callFetcher turns a panicking fetcher into an ordinary failure.
func callFetcher[T any](ctx context.Context, fetch Fetcher[T]) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

func (c *cache[T]) record(o Outcome) {
	switch o {
	case OutcomeHit:
		c.hits.Add(1)
	case OutcomeMiss:
		c.misses.Add(1)
	case OutcomeStale:
		c.stale.Add(1)
	case OutcomeError:
		c.errors.Add(1)
	}
	observability.CacheRequestsTotal.WithLabelValues(c.bucket, string(o)).Inc()
}

func (c *cache[T]) stats() BucketStats {
	return BucketStats{
		Entries: c.store.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Stale:   c.stale.Load(),
		Errors:  c.errors.Load(),
	}
}
