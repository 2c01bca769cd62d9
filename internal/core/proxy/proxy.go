// Package proxy implements the caching layer in front of the report data
// service.
//
// Every lookup is get-or-fetch: a fresh entry is served from memory, an
// expired or missing one is refetched, and when the upstream fails the last
// known value is served even if it has expired. Only when nothing was ever
// cached does the caller see a failure, and the RPC-facing helpers turn that
// into a wire error sentinel of the same payload shape.
package proxy

import (
	"context"
	"errors"
	"time"

	"electoral-service/internal/store"
	"electoral-service/internal/wire"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/exp/slices"
)

const (
	BucketScalar = "scalar"
	BucketArray  = "array"
)

type options struct {
	now       func() time.Time
	logger    hclog.Logger
	coalesce  bool
	storeOpts []store.Option
}

// Option configures a CacheProxy.
type Option func(*options)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used for fallback reporting.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCoalescing makes concurrent misses on one key share a single fetch.
// Off by default: concurrent misses each reach the upstream.
func WithCoalescing(on bool) Option {
	return func(o *options) { o.coalesce = on }
}

// WithStoreOptions passes capacity and eviction settings to both buckets.
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *options) { o.storeOpts = append(o.storeOpts, opts...) }
}

// CacheProxy caches scalar and array responses with TTL expiry and stale
// fallback. It is safe for concurrent use.
type CacheProxy struct {
	now     func() time.Time
	scalars *cache[string]
	arrays  *cache[[]string]
}

// New creates a CacheProxy.
func New(opts ...Option) *CacheProxy {
	o := &options{
		now:    time.Now,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &CacheProxy{
		now:     o.now,
		scalars: newCache(BucketScalar, func(s string) string { return s }, o),
		arrays:  newCache(BucketArray, slices.Clone[[]string], o),
	}
}

// Scalar looks up a scalar. The error is non-nil only when the fetch failed
// and nothing was cached for key.
func (p *CacheProxy) Scalar(ctx context.Context, key store.Key, ttl time.Duration, fetch Fetcher[string]) (string, Outcome, error) {
	return p.scalars.get(ctx, key, ttl, fetch)
}

// Array looks up an array. The returned slice is a copy.
func (p *CacheProxy) Array(ctx context.Context, key store.Key, ttl time.Duration, fetch Fetcher[[]string]) ([]string, Outcome, error) {
	return p.arrays.get(ctx, key, ttl, fetch)
}

// GetScalar is Scalar with failures rendered as an error sentinel.
func (p *CacheProxy) GetScalar(ctx context.Context, key store.Key, ttl time.Duration, fetch Fetcher[string]) string {
	v, _, err := p.Scalar(ctx, key, ttl, fetch)
	if err != nil {
		return ErrorSentinel(err, p.now())
	}
	return v
}

// GetArray is Array with failures rendered as a one-element sentinel array.
func (p *CacheProxy) GetArray(ctx context.Context, key store.Key, ttl time.Duration, fetch Fetcher[[]string]) []string {
	v, _, err := p.Array(ctx, key, ttl, fetch)
	if err != nil {
		return []string{ErrorSentinel(err, p.now())}
	}
	return v
}

// InvalidateAll drops every cached entry.
func (p *CacheProxy) InvalidateAll() {
	p.scalars.store.Clear()
	p.arrays.store.Clear()
}

// Stats returns per-bucket counts keyed by BucketScalar and BucketArray.
func (p *CacheProxy) Stats() map[string]BucketStats {
	return map[string]BucketStats{
		BucketScalar: p.scalars.stats(),
		BucketArray:  p.arrays.stats(),
	}
}

// StartCleanup drops entries older than retention every interval until ctx
// is done. Without it, expired entries are kept forever as stale fallbacks.
func (p *CacheProxy) StartCleanup(ctx context.Context, interval, retention time.Duration) {
	p.scalars.store.StartCleanup(ctx, interval, retention, p.now)
	p.arrays.store.StartCleanup(ctx, interval, retention, p.now)
}

// ErrorSentinel renders err as a wire error sentinel. Sentinels received from
// the upstream keep their original message.
func ErrorSentinel(err error, now time.Time) string {
	var re *wire.RemoteError
	if errors.As(err, &re) {
		return wire.EncodeError(re.Message, now)
	}
	return wire.EncodeError(err.Error(), now)
}
