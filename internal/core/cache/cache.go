// Package cache memoizes expensive computations by key with a TTL and
// collapses concurrent misses for the same key into a single computation.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL applies when neither the call nor the cache sets a TTL.
	DefaultTTL = 24 * time.Hour

	// PageTTL is how long fetched page bodies are kept.
	PageTTL = 10 * time.Minute
)

// Store persists values by key until their TTL runs out. A miss is
// (nil, false, nil); errors are reserved for backend failures.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options control a single lookup.
type Options struct {
	// TTL overrides the cache default for the stored value.
	TTL time.Duration
	// Disable bypasses the store and single-flight entirely.
	Disable bool
}

// ComputeFunc produces the value for a missing key.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Cache wraps a Store with single-flight deduplication. A nil *Cache
// computes every value directly.
type Cache struct {
	store      Store
	group      singleflight.Group
	defaultTTL time.Duration
}

// Option configures the cache
type Option func(*Cache)

// WithDefaultTTL sets the TTL used when Options.TTL is zero
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.defaultTTL = ttl
	}
}

// New creates a cache over store
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:      store,
		defaultTTL: DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithCache returns the cached value for key, or runs compute once for all
// concurrent callers asking for the same key and stores its result.
//
// The computation is detached from the caller's cancellation: a caller
// whose ctx ends gets ctx.Err() while the shared computation carries on
// for the others and still lands in the store. Errors are returned to every
// waiting caller and never stored. The returned slice is shared and must
// not be modified.
func (c *Cache) WithCache(ctx context.Context, key string, opts Options, compute ComputeFunc) ([]byte, error) {
	if c == nil || c.store == nil || opts.Disable {
		return compute(ctx)
	}

	if value, ok := c.lookup(ctx, key); ok {
		return value, nil
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// A flight that finished just before this one started has already
		// populated the store.
		if value, ok := c.lookup(detached, key); ok {
			return value, nil
		}

		value, err := compute(detached)
		if err != nil {
			return nil, err
		}

		if err := c.store.Set(detached, key, value, ttl); err != nil {
			slog.Warn("[CACHE] failed to store value",
				"key", key,
				"error", err,
			)
		}
		return value, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool) {
	value, ok, err := c.store.Get(ctx, key)
	if err != nil {
		// A failing backend degrades to a miss.
		slog.Warn("[CACHE] lookup failed",
			"key", key,
			"error", err,
		)
		return nil, false
	}
	return value, ok
}

// Do is WithCache for any JSON-serializable value.
func Do[V any](ctx context.Context, c *Cache, key string, opts Options, compute func(ctx context.Context) (V, error)) (V, error) {
	var zero V

	raw, err := c.WithCache(ctx, key, opts, func(ctx context.Context) ([]byte, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}

	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Warn("[CACHE] discarding undecodable value",
			"key", key,
			"error", err,
		)
		return compute(ctx)
	}
	return v, nil
}
