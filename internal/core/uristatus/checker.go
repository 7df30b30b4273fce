// Package uristatus resolves the final HTTP status code of a URI without
// downloading its body.
package uristatus

import (
	"context"
	"log/slog"
	"time"

	"Embedkit/internal/core/cache"
	"Embedkit/internal/core/fetch"
)

// CachePrefix namespaces status results in the shared cache.
const CachePrefix = "status:"

const maxRedirects = 5

// Status is the outcome of a check. Exactly one of Code and Error is set.
// Failures are part of the result, so they are cached like successes.
type Status struct {
	Code  int    `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the final response was a 2xx.
func (s *Status) OK() bool {
	return s != nil && s.Code >= 200 && s.Code < 300
}

// Options tune a single check.
type Options struct {
	Timeout      time.Duration
	DisableCache bool
}

// Fetcher starts fetches. *fetch.Engine satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, uri string, opts fetch.Options) *fetch.Request
}

// Checker checks URI liveness.
type Checker struct {
	fetcher Fetcher
	cache   *cache.Cache
	ttl     time.Duration
	timeout time.Duration
}

// Option configures the checker
type Option func(*Checker)

// WithCache enables result caching
func WithCache(c *cache.Cache, ttl time.Duration) Option {
	return func(ch *Checker) {
		ch.cache = c
		ch.ttl = ttl
	}
}

// WithTimeout sets the default check timeout
func WithTimeout(timeout time.Duration) Option {
	return func(ch *Checker) {
		ch.timeout = timeout
	}
}

// NewChecker creates a checker
func NewChecker(fetcher Fetcher, opts ...Option) *Checker {
	c := &Checker{
		fetcher: fetcher,
		timeout: fetch.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check follows redirects and reports the final status code. The returned
// error is non-nil only when ctx ends before a result is available.
func (c *Checker) Check(ctx context.Context, uri string, opts Options) (*Status, error) {
	return cache.Do(ctx, c.cache, CachePrefix+uri, cache.Options{TTL: c.ttl, Disable: opts.DisableCache},
		func(ctx context.Context) (*Status, error) {
			return c.check(ctx, uri, opts), nil
		})
}

func (c *Checker) check(ctx context.Context, uri string, opts Options) *Status {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	// A fresh jar per check, so cookie-gated redirects resolve.
	req := c.fetcher.Fetch(ctx, uri, fetch.Options{
		Timeout:      timeout,
		MaxRedirects: maxRedirects,
		AsBuffer:     true,
		Jar:          fetch.NewJar(),
	})
	defer req.Abort()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-req.Ready():
		resp, err := req.Outcome()
		if err != nil {
			slog.Debug("[STATUS] check failed", "uri", uri, "error", err)
			return &Status{Error: err.Error()}
		}
		// Headers are all that is needed.
		_ = resp.Body.Close()
		return &Status{Code: resp.StatusCode}
	case <-timer.C:
		return &Status{Error: fetch.ErrTimeout.Error()}
	case <-ctx.Done():
		return &Status{Error: ctx.Err().Error()}
	}
}
