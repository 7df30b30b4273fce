package cache

import (
	"context"
	"log/slog"
	"time"
)

// Tiered reads through a fast store into a slower shared one. Writes go to
// both. Values found only in the slow store are copied into the fast one
// for at most backfillTTL.
type Tiered struct {
	fast        Store
	slow        Store
	backfillTTL time.Duration
}

// NewTiered combines fast and slow stores.
func NewTiered(fast, slow Store, backfillTTL time.Duration) *Tiered {
	return &Tiered{fast: fast, slow: slow, backfillTTL: backfillTTL}
}

// Get checks the fast store first.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if value, ok, err := t.fast.Get(ctx, key); err == nil && ok {
		return value, true, nil
	}

	value, ok, err := t.slow.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	if err := t.fast.Set(ctx, key, value, t.backfillTTL); err != nil {
		slog.Warn("[CACHE] backfill failed", "key", key, "error", err)
	}
	return value, true, nil
}

// Set writes to both stores. A slow store failure is returned after the
// fast store has been written.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.fast.Set(ctx, key, value, ttl); err != nil {
		slog.Warn("[CACHE] fast store write failed", "key", key, "error", err)
	}
	return t.slow.Set(ctx, key, value, ttl)
}
