package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrInvalidMaxEntries is returned when a memory store is created without room for entries.
var ErrInvalidMaxEntries = errors.New("max entries must be positive")

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store bounded by entry count. Least recently
// used entries are evicted first; expired entries are dropped on read and by
// Cleanup.
type MemoryStore struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryStore creates a MemoryStore holding at most maxEntries values.
func NewMemoryStore(maxEntries int) (*MemoryStore, error) {
	if maxEntries <= 0 {
		return nil, ErrInvalidMaxEntries
	}
	entries, err := lru.New[string, memoryEntry](maxEntries)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{entries: entries, now: time.Now}, nil
}

// Get returns a live entry.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.entries.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value until ttl elapses.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.entries.Add(key, memoryEntry{value: value, expiresAt: m.now().Add(ttl)})
	return nil
}

// Len reports the number of entries, expired ones included.
func (m *MemoryStore) Len() int {
	return m.entries.Len()
}

// Cleanup removes expired entries and returns how many were removed.
func (m *MemoryStore) Cleanup() int {
	now := m.now()
	removed := 0
	for _, key := range m.entries.Keys() {
		e, ok := m.entries.Peek(key)
		if ok && !now.Before(e.expiresAt) {
			m.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// StartCleanupJob starts a background goroutine that periodically removes expired entries.
// Returns a cancel function that should be called during graceful shutdown.
// If interval is 0 or negative, no cleanup job is started and the cancel function is a no-op.
func (m *MemoryStore) StartCleanupJob(interval time.Duration) context.CancelFunc {
	if interval <= 0 {
		slog.Info("[CACHE] memory cleanup job disabled (interval=0)")
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("[CACHE] CRITICAL: memory cleanup job panicked",
					"panic", r,
				)
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		slog.Info("[CACHE] memory cleanup job started", "interval", interval)

		for {
			select {
			case <-ctx.Done():
				slog.Info("[CACHE] memory cleanup job stopped")
				return
			case <-ticker.C:
				if removed := m.Cleanup(); removed > 0 {
					slog.Info("[CACHE] removed expired entries",
						"removed", removed,
						"remaining", m.Len(),
					)
				}
			}
		}
	}()

	return cancel
}
