package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CacheRepo is the shared cache tier backed by the embed_cache table.
// It satisfies cache.Store.
type CacheRepo struct {
	db *sql.DB
}

// NewCacheRepo creates a new PostgreSQL cache repository
func NewCacheRepo(db *sql.DB) *CacheRepo {
	return &CacheRepo{db: db}
}

// Get retrieves a cached value for the given key.
// Returns nil, false, nil if not found or expired (not an error condition).
// Returns error only on database failures.
func (r *CacheRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `
		SELECT value
		FROM embed_cache
		WHERE key = $1 AND expires_at > NOW()
	`

	var value []byte
	err := r.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		// Not found or expired is not an error
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	return value, true, nil
}

// Set stores a value with the specified TTL.
// If an entry already exists for the key, it will be replaced.
// The expires_at is calculated as NOW() + ttl.
func (r *CacheRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	// Convert Go duration to PostgreSQL interval string
	// e.g., "10 minutes", "24 hours", "7 days"
	intervalStr := formatInterval(ttl)

	query := `
		INSERT INTO embed_cache (key, value, expires_at)
		VALUES ($1, $2, NOW() + $3::interval)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    expires_at = EXCLUDED.expires_at,
		    fetched_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, key, value, intervalStr)
	if err != nil {
		return fmt.Errorf("failed to insert/update cache entry: %w", err)
	}

	return nil
}

// Cleanup deletes expired rows and returns how many were removed.
func (r *CacheRepo) Cleanup(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM embed_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	return res.RowsAffected()
}

// formatInterval converts a Go duration to a PostgreSQL interval string.
// Units are only used when the duration divides evenly, so a TTL is never
// rounded down to a shorter one.
func formatInterval(d time.Duration) string {
	seconds := int64(d.Seconds())

	switch {
	case seconds >= 86400 && seconds%86400 == 0:
		return fmt.Sprintf("%d days", seconds/86400)
	case seconds >= 3600 && seconds%3600 == 0:
		return fmt.Sprintf("%d hours", seconds/3600)
	case seconds >= 60 && seconds%60 == 0:
		return fmt.Sprintf("%d minutes", seconds/60)
	default:
		return fmt.Sprintf("%d seconds", seconds)
	}
}
