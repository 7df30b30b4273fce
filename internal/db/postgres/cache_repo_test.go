package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"Embedkit/internal/db/migrations"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupCacheTestDB connects to TEST_DATABASE_URL and runs migrations.
func setupCacheTestDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	goose.SetBaseFS(migrations.FS)
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, "."), "Failed to run migrations")

	return db
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{24 * time.Hour, "1 days"},
		{7 * 24 * time.Hour, "7 days"},
		{10 * time.Minute, "10 minutes"},
		{90 * time.Minute, "90 minutes"},
		{2 * time.Hour, "2 hours"},
		{45 * time.Second, "45 seconds"},
		{61 * time.Second, "61 seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatInterval(tt.in))
		})
	}
}

func TestCacheRepo_SetGet(t *testing.T) {
	db := setupCacheTestDB(t)
	defer func() { _ = db.Close() }()

	repo := NewCacheRepo(db)
	ctx := context.Background()
	key := "test:cache_repo_set_get"
	defer func() { _, _ = db.Exec("DELETE FROM embed_cache WHERE key = $1", key) }()

	_, ok, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(ctx, key, []byte(`{"a":1}`), time.Hour))
	value, ok, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(value))

	require.NoError(t, repo.Set(ctx, key, []byte(`{"a":2}`), time.Hour))
	value, _, err = repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(value))
}

func TestCacheRepo_ExpiredEntries(t *testing.T) {
	db := setupCacheTestDB(t)
	defer func() { _ = db.Close() }()

	repo := NewCacheRepo(db)
	ctx := context.Background()
	key := "test:cache_repo_expired"
	defer func() { _, _ = db.Exec("DELETE FROM embed_cache WHERE key = $1", key) }()

	_, err := db.Exec(`INSERT INTO embed_cache (key, value, expires_at) VALUES ($1, $2, NOW() - interval '1 minute')`, key, []byte("old"))
	require.NoError(t, err)

	_, ok, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := repo.Cleanup(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, int64(1))
}
