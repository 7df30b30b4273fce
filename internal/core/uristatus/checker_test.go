package uristatus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"Embedkit/internal/core/cache"
	"Embedkit/internal/core/fetch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCachedChecker(t *testing.T) *Checker {
	t.Helper()
	store, err := cache.NewMemoryStore(10)
	require.NoError(t, err)
	return NewChecker(fetch.NewEngine(), WithCache(cache.New(store), time.Hour))
}

func TestCheck_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/gone", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	status, err := NewChecker(fetch.NewEngine()).Check(context.Background(), server.URL+"/old", Options{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusGone, status.Code)
	assert.Empty(t, status.Error)
	assert.False(t, status.OK())
}

func TestCheck_CookieGatedRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "consent", Value: "1", Path: "/"})
		http.Redirect(w, r, "/content", http.StatusFound)
	})
	mux.HandleFunc("/content", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("consent"); err != nil {
			http.Redirect(w, r, "/start", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	status, err := NewChecker(fetch.NewEngine()).Check(context.Background(), server.URL+"/content", Options{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status.Code)
	assert.True(t, status.OK())
}

func TestCheck_Cached(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	checker := newCachedChecker(t)
	for i := 0; i < 3; i++ {
		status, err := checker.Check(context.Background(), server.URL, Options{})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, status.Code)
	}
	assert.Equal(t, int32(1), hits.Load())

	_, err := checker.Check(context.Background(), server.URL, Options{DisableCache: true})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCheck_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	status, err := NewChecker(fetch.NewEngine()).Check(context.Background(), server.URL, Options{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "timeout", status.Error)
	assert.Zero(t, status.Code)
}

func TestCheck_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	status, err := NewChecker(fetch.NewEngine()).Check(context.Background(), url, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, status.Error)
	assert.Zero(t, status.Code)
}
