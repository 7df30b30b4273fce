package imageprobe

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
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

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gifBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, w, h), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newProber(opts ...Option) *Prober {
	return NewProber(fetch.NewEngine(), opts...)
}

func TestProbe_PNG(t *testing.T) {
	data := pngBytes(t, 640, 480)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer server.Close()

	info, err := newProber().Probe(context.Background(), server.URL+"/a", Options{})
	require.NoError(t, err)
	assert.Equal(t, &Info{Format: "png", Width: 640, Height: 480}, info)
}

func TestProbe_ContentTypeRules(t *testing.T) {
	data := gifBytes(t, 16, 9)
	mux := http.NewServeMux()
	mux.HandleFunc("/html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	})
	octet := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	}
	mux.HandleFunc("/file.GIF", octet)
	mux.HandleFunc("/file", octet)
	server := httptest.NewServer(mux)
	defer server.Close()

	prober := newProber()

	_, err := prober.Probe(context.Background(), server.URL+"/html", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidContentType)
	assert.Equal(t, "invalid content type: text/html", err.Error())

	info, err := prober.Probe(context.Background(), server.URL+"/file.GIF", Options{})
	require.NoError(t, err)
	assert.Equal(t, "gif", info.Format)
	assert.Equal(t, 16, info.Width)
	assert.Equal(t, 9, info.Height)

	_, err = prober.Probe(context.Background(), server.URL+"/file", Options{})
	require.Error(t, err)
	assert.Equal(t, "invalid content type: no content-type header and file extension", err.Error())
}

func TestProbe_ContentTypeCheckedBeforeStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newProber().Probe(context.Background(), server.URL+"/missing.png", Options{})
	assert.ErrorIs(t, err, ErrInvalidContentType)
}

func TestProbe_StatusMapping(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{status: http.StatusNotFound, wantErr: ErrNotFound},
		{status: http.StatusInternalServerError, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newProber().Probe(context.Background(), server.URL, Options{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("other status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		_, err := newProber().Probe(context.Background(), server.URL, Options{})
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusForbidden, statusErr.Code)
	})
}

func TestProbe_Malformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("definitely not a png"))
	}))
	defer server.Close()

	_, err := newProber().Probe(context.Background(), server.URL, Options{})
	assert.ErrorIs(t, err, ErrMalformedImage)
}

func TestProbe_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	_, err := newProber().Probe(context.Background(), server.URL, Options{Timeout: 50 * time.Millisecond})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "timeout", err.Error())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProbe_DoesNotDownloadWholeImage(t *testing.T) {
	data := pngBytes(t, 32, 32)
	var served atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
		w.(http.Flusher).Flush()
		// Trailing payload the probe never needs.
		chunk := make([]byte, 64<<10)
		for i := 0; i < 256; i++ {
			n, err := w.Write(chunk)
			served.Add(int64(n))
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	info, err := newProber().Probe(context.Background(), server.URL, Options{})
	require.NoError(t, err)
	assert.Equal(t, 32, info.Width)
}

func TestProbe_Cached(t *testing.T) {
	data := pngBytes(t, 10, 20)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer server.Close()

	store, err := cache.NewMemoryStore(10)
	require.NoError(t, err)
	prober := newProber(WithCache(cache.New(store), time.Hour))

	for i := 0; i < 3; i++ {
		info, err := prober.Probe(context.Background(), server.URL, Options{})
		require.NoError(t, err)
		assert.Equal(t, 20, info.Height)
	}
	assert.Equal(t, int32(1), hits.Load())

	_, err = prober.Probe(context.Background(), server.URL, Options{DisableCache: true})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCheckContentType(t *testing.T) {
	assert.NoError(t, checkContentType("image/jpeg", "http://x/a"))
	assert.NoError(t, checkContentType("", "http://x/a.JPG"))
	assert.NoError(t, checkContentType("application/octet-stream", "http://x/a.png"))
	assert.ErrorIs(t, checkContentType("", "http://x/a.jpeg"), ErrInvalidContentType)
	assert.ErrorIs(t, checkContentType("application/json", "http://x/a.png"), ErrInvalidContentType)
}
