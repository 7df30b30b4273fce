package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Embedkit/internal/core/embed"
	"Embedkit/internal/core/fetch"
	"Embedkit/internal/core/imageprobe"
	"Embedkit/internal/core/links"
	"Embedkit/internal/core/meta"
	"Embedkit/internal/core/uristatus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockService implements embed.Service for testing
type mockService struct {
	extractFunc func(ctx context.Context, uri string, opts embed.Options) (*embed.Result, error)
}

func (m *mockService) Extract(ctx context.Context, uri string, opts embed.Options) (*embed.Result, error) {
	if m.extractFunc != nil {
		return m.extractFunc(ctx, uri, opts)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) IsSupported(uri string) bool { return true }

type mockProber struct {
	probeFunc func(ctx context.Context, uri string, opts imageprobe.Options) (*imageprobe.Info, error)
}

func (m *mockProber) Probe(ctx context.Context, uri string, opts imageprobe.Options) (*imageprobe.Info, error) {
	return m.probeFunc(ctx, uri, opts)
}

type mockChecker struct {
	checkFunc func(ctx context.Context, uri string, opts uristatus.Options) (*uristatus.Status, error)
}

func (m *mockChecker) Check(ctx context.Context, uri string, opts uristatus.Options) (*uristatus.Status, error) {
	return m.checkFunc(ctx, uri, opts)
}

type staticWhitelist struct {
	n      int
	loaded time.Time
}

func (s staticWhitelist) Len() int            { return s.n }
func (s staticWhitelist) LoadedAt() time.Time { return s.loaded }

func sampleResult(uri string) *embed.Result {
	return &embed.Result{
		URI:  uri,
		Meta: map[string]any{"title": "Sample"},
		Links: []links.Link{
			{Href: "https://player.example/1", Type: links.TypeHTML, Rel: []string{links.RelPlayer}, Width: 640, Height: 360},
		},
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleExtract_Success(t *testing.T) {
	var gotOpts embed.Options
	h := NewHandler(&mockService{
		extractFunc: func(_ context.Context, uri string, opts embed.Options) (*embed.Result, error) {
			gotOpts = opts
			return sampleResult(uri), nil
		},
	}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/iframely?uri=https%3A%2F%2Fvideo.example%2F1&probe=false", nil)
	rec := httptest.NewRecorder()
	h.HandleExtract(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, gotOpts.SkipImageProbe)

	var body struct {
		URI   string           `json:"uri"`
		Meta  map[string]any   `json:"meta"`
		Links []map[string]any `json:"links"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://video.example/1", body.URI)
	assert.Equal(t, "Sample", body.Meta["title"])
	require.Len(t, body.Links, 1)
	assert.Equal(t, "https://player.example/1", body.Links[0]["href"])
}

func TestHandleExtract_MissingURI(t *testing.T) {
	h := NewHandler(&mockService{}, nil, nil)

	rec := httptest.NewRecorder()
	h.HandleExtract(rec, httptest.NewRequest(http.MethodGet, "/iframely", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidRequest", decodeError(t, rec).Error)
}

func TestHandleExtract_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantType string
	}{
		{"unsupported", fmt.Errorf("%w: ftp://x", embed.ErrUnsupportedURL), http.StatusBadRequest, "UnsupportedURL"},
		{"page not found", fmt.Errorf("failed to load: %w", &meta.StatusError{Code: http.StatusNotFound}), http.StatusNotFound, "NotFound"},
		{"page server error", &meta.StatusError{Code: http.StatusInternalServerError}, http.StatusBadGateway, "UpstreamError"},
		{"timeout", fmt.Errorf("failed to fetch page: %w", fetch.ErrTimeout), http.StatusGatewayTimeout, "Timeout"},
		{"redirects", fetch.ErrTooManyRedirects, http.StatusBadGateway, "TooManyRedirects"},
		{"circuit", meta.ErrCircuitOpen, http.StatusServiceUnavailable, "ProviderUnavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "InternalServerError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&mockService{
				extractFunc: func(context.Context, string, embed.Options) (*embed.Result, error) {
					return nil, tt.err
				},
			}, nil, nil)

			rec := httptest.NewRecorder()
			h.HandleExtract(rec, httptest.NewRequest(http.MethodGet, "/iframely?uri=https://e.example/", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantType, decodeError(t, rec).Error)
		})
	}
}

func TestHandleOEmbed(t *testing.T) {
	h := NewHandler(&mockService{
		extractFunc: func(_ context.Context, uri string, _ embed.Options) (*embed.Result, error) {
			return sampleResult(uri), nil
		},
	}, nil, nil)

	rec := httptest.NewRecorder()
	h.HandleOEmbed(rec, httptest.NewRequest(http.MethodGet, "/oembed?url=https://video.example/1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var view embed.OEmbedView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "video", view.Type)
	assert.Equal(t, "Sample", view.Title)
	assert.Contains(t, view.HTML, `src="https://player.example/1"`)
}

func TestHandleImage(t *testing.T) {
	var gotOpts imageprobe.Options
	prober := &mockProber{probeFunc: func(_ context.Context, uri string, opts imageprobe.Options) (*imageprobe.Info, error) {
		gotOpts = opts
		if uri == "https://cdn.example/missing.png" {
			return nil, imageprobe.ErrNotFound
		}
		if uri == "https://cdn.example/page.html" {
			return nil, fmt.Errorf("%w: text/html", imageprobe.ErrInvalidContentType)
		}
		return &imageprobe.Info{Format: "png", Width: 10, Height: 20}, nil
	}}
	h := NewHandler(&mockService{}, prober, nil)

	rec := httptest.NewRecorder()
	h.HandleImage(rec, httptest.NewRequest(http.MethodGet, "/image?uri=https://cdn.example/a.png&refresh=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gotOpts.DisableCache)
	var info imageprobe.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, 20, info.Height)

	rec = httptest.NewRecorder()
	h.HandleImage(rec, httptest.NewRequest(http.MethodGet, "/image?uri=https://cdn.example/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleImage(rec, httptest.NewRequest(http.MethodGet, "/image?uri=https://cdn.example/page.html", nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	checker := &mockChecker{checkFunc: func(_ context.Context, uri string, _ uristatus.Options) (*uristatus.Status, error) {
		if uri == "https://down.example/" {
			return &uristatus.Status{Error: "connection refused"}, nil
		}
		return &uristatus.Status{Code: http.StatusGone}, nil
	}}
	h := NewHandler(&mockService{}, nil, checker)

	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/status?uri=https://e.example/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":410}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/status?uri=https://down.example/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"error":"connection refused"}`, rec.Body.String())
}

func TestHandleHealth(t *testing.T) {
	loaded := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	h := NewHandler(&mockService{}, nil, nil,
		WithWhitelistInfo(staticWhitelist{n: 42, loaded: loaded}),
		WithProviderStats(func() map[string]meta.ProviderStats {
			return map[string]meta.ProviderStats{"youtube.com": {State: "open", Failures: 3}}
		}),
	)

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Whitelist)
	assert.Equal(t, 42, resp.Whitelist.Domains)
	require.NotNil(t, resp.Whitelist.LoadedAt)
	assert.True(t, loaded.Equal(*resp.Whitelist.LoadedAt))
	assert.Equal(t, "open", resp.Providers["youtube.com"].State)
}
