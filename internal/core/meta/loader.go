// Package meta fetches pages and oEmbed documents and extracts the
// metadata (Open Graph, Twitter Cards, HTML meta) plugins build links from.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"net/http"
	"time"

	"Embedkit/internal/core/cache"
	"Embedkit/internal/core/fetch"
	"Embedkit/internal/core/normalize"
)

const (
	pageCachePrefix   = "page:"
	oembedCachePrefix = "oembed:"

	// DefaultMaxPageBytes caps how much of a page is read.
	DefaultMaxPageBytes = 10 * 1024 * 1024

	maxOEmbedBytes = 1024 * 1024
)

// Fetcher starts fetches. *fetch.Engine satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, uri string, opts fetch.Options) *fetch.Request
}

// Loader fetches and caches pages and oEmbed documents.
type Loader struct {
	fetcher        Fetcher
	cache          *cache.Cache
	circuitBreaker *circuitBreaker
	maxPageBytes   int64
	pageTTL        time.Duration
	oembedTTL      time.Duration
}

// LoaderOption configures the loader
type LoaderOption func(*Loader)

// WithCache enables page and oEmbed caching
func WithCache(c *cache.Cache) LoaderOption {
	return func(l *Loader) {
		l.cache = c
	}
}

// WithPageTTL sets how long fetched pages are cached
func WithPageTTL(ttl time.Duration) LoaderOption {
	return func(l *Loader) {
		l.pageTTL = ttl
	}
}

// WithOEmbedTTL sets how long oEmbed documents are cached
func WithOEmbedTTL(ttl time.Duration) LoaderOption {
	return func(l *Loader) {
		l.oembedTTL = ttl
	}
}

// WithMaxPageBytes caps the bytes read from a page
func WithMaxPageBytes(n int64) LoaderOption {
	return func(l *Loader) {
		l.maxPageBytes = n
	}
}

// NewLoader creates a loader
func NewLoader(fetcher Fetcher, opts ...LoaderOption) (*Loader, error) {
	if fetcher == nil {
		return nil, ErrNilDependency
	}

	l := &Loader{
		fetcher:        fetcher,
		circuitBreaker: newCircuitBreaker(),
		maxPageBytes:   DefaultMaxPageBytes,
		pageTTL:        cache.PageTTL,
		oembedTTL:      cache.DefaultTTL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// ProviderStats reports the oEmbed circuit breaker state per provider.
func (l *Loader) ProviderStats() map[string]ProviderStats {
	return l.circuitBreaker.stats()
}

// LoadPage fetches uri in text mode, re-encodes it from its declared
// charset and caches the result. Error statuses are not cached.
func (l *Loader) LoadPage(ctx context.Context, uri string) (*Page, error) {
	return cache.Do(ctx, l.cache, pageCachePrefix+uri, cache.Options{TTL: l.pageTTL},
		func(ctx context.Context) (*Page, error) {
			return l.loadPage(ctx, uri)
		})
}

func (l *Loader) loadPage(ctx context.Context, uri string) (*Page, error) {
	req := l.fetcher.Fetch(ctx, uri, fetch.Options{})
	resp, err := req.Wait(ctx)
	if err != nil {
		req.Abort()
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		_ = resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	page := &Page{
		URI:         uri,
		FinalURL:    resp.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: mediaType(contentType),
	}

	if !page.IsHTML() {
		// Only headers matter for non-HTML resources.
		_ = resp.Body.Close()
		return page, nil
	}

	raw, err := resp.ReadAll(l.maxPageBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	text := string(raw)

	page.Charset = normalize.ResolveCharset(contentType, false)
	if page.Charset == "" {
		page.Charset = DetectCharset(text)
	}
	page.Body = normalize.Reencode(page.Charset, text)

	return page, nil
}

// LoadMeta loads the page and parses its metadata. Non-HTML pages yield an
// empty Meta.
func (l *Loader) LoadMeta(ctx context.Context, uri string) (*Meta, *Page, error) {
	page, err := l.LoadPage(ctx, uri)
	if err != nil {
		return nil, nil, err
	}
	if !page.IsHTML() {
		return &Meta{}, page, nil
	}
	return Parse(page.Body, page.FinalURL), page, nil
}

// LoadOEmbed discovers and fetches the oEmbed document for a page. It
// returns nil without error when the page has no oEmbed endpoint.
func (l *Loader) LoadOEmbed(ctx context.Context, pageURL string, m *Meta) (*OEmbed, error) {
	endpoint, provider := DiscoverOEmbed(pageURL, m)
	if endpoint == "" {
		return nil, nil
	}

	canAttempt, err := l.circuitBreaker.canAttempt(provider)
	if !canAttempt {
		log.Printf("[OEMBED] Skipping %s due to circuit breaker: %v", pageURL, err)
		return nil, err
	}

	oembed, err := cache.Do(ctx, l.cache, oembedCachePrefix+endpoint, cache.Options{TTL: l.oembedTTL},
		func(ctx context.Context) (*OEmbed, error) {
			return l.fetchOEmbed(ctx, endpoint)
		})
	if err != nil {
		l.circuitBreaker.recordFailure(provider, err)
		return nil, fmt.Errorf("failed to fetch oEmbed data: %w", err)
	}

	l.circuitBreaker.recordSuccess(provider)
	return oembed, nil
}

func (l *Loader) fetchOEmbed(ctx context.Context, endpoint string) (*OEmbed, error) {
	req := l.fetcher.Fetch(ctx, endpoint, fetch.Options{
		AsBuffer: true,
		Header:   http.Header{"Accept": []string{"application/json"}},
	})
	resp, err := req.Wait(ctx)
	if err != nil {
		req.Abort()
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := resp.ReadAll(maxOEmbedBytes)
	if err != nil {
		return nil, err
	}

	var oembed OEmbed
	if err := json.Unmarshal(body, &oembed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOEmbed, err)
	}
	if oembed.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidOEmbed)
	}
	return &oembed, nil
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mt
}
