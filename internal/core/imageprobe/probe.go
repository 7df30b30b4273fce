// Package imageprobe reads just enough of a remote image to report its
// format and pixel dimensions, then aborts the download.
package imageprobe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	// Registered decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"Embedkit/internal/core/cache"
	"Embedkit/internal/core/fetch"
)

// CachePrefix namespaces probe results in the shared cache.
const CachePrefix = "image:"

// maxRedirects is deliberately higher than the page default; image CDNs
// chain redirects more often.
const maxRedirects = 5

var (
	// ErrInvalidContentType is returned when the response is not an image.
	ErrInvalidContentType = errors.New("invalid content type")

	// ErrNotFound is returned for 404, 500 and unresolvable hosts.
	ErrNotFound = errors.New("image not found")

	// ErrMalformedImage is returned when the header bytes cannot be decoded.
	ErrMalformedImage = errors.New("malformed image")

	// ErrTimeout is returned when the probe does not finish in time.
	ErrTimeout = fetch.ErrTimeout
)

var imageExtRe = regexp.MustCompile(`(?i)\.(jpg|png|gif)$`)

// StatusError carries a non-200 status that is not treated as not-found.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

// Info describes a probed image.
type Info struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Options tune a single probe.
type Options struct {
	// Timeout bounds the whole probe; zero uses the prober default.
	Timeout time.Duration
	// DisableCache skips the cache for this probe.
	DisableCache bool
}

// Fetcher starts fetches. *fetch.Engine satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, uri string, opts fetch.Options) *fetch.Request
}

// Prober probes images, optionally caching results.
type Prober struct {
	fetcher Fetcher
	cache   *cache.Cache
	timeout time.Duration
	ttl     time.Duration
}

// Option configures the prober
type Option func(*Prober)

// WithCache enables result caching
func WithCache(c *cache.Cache, ttl time.Duration) Option {
	return func(p *Prober) {
		p.cache = c
		p.ttl = ttl
	}
}

// WithTimeout sets the default probe timeout
func WithTimeout(timeout time.Duration) Option {
	return func(p *Prober) {
		p.timeout = timeout
	}
}

// NewProber creates a prober
func NewProber(fetcher Fetcher, opts ...Option) *Prober {
	p := &Prober{
		fetcher: fetcher,
		timeout: fetch.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe returns the format and dimensions of the image at uri.
func (p *Prober) Probe(ctx context.Context, uri string, opts Options) (*Info, error) {
	return cache.Do(ctx, p.cache, CachePrefix+uri, cache.Options{TTL: p.ttl, Disable: opts.DisableCache},
		func(ctx context.Context) (*Info, error) {
			return p.probe(ctx, uri, opts)
		})
}

type probeResult struct {
	info *Info
	err  error
}

func (p *Prober) probe(ctx context.Context, uri string, opts Options) (*Info, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}

	req := p.fetcher.Fetch(ctx, uri, fetch.Options{
		Timeout:      timeout,
		MaxRedirects: maxRedirects,
		AsBuffer:     true,
	})
	// Only the header bytes are needed.
	defer req.Abort()

	done := make(chan probeResult, 1)
	go func() {
		info, err := readInfo(ctx, req, uri)
		done <- probeResult{info: info, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			slog.Debug("[IMAGE-PROBE] probe failed", "uri", uri, "error", res.err)
			return nil, normalizeError(res.err)
		}
		return res.info, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func readInfo(ctx context.Context, req *fetch.Request, uri string) (*Info, error) {
	resp, err := req.Wait(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkContentType(resp.Header.Get("Content-Type"), uri); err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	cfg, format, err := image.DecodeConfig(bufio.NewReader(resp.Body))
	if err != nil {
		if errors.Is(err, fetch.ErrTimeout) || errors.Is(err, fetch.ErrAborted) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}

	return &Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// checkContentType accepts any image/* type. With no type, or the generic
// octet-stream, the URI must end in a known image extension.
func checkContentType(contentType, uri string) error {
	if contentType != "" && contentType != "application/octet-stream" {
		if !strings.Contains(contentType, "image/") {
			return fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
		}
		return nil
	}
	if !imageExtRe.MatchString(uri) {
		return fmt.Errorf("%w: no content-type header and file extension", ErrInvalidContentType)
	}
	return nil
}

func normalizeError(err error) error {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		if statusErr.Code == http.StatusNotFound || statusErr.Code == http.StatusInternalServerError {
			return ErrNotFound
		}
		return err
	case fetch.IsNotFoundHost(err):
		return ErrNotFound
	default:
		return err
	}
}
