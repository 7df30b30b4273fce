// Package fetch performs single HTTP GETs with redirect following, cookie
// continuity across hops, transparent gzip/deflate decoding, one timer per
// logical operation and explicit cancellation.
//
// Engine.Fetch returns a *Request handle immediately; the request is built
// and sent on its own goroutine. The handle's single outcome is either a
// *Response with an already-decoded Body or an error. Until the Body is
// drained or closed, Abort is called, the timer fires, or an error occurs,
// the engine owns the connection.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultMaxRedirects is the engine bound unless WithMaxRedirects sets one.
	DefaultMaxRedirects = 3

	// DefaultTimeout is used when the engine is built without WithTimeout.
	DefaultTimeout = 5 * time.Second

	// DefaultUserAgent identifies the engine when no user agent is configured.
	DefaultUserAgent = "Embedkit/1.0"
)

// Options tune a single Fetch call. Zero values fall back to engine defaults.
type Options struct {
	// MaxRedirects bounds the redirect chain. Exceeding it fails the request
	// with ErrTooManyRedirects. Zero uses the engine bound.
	MaxRedirects int

	// Timeout bounds the whole logical operation, redirects and body reads included.
	Timeout time.Duration

	// DisableRedirects returns the first 3xx response instead of following it.
	DisableRedirects bool

	// AsBuffer keeps the body as raw bytes. Otherwise each byte is exposed as
	// its Latin-1 rune (UTF-8 encoded) for normalize.Reencode to reinterpret.
	AsBuffer bool

	// Jar carries cookies across calls. When nil a fresh jar is created so
	// cookies persist only across the redirects of this request.
	Jar http.CookieJar

	// Header overrides or extends the default request headers.
	Header http.Header
}

// Engine issues GET requests. It is safe for concurrent use.
type Engine struct {
	transport    http.RoundTripper
	userAgent    string
	timeout      time.Duration
	maxRedirects int
}

// EngineOption configures the engine
type EngineOption func(*Engine)

// WithTransport sets the round tripper shared by all requests.
func WithTransport(rt http.RoundTripper) EngineOption {
	return func(e *Engine) {
		e.transport = rt
	}
}

// WithUserAgent sets the User-Agent header for outbound requests
func WithUserAgent(userAgent string) EngineOption {
	return func(e *Engine) {
		e.userAgent = userAgent
	}
}

// WithTimeout sets the default per-request timeout
func WithTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = timeout
	}
}

// WithMaxRedirects sets the default redirect bound. Zero forbids redirects;
// negative values keep DefaultMaxRedirects.
func WithMaxRedirects(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRedirects = n
		}
	}
}

// NewEngine creates a fetch engine
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		transport:    newTransport(),
		userAgent:    DefaultUserAgent,
		timeout:      DefaultTimeout,
		maxRedirects: DefaultMaxRedirects,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Timeout returns the engine's default timeout.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// UserAgent returns the User-Agent sent with every request.
func (e *Engine) UserAgent() string {
	return e.userAgent
}

// NewJar returns an empty cookie jar using the public suffix list, the same
// kind Fetch creates when Options.Jar is nil.
func NewJar() http.CookieJar {
	// cookiejar.New only fails on a nil-safe options struct, never here.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// Fetch starts a GET for uri and returns its handle without blocking. The
// timer starts now; ctx cancellation behaves like Abort.
func (e *Engine) Fetch(ctx context.Context, uri string, opts Options) *Request {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	r := newRequest(opCtx, cancel, uuid.NewString(), uri)

	go r.run(e, opts)

	return r
}

func (e *Engine) client(opts Options) *http.Client {
	jar := opts.Jar
	if jar == nil {
		jar = NewJar()
	}
	return &http.Client{
		Transport:     e.transport,
		Jar:           jar,
		CheckRedirect: e.redirectPolicy(opts),
	}
}

func (e *Engine) redirectPolicy(opts Options) func(*http.Request, []*http.Request) error {
	if opts.DisableRedirects {
		return func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	limit := opts.MaxRedirects
	if limit <= 0 {
		limit = e.maxRedirects
	}

	// via holds every request already sent, so the n-th redirect sees len(via) == n.
	return func(req *http.Request, via []*http.Request) error {
		if len(via) > limit {
			return fmt.Errorf("%w: limit is %d", ErrTooManyRedirects, limit)
		}
		return nil
	}
}

func (e *Engine) newHTTPRequest(ctx context.Context, uri string, opts Options) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, req.URL.Scheme)
	}

	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept-Encoding", "gzip,deflate")
	for key, values := range opts.Header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	// One connection per logical request, released on drain/abort.
	req.Close = true

	return req, nil
}

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	// Decoding is done by the engine so deflate is handled too and consumers
	// never see compressed bytes.
	t.DisableCompression = true
	t.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	t.MaxIdleConnsPerHost = 5
	return t
}
