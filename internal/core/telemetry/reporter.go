package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"Embedkit/internal/core/fetch"
	"Embedkit/internal/core/meta"
	"Embedkit/internal/core/whitelist"
)

// DefaultPerMinute is the default cap on reports sent per minute.
const DefaultPerMinute = 60

// ErrRejected is returned when the sink answers with a non-200 status.
var ErrRejected = errors.New("telemetry sink rejected report")

// Fetcher starts fetches. *fetch.Engine satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, uri string, opts fetch.Options) *fetch.Request
}

// Reporter sends signals to the whitelist log endpoint. Reports are fire and
// forget: failures are logged and never retried.
type Reporter struct {
	fetcher  Fetcher
	limiter  *rate.Limiter
	endpoint string
	timeout  time.Duration
	wg       sync.WaitGroup
}

// ReporterOption configures the reporter
type ReporterOption func(*Reporter)

// WithPerMinute caps how many reports are sent per minute. Extra reports are
// dropped.
func WithPerMinute(n int) ReporterOption {
	return func(r *Reporter) {
		if n > 0 {
			r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
		}
	}
}

// WithTimeout bounds each report request
func WithTimeout(timeout time.Duration) ReporterOption {
	return func(r *Reporter) {
		r.timeout = timeout
	}
}

// NewReporter creates a reporter. An empty endpoint disables reporting.
func NewReporter(endpoint string, fetcher Fetcher, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		endpoint: endpoint,
		fetcher:  fetcher,
		timeout:  fetch.DefaultTimeout,
	}
	WithPerMinute(DefaultPerMinute)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enabled reports whether an endpoint is configured.
func (r *Reporter) Enabled() bool {
	return r != nil && r.endpoint != "" && r.fetcher != nil
}

// Report derives signals for uri and, when there are any, sends them in the
// background.
func (r *Reporter) Report(uri string, m *meta.Meta, o *meta.OEmbed, record *whitelist.Record) {
	if !r.Enabled() {
		return
	}
	signals := Derive(m, o, record)
	if signals == nil {
		return
	}
	if !r.limiter.Allow() {
		slog.Debug("[TELEMETRY] Report dropped by rate limit", "uri", uri)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.Send(ctx, uri, signals); err != nil {
			slog.Warn("[TELEMETRY] Error logging url", "uri", uri, "error", err)
		}
	}()
}

// Send delivers one report synchronously.
func (r *Reporter) Send(ctx context.Context, uri string, signals Signals) error {
	target, err := r.reportURL(uri, signals)
	if err != nil {
		return err
	}

	req := r.fetcher.Fetch(ctx, target, fetch.Options{AsBuffer: true})
	resp, err := req.Wait(ctx)
	if err != nil {
		req.Abort()
		return err
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	return nil
}

// Wait blocks until in-flight reports finish.
func (r *Reporter) Wait() {
	r.wg.Wait()
}

func (r *Reporter) reportURL(uri string, signals Signals) (string, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid telemetry endpoint: %w", err)
	}

	q := u.Query()
	for k, v := range signals {
		if v {
			q.Set(k, "true")
		}
	}
	q.Set("uri", uri)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
