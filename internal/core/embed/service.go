// Package embed orchestrates extraction: whitelist lookup, plugin data,
// page and oEmbed loading, link policy, image probing and telemetry.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"Embedkit/internal/core/imageprobe"
	"Embedkit/internal/core/links"
	"Embedkit/internal/core/meta"
	"Embedkit/internal/core/plugins"
	"Embedkit/internal/core/whitelist"
)

// DefaultProbeLimit bounds concurrent image probes per extraction.
const DefaultProbeLimit = 4

// Result is the extraction output for one URI.
type Result struct {
	URI   string         `json:"uri"`
	Meta  map[string]any `json:"meta"`
	Links []links.Link   `json:"links"`

	// Record is the whitelist entry the links were gated by.
	Record *whitelist.Record `json:"-"`
}

// Options tune one extraction.
type Options struct {
	// SkipImageProbe leaves image links without dimensions untouched.
	SkipImageProbe bool
}

// Service extracts embed metadata
type Service interface {
	Extract(ctx context.Context, uri string, opts Options) (*Result, error)
	IsSupported(uri string) bool
}

type service struct {
	loader     MetaLoader
	fetcher    plugins.Fetcher
	registry   *plugins.Registry
	policy     *links.Policy
	whitelist  Whitelist
	prober     ImageProber
	reporter   Reporter
	probeLimit int
}

// ServiceOption configures the service
type ServiceOption func(*service)

// WithWhitelist sets the whitelist lookup. Without one every domain gets an
// empty default record.
func WithWhitelist(w Whitelist) ServiceOption {
	return func(s *service) {
		s.whitelist = w
	}
}

// WithImageProber enables dimension probing for image links
func WithImageProber(p ImageProber) ServiceOption {
	return func(s *service) {
		s.prober = p
	}
}

// WithReporter enables whitelist telemetry
func WithReporter(r Reporter) ServiceOption {
	return func(s *service) {
		s.reporter = r
	}
}

// WithRegistry replaces the built-in plugin set
func WithRegistry(r *plugins.Registry) ServiceOption {
	return func(s *service) {
		s.registry = r
	}
}

// WithPolicy replaces the default link policy
func WithPolicy(p *links.Policy) ServiceOption {
	return func(s *service) {
		s.policy = p
	}
}

// WithProbeLimit bounds concurrent image probes
func WithProbeLimit(n int) ServiceOption {
	return func(s *service) {
		if n > 0 {
			s.probeLimit = n
		}
	}
}

// NewService creates an embed service. loader and fetcher are required.
func NewService(loader MetaLoader, fetcher plugins.Fetcher, opts ...ServiceOption) (Service, error) {
	if loader == nil || fetcher == nil {
		return nil, ErrNilDependency
	}

	s := &service{
		loader:     loader,
		fetcher:    fetcher,
		probeLimit: DefaultProbeLimit,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = plugins.NewDefaultRegistry()
	}
	if s.policy == nil {
		s.policy = links.NewPolicy(nil)
	}
	if s.whitelist == nil {
		s.whitelist = whitelist.NewStore()
	}
	return s, nil
}

// IsSupported reports whether uri is an absolute http(s) URL
func (s *service) IsSupported(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Extract builds the meta and links for uri.
func (s *service) Extract(ctx context.Context, uri string, opts Options) (*Result, error) {
	if !s.IsSupported(uri) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, uri)
	}

	record := s.whitelist.Find(uri)
	if record == nil {
		record = &whitelist.Record{Domain: whitelist.DefaultDomain, IsDefault: true}
	}
	sel := s.registry.Select(uri)
	req := sel.NewRequest(uri)
	req.Record = record

	s.loadData(ctx, sel, req)

	m, page, err := s.loader.LoadMeta(ctx, uri)
	if err != nil {
		// Domain plugins can still produce links from their own data.
		if len(req.Data) == 0 {
			return nil, fmt.Errorf("failed to load %s: %w", uri, err)
		}
		slog.Warn("[EMBED] Page load failed, using plugin data only", "uri", uri, "error", err)
		m = &meta.Meta{}
	}

	pageURL := uri
	if page != nil && page.FinalURL != "" {
		pageURL = page.FinalURL
	}

	req.Meta = m
	if page == nil || page.IsHTML() {
		o, err := s.loader.LoadOEmbed(ctx, pageURL, m)
		if err != nil {
			slog.Warn("[EMBED] oEmbed unavailable", "uri", uri, "error", err)
		}
		req.OEmbed = o
	}

	raw := sel.Links(req)
	if page != nil && strings.HasPrefix(page.ContentType, "image/") {
		raw = append(raw, links.Link{
			Href: pageURL,
			Type: page.ContentType,
			Rel:  []string{links.RelImage},
		})
	}

	final := s.policy.Apply(record, raw)
	if !opts.SkipImageProbe && s.prober != nil {
		final = s.probeImages(ctx, final)
	}

	fields := sel.Meta(req)
	if _, ok := fields["canonical"]; !ok {
		fields["canonical"] = pageURL
	}

	if s.reporter != nil {
		s.reporter.Report(uri, m, req.OEmbed, record)
	}

	slog.Info("[EMBED] Extracted", "uri", uri, "links", len(final), "raw_links", len(raw), "whitelisted", !record.IsDefault)

	return &Result{
		URI:    uri,
		Meta:   fields,
		Links:  final,
		Record: record,
	}, nil
}

// loadData runs the selected data providers in parallel. A failing provider
// is logged and skipped.
func (s *service) loadData(ctx context.Context, sel *plugins.Selection, req *plugins.Request) {
	providers := sel.DataProviders()
	if len(providers) == 0 {
		return
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range providers {
		p := p
		g.Go(func() error {
			data, err := p.GetData(gctx, req, s.fetcher)
			if err != nil {
				slog.Warn("[EMBED] Plugin data failed", "plugin", p.Name(), "uri", req.URI, "error", err)
				return nil
			}
			mu.Lock()
			req.Data[p.Provides()] = data
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// probeImages fills in dimensions for image links that lack them. Images
// that no longer exist are dropped.
func (s *service) probeImages(ctx context.Context, in []links.Link) []links.Link {
	missing := make([]bool, len(in))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.probeLimit)
	for i := range in {
		i := i
		l := &in[i]
		if !needsProbe(l) {
			continue
		}
		g.Go(func() error {
			info, err := s.prober.Probe(gctx, absoluteHref(l.Href), imageprobe.Options{})
			if err != nil {
				if errors.Is(err, imageprobe.ErrNotFound) {
					missing[i] = true
				}
				slog.Debug("[EMBED] Image probe failed", "href", l.Href, "error", err)
				return nil
			}
			l.Width, l.Height = info.Width, info.Height
			return nil
		})
	}
	_ = g.Wait()

	out := in[:0]
	for i, l := range in {
		if !missing[i] {
			out = append(out, l)
		}
	}
	return out
}

func needsProbe(l *links.Link) bool {
	if l.Href == "" || l.HasSize() || l.AspectRatio > 0 {
		return false
	}
	return l.HasRel(links.RelImage) || l.HasRel(links.RelThumbnail) || l.HasRel(links.RelLogo)
}

// absoluteHref restores a scheme on protocol-relative links.
func absoluteHref(href string) string {
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
