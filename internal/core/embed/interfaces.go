package embed

import (
	"context"

	"Embedkit/internal/core/imageprobe"
	"Embedkit/internal/core/meta"
	"Embedkit/internal/core/whitelist"
)

// MetaLoader loads page metadata and oEmbed documents. *meta.Loader
// satisfies it.
type MetaLoader interface {
	LoadMeta(ctx context.Context, uri string) (*meta.Meta, *meta.Page, error)
	LoadOEmbed(ctx context.Context, pageURL string, m *meta.Meta) (*meta.OEmbed, error)
}

// Whitelist finds the grants for a URI. *whitelist.Store satisfies it.
type Whitelist interface {
	Find(uri string) *whitelist.Record
}

// ImageProber reads image dimensions. *imageprobe.Prober satisfies it.
type ImageProber interface {
	Probe(ctx context.Context, uri string, opts imageprobe.Options) (*imageprobe.Info, error)
}

// Reporter receives telemetry for pages without an explicit whitelist
// entry. *telemetry.Reporter satisfies it.
type Reporter interface {
	Report(uri string, m *meta.Meta, o *meta.OEmbed, record *whitelist.Record)
}
