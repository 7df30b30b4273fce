// Package plugins holds the extractors that turn page metadata, oEmbed
// documents and domain APIs into raw links and meta fields.
//
// A plugin declares what it can do by implementing the capability
// interfaces below. Generic plugins run for every page; plugins that also
// implement Matcher run only for the URIs they match.
package plugins

import (
	"context"
	"errors"

	"Embedkit/internal/core/fetch"
	"Embedkit/internal/core/links"
	"Embedkit/internal/core/meta"
)

var (
	// ErrUnnamedPlugin is returned when registering a plugin without a name.
	ErrUnnamedPlugin = errors.New("plugin has no name")

	// ErrDuplicatePlugin is returned when a plugin name is registered twice.
	ErrDuplicatePlugin = errors.New("plugin already registered")

	// ErrNoCapability is returned when a plugin implements none of the
	// capability interfaces.
	ErrNoCapability = errors.New("plugin declares no capability")

	// ErrDataUnavailable is returned by data providers when the upstream API
	// answers without usable data.
	ErrDataUnavailable = errors.New("plugin data unavailable")
)

// Fetcher starts fetches. *fetch.Engine satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, uri string, opts fetch.Options) *fetch.Request
}

// Plugin is the base every extractor implements.
type Plugin interface {
	Name() string
}

// Matcher restricts a plugin to the URIs it recognizes. Match returns the
// submatches for uri, or nil when the plugin does not apply.
type Matcher interface {
	Plugin
	Match(uri string) []string
}

// DataProvider fetches extra data for a URI before links are built. The
// result is stored in Request.Data under Provides().
type DataProvider interface {
	Plugin
	Provides() string
	GetData(ctx context.Context, req *Request, f Fetcher) (any, error)
}

// LinkProvider builds raw links. Gating and option transforms are left to
// the link policy.
type LinkProvider interface {
	Plugin
	Links(req *Request) []links.Link
}

// MetaProvider contributes meta fields. Earlier providers win on conflicts.
type MetaProvider interface {
	Plugin
	Meta(req *Request) map[string]any
}

// Request is what plugins read from while extracting one URI.
type Request struct {
	URI    string
	Meta   *meta.Meta
	OEmbed *meta.OEmbed

	// Record is the whitelist entry for URI. Nil means no whitelist applies.
	Record links.Grants

	// Matches holds each matching domain plugin's submatches by plugin name.
	Matches map[string][]string
	// Data holds data provider results by Provides() key.
	Data map[string]any
}

// Match returns the submatches recorded for the named plugin.
func (r *Request) Match(name string) []string {
	if r == nil {
		return nil
	}
	return r.Matches[name]
}
