// Package links reconciles the links extracted from oEmbed, Open Graph,
// Twitter Cards and HTML meta into one ordered, deduplicated set, gated by a
// domain's whitelist grants.
package links

import "slices"

// Link is a typed embed link.
type Link struct {
	Href        string   `json:"href,omitempty"`
	Type        string   `json:"type"`
	Rel         []string `json:"rel"`
	Width       int      `json:"width,omitempty"`
	Height      int      `json:"height,omitempty"`
	AspectRatio float64  `json:"aspect-ratio,omitempty"`
	HTML        string   `json:"html,omitempty"`

	// Source overrides the source derived from Rel.
	Source string `json:"-"`
	// Group overrides the whitelist group derived from the slot, e.g.
	// "video" for an oEmbed player.
	Group string `json:"-"`
	// Trusted links come from domain-specific extractors and skip gating.
	Trusted bool `json:"-"`
}

// HasRel reports whether rel is among the link's rels.
func (l *Link) HasRel(rel string) bool {
	return slices.Contains(l.Rel, rel)
}

// HasSize reports whether the link carries explicit pixel dimensions.
func (l *Link) HasSize() bool {
	return l.Width > 0 && l.Height > 0
}

// key identifies the embedded resource for deduplication.
func (l *Link) key() string {
	if l.Href != "" {
		return l.Href
	}
	return l.HTML
}

func (l Link) clone() Link {
	l.Rel = slices.Clone(l.Rel)
	return l
}
