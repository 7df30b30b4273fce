package links

import (
	"regexp"
	"sort"
)

var schemeRe = regexp.MustCompile(`(?i)^https?://`)

// Grants answers whether a capability ("source.group") and optionally one of
// its options is granted. *whitelist.Record satisfies it.
type Grants interface {
	IsAllowed(capability, option string) bool
}

// Policy applies whitelist gating, option transforms, ordering and
// deduplication to raw links.
type Policy struct {
	tax *Taxonomy
}

// NewPolicy creates a policy over tax, or the default taxonomy when nil.
func NewPolicy(tax *Taxonomy) *Policy {
	if tax == nil {
		tax = DefaultTaxonomy()
	}
	return &Policy{tax: tax}
}

// Taxonomy returns the vocabulary the policy uses.
func (p *Policy) Taxonomy() *Taxonomy {
	return p.tax
}

type candidate struct {
	link   Link
	slot   string
	source string
	index  int
}

// Apply returns the final link list for raw. Inputs are not modified.
//
// A link whose source/group pair is whitelistable must be allowed by
// grants unless it is Trusted; disallowed links are dropped. Granted
// options rewrite the link. The result is ordered by slot priority, then
// source priority, then input order, and a link repeating an href already
// placed in a primary slot is dropped. A nil grants allows nothing gated.
func (p *Policy) Apply(grants Grants, raw []Link) []Link {
	candidates := make([]candidate, 0, len(raw))

	for i, in := range raw {
		if in.Href == "" && in.HTML == "" {
			continue
		}

		l := in.clone()
		source := l.Source
		if source == "" {
			source = p.tax.Source(l.Rel)
		}
		slot := p.tax.Slot(l.Rel)
		group := p.tax.group(source, l.Group, slot)

		if !l.Trusted && p.tax.IsWhitelistable(source, group) && !p.allowed(grants, source, group, slot, "") {
			continue
		}

		p.applyOptions(&l, grants, source, group, slot)
		candidates = append(candidates, candidate{link: l, slot: slot, source: source, index: i})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ra, rb := rank(p.tax.SlotPriority, a.slot), rank(p.tax.SlotPriority, b.slot); ra != rb {
			return ra < rb
		}
		if ra, rb := rank(p.tax.SourcePriority, a.source), rank(p.tax.SourcePriority, b.source); ra != rb {
			return ra < rb
		}
		return a.index < b.index
	})

	placed := make(map[string]bool, len(candidates))
	out := make([]Link, 0, len(candidates))
	for _, c := range candidates {
		key := c.link.key()
		if p.tax.IsPrimary(c.slot) {
			if placed[key] {
				continue
			}
			placed[key] = true
		}
		out = append(out, c.link)
	}
	return out
}

// allowed checks source.group and, as an alias, source.slot.
func (p *Policy) allowed(grants Grants, source, group, slot, option string) bool {
	if grants == nil {
		return false
	}
	if grants.IsAllowed(source+"."+group, option) {
		return true
	}
	return slot != "" && slot != group && grants.IsAllowed(source+"."+slot, option)
}

func (p *Policy) granted(grants Grants, option, source, group, slot string) bool {
	return p.tax.OptionValid(option, group, slot) && p.allowed(grants, source, group, slot, option)
}

// ProtocolRelative collapses an http(s):// prefix to //.
func ProtocolRelative(href string) string {
	return schemeRe.ReplaceAllString(href, "//")
}

func (p *Policy) applyOptions(l *Link, grants Grants, source, group, slot string) {
	if l.Href != "" && p.granted(grants, OptionSSL, source, group, slot) {
		l.Href = ProtocolRelative(l.Href)
	}

	if l.HasSize() && p.granted(grants, OptionResponsive, source, group, slot) {
		l.AspectRatio = float64(l.Width) / float64(l.Height)
		l.Width, l.Height = 0, 0
	}

	if !l.HasRel(RelAutoplay) && p.granted(grants, OptionAutoplay, source, group, slot) {
		l.Rel = append(l.Rel, RelAutoplay)
	}
}
