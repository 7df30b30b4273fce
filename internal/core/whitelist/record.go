// Package whitelist holds the per-domain capability grants that decide which
// extracted links may be exposed and which presentation options apply.
package whitelist

import "strings"

const (
	tagAllow = "allow"
	tagDeny  = "deny"
)

// Grant is the tag set for one source group, e.g. oembed.video.
type Grant struct {
	Allowed bool            `json:"allowed"`
	Options map[string]bool `json:"options,omitempty"`
}

// Record is the whitelist entry for a domain. IsDefault marks the fallback
// record used when no domain-specific entry exists.
type Record struct {
	Domain    string                      `json:"domain"`
	IsDefault bool                        `json:"isDefault"`
	Grants    map[string]map[string]Grant `json:"grants,omitempty"`
}

// IsAllowed reports whether capability ("source.group") is allowed and, if
// option is non-empty, whether that option is granted as well. A nil record
// allows nothing.
func (r *Record) IsAllowed(capability, option string) bool {
	if r == nil {
		return false
	}
	source, group, ok := strings.Cut(capability, ".")
	if !ok {
		return false
	}
	grant, ok := r.Grants[source][group]
	if !ok || !grant.Allowed {
		return false
	}
	if option == "" {
		return true
	}
	return grant.Options[option]
}

// grantFromTags turns a raw tag list into a Grant. "allow" grants the
// capability, "deny" is the explicit absence of it, anything else is an option.
func grantFromTags(tags []string) Grant {
	g := Grant{}
	for _, tag := range tags {
		switch tag = strings.ToLower(strings.TrimSpace(tag)); tag {
		case "":
		case tagAllow:
			g.Allowed = true
		case tagDeny:
		default:
			if g.Options == nil {
				g.Options = make(map[string]bool)
			}
			g.Options[tag] = true
		}
	}
	return g
}

func recordFromDoc(domain string, doc map[string]map[string][]string, isDefault bool) *Record {
	r := &Record{
		Domain:    domain,
		IsDefault: isDefault,
		Grants:    make(map[string]map[string]Grant, len(doc)),
	}
	for source, groups := range doc {
		source = strings.ToLower(source)
		gm := make(map[string]Grant, len(groups))
		for group, tags := range groups {
			gm[strings.ToLower(group)] = grantFromTags(tags)
		}
		r.Grants[source] = gm
	}
	return r
}
