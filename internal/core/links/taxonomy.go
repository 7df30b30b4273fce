package links

import "slices"

// Rel names used by links and the whitelist.
const (
	RelApp       = "app"
	RelPlayer    = "player"
	RelSurvey    = "survey"
	RelImage     = "image"
	RelReader    = "reader"
	RelThumbnail = "thumbnail"
	RelLogo      = "logo"
	RelIcon      = "icon"
	RelFile      = "file"
	RelSummary   = "summary"
	RelInline    = "inline"
	RelAutoplay  = "autoplay"
	RelHTML5     = "html5"
)

// Sources, in priority order.
const (
	SourceIframely = "iframely"
	SourceOEmbed   = "oembed"
	SourceTwitter  = "twitter"
	SourceOG       = "og"
	SourceHTMLMeta = "html-meta"
)

// Presentation options a whitelist record may grant.
const (
	OptionSSL        = "ssl"
	OptionResponsive = "responsive"
	OptionAutoplay   = "autoplay"
	OptionReader     = "reader"
)

// optionsForAll apply to every group.
const optionsForAll = "all"

// Content types used by generated links.
const (
	TypeHTML     = "text/html"
	TypeJS       = "application/javascript"
	TypeSafeHTML = "text/x-safe-html"
	TypeImage    = "image"
	TypeJPEG     = "image/jpeg"
	TypeIcon     = "image/icon"
	TypeFlash    = "application/x-shockwave-flash"
	TypeMP4      = "video/mp4"
)

// Taxonomy is the static vocabulary the policy works against.
type Taxonomy struct {
	// RelGroups lists the slot rels; a link's slot is the first of its rels
	// found here.
	RelGroups []string
	// Whitelistable lists, per source, the groups gated by the whitelist.
	Whitelistable map[string][]string
	// Options lists, per group (or "all"), the options that may be granted.
	Options map[string][]string
	// RelMap maps whitelist vocabulary onto slot rels, e.g. video -> player.
	RelMap map[string]string
	// SlotPriority orders slots, most valuable first.
	SlotPriority []string
	// SourcePriority orders sources, most trusted first.
	SourcePriority []string
	// PrimarySlots are contested: only one link per href may fill them.
	PrimarySlots []string
}

// DefaultTaxonomy returns the built-in vocabulary.
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		RelGroups: []string{
			RelApp, RelPlayer, RelSurvey, RelImage, RelReader, RelThumbnail, RelLogo, RelIcon,
		},
		Whitelistable: map[string][]string{
			SourceIframely: {RelReader, RelApp, RelPlayer, RelSurvey, RelImage, RelThumbnail, RelLogo},
			SourceTwitter:  {"player", "photo"},
			SourceOG:       {"video"},
			SourceOEmbed:   {"link", "rich", "video", "photo"},
			SourceHTMLMeta: {"video"},
		},
		Options: map[string][]string{
			optionsForAll: {OptionSSL},
			"player":      {OptionResponsive, OptionAutoplay},
			"video":       {OptionResponsive, OptionAutoplay},
			"link":        {OptionReader},
			"rich":        {OptionReader},
		},
		RelMap: map[string]string{
			"article": RelReader,
			"photo":   RelImage,
			"video":   RelPlayer,
		},
		SlotPriority: []string{
			RelPlayer, RelSurvey, RelImage, RelReader, RelApp, RelThumbnail, RelLogo, RelIcon,
		},
		SourcePriority: []string{
			SourceIframely, SourceOEmbed, SourceTwitter, SourceOG, SourceHTMLMeta,
		},
		PrimarySlots: []string{
			RelPlayer, RelSurvey, RelImage, RelReader, RelApp,
		},
	}
}

// Slot returns the first of rels that is a rel group, or "".
func (t *Taxonomy) Slot(rels []string) string {
	for _, group := range t.RelGroups {
		for _, rel := range rels {
			if rel == group {
				return group
			}
		}
	}
	return ""
}

// Source returns the first of rels naming a known source, or "html-meta".
func (t *Taxonomy) Source(rels []string) string {
	for _, rel := range rels {
		for _, src := range t.SourcePriority {
			if rel == src && src != SourceHTMLMeta {
				return src
			}
		}
	}
	return SourceHTMLMeta
}

// IsWhitelistable reports whether source.group is gated.
func (t *Taxonomy) IsWhitelistable(source, group string) bool {
	return slices.Contains(t.Whitelistable[source], group)
}

// OptionValid reports whether option may be granted for group or slot.
func (t *Taxonomy) OptionValid(option, group, slot string) bool {
	return slices.Contains(t.Options[optionsForAll], option) ||
		slices.Contains(t.Options[group], option) ||
		slices.Contains(t.Options[slot], option)
}

// IsPrimary reports whether slot is contested.
func (t *Taxonomy) IsPrimary(slot string) bool {
	return slices.Contains(t.PrimarySlots, slot)
}

// group picks the whitelist group for a link: the declared one, else the
// slot itself when gated, else the whitelist term that maps onto the slot.
func (t *Taxonomy) group(source, declared, slot string) string {
	if declared != "" {
		return declared
	}
	if t.IsWhitelistable(source, slot) {
		return slot
	}
	for term, rel := range t.RelMap {
		if rel == slot && t.IsWhitelistable(source, term) {
			return term
		}
	}
	return slot
}

func rank(list []string, v string) int {
	if i := slices.Index(list, v); i >= 0 {
		return i
	}
	return len(list)
}
