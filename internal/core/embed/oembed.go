package embed

import (
	"fmt"
	"html"
	"strings"

	"Embedkit/internal/core/links"
)

// OEmbedView is the oEmbed-shaped rendering of an extraction result.
type OEmbedView struct {
	Type            string `json:"type"`
	Version         string `json:"version"`
	Title           string `json:"title,omitempty"`
	AuthorName      string `json:"author_name,omitempty"`
	AuthorURL       string `json:"author_url,omitempty"`
	ProviderName    string `json:"provider_name,omitempty"`
	URL             string `json:"url,omitempty"`
	HTML            string `json:"html,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	ThumbnailWidth  int    `json:"thumbnail_width,omitempty"`
	ThumbnailHeight int    `json:"thumbnail_height,omitempty"`
}

// ToOEmbed renders r as an oEmbed document from its best link. Links are
// already ordered, so the first player, image or rich link wins. Pages with
// none of those become "link" documents.
func ToOEmbed(r *Result) *OEmbedView {
	v := &OEmbedView{
		Type:         "link",
		Version:      "1.0",
		Title:        metaString(r.Meta, "title"),
		AuthorName:   metaString(r.Meta, "author"),
		AuthorURL:    metaString(r.Meta, "author_url"),
		ProviderName: metaString(r.Meta, "site"),
	}

	for _, l := range r.Links {
		if l.HasRel(links.RelThumbnail) && l.Href != "" {
			v.ThumbnailURL = l.Href
			v.ThumbnailWidth, v.ThumbnailHeight = l.Width, l.Height
			break
		}
	}

	for _, l := range r.Links {
		switch {
		case l.HasRel(links.RelPlayer):
			v.Type = "video"
			v.HTML = markup(l)
		case l.HasRel(links.RelImage):
			v.Type = "photo"
			v.URL = l.Href
		case l.HasRel(links.RelReader), l.HasRel(links.RelApp), l.HasRel(links.RelSurvey):
			v.Type = "rich"
			v.HTML = markup(l)
		default:
			continue
		}
		v.Width, v.Height = l.Width, l.Height
		break
	}
	return v
}

// markup renders a link as embeddable HTML.
func markup(l links.Link) string {
	if l.HTML != "" {
		return l.HTML
	}
	src := html.EscapeString(l.Href)
	size := ""
	if l.HasSize() {
		size = fmt.Sprintf(` width="%d" height="%d"`, l.Width, l.Height)
	}
	if strings.HasPrefix(l.Type, "video/") {
		return fmt.Sprintf(`<video src="%s"%s controls></video>`, src, size)
	}
	return fmt.Sprintf(`<iframe src="%s"%s frameborder="0" allowfullscreen></iframe>`, src, size)
}

func metaString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
