package plugins

import (
	"strconv"
	"strings"

	"Embedkit/internal/core/links"
	"Embedkit/internal/core/meta"
)

// Builtin returns every built-in plugin.
func Builtin() []Plugin {
	return []Plugin{
		NewAboutMe(),
		NewMixbit(""),
		NewTV3Cat(""),
		oembedVideo{},
		oembedPhoto{},
		oembedRich{},
		oembedThumbnail{},
		oembedMeta{},
		twitterPlayer{},
		twitterPhoto{},
		ogVideo{},
		ogImage{},
		htmlMetaVideo{},
		favicon{},
		htmlMeta{},
	}
}

// oembedVideo turns a video oEmbed into a player. A single iframe becomes an
// href; any other markup is kept as html.
type oembedVideo struct{}

func (oembedVideo) Name() string { return "oembed-video" }

func (oembedVideo) Links(req *Request) []links.Link {
	o := req.OEmbed
	if o == nil || o.Type != "video" {
		return nil
	}
	player := links.Link{
		Type:   links.TypeHTML,
		Rel:    []string{links.SourceOEmbed, links.RelPlayer},
		Source: links.SourceOEmbed,
		Group:  "video",
		Width:  o.Width.Int(),
		Height: o.Height.Int(),
	}
	if src := meta.IframeSrc(o.Markup()); src != "" {
		player.Href = src
		// A rich ssl grant also covers video players.
		if req.Record != nil && req.Record.IsAllowed("oembed.rich", "ssl") {
			player.Href = links.ProtocolRelative(src)
		}
	} else {
		player.HTML = o.Markup()
	}
	return []links.Link{player}
}

type oembedPhoto struct{}

func (oembedPhoto) Name() string { return "oembed-photo" }

func (oembedPhoto) Links(req *Request) []links.Link {
	o := req.OEmbed
	if o == nil || o.Type != "photo" || o.URL == "" {
		return nil
	}
	return []links.Link{{
		Href:   o.URL,
		Type:   links.TypeImage,
		Rel:    []string{links.SourceOEmbed, links.RelImage},
		Source: links.SourceOEmbed,
		Group:  "photo",
		Width:  o.Width.Int(),
		Height: o.Height.Int(),
	}}
}

type oembedRich struct{}

func (oembedRich) Name() string { return "oembed-rich" }

func (oembedRich) Links(req *Request) []links.Link {
	o := req.OEmbed
	if o == nil || o.Type != "rich" || o.Markup() == "" {
		return nil
	}
	rich := links.Link{
		Type:   links.TypeHTML,
		Rel:    []string{links.SourceOEmbed, links.RelReader, links.RelInline},
		Source: links.SourceOEmbed,
		Group:  "rich",
		Width:  o.Width.Int(),
		Height: o.Height.Int(),
	}
	if src := meta.IframeSrc(o.Markup()); src != "" {
		rich.Href = src
	} else {
		rich.HTML = o.Markup()
	}
	return []links.Link{rich}
}

type oembedThumbnail struct{}

func (oembedThumbnail) Name() string { return "oembed-thumbnail" }

func (oembedThumbnail) Links(req *Request) []links.Link {
	o := req.OEmbed
	if o == nil || o.ThumbnailURL == "" {
		return nil
	}
	return []links.Link{{
		Href:   o.ThumbnailURL,
		Type:   links.TypeImage,
		Rel:    []string{links.SourceOEmbed, links.RelThumbnail},
		Source: links.SourceOEmbed,
		Width:  o.ThumbnailWidth.Int(),
		Height: o.ThumbnailHeight.Int(),
	}}
}

type oembedMeta struct{}

func (oembedMeta) Name() string { return "oembed-meta" }

func (oembedMeta) Meta(req *Request) map[string]any {
	o := req.OEmbed
	if o == nil {
		return nil
	}
	m := map[string]any{
		"title":       o.Title,
		"description": o.Description,
		"author":      o.AuthorName,
		"author_url":  o.AuthorURL,
		"site":        o.ProviderName,
	}
	if o.Type == "video" || o.Type == "audio" {
		m["media"] = "player"
	}
	return m
}

type twitterPlayer struct{}

func (twitterPlayer) Name() string { return "twitter-player" }

func (twitterPlayer) Links(req *Request) []links.Link {
	if req.Meta == nil || req.Meta.Twitter == nil {
		return nil
	}
	tw := req.Meta.Twitter
	var out []links.Link
	if tw.Player != nil && tw.Player.URL != "" {
		out = append(out, links.Link{
			Href:   tw.Player.URL,
			Type:   links.TypeHTML,
			Rel:    []string{links.RelPlayer, links.SourceTwitter},
			Source: links.SourceTwitter,
			Group:  "player",
			Width:  tw.Player.Width,
			Height: tw.Player.Height,
		})
	}
	if tw.Stream != "" {
		stream := links.Link{
			Href:   tw.Stream,
			Type:   links.TypeMP4,
			Rel:    []string{links.RelPlayer, links.SourceTwitter, links.RelHTML5},
			Source: links.SourceTwitter,
			Group:  "player",
		}
		if tw.Player != nil {
			stream.Width, stream.Height = tw.Player.Width, tw.Player.Height
		}
		out = append(out, stream)
	}
	return out
}

// twitterPhoto exposes the card image as a photo for photo cards and as a
// thumbnail otherwise.
type twitterPhoto struct{}

func (twitterPhoto) Name() string { return "twitter-photo" }

func (twitterPhoto) Links(req *Request) []links.Link {
	if req.Meta == nil || req.Meta.Twitter == nil || req.Meta.Twitter.Image == nil {
		return nil
	}
	tw := req.Meta.Twitter
	l := links.Link{
		Href:   tw.Image.URL,
		Type:   links.TypeImage,
		Source: links.SourceTwitter,
		Width:  tw.Image.Width,
		Height: tw.Image.Height,
	}
	if tw.Card == "photo" {
		l.Rel = []string{links.RelImage, links.SourceTwitter}
		l.Group = "photo"
	} else {
		l.Rel = []string{links.RelThumbnail, links.SourceTwitter}
	}
	return []links.Link{l}
}

// ogVideo emits a player per og:video, plus one for its secure_url when the
// page declares one and the record grants og.video ssl (or there is no
// record).
type ogVideo struct{}

func (ogVideo) Name() string { return "og-video" }

func (ogVideo) Links(req *Request) []links.Link {
	if req.Meta == nil || req.Meta.OG == nil {
		return nil
	}
	secure := req.Record == nil || req.Record.IsAllowed("og.video", "ssl")

	var out []links.Link
	for _, v := range req.Meta.OG.Videos {
		typ := v.Type
		if typ == "" {
			typ = links.TypeHTML
		}
		hrefs := []string{v.URL}
		if secure {
			hrefs = append(hrefs, v.SecureURL)
		}
		for _, href := range hrefs {
			if href == "" {
				continue
			}
			out = append(out, links.Link{
				Href:   href,
				Type:   typ,
				Rel:    []string{links.RelPlayer, links.SourceOG},
				Source: links.SourceOG,
				Group:  "video",
				Width:  v.Width,
				Height: v.Height,
			})
		}
	}
	return out
}

type ogImage struct{}

func (ogImage) Name() string { return "og-image" }

func (ogImage) Links(req *Request) []links.Link {
	if req.Meta == nil || req.Meta.OG == nil {
		return nil
	}
	var out []links.Link
	for _, img := range req.Meta.OG.Images {
		href := img.URL
		if href == "" {
			href = img.SecureURL
		}
		out = append(out, links.Link{
			Href:   href,
			Type:   links.TypeImage,
			Rel:    []string{links.RelThumbnail, links.SourceOG},
			Source: links.SourceOG,
			Width:  img.Width,
			Height: img.Height,
		})
	}
	return out
}

// htmlMetaVideo exposes a legacy <link rel="video_src"> player.
type htmlMetaVideo struct{}

func (htmlMetaVideo) Name() string { return "html-meta-video" }

func (htmlMetaVideo) Links(req *Request) []links.Link {
	if req.Meta == nil || req.Meta.VideoSrc == "" {
		return nil
	}
	typ := req.Meta.VideoType
	if typ == "" {
		typ = links.TypeFlash
	}
	return []links.Link{{
		Href:   req.Meta.VideoSrc,
		Type:   typ,
		Rel:    []string{links.RelPlayer},
		Source: links.SourceHTMLMeta,
		Group:  "video",
		Width:  req.Meta.VideoWidth,
		Height: req.Meta.VideoHeight,
	}}
}

type favicon struct{}

func (favicon) Name() string { return "favicon" }

func (favicon) Links(req *Request) []links.Link {
	if req.Meta == nil {
		return nil
	}
	var out []links.Link
	for _, icon := range req.Meta.Icons {
		typ := icon.Type
		if typ == "" {
			typ = links.TypeIcon
		}
		l := links.Link{
			Href: icon.Href,
			Type: typ,
			Rel:  []string{links.RelIcon},
		}
		if w, h, ok := parseSizes(icon.Sizes); ok {
			l.Width, l.Height = w, h
		}
		out = append(out, l)
	}
	return out
}

// parseSizes reads a "WxH" sizes attribute.
func parseSizes(sizes string) (int, int, bool) {
	fields := strings.Fields(strings.ToLower(sizes))
	if len(fields) == 0 {
		return 0, 0, false
	}
	w, h, ok := strings.Cut(fields[0], "x")
	if !ok {
		return 0, 0, false
	}
	width, werr := strconv.Atoi(w)
	height, herr := strconv.Atoi(h)
	if werr != nil || herr != nil || width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

// htmlMeta maps page metadata onto meta fields.
type htmlMeta struct{}

func (htmlMeta) Name() string { return "html-meta" }

func (htmlMeta) Meta(req *Request) map[string]any {
	m := req.Meta
	if m == nil {
		return nil
	}
	out := map[string]any{
		"title":       m.Title,
		"description": m.Description,
		"author":      m.Author,
		"canonical":   m.Canonical,
		"site":        m.SiteName,
		"date":        m.Date,
	}
	if m.Twitter != nil {
		if out["site"] == "" {
			out["site"] = m.Twitter.Site
		}
		if m.Twitter.Player != nil {
			out["media"] = "player"
		}
	}
	if m.OG != nil && len(m.OG.Videos) > 0 {
		out["media"] = "player"
	}
	return out
}
