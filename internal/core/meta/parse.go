package meta

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"

	"Embedkit/internal/core/normalize"
)

// Parse extracts page metadata from an HTML document. Relative URLs are
// resolved against pageURL. Parsing is best effort and never fails; a
// document that cannot be read yields an empty Meta.
func Parse(document, pageURL string) *Meta {
	m := &Meta{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return m
	}
	base, _ := url.Parse(pageURL)
	resolve := func(ref string) string {
		return resolveURL(base, ref)
	}

	m.Title = strings.TrimSpace(doc.Find("title").First().Text())
	m.Description = metaContent(doc, "description")
	m.Author = metaContent(doc, "author")
	m.Generator = metaContent(doc, "generator")
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		m.Canonical = resolve(href)
	}

	m.OG = parseOpenGraph(document, resolve)
	if m.OG != nil {
		if m.Title == "" {
			m.Title = m.OG.Title
		}
		if m.Description == "" {
			m.Description = m.OG.Description
		}
		m.SiteName = m.OG.SiteName
	}
	m.Twitter = parseTwitter(doc, resolve)

	doc.Find(`link[rel="alternate"]`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		m.Alternates = append(m.Alternates, Alternate{
			Href:  resolve(href),
			Type:  strings.ToLower(s.AttrOr("type", "")),
			Title: s.AttrOr("title", ""),
		})
	})

	doc.Find("link[rel]").Each(func(_ int, s *goquery.Selection) {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		href := s.AttrOr("href", "")
		if href == "" || !strings.Contains(rel, "icon") {
			return
		}
		m.Icons = append(m.Icons, Icon{
			Href:  resolve(href),
			Rel:   rel,
			Type:  s.AttrOr("type", ""),
			Sizes: s.AttrOr("sizes", ""),
		})
	})

	if href, ok := doc.Find(`link[rel="video_src"]`).First().Attr("href"); ok && href != "" {
		m.VideoSrc = resolve(href)
	} else if content := metaContent(doc, "video_src"); content != "" {
		m.VideoSrc = resolve(content)
	}
	m.VideoType = metaContent(doc, "video_type")
	m.VideoWidth = atoi(metaContent(doc, "video_width"))
	m.VideoHeight = atoi(metaContent(doc, "video_height"))

	for _, key := range []string{"article:published_time", "date", "dc.date", "pubdate"} {
		if v := metaContent(doc, key); v != "" {
			if d := normalize.NormalizeDate(v); d != nil {
				m.Date = *d
			}
			break
		}
	}
	if m.Date == "" {
		if v, ok := doc.Find(`[itemprop="datePublished"]`).First().Attr("content"); ok && v != "" {
			if d := normalize.NormalizeDate(v); d != nil {
				m.Date = *d
			}
		}
	}

	return m
}

// DetectCharset looks for <meta charset> or an http-equiv Content-Type
// declaration. It works on the Latin-1 reading of the raw bytes since the
// markup itself is ASCII.
func DetectCharset(document string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return ""
	}
	if v, ok := doc.Find("meta[charset]").First().Attr("charset"); ok && v != "" {
		return normalize.ResolveCharset(v, true)
	}
	var charset string
	doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(s.AttrOr("http-equiv", ""), "content-type") {
			return true
		}
		charset = normalize.ResolveCharset(s.AttrOr("content", ""), false)
		return charset == ""
	})
	return charset
}

func parseOpenGraph(document string, resolve func(string) string) *OpenGraph {
	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(strings.NewReader(document)); err != nil {
		return nil
	}

	out := &OpenGraph{
		Type:        og.Type,
		Title:       og.Title,
		Description: og.Description,
		URL:         og.URL,
		SiteName:    og.SiteName,
	}
	for _, img := range og.Images {
		if img == nil || (img.URL == "" && img.SecureURL == "") {
			continue
		}
		out.Images = append(out.Images, OGMedia{
			URL:       resolve(img.URL),
			SecureURL: resolve(img.SecureURL),
			Type:      img.Type,
			Width:     int(img.Width),
			Height:    int(img.Height),
		})
	}
	for _, v := range og.Videos {
		if v == nil || (v.URL == "" && v.SecureURL == "") {
			continue
		}
		out.Videos = append(out.Videos, OGMedia{
			URL:       resolve(v.URL),
			SecureURL: resolve(v.SecureURL),
			Type:      v.Type,
			Width:     int(v.Width),
			Height:    int(v.Height),
		})
	}

	if out.Type == "" && out.Title == "" && out.Description == "" && out.URL == "" &&
		out.SiteName == "" && len(out.Images) == 0 && len(out.Videos) == 0 {
		return nil
	}
	return out
}

func parseTwitter(doc *goquery.Document, resolve func(string) string) *Twitter {
	values := map[string]string{}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := strings.ToLower(s.AttrOr("name", s.AttrOr("property", "")))
		if !strings.HasPrefix(key, "twitter:") {
			return
		}
		key = strings.TrimPrefix(key, "twitter:")
		if _, seen := values[key]; !seen {
			values[key] = strings.TrimSpace(s.AttrOr("content", s.AttrOr("value", "")))
		}
	})
	if len(values) == 0 {
		return nil
	}

	t := &Twitter{
		Card:        values["card"],
		Site:        values["site"],
		Creator:     values["creator"],
		Generator:   values["generator"],
		Title:       values["title"],
		Description: values["description"],
	}
	if v := firstNonEmpty(values["image"], values["image:src"]); v != "" {
		t.Image = &TwitterImage{
			URL:    resolve(v),
			Width:  atoi(values["image:width"]),
			Height: atoi(values["image:height"]),
		}
	}
	if v := values["player"]; v != "" {
		t.Player = &TwitterPlayer{
			URL:    resolve(v),
			Width:  atoi(values["player:width"]),
			Height: atoi(values["player:height"]),
		}
	}
	if v := values["player:stream"]; v != "" {
		t.Stream = resolve(v)
	}
	return t
}

// metaContent returns the content of the first meta tag whose name or
// property equals key, case-insensitively.
func metaContent(doc *goquery.Document, key string) string {
	var out string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name := s.AttrOr("name", s.AttrOr("property", ""))
		if !strings.EqualFold(name, key) {
			return true
		}
		out = strings.TrimSpace(s.AttrOr("content", ""))
		return out == ""
	})
	return out
}

func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
