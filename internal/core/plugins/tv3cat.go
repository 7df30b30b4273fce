package plugins

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"Embedkit/internal/core/links"
	"Embedkit/internal/core/normalize"
)

// DefaultTV3CatAPI is the tv3.cat video XML API root.
const DefaultTV3CatAPI = "http://www.tv3.cat/pshared/video/"

// TV3Cat builds mp4 players for tv3.cat videos from the item and media XML
// endpoints.
type TV3Cat struct {
	apiBase string
	re      *regexp.Regexp
}

type tv3Item struct {
	Title    string `xml:"title"`
	Duration string `xml:"durada_h"`
	Image    string `xml:"imgsrc"`
	Desc     string `xml:"desc"`
	Date     string `xml:"data"`
}

type tv3Media struct {
	Items []struct {
		Media []string `xml:"media"`
	} `xml:"item"`
}

type tv3Video struct {
	Title    string
	Duration string
	ImageURL string
	Desc     string
	Date     string
	VideoURL string
}

// NewTV3Cat creates the tv3.cat plugin. An empty apiBase uses DefaultTV3CatAPI.
func NewTV3Cat(apiBase string) *TV3Cat {
	if apiBase == "" {
		apiBase = DefaultTV3CatAPI
	}
	return &TV3Cat{
		apiBase: apiBase,
		re:      regexp.MustCompile(`(?i)^https?://www\.tv3\.cat/videos/(\d+)`),
	}
}

// Name returns the tv3.cat plugin name.
func (p *TV3Cat) Name() string { return "tv3.cat" }

// Provides names the data key GetData fills.
func (p *TV3Cat) Provides() string { return "tv3_cat" }

// Match extracts the numeric video id.
func (p *TV3Cat) Match(uri string) []string {
	return p.re.FindStringSubmatch(uri)
}

// GetData loads the item record and the mp4 media record in parallel.
func (p *TV3Cat) GetData(ctx context.Context, req *Request, f Fetcher) (any, error) {
	match := req.Match(p.Name())
	if len(match) < 2 {
		return nil, fmt.Errorf("%w: no video id", ErrDataUnavailable)
	}
	id := url.QueryEscape(match[1])

	var item tv3Item
	var media tv3Media
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return fetchXML(gctx, f, p.apiBase+"FLV_bbd_dadesItem.jsp?idint="+id, &item)
	})
	g.Go(func() error {
		return fetchXML(gctx, f, p.apiBase+"FLV_bbd_media.jsp?ID="+id+"&QUALITY=H&FORMAT=MP4&PROFILE=HTML5", &media)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(media.Items) == 0 || len(media.Items[0].Media) == 0 {
		return nil, fmt.Errorf("%w: tv3.cat video %s has no media", ErrDataUnavailable, match[1])
	}
	return &tv3Video{
		Title:    strings.TrimSpace(item.Title),
		Duration: strings.TrimSpace(item.Duration),
		ImageURL: strings.TrimSpace(item.Image),
		Desc:     strings.TrimSpace(item.Desc),
		Date:     strings.TrimSpace(item.Date),
		VideoURL: strings.TrimSpace(media.Items[0].Media[0]),
	}, nil
}

func (p *TV3Cat) video(req *Request) *tv3Video {
	video, _ := req.Data[p.Provides()].(*tv3Video)
	return video
}

// Links emits the mp4 player and the still image.
func (p *TV3Cat) Links(req *Request) []links.Link {
	video := p.video(req)
	if video == nil {
		return nil
	}

	var out []links.Link
	if video.VideoURL != "" {
		out = append(out, links.Link{
			Href:    video.VideoURL,
			Type:    links.TypeMP4,
			Rel:     []string{links.RelPlayer, links.RelHTML5},
			Source:  links.SourceIframely,
			Trusted: true,
		})
	}
	if video.ImageURL != "" {
		out = append(out, links.Link{
			Href:    video.ImageURL,
			Type:    links.TypeImage,
			Rel:     []string{links.RelThumbnail},
			Source:  links.SourceIframely,
			Trusted: true,
		})
	}
	return out
}

// Meta reports title, description, duration and publication date.
func (p *TV3Cat) Meta(req *Request) map[string]any {
	video := p.video(req)
	if video == nil {
		return nil
	}

	m := map[string]any{
		"site": "TV3",
	}
	if video.Title != "" {
		m["title"] = video.Title
	}
	if video.Desc != "" {
		m["description"] = video.Desc
	}
	if video.Duration != "" {
		if secs, ok := clockSeconds(video.Duration); ok {
			m["duration"] = secs
		} else {
			m["duration"] = video.Duration
		}
	}
	if video.Date != "" {
		if date := normalize.NormalizeDate(video.Date); date != nil {
			m["date"] = *date
		}
	}
	return m
}

// clockSeconds reads "hh:mm:ss", "mm:ss" or a bare number of seconds.
func clockSeconds(s string) (int, bool) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// fetchXML GETs uri and decodes an XML body into v. Non-UTF-8 prologs are
// transcoded.
func fetchXML(ctx context.Context, f Fetcher, uri string, v any) error {
	body, err := fetchBody(ctx, f, uri, "application/xml, text/xml")
	if err != nil {
		return err
	}
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDataUnavailable, uri, err)
	}
	return nil
}
