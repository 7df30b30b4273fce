package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"Embedkit/internal/core/fetch"
	"Embedkit/internal/core/links"
	"Embedkit/internal/core/meta"
)

const maxDataBytes = 1024 * 1024

// AboutMe embeds about.me profiles through their inline script.
type AboutMe struct {
	re *regexp.Regexp
}

// NewAboutMe creates the about.me plugin
func NewAboutMe() *AboutMe {
	return &AboutMe{re: regexp.MustCompile(`(?i)^https?://about\.me/([a-zA-Z0-9\-]+)`)}
}

// Name returns the about.me plugin name.
func (p *AboutMe) Name() string { return "about.me" }

// Match extracts the profile name from an about.me URI.
func (p *AboutMe) Match(uri string) []string {
	return p.re.FindStringSubmatch(uri)
}

// Links emits the inline profile script.
func (p *AboutMe) Links(req *Request) []links.Link {
	match := req.Match(p.Name())
	if len(match) < 2 {
		return nil
	}
	return []links.Link{{
		Type:    links.TypeHTML,
		Rel:     []string{links.RelApp, links.RelInline},
		HTML:    fmt.Sprintf(`<script type="text/javascript" src="//about.me/embed/%s"></script>`, match[1]),
		Source:  links.SourceIframely,
		Trusted: true,
	}}
}

// DefaultMixbitAPI is the MixBit project API root.
const DefaultMixbitAPI = "https://api.mixbit.com/api/v1/msee/project/"

// Mixbit builds players for MixBit videos from the project API.
type Mixbit struct {
	apiBase string
	res     []*regexp.Regexp
}

type mixbitProject struct {
	ProjectID       string   `json:"project_id"`
	Title           string   `json:"title"`
	ThumbnailURL    string   `json:"thumbnail_url"`
	ThumbnailWidth  meta.Dim `json:"thumbnail_width"`
	ThumbnailHeight meta.Dim `json:"thumbnail_height"`
	VideoWidth      meta.Dim `json:"video_width"`
	VideoHeight     meta.Dim `json:"video_height"`
}

type mixbitResponse struct {
	Status string         `json:"status"`
	Pkg    *mixbitProject `json:"pkg"`
}

// NewMixbit creates the MixBit plugin. An empty apiBase uses DefaultMixbitAPI.
func NewMixbit(apiBase string) *Mixbit {
	if apiBase == "" {
		apiBase = DefaultMixbitAPI
	}
	return &Mixbit{
		apiBase: apiBase,
		res: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^https?://mixbit\.com/v/(\w+)(?:/.+)?`),
			regexp.MustCompile(`(?i)^https?://mixbit\.com/s/(_\w+)(?:/.+)?`),
		},
	}
}

// Name returns the MixBit plugin name.
func (p *Mixbit) Name() string { return "mixbit.com" }

// Provides names the data key GetData fills.
func (p *Mixbit) Provides() string { return "mixbit" }

// Match extracts the project id from video and share URIs.
func (p *Mixbit) Match(uri string) []string {
	for _, re := range p.res {
		if m := re.FindStringSubmatch(uri); m != nil {
			return m
		}
	}
	return nil
}

// GetData loads the project record for the matched id.
func (p *Mixbit) GetData(ctx context.Context, req *Request, f Fetcher) (any, error) {
	match := req.Match(p.Name())
	if len(match) < 2 {
		return nil, fmt.Errorf("%w: no project id", ErrDataUnavailable)
	}

	var resp mixbitResponse
	if err := fetchJSON(ctx, f, p.apiBase+match[1], &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" || resp.Pkg == nil {
		return nil, fmt.Errorf("%w: mixbit status %q", ErrDataUnavailable, resp.Status)
	}
	return resp.Pkg, nil
}

func (p *Mixbit) project(req *Request) *mixbitProject {
	project, _ := req.Data[p.Provides()].(*mixbitProject)
	return project
}

// Links emits the favicon, thumbnail and embed player of the project.
func (p *Mixbit) Links(req *Request) []links.Link {
	project := p.project(req)
	if project == nil {
		return nil
	}

	out := []links.Link{{
		Href:    "https://mixbit.com/favicon.ico",
		Type:    links.TypeIcon,
		Rel:     []string{links.RelIcon},
		Source:  links.SourceIframely,
		Trusted: true,
	}}
	if project.ThumbnailURL != "" {
		out = append(out, links.Link{
			Href:    project.ThumbnailURL,
			Type:    links.TypeJPEG,
			Rel:     []string{links.RelThumbnail},
			Width:   project.ThumbnailWidth.Int(),
			Height:  project.ThumbnailHeight.Int(),
			Source:  links.SourceIframely,
			Trusted: true,
		})
	}
	if project.ProjectID != "" {
		player := links.Link{
			Href:    "https://mixbit.com/embed/" + project.ProjectID,
			Type:    links.TypeHTML,
			Rel:     []string{links.RelPlayer, links.RelHTML5},
			Source:  links.SourceIframely,
			Trusted: true,
		}
		if h := project.VideoHeight.Int(); h > 0 {
			player.AspectRatio = float64(project.VideoWidth.Int()) / float64(h)
		}
		out = append(out, player)
	}
	return out
}

// Meta reports the project title.
func (p *Mixbit) Meta(req *Request) map[string]any {
	project := p.project(req)
	if project == nil {
		return nil
	}
	return map[string]any{
		"title": project.Title,
		"site":  "MixBit",
	}
}

// fetchJSON GETs uri and decodes a JSON body into v.
func fetchJSON(ctx context.Context, f Fetcher, uri string, v any) error {
	body, err := fetchBody(ctx, f, uri, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDataUnavailable, uri, err)
	}
	return nil
}

func fetchBody(ctx context.Context, f Fetcher, uri, accept string) ([]byte, error) {
	req := f.Fetch(ctx, uri, fetch.Options{
		AsBuffer: true,
		Header:   http.Header{"Accept": []string{accept}},
	})
	resp, err := req.Wait(ctx)
	if err != nil {
		req.Abort()
		return nil, fmt.Errorf("failed to fetch %s: %w", uri, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned status %d", ErrDataUnavailable, uri, resp.StatusCode)
	}
	return resp.ReadAll(maxDataBytes)
}
