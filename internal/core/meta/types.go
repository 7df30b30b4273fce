package meta

// Meta is the metadata extracted from a page.
type Meta struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Canonical   string `json:"canonical,omitempty"`
	SiteName    string `json:"site,omitempty"`
	Generator   string `json:"generator,omitempty"`
	// Date is the publication date normalized to ISO-8601 when parseable.
	Date string `json:"date,omitempty"`

	OG      *OpenGraph `json:"og,omitempty"`
	Twitter *Twitter   `json:"twitter,omitempty"`

	Alternates []Alternate `json:"alternate,omitempty"`
	Icons      []Icon      `json:"icons,omitempty"`

	// VideoSrc is the legacy <link rel="video_src"> player.
	VideoSrc    string `json:"video_src,omitempty"`
	VideoType   string `json:"video_type,omitempty"`
	VideoWidth  int    `json:"video_width,omitempty"`
	VideoHeight int    `json:"video_height,omitempty"`
}

// OpenGraph holds og:* properties.
type OpenGraph struct {
	Type        string    `json:"type,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	SiteName    string    `json:"site_name,omitempty"`
	Images      []OGMedia `json:"images,omitempty"`
	Videos      []OGMedia `json:"videos,omitempty"`
}

// OGMedia is an og:image or og:video with its structured properties.
type OGMedia struct {
	URL       string `json:"url,omitempty"`
	SecureURL string `json:"secure_url,omitempty"`
	Type      string `json:"type,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Twitter holds twitter:* card properties.
type Twitter struct {
	Card        string         `json:"card,omitempty"`
	Site        string         `json:"site,omitempty"`
	Creator     string         `json:"creator,omitempty"`
	Generator   string         `json:"generator,omitempty"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Image       *TwitterImage  `json:"image,omitempty"`
	Player      *TwitterPlayer `json:"player,omitempty"`
	// Stream is the twitter:player:stream media URL.
	Stream string `json:"stream,omitempty"`
}

// TwitterImage is twitter:image with optional dimensions.
type TwitterImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// TwitterPlayer is twitter:player with optional dimensions.
type TwitterPlayer struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Alternate is a <link rel="alternate">.
type Alternate struct {
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Icon is a <link rel="icon">-style link.
type Icon struct {
	Href  string `json:"href"`
	Rel   string `json:"rel,omitempty"`
	Type  string `json:"type,omitempty"`
	Sizes string `json:"sizes,omitempty"`
}

// Page is a fetched document re-encoded to UTF-8.
type Page struct {
	URI         string `json:"uri"`
	FinalURL    string `json:"finalUrl"`
	StatusCode  int    `json:"statusCode"`
	ContentType string `json:"contentType"`
	Charset     string `json:"charset,omitempty"`
	Body        string `json:"body"`
}

// IsHTML reports whether the page is an HTML document.
func (p *Page) IsHTML() bool {
	return p != nil && (p.ContentType == "" || containsAny(p.ContentType, "text/html", "application/xhtml"))
}
