package links

import (
	"testing"

	"Embedkit/internal/core/whitelist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grantSet grants "capability" and "capability/option" entries.
type grantSet map[string]bool

func (g grantSet) IsAllowed(capability, option string) bool {
	if !g[capability] {
		return false
	}
	return option == "" || g[capability+"/"+option]
}

func hrefs(links []Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.Href
	}
	return out
}

func oembedPlayer(href string) Link {
	return Link{Href: href, Type: TypeHTML, Rel: []string{RelPlayer, SourceOEmbed}, Group: "video", Width: 640, Height: 360}
}

func ogPlayer(href string) Link {
	return Link{Href: href, Type: TypeHTML, Rel: []string{RelPlayer, SourceOG}, Width: 640, Height: 360}
}

func TestApply_OEmbedBeforeOG(t *testing.T) {
	grants := grantSet{"oembed.video": true, "og.video": true}

	// Declared og first; source priority must still put oembed ahead.
	out := NewPolicy(nil).Apply(grants, []Link{
		ogPlayer("https://og.example/player"),
		oembedPlayer("https://oembed.example/player"),
	})

	assert.Equal(t, []string{"https://oembed.example/player", "https://og.example/player"}, hrefs(out))
}

func TestApply_DisallowedSourceIsDropped(t *testing.T) {
	grants := grantSet{"og.video": true}

	out := NewPolicy(nil).Apply(grants, []Link{
		oembedPlayer("https://oembed.example/player"),
		ogPlayer("https://og.example/player"),
	})

	assert.Equal(t, []string{"https://og.example/player"}, hrefs(out))
}

func TestApply_SlotAliasAllows(t *testing.T) {
	// oembed.player is accepted for an oEmbed video player.
	grants := grantSet{"oembed.player": true}
	out := NewPolicy(nil).Apply(grants, []Link{oembedPlayer("https://oembed.example/player")})
	assert.Len(t, out, 1)
}

func TestApply_NilGrantsDropsGatedOnly(t *testing.T) {
	out := NewPolicy(nil).Apply(nil, []Link{
		ogPlayer("https://og.example/player"),
		{Href: "https://img.example/thumb.jpg", Type: TypeImage, Rel: []string{RelThumbnail, SourceOG}},
		{Href: "https://site.example/favicon.ico", Type: TypeIcon, Rel: []string{RelIcon}},
	})
	assert.Equal(t, []string{"https://img.example/thumb.jpg", "https://site.example/favicon.ico"}, hrefs(out))
}

func TestApply_TrustedSkipsGating(t *testing.T) {
	out := NewPolicy(nil).Apply(grantSet{}, []Link{
		{Href: "https://about.me/embed", Type: TypeHTML, Rel: []string{RelApp, SourceIframely}, Trusted: true},
		{Href: "https://other.example/app", Type: TypeHTML, Rel: []string{RelApp, SourceIframely}},
	})
	assert.Equal(t, []string{"https://about.me/embed"}, hrefs(out))
}

func TestApply_SSL(t *testing.T) {
	grants := grantSet{"oembed.video": true, "oembed.video/ssl": true, "og.video": true}

	out := NewPolicy(nil).Apply(grants, []Link{
		oembedPlayer("HTTPS://oembed.example/player"),
		ogPlayer("http://og.example/player"),
	})

	require.Len(t, out, 2)
	assert.Equal(t, "//oembed.example/player", out[0].Href)
	// Not granted for og.video.
	assert.Equal(t, "http://og.example/player", out[1].Href)
}

func TestApply_ResponsiveAndAutoplay(t *testing.T) {
	grants := grantSet{
		"oembed.video":            true,
		"oembed.video/responsive": true,
		"oembed.video/autoplay":   true,
	}

	raw := []Link{oembedPlayer("https://oembed.example/player")}
	out := NewPolicy(nil).Apply(grants, raw)

	require.Len(t, out, 1)
	assert.InDelta(t, 640.0/360.0, out[0].AspectRatio, 1e-9)
	assert.Zero(t, out[0].Width)
	assert.Zero(t, out[0].Height)
	assert.Equal(t, []string{RelPlayer, SourceOEmbed, RelAutoplay}, out[0].Rel)

	// Inputs are untouched.
	assert.Equal(t, 640, raw[0].Width)
	assert.Equal(t, []string{RelPlayer, SourceOEmbed}, raw[0].Rel)

	// Autoplay is appended once.
	again := NewPolicy(nil).Apply(grants, out)
	assert.Equal(t, []string{RelPlayer, SourceOEmbed, RelAutoplay}, again[0].Rel)
}

func TestApply_OptionMustBeValidForGroup(t *testing.T) {
	// autoplay is not an option of oembed.rich even when granted.
	grants := grantSet{"oembed.rich": true, "oembed.rich/autoplay": true}
	out := NewPolicy(nil).Apply(grants, []Link{
		{Href: "https://rich.example/embed", Type: TypeHTML, Rel: []string{RelReader, SourceOEmbed}, Group: "rich"},
	})
	require.Len(t, out, 1)
	assert.False(t, out[0].HasRel(RelAutoplay))
}

func TestApply_SlotPriorityOrdering(t *testing.T) {
	out := NewPolicy(nil).Apply(nil, []Link{
		{Href: "https://x/icon.png", Rel: []string{RelIcon}},
		{Href: "https://x/thumb.jpg", Rel: []string{RelThumbnail, SourceOG}},
		{Href: "https://x/logo.png", Rel: []string{RelLogo}},
		{Href: "https://x/app", Rel: []string{RelApp, SourceIframely}, Trusted: true},
		{Href: "https://x/player", Rel: []string{RelPlayer, SourceIframely}, Trusted: true},
	})
	assert.Equal(t, []string{
		"https://x/player",
		"https://x/app",
		"https://x/thumb.jpg",
		"https://x/logo.png",
		"https://x/icon.png",
	}, hrefs(out))
}

func TestApply_Dedup(t *testing.T) {
	grants := grantSet{"oembed.video": true, "og.video": true}

	out := NewPolicy(nil).Apply(grants, []Link{
		ogPlayer("https://same.example/player"),
		oembedPlayer("https://same.example/player"),
		{Href: "https://same.example/player", Rel: []string{RelThumbnail, SourceOG}},
		{HTML: "<div>inline</div>", Rel: []string{RelApp, SourceIframely}, Trusted: true},
		{HTML: "<div>inline</div>", Rel: []string{RelApp, SourceIframely}, Trusted: true},
		{Href: "https://x/thumb.jpg", Rel: []string{RelThumbnail}},
		{Href: "https://x/thumb.jpg", Rel: []string{RelThumbnail}},
	})

	require.Len(t, out, 5)
	// The oembed copy wins the player slot.
	assert.Equal(t, SourceOEmbed, out[0].Rel[1])
	assert.Equal(t, "<div>inline</div>", out[1].HTML)
	// Auxiliary slots are retained.
	assert.Equal(t, []string{"https://same.example/player", "https://x/thumb.jpg", "https://x/thumb.jpg"}, hrefs(out[2:]))
}

func TestApply_StableAcrossRuns(t *testing.T) {
	grants := grantSet{"oembed.video": true, "og.video": true}
	raw := []Link{
		ogPlayer("https://a"),
		ogPlayer("https://b"),
		oembedPlayer("https://c"),
		ogPlayer("https://d"),
	}
	first := NewPolicy(nil).Apply(grants, raw)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, NewPolicy(nil).Apply(grants, raw))
	}
	assert.Equal(t, []string{"https://c", "https://a", "https://b", "https://d"}, hrefs(first))
}

func TestApply_SkipsEmptyLinks(t *testing.T) {
	out := NewPolicy(nil).Apply(nil, []Link{{Rel: []string{RelIcon}}})
	assert.Empty(t, out)
}

func TestApply_WithWhitelistRecord(t *testing.T) {
	store := whitelist.NewStore()
	require.NoError(t, store.Load([]byte(`{"domains": {"video.example": {
		"oembed": {"video": ["allow", "ssl"]},
		"og": {"video": ["deny"]}
	}}}`)))
	record := store.Find("https://video.example/v/1")

	out := NewPolicy(nil).Apply(record, []Link{
		ogPlayer("https://video.example/og"),
		oembedPlayer("https://video.example/oembed"),
	})
	assert.Equal(t, []string{"//video.example/oembed"}, hrefs(out))
}

func TestTaxonomy(t *testing.T) {
	tax := DefaultTaxonomy()

	assert.Equal(t, RelPlayer, tax.Slot([]string{SourceOG, RelPlayer, RelThumbnail}))
	assert.Equal(t, RelApp, tax.Slot([]string{RelPlayer, RelApp}))
	assert.Empty(t, tax.Slot([]string{"nothing"}))

	assert.Equal(t, SourceOEmbed, tax.Source([]string{RelPlayer, SourceOEmbed}))
	assert.Equal(t, SourceHTMLMeta, tax.Source([]string{RelPlayer}))

	assert.Equal(t, "video", tax.group(SourceOG, "", RelPlayer))
	assert.Equal(t, "photo", tax.group(SourceTwitter, "", RelImage))
	assert.Equal(t, RelReader, tax.group(SourceIframely, "", RelReader))
	assert.Equal(t, "rich", tax.group(SourceOEmbed, "rich", RelReader))

	assert.True(t, tax.OptionValid(OptionSSL, "photo", RelImage))
	assert.True(t, tax.OptionValid(OptionAutoplay, "video", RelPlayer))
	assert.False(t, tax.OptionValid(OptionAutoplay, "rich", RelReader))
}
