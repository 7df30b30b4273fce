// Package telemetry reports pages that look embeddable but have no explicit
// whitelist entry, so operators can decide whether to whitelist them.
package telemetry

import (
	"strings"

	"Embedkit/internal/core/meta"
	"Embedkit/internal/core/whitelist"
)

// Signal names.
const (
	SignalTwitterPhoto  = "twitter_photo"
	SignalTwitterPlayer = "twitter_player"
	SignalTwitterStream = "twitter_stream"
	SignalOGVideo       = "og_video"
	SignalVideoSrc      = "video_src"
	oembedSignalPrefix  = "oembed_"
)

// Signals holds the embeddability hints found on a page. Only true signals
// are present.
type Signals map[string]bool

// Derive computes the signals for a page. It returns nil for domains with an
// explicit whitelist record and when no signal is true.
func Derive(m *meta.Meta, o *meta.OEmbed, record *whitelist.Record) Signals {
	if record != nil && !record.IsDefault {
		return nil
	}

	s := Signals{}
	if m != nil {
		tw := m.Twitter
		og := m.OG

		isJetpack := tw != nil && tw.Card == "jetpack"
		isWordpress := tw != nil && tw.Generator == "wordpress"

		if tw != nil && tw.Card == "photo" &&
			og != nil && og.Type != "article" &&
			!isJetpack && !isWordpress &&
			tw.Site != "tumblr" &&
			(tw.Image != nil || len(og.Images) > 0) {
			s[SignalTwitterPhoto] = true
		}
		if tw != nil && tw.Player != nil {
			s[SignalTwitterPlayer] = true
		}
		if tw != nil && tw.Stream != "" {
			s[SignalTwitterStream] = true
		}
		if og != nil && len(og.Videos) > 0 && !isYoutube(og) {
			s[SignalOGVideo] = true
		}
		if m.VideoSrc != "" {
			s[SignalVideoSrc] = true
		}
	}

	if o != nil && o.Type != "" && o.Type != "link" {
		s[oembedSignalPrefix+o.Type] = true
	}

	if len(s) == 0 {
		return nil
	}
	return s
}

func isYoutube(og *meta.OpenGraph) bool {
	for _, v := range og.Videos {
		if strings.Contains(v.URL, "youtube") || strings.Contains(v.SecureURL, "youtube") {
			return true
		}
	}
	return false
}
