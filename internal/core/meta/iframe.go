package meta

import (
	"strings"

	"golang.org/x/net/html"
)

// IframeSrc returns the src of the only <iframe> in an HTML fragment. It
// returns "" when the fragment has no iframe or more than one.
func IframeSrc(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))

	var src string
	count := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if count == 1 {
				return src
			}
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "iframe" {
				continue
			}
			count++
			if count > 1 {
				return ""
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "src" {
					src = string(val)
				}
			}
		}
	}
}
