// Package normalize holds pure helpers that turn raw header and page values
// into canonical text encodings and timestamps. None of them fail: when a
// value cannot be normalized the input is handed back unchanged.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

var charsetRe = regexp.MustCompile(`(?i)charset\s*=\s*([\w_-]+)`)

// ResolveCharset extracts the charset token from a Content-Type style value
// such as "text/html; Charset=windows-1251". When bare is true the whole value
// is already a charset name. The result is upper-cased, or empty when no
// charset is present.
func ResolveCharset(value string, bare bool) string {
	if bare {
		return strings.ToUpper(strings.TrimSpace(value))
	}
	if value == "" {
		return ""
	}
	m := charsetRe.FindStringSubmatch(value)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// Reencode reinterprets text as the given charset. text is expected to be the
// Latin-1 reading of the original bytes (the form the fetch engine produces in
// text mode), so every rune maps back to exactly one byte. An empty charset
// means UTF-8. If either step fails the original text is returned.
func Reencode(charset, text string) string {
	raw, err := charmap.ISO8859_1.NewEncoder().String(text)
	if err != nil {
		return text
	}

	enc, err := lookupEncoding(charset)
	if err != nil {
		return text
	}

	decoded, err := enc.NewDecoder().String(raw)
	if err != nil {
		return text
	}
	return decoded
}

func lookupEncoding(charset string) (encoding.Encoding, error) {
	if charset == "" {
		return unicode.UTF8, nil
	}
	return htmlindex.Get(charset)
}
