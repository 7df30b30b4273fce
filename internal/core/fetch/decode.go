package fetch

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// decodeBody wraps the response body with a decompressor matching its
// Content-Encoding. An empty compressed body decodes to an empty stream.
func decodeBody(resp *http.Response) (io.Reader, bool, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		br := bufio.NewReader(resp.Body)
		if empty(br) {
			return br, true, nil
		}
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, false, fmt.Errorf("gzip body: %w", err)
		}
		return gz, true, nil

	case "deflate":
		br := bufio.NewReader(resp.Body)
		if empty(br) {
			return br, true, nil
		}
		// Servers disagree on whether "deflate" means zlib-wrapped or raw.
		if hdr, err := br.Peek(2); err == nil && isZlibHeader(hdr) {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return nil, false, fmt.Errorf("deflate body: %w", err)
			}
			return zr, true, nil
		}
		return flate.NewReader(br), true, nil

	default:
		return resp.Body, false, nil
	}
}

func empty(br *bufio.Reader) bool {
	_, err := br.Peek(1)
	return errors.Is(err, io.EOF)
}

// isZlibHeader checks the RFC 1950 CMF/FLG pair.
func isZlibHeader(b []byte) bool {
	cmf, flg := b[0], b[1]
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// latin1Reader exposes each byte as the rune with the same code point.
func latin1Reader(r io.Reader) io.Reader {
	return charmap.ISO8859_1.NewDecoder().Reader(r)
}
