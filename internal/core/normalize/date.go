package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// CanonicalLayout is the ISO-8601 form every normalized date is rendered in.
const CanonicalLayout = "2006-01-02T15:04:05.000Z07:00"

// Epochs outside years 0000 through 9999 have no canonical form.
const (
	minEpochMillis = -62167219200000
	maxEpochMillis = 253402300799999
)

// Now reports the reference instant for the seconds-vs-milliseconds check.
// It is a variable so tests can pin it.
var Now = time.Now

// dateParser tries the jinzhu/now defaults first, then layouts seen in page
// meta that it does not ship with.
var dateParser = &now.Config{
	TimeLocation: time.UTC,
	TimeFormats: append(append([]string{}, now.TimeFormats...),
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02",
		"Mon, 2 January 2006 15:04:05",
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2 January 2006",
		"January 2, 2006",
		"Jan 2, 2006",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05-0700",
	),
}

// NormalizeDate converts a date-ish value into CanonicalLayout in UTC.
//
// Numeric values are epochs. If now/value > 100 the value is taken to be in
// seconds and scaled to milliseconds. Zero means "no date" and yields nil.
// Anything else is parsed as free text anchored at UTC. When nothing
// validates, the original value is returned as a string, so callers must
// treat the result as best effort.
func NormalizeDate(value any) *string {
	if value == nil {
		return nil
	}

	if ms, ok := epochMillis(value); ok {
		if ms == 0 {
			return nil
		}
		if float64(Now().UnixMilli())/ms > 100 {
			ms *= 1000
		}
		if !(ms >= minEpochMillis && ms <= maxEpochMillis) {
			raw := fmt.Sprint(value)
			return &raw
		}
		s := time.UnixMilli(int64(ms)).UTC().Format(CanonicalLayout)
		return &s
	}

	raw := fmt.Sprint(value)
	text := strings.TrimSpace(raw)
	if text == "" {
		return &raw
	}

	if t, err := dateParser.Parse(text); err == nil {
		s := t.UTC().Format(CanonicalLayout)
		return &s
	}
	return &raw
}

func epochMillis(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
