package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestResolveCharset(t *testing.T) {
	tests := []struct {
		name  string
		input string
		bare  bool
		want  string
	}{
		{name: "content type with charset", input: "text/html; charset=utf-8", want: "UTF-8"},
		{name: "mixed case key and spaces", input: "text/html; Charset = windows-1251", want: "WINDOWS-1251"},
		{name: "underscore names", input: "text/plain;charset=Shift_JIS", want: "SHIFT_JIS"},
		{name: "no charset", input: "text/html", want: ""},
		{name: "empty", input: "", want: ""},
		{name: "bare charset", input: "koi8-r", bare: true, want: "KOI8-R"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveCharset(tt.input, tt.bare))
		})
	}
}

// latin1 returns the Latin-1 reading of raw bytes, the way the fetch engine
// hands text to consumers.
func latin1(t *testing.T, raw []byte) string {
	t.Helper()
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	require.NoError(t, err)
	return string(s)
}

func TestReencode_UTF8Default(t *testing.T) {
	text := latin1(t, []byte("Привет, мир"))
	assert.Equal(t, "Привет, мир", Reencode("", text))
	assert.Equal(t, "Привет, мир", Reencode("UTF-8", text))
}

func TestReencode_DeclaredCharset(t *testing.T) {
	raw, err := charmap.Windows1251.NewEncoder().Bytes([]byte("Привет"))
	require.NoError(t, err)

	assert.Equal(t, "Привет", Reencode("WINDOWS-1251", latin1(t, raw)))
}

func TestReencode_FallsBack(t *testing.T) {
	// Unknown charset
	assert.Equal(t, "abc", Reencode("X-NOT-A-CHARSET", "abc"))
	// Text that is not a Latin-1 reading cannot be re-encoded
	assert.Equal(t, "日本", Reencode("UTF-8", "日本"))
}

func pinNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := Now
	Now = func() time.Time { return at }
	t.Cleanup(func() { Now = prev })
}

func TestNormalizeDate_Epochs(t *testing.T) {
	pinNow(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Nil(t, NormalizeDate(0))
	assert.Nil(t, NormalizeDate(nil))

	seconds := NormalizeDate(1700000000)
	millis := NormalizeDate(int64(1700000000000))
	require.NotNil(t, seconds)
	require.NotNil(t, millis)
	assert.Equal(t, *seconds, *millis)
	assert.Equal(t, "2023-11-14T22:13:20.000Z", *seconds)

	fromJSON := NormalizeDate(json.Number("1700000000"))
	require.NotNil(t, fromJSON)
	assert.Equal(t, *seconds, *fromJSON)

	fromFloat := NormalizeDate(float64(1700000000))
	require.NotNil(t, fromFloat)
	assert.Equal(t, *seconds, *fromFloat)
}

func TestNormalizeDate_EpochOutOfRange(t *testing.T) {
	pinNow(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	huge := NormalizeDate(float64(1e20))
	require.NotNil(t, huge)
	assert.Equal(t, "1e+20", *huge)

	large := NormalizeDate(int64(9e18))
	require.NotNil(t, large)
	assert.Equal(t, "9000000000000000000", *large)

	// Last representable millisecond of year 9999
	edge := NormalizeDate(int64(253402300799999))
	require.NotNil(t, edge)
	assert.Equal(t, "9999-12-31T23:59:59.999Z", *edge)
}

func TestNormalizeDate_Text(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "rfc3339", input: "2012-10-29T18:15:00Z", want: "2012-10-29T18:15:00.000Z"},
		{name: "rfc3339 offset", input: "2012-10-29T20:15:00+02:00", want: "2012-10-29T18:15:00.000Z"},
		{name: "rfc1123", input: "Mon, 29 Oct 2012 18:15:00 GMT", want: "2012-10-29T18:15:00.000Z"},
		{name: "long month without zone is utc", input: "Mon, 29 October 2012 18:15:00", want: "2012-10-29T18:15:00.000Z"},
		{name: "plain date", input: "2012-10-29", want: "2012-10-29T00:00:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDate(tt.input)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestNormalizeDate_Unparseable(t *testing.T) {
	got := NormalizeDate("sometime last week")
	require.NotNil(t, got)
	assert.Equal(t, "sometime last week", *got)
}
