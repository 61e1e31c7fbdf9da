package textnorm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, in, want string
	}{
		{"empty", "", ""},
		{"plain", "5 days ago", "5 days ago"},
		{"en dash range", "2014–2015", "2014-2015"},
		{"spaced hyphen range", "2014 - 2015", "2014-2015"},
		{"spaced em dash", "2014 — 2015", "2014-2015"},
		{"one-sided padding", "10 -20", "10-20"},
		{"minus sign", "3−4", "3-4"},
		{"words untouched", "well - known", "well - known"},
		{"digit then word", "2014 - now", "2014 - now"},
		{"fullwidth", "1－2", "1-2"},
		{"chain", "1 - 2 - 3", "1-2-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeComposesNFC(t *testing.T) {
	t.Parallel()
	// "e" followed by a combining acute accent.
	assert.Equal(t, "café", Normalize("café"))
}

func TestNormalizeOversizedUnchanged(t *testing.T) {
	t.Parallel()
	big := strings.Repeat("1 - 2 ", MaxInputBytes/6+1)
	assert.Equal(t, big, Normalize(big))
}

func TestExpandCompactTokens(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, in, want string
	}{
		{"year implicit past", "2y", "2 years ago"},
		{"singular", "1d", "1 day ago"},
		{"minutes", "30min", "30 minutes ago"},
		{"m is minute", "5m", "5 minutes ago"},
		{"mo is month", "3mo", "3 months ago"},
		{"hours", "4hrs", "4 hours ago"},
		{"weeks", "2w", "2 weeks ago"},
		{"seconds", "45s", "45 seconds ago"},
		{"uppercase", "2Y", "2 years ago"},
		{"explicit ago kept", "5d ago", "5 days ago"},
		{"back marker", "5d back", "5 days back"},
		{"future from now", "3h from now", "3 hours from now"},
		{"future later", "3h later", "3 hours later"},
		{"in prefix", "in 2w", "in 2 weeks"},
		{"zero untouched", "0d", "0d"},
		{"chain shares marker", "1y 2m ago", "1 year 2 months ago"},
		{"chain implicit past", "1y 2mo", "1 year 2 months ago"},
		{"in chain", "in 1y 2mo", "in 1 year 2 months"},
		{"embedded", "logs from 7d and 3d", "logs from 7 days ago and 3 days ago"},
		{"decade not seconds", "the 1990s", "the 1990s"},
		{"not glued", "5 d", "5 d"},
		{"inside word", "abc5d", "abc5d"},
		{"no tokens", "hello world", "hello world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExpandCompactTokens(tt.in))
		})
	}
}

func FuzzNormalizeIdempotent(f *testing.F) {
	seeds := []string{
		"",
		"2014 - 2015",
		"1 -- 2",
		"5 – 6 — 7",
		"á - 1",
		"\xff\xfe - 1",
		"1 ‐ 2\u0000",
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		once := Normalize(s)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent: %q -> %q -> %q", s, once, twice)
		}
	})
}

func FuzzExpandCompactTokens(f *testing.F) {
	for _, s := range []string{"2y", "1y 2m ago", "in 5d", "99999999999999999999d", "5d\x00"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		_ = ExpandCompactTokens(s)
	})
}
