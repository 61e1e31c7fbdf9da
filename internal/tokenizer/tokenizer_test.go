package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "5 days ago", []string{"5", "days", "ago"}},
		{"mixed case", "In 2 WEEKS", []string{"in", "2", "weeks"}},
		{"punctuation", "Yesterday, at noon!", []string{"yesterday", "at", "noon"}},
		{"hyphen splits", "2014-2015", []string{"2014", "2015"}},
		{"keeps short words", "a day ago", []string{"a", "day", "ago"}},
		{"empty", "", []string{}},
		{"whitespace", "  \t\n ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tokens := Tokenize(tt.in)
			got := make([]string, len(tokens))
			for i, tok := range tokens {
				got[i] = tok.Term
				assert.Equal(t, i, tok.Position)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoin(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "5 days ago", Join(Terms("  5   Days,ago ")))
}

func TestIsNumeric(t *testing.T) {
	t.Parallel()
	assert.True(t, IsNumeric("1000"))
	assert.False(t, IsNumeric(""))
	assert.False(t, IsNumeric("5d"))
	assert.False(t, IsNumeric("-5"))
}

var sampleTexts = map[string]string{
	"short":  "show me the logs from 5 days ago",
	"medium": "Revenue dropped three weeks ago, recovered 2 days later, and the next review is in 1 month from now.",
	"long":   strings.Repeat("The incident started half an hour ago and was escalated a couple of days back. ", 50),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}
