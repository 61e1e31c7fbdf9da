package sequence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb/kbtest"
)

func split(s string) []string { return strings.Fields(s) }

func TestExtract(t *testing.T) {
	k := kbtest.New(t)
	tests := []struct {
		name string
		in   string
		want [][]string
	}{
		{"single run", "5 days ago", [][]string{split("5 days ago")}},
		{"noise around", "show me 5 days ago please", [][]string{split("5 days ago")}},
		{"two runs", "from 7 days ago and 3 days ago", [][]string{split("from 7 days ago"), split("3 days ago")}},
		{"lone keyterm", "see you tomorrow", [][]string{split("tomorrow")}},
		{"no keyterms", "hello world", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(split(tt.in), k))
		})
	}
}

func TestFilter(t *testing.T) {
	k := kbtest.New(t)
	tests := []struct {
		name string
		in   [][]string
		want [][]string
	}{
		{"exact", [][]string{split("5 days ago")}, [][]string{split("5 days ago")}},
		{"drop first", [][]string{split("from 7 days ago")}, [][]string{split("7 days ago")}},
		{"drop last", [][]string{split("in 2 weeks from")}, [][]string{split("in 2 weeks")}},
		{"lone non phrase", [][]string{split("ago")}, [][]string{}},
		{"lone phrase", [][]string{split("today")}, [][]string{split("today")}},
		{"two tokens of noise", [][]string{split("in from 5 days ago")}, [][]string{}},
		{"bare quantity", [][]string{split("5 days")}, [][]string{}},
		{"mixed", [][]string{split("ago"), split("3 hours ago")}, [][]string{split("3 hours ago")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filter(tt.in, k))
		})
	}
}
