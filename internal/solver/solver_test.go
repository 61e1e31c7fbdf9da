package solver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb/kbtest"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/reltime"
)

func TestFind(t *testing.T) {
	k := kbtest.New(t)
	s := New()
	tests := []struct {
		in      string
		want    kb.Slot
		outcome Outcome
	}{
		{"5 days ago", kb.Slot{Cardinality: 5, Frame: reltime.Day, Tense: reltime.Past}, Resolved},
		{"in 2 weeks", kb.Slot{Cardinality: 2, Frame: reltime.Week, Tense: reltime.Future}, Resolved},
		{"3 decades from now", kb.Slot{Cardinality: 30, Frame: reltime.Year, Tense: reltime.Future}, Resolved},
		{"today", kb.Slot{Cardinality: 0, Frame: reltime.Day, Tense: reltime.Present}, Resolved},
		{"day before yesterday", kb.Slot{Cardinality: 2, Frame: reltime.Day, Tense: reltime.Past}, Resolved},
		{"5 days", kb.Slot{}, NoMatch},
		{"ago days", kb.Slot{}, NoMatch},
		{"5 miles ago", kb.Slot{}, NoMatch},
		{"", kb.Slot{}, NoMatch},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, outcome := s.Find(strings.Fields(tt.in), k)
			assert.Equal(t, tt.outcome, outcome)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindRestrictsToSequenceLength(t *testing.T) {
	k := kbtest.FromPhrases(t, map[string]kb.Slot{
		"week":          {Cardinality: 1, Frame: reltime.Week, Tense: reltime.Past},
		"last week":     {Cardinality: 1, Frame: reltime.Week, Tense: reltime.Past},
		"the last week": {Cardinality: 2, Frame: reltime.Week, Tense: reltime.Past},
	})
	got, outcome := New().Find([]string{"last", "week"}, k)
	assert.Equal(t, Resolved, outcome)
	assert.Equal(t, 1, got.Cardinality)
}

func TestFindAmbiguous(t *testing.T) {
	k := kbtest.FromPhrases(t, map[string]kb.Slot{
		"1 day ago": {Cardinality: 1, Frame: reltime.Day, Tense: reltime.Past},
		"ago 1 day": {Cardinality: 1, Frame: reltime.Day, Tense: reltime.Future},
	})
	var hooked []string
	s := New(WithAmbiguityHook(func(seq []string, candidates int) {
		hooked = seq
		assert.Equal(t, 2, candidates)
	}))
	got, outcome := s.Find([]string{"1", "day", "ago"}, k)
	assert.Equal(t, Ambiguous, outcome)
	assert.Equal(t, kb.Slot{}, got)
	assert.Equal(t, []string{"1", "day", "ago"}, hooked)
	assert.Equal(t, "ambiguous", outcome.String())
}

func BenchmarkFind(b *testing.B) {
	k := kbtest.New(b)
	s := New()
	seq := []string{"45", "minutes", "from", "now"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s.Find(seq, k)
	}
}
