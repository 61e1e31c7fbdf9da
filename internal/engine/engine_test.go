package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb/kbtest"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/reltime"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/tracing"
)

var ref = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func defaultEngine(tb testing.TB) *Engine {
	tb.Helper()
	k, err := kb.Default()
	require.NoError(tb, err)
	return New(k)
}

func rt(n int, f reltime.Frame, t reltime.Tense) reltime.RelativeTime {
	return reltime.New(n, f, t)
}

type unitCase struct {
	singular, plural string
	frame            reltime.Frame
	scale            int
}

var units = []unitCase{
	{"second", "seconds", reltime.Second, 1},
	{"minute", "minutes", reltime.Minute, 1},
	{"hour", "hours", reltime.Hour, 1},
	{"day", "days", reltime.Day, 1},
	{"week", "weeks", reltime.Week, 1},
	{"month", "months", reltime.Month, 1},
	{"year", "years", reltime.Year, 1},
	{"decade", "decades", reltime.Year, 10},
}

func (u unitCase) word(n int) string {
	if n == 1 {
		return u.singular
	}
	return u.plural
}

func TestEveryCardinalityAndFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("exhaustive over the full knowledge base")
	}
	e := defaultEngine(t)
	for _, u := range units {
		for n := 1; n <= 1000; n++ {
			past := fmt.Sprintf("%d %s ago", n, u.word(n))
			assert.Equal(t, []reltime.RelativeTime{rt(n*u.scale, u.frame, reltime.Past)}, e.Parse(past), past)

			fromNow := fmt.Sprintf("%d %s from now", n, u.word(n))
			assert.Equal(t, []reltime.RelativeTime{rt(n*u.scale, u.frame, reltime.Future)}, e.Parse(fromNow), fromNow)

			in := fmt.Sprintf("in %d %s", n, u.word(n))
			assert.Equal(t, []reltime.RelativeTime{rt(n*u.scale, u.frame, reltime.Future)}, e.Parse(in), in)
		}
	}
}

func TestParse(t *testing.T) {
	e := defaultEngine(t)
	tests := []struct {
		name string
		in   string
		want []reltime.RelativeTime
	}{
		{"today", "today", []reltime.RelativeTime{rt(0, reltime.Day, reltime.Present)}},
		{"yesterday", "What happened yesterday?", []reltime.RelativeTime{rt(1, reltime.Day, reltime.Past)}},
		{"tomorrow", "See you Tomorrow.", []reltime.RelativeTime{rt(1, reltime.Day, reltime.Future)}},
		{"now", "do it right now", []reltime.RelativeTime{rt(0, reltime.Second, reltime.Present)}},
		{"day before yesterday", "the day before yesterday", []reltime.RelativeTime{rt(2, reltime.Day, reltime.Past)}},
		{"last week", "sales last week", []reltime.RelativeTime{rt(1, reltime.Week, reltime.Past)}},
		{"next decade", "by next decade", []reltime.RelativeTime{rt(10, reltime.Year, reltime.Future)}},
		{"back", "3 weeks back", []reltime.RelativeTime{rt(3, reltime.Week, reltime.Past)}},
		{"later", "2 hours later", []reltime.RelativeTime{rt(2, reltime.Hour, reltime.Future)}},
		{"from today", "5 days from today", []reltime.RelativeTime{rt(5, reltime.Day, reltime.Future)}},
		{"last n", "in the last 5 days", []reltime.RelativeTime{rt(5, reltime.Day, reltime.Past)}},
		{"next n", "over the next 3 months", []reltime.RelativeTime{rt(3, reltime.Month, reltime.Future)}},
		{"abbreviation", "5 hrs ago", []reltime.RelativeTime{rt(5, reltime.Hour, reltime.Past)}},
		{"half hour", "half an hour ago", []reltime.RelativeTime{rt(30, reltime.Minute, reltime.Past)}},
		{"half day", "half a day ago", []reltime.RelativeTime{rt(12, reltime.Hour, reltime.Past)}},
		{"hour and a half", "an hour and a half ago", []reltime.RelativeTime{rt(90, reltime.Minute, reltime.Past)}},
		{"article", "a week ago", []reltime.RelativeTime{rt(1, reltime.Week, reltime.Past)}},
		{"word number", "twenty five minutes from now", []reltime.RelativeTime{rt(25, reltime.Minute, reltime.Future)}},
		{"couple", "a couple of days ago", []reltime.RelativeTime{rt(2, reltime.Day, reltime.Past)}},
		{"few", "a few years back", []reltime.RelativeTime{rt(3, reltime.Year, reltime.Past)}},
		{"compact", "errors since 2y", []reltime.RelativeTime{rt(2, reltime.Year, reltime.Past)}},
		{"compact future", "in 2w", []reltime.RelativeTime{rt(2, reltime.Week, reltime.Future)}},
		{"unicode dash", "3 days ago – then 2 days ago", []reltime.RelativeTime{rt(3, reltime.Day, reltime.Past), rt(2, reltime.Day, reltime.Past)}},
		{"miles", "5 miles ago", nil},
		{"pages", "3 pages back", nil},
		{"bare quantity", "it took 5 days", nil},
		{"beyond max cardinality", "1001 days ago", nil},
		{"no temporal content", "the quick brown fox", nil},
		{"empty", "", nil},
		{"whitespace", " \t\n ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := tt.want
			if want == nil {
				want = []reltime.RelativeTime{}
			}
			assert.Equal(t, want, e.Parse(tt.in))
		})
	}
}

func TestCompound(t *testing.T) {
	e := defaultEngine(t)
	got := e.Parse("1 year 2 months ago")
	require.GreaterOrEqual(t, len(got), 2)
	frames := map[reltime.Frame]int{}
	for _, r := range got {
		assert.Equal(t, reltime.Past, r.Tense)
		frames[r.Frame] = r.Cardinality
	}
	assert.Equal(t, map[reltime.Frame]int{reltime.Year: 1, reltime.Month: 2}, frames)

	assert.Equal(t, []reltime.RelativeTime{
		rt(3, reltime.Hour, reltime.Future),
		rt(20, reltime.Minute, reltime.Future),
	}, e.Parse("in 3 hours and 20 minutes"))

	assert.Equal(t, []reltime.RelativeTime{
		rt(1, reltime.Year, reltime.Past),
		rt(2, reltime.Month, reltime.Past),
	}, e.Parse("1y 2mo"))
}

func TestCompoundTieBreak(t *testing.T) {
	e := defaultEngine(t)

	// Equal counts: the simple path wins.
	a := e.Analyze(context.Background(), "2 days ago and 3 hours ago")
	assert.False(t, a.UsedCompound)
	assert.Equal(t, 2, a.Simple)
	assert.Equal(t, 2, a.Compound)
	assert.Equal(t, []reltime.RelativeTime{rt(2, reltime.Day, reltime.Past), rt(3, reltime.Hour, reltime.Past)}, a.Times)

	// More compound results: simple results already covered are not repeated.
	a = e.Analyze(context.Background(), "1 year 2 months ago and 5 days ago")
	assert.True(t, a.UsedCompound)
	assert.Equal(t, []reltime.RelativeTime{
		rt(1, reltime.Year, reltime.Past),
		rt(2, reltime.Month, reltime.Past),
		rt(5, reltime.Day, reltime.Past),
	}, a.Times)

	// Simple results outside the compound region survive, ahead of it.
	got := e.Parse("yesterday, and 1 year 2 months ago")
	assert.Equal(t, []reltime.RelativeTime{
		rt(1, reltime.Day, reltime.Past),
		rt(1, reltime.Year, reltime.Past),
		rt(2, reltime.Month, reltime.Past),
	}, got)
}

func TestRangeOverExtraction(t *testing.T) {
	e := defaultEngine(t)
	got := e.Parse("show data from 7 days ago and 3 days ago")
	require.Equal(t, []reltime.RelativeTime{rt(7, reltime.Day, reltime.Past), rt(3, reltime.Day, reltime.Past)}, got)

	start, end, ok := reltime.Range(got, ref)
	require.True(t, ok)
	assert.Equal(t, ref.Add(-7*24*time.Hour), start)
	assert.Equal(t, ref.Add(-3*24*time.Hour), end)
}

func TestDurationSignMatchesTense(t *testing.T) {
	e := defaultEngine(t)
	for _, in := range []string{"5 days ago", "in 5 days", "today", "10 minutes from now", "last month"} {
		for _, r := range e.Parse(in) {
			d := r.Duration()
			switch r.Tense {
			case reltime.Past:
				assert.Negative(t, int64(d), in)
			case reltime.Future:
				assert.Positive(t, int64(d), in)
			default:
				assert.Zero(t, d, in)
			}
			assert.True(t, r.Time(ref).Equal(ref.Add(d)), in)
		}
	}
}

func TestOversizedInput(t *testing.T) {
	e := New(kbtest.New(t), WithMaxInputBytes(64))
	assert.Empty(t, e.Parse(strings.Repeat("5 days ago ", 10)))
	assert.Len(t, e.Parse("5 days ago"), 1)
}

func TestNilKnowledgeBase(t *testing.T) {
	h := kb.NewHandle(nil)
	assert.Empty(t, New(h).Parse("5 days ago"))
}

func TestHotSwap(t *testing.T) {
	small := kbtest.FromPhrases(t, map[string]kb.Slot{
		"today": {Cardinality: 0, Frame: reltime.Day, Tense: reltime.Present},
	})
	h := kb.NewHandle(small)
	e := New(h)
	assert.Empty(t, e.Parse("tomorrow"))

	h.Swap(kbtest.New(t))
	assert.Equal(t, []reltime.RelativeTime{rt(1, reltime.Day, reltime.Future)}, e.Parse("tomorrow"))
}

func TestObserverAndSpans(t *testing.T) {
	var seen []Analysis
	e := New(kbtest.New(t), WithObserver(func(a Analysis) { seen = append(seen, a) }))

	ctx, root := tracing.StartSpan(context.Background(), "extract", "trace-1")
	got := e.ParseContext(ctx, "3 days ago")
	root.End()

	assert.Len(t, got, 1)
	require.Len(t, seen, 1)
	assert.Equal(t, 3, seen[0].Tokens)
	assert.Equal(t, 1, seen[0].Simple)
	require.Len(t, root.Children, 3)
	assert.Equal(t, "normalize", root.Children[0].Name)
	assert.Equal(t, 1, root.Children[1].Attrs["results"])
}

func TestSubtract(t *testing.T) {
	day := kb.Slot{Cardinality: 1, Frame: reltime.Day}
	week := kb.Slot{Cardinality: 1, Frame: reltime.Week}
	assert.Equal(t, []kb.Slot{day}, subtract([]kb.Slot{day, day, week}, []kb.Slot{day, week}))
	assert.Equal(t, []kb.Slot{}, subtract(nil, []kb.Slot{day}))
}

func TestConcurrentParse(t *testing.T) {
	e := New(kbtest.New(t))
	inputs := map[string][]reltime.RelativeTime{
		"5 days ago":          {rt(5, reltime.Day, reltime.Past)},
		"in 2 weeks":          {rt(2, reltime.Week, reltime.Future)},
		"1 year 2 months ago": {rt(1, reltime.Year, reltime.Past), rt(2, reltime.Month, reltime.Past)},
		"nothing":             {},
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				for in, want := range inputs {
					assert.Equal(t, want, e.Parse(in))
				}
			}
		}()
	}
	wg.Wait()
}

func FuzzParse(f *testing.F) {
	seeds := []string{
		"", "5 days ago", "1 year 2 months ago", "in 3 hours and 20 minutes",
		"half an hour ago", "2y 3mo", "\xff\xfe", "ago ago ago in in in",
		strings.Repeat("1 ", 500) + "days ago", "a hundred and and half",
	}
	for _, s := range seeds {
		f.Add(s)
	}
	k, err := kb.Default()
	if err != nil {
		f.Fatal(err)
	}
	e := New(k)
	f.Fuzz(func(t *testing.T, s string) {
		for _, r := range e.Parse(s) {
			if r.Cardinality < 0 || !r.Frame.Valid() || !r.Tense.Valid() {
				t.Fatalf("invalid result %+v for %q", r, s)
			}
		}
	})
}

var benchTexts = map[string]string{
	"simple":   "show me the logs from 5 days ago",
	"compound": "the contract ended 1 year 2 months ago and renews in 3 weeks",
	"words":    "about half an hour ago, and a couple of days back",
	"long":     strings.Repeat("The incident started 2 hours ago and was escalated a few days back. ", 40),
}

func BenchmarkParse(b *testing.B) {
	e := New(kbtest.New(b))
	for name, text := range benchTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = e.Parse(text)
			}
		})
	}
}

func BenchmarkParseParallel(b *testing.B) {
	e := New(kbtest.New(b))
	text := benchTexts["compound"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = e.Parse(text)
		}
	})
}
