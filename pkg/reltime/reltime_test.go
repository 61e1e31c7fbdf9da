package reltime

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ref = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestSecondsSignFollowsTense(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rt   RelativeTime
		want int64
	}{
		{New(5, Day, Past), -5 * 86400},
		{New(2, Week, Future), 2 * 7 * 86400},
		{New(3, Month, Past), -3 * 30 * 86400},
		{New(1, Year, Future), 365 * 86400},
		{New(30, Minute, Past), -1800},
		{New(12, Hour, Future), 12 * 3600},
		{New(45, Second, Past), -45},
		{New(7, Day, Present), 0},
		{New(0, Day, Past), 0},
	}
	for _, tt := range tests {
		t.Run(tt.rt.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.rt.Seconds())
			assert.Equal(t, time.Duration(tt.want)*time.Second, tt.rt.Duration())
		})
	}
}

func TestNewClampsNegativeCardinality(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, New(-4, Day, Past).Cardinality)
}

func TestTimeMatchesDuration(t *testing.T) {
	t.Parallel()
	for _, f := range Frames() {
		for _, tense := range []Tense{Past, Present, Future} {
			rt := New(17, f, tense)
			assert.True(t, rt.Time(ref).Equal(ref.Add(rt.Duration())), rt.String())
		}
	}
}

func TestTimeLargeOffsetsDoNotOverflow(t *testing.T) {
	t.Parallel()
	rt := New(10000, Year, Past)
	got := rt.Time(ref)
	want := ref.AddDate(0, 0, -10000*365)
	assert.True(t, got.Equal(want), "got %s want %s", got, want)

	// Duration saturates instead of wrapping.
	assert.Equal(t, time.Duration(math.MinInt64), rt.Duration())
	assert.Equal(t, time.Duration(math.MaxInt64), New(10000, Year, Future).Duration())
}

func TestTimeZeroReferenceUsesNow(t *testing.T) {
	t.Parallel()
	before := time.Now()
	got := New(1, Day, Future).Time(time.Time{})
	assert.WithinDuration(t, before.Add(24*time.Hour), got, 5*time.Second)
}

func TestString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "5 days ago", New(5, Day, Past).String())
	assert.Equal(t, "1 day ago", New(1, Day, Past).String())
	assert.Equal(t, "in 2 weeks", New(2, Week, Future).String())
	assert.Equal(t, "now", New(0, Day, Present).String())
	assert.Equal(t, "Frame(42)", Frame(42).String())
	assert.Equal(t, "Tense(-1)", Tense(-1).String())
}

func TestRangeAscending(t *testing.T) {
	t.Parallel()
	start, end, ok := Range([]RelativeTime{New(3, Day, Past), New(7, Day, Past)}, ref)
	require.True(t, ok)
	assert.Equal(t, ref.Add(-7*24*time.Hour), start)
	assert.Equal(t, ref.Add(-3*24*time.Hour), end)

	_, _, ok = Range(nil, ref)
	assert.False(t, ok)
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(New(3, Month, Future))
	require.NoError(t, err)
	assert.JSONEq(t, `{"cardinality":3,"frame":"month","tense":"future"}`, string(data))

	var rt RelativeTime
	require.NoError(t, json.Unmarshal(data, &rt))
	assert.Equal(t, New(3, Month, Future), rt)

	assert.Error(t, json.Unmarshal([]byte(`{"frame":"fortnight"}`), &rt))
	assert.Error(t, json.Unmarshal([]byte(`{"tense":"someday"}`), &rt))
}

func TestParseFrameAndTense(t *testing.T) {
	t.Parallel()
	f, err := ParseFrame("week")
	require.NoError(t, err)
	assert.Equal(t, Week, f)

	_, err = ParseFrame("decade")
	assert.Error(t, err)

	tense, err := ParseTense("present")
	require.NoError(t, err)
	assert.Equal(t, Present, tense)
}
