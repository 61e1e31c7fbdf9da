// Package reltime defines RelativeTime, the value produced by the extraction
// engine for expressions such as "5 days ago" or "in 2 weeks".
//
// A RelativeTime is a signed offset from a reference instant, described by a
// cardinality, a calendar frame and a tense. Months and years are fixed-length
// approximations (30 and 365 days); they are not calendar-correct.
//
// Tense alone determines the sign of the offset: past is negative, future is
// positive and present is always zero, whatever the cardinality.
//
// All functions are safe for concurrent use by multiple goroutines.
package reltime

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"
)

// Frame is the calendar unit of a relative expression.
type Frame int

const (
	Second Frame = iota
	Minute
	Hour
	Day
	Week
	Month
	Year
)

var frameNames = [...]string{
	Second: "second",
	Minute: "minute",
	Hour:   "hour",
	Day:    "day",
	Week:   "week",
	Month:  "month",
	Year:   "year",
}

// frameSeconds holds the fixed length of one unit of each frame.
var frameSeconds = [...]int64{
	Second: 1,
	Minute: 60,
	Hour:   3600,
	Day:    86400,
	Week:   7 * 86400,
	Month:  30 * 86400,
	Year:   365 * 86400,
}

// Frames lists every frame from smallest to largest.
func Frames() []Frame {
	return []Frame{Second, Minute, Hour, Day, Week, Month, Year}
}

// String returns the lowercase frame name.
func (f Frame) String() string {
	if f >= 0 && int(f) < len(frameNames) {
		return frameNames[f]
	}
	return fmt.Sprintf("Frame(%d)", int(f))
}

// Valid reports whether f is one of the defined frames.
func (f Frame) Valid() bool {
	return f >= 0 && int(f) < len(frameNames)
}

// Seconds returns the fixed length of one unit of the frame.
func (f Frame) Seconds() int64 {
	if !f.Valid() {
		return 0
	}
	return frameSeconds[f]
}

// ParseFrame maps a frame name ("day", "week", ...) to a Frame.
func ParseFrame(s string) (Frame, error) {
	for i, name := range frameNames {
		if name == s {
			return Frame(i), nil
		}
	}
	return 0, fmt.Errorf("reltime: unknown frame: %q", truncate(s))
}

// MarshalJSON encodes the frame as a JSON string (e.g. "day").
func (f Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON decodes a JSON string (e.g. "day") into a Frame.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ff, err := ParseFrame(s)
	if err != nil {
		return err
	}
	*f = ff
	return nil
}

// Tense is the temporal direction of a relative expression.
type Tense int

const (
	Past Tense = iota
	Present
	Future
)

var tenseNames = [...]string{
	Past:    "past",
	Present: "present",
	Future:  "future",
}

// String returns the lowercase tense name.
func (t Tense) String() string {
	if t >= 0 && int(t) < len(tenseNames) {
		return tenseNames[t]
	}
	return fmt.Sprintf("Tense(%d)", int(t))
}

// Valid reports whether t is one of the defined tenses.
func (t Tense) Valid() bool {
	return t >= 0 && int(t) < len(tenseNames)
}

// ParseTense maps a tense name ("past", "present", "future") to a Tense.
func ParseTense(s string) (Tense, error) {
	for i, name := range tenseNames {
		if name == s {
			return Tense(i), nil
		}
	}
	return 0, fmt.Errorf("reltime: unknown tense: %q", truncate(s))
}

// MarshalJSON encodes the tense as a JSON string (e.g. "past").
func (t Tense) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a JSON string (e.g. "past") into a Tense.
func (t *Tense) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	tt, err := ParseTense(s)
	if err != nil {
		return err
	}
	*t = tt
	return nil
}

// sign returns -1, 0 or +1 for past, present and future.
func (t Tense) sign() int64 {
	switch t {
	case Past:
		return -1
	case Future:
		return 1
	default:
		return 0
	}
}

// RelativeTime is a resolved relative temporal expression.
type RelativeTime struct {
	Cardinality int   `json:"cardinality"`
	Frame       Frame `json:"frame"`
	Tense       Tense `json:"tense"`
}

// New returns a RelativeTime. Negative cardinalities are clamped to zero.
func New(cardinality int, frame Frame, tense Tense) RelativeTime {
	if cardinality < 0 {
		cardinality = 0
	}
	return RelativeTime{Cardinality: cardinality, Frame: frame, Tense: tense}
}

// Seconds returns the signed offset in seconds, saturating at the int64
// bounds for cardinalities that cannot be represented.
func (r RelativeTime) Seconds() int64 {
	sign := r.Tense.sign()
	if sign == 0 || r.Cardinality <= 0 {
		return 0
	}
	unit := r.Frame.Seconds()
	n := int64(r.Cardinality)
	if unit == 0 {
		return 0
	}
	if n > math.MaxInt64/unit {
		if sign < 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return sign * n * unit
}

// Duration returns the offset as a time.Duration. Offsets beyond roughly 292
// years saturate at the time.Duration bounds; use Time for exact arithmetic.
func (r RelativeTime) Duration() time.Duration {
	secs := r.Seconds()
	const maxSecs = int64(math.MaxInt64 / int64(time.Second))
	switch {
	case secs > maxSecs:
		return time.Duration(math.MaxInt64)
	case secs < -maxSecs:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(secs) * time.Second
}

// chunkSeconds bounds a single time.Time.Add step well inside the
// time.Duration range.
const chunkSeconds = int64(100 * 365 * 86400)

// Time resolves the offset against ref. When ref is the zero value the
// current time is used.
func (r RelativeTime) Time(ref time.Time) time.Time {
	if ref.IsZero() {
		ref = time.Now()
	}
	secs := r.Seconds()
	t := ref
	for secs > chunkSeconds {
		t = t.Add(time.Duration(chunkSeconds) * time.Second)
		secs -= chunkSeconds
	}
	for secs < -chunkSeconds {
		t = t.Add(-time.Duration(chunkSeconds) * time.Second)
		secs += chunkSeconds
	}
	return t.Add(time.Duration(secs) * time.Second)
}

// String renders the value the way it would be written, e.g. "5 days ago",
// "in 1 week" or "now".
func (r RelativeTime) String() string {
	unit := r.Frame.String()
	if r.Cardinality != 1 {
		unit += "s"
	}
	switch r.Tense {
	case Past:
		return fmt.Sprintf("%d %s ago", r.Cardinality, unit)
	case Future:
		return fmt.Sprintf("in %d %s", r.Cardinality, unit)
	default:
		return "now"
	}
}

// Range resolves every value against ref and returns the earliest and latest
// instants. ok is false when times is empty.
func Range(times []RelativeTime, ref time.Time) (start, end time.Time, ok bool) {
	if len(times) == 0 {
		return time.Time{}, time.Time{}, false
	}
	if ref.IsZero() {
		ref = time.Now()
	}
	resolved := make([]time.Time, len(times))
	for i, rt := range times {
		resolved[i] = rt.Time(ref)
	}
	slices.SortFunc(resolved, func(a, b time.Time) int { return a.Compare(b) })
	return resolved[0], resolved[len(resolved)-1], true
}

func truncate(s string) string {
	const maxErrLen = 50
	if len(s) > maxErrLen {
		return s[:maxErrLen] + "..."
	}
	return s
}
