// Package textnorm canonicalizes raw text before tokenization.
//
// Normalize folds Unicode dash variants into ASCII '-' and collapses
// space-padded hyphens between digits ("2014 - 2015" becomes "2014-2015").
// ExpandCompactTokens rewrites compact duration tokens such as "2y" or "30min"
// into spelled-out forms the knowledge base understands.
//
// Known limitations:
//   - Only digit-flanked hyphens are collapsed; "well - known" is untouched.
//   - Compact tokens must be glued ("5d"); "5 d" is not expanded.
//   - Four-digit decade tokens ("1990s") are never read as seconds.
package textnorm

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxInputBytes is the largest input that is rewritten. Longer input is
// returned unchanged.
const MaxInputBytes = 1 << 20

// dashes are the code points folded into '-'.
var dashes = map[rune]bool{
	'‐': true, // hyphen
	'‑': true, // non-breaking hyphen
	'‒': true, // figure dash
	'–': true, // en dash
	'—': true, // em dash
	'―': true, // horizontal bar
	'−': true, // minus sign
	'﹘': true, // small em dash
	'﹣': true, // small hyphen-minus
	'－': true, // fullwidth hyphen-minus
}

var paddedHyphen = regexp.MustCompile(`\s*-\s*`)

func foldDash(r rune) rune {
	if dashes[r] {
		return '-'
	}
	return r
}

// Normalize returns text with dash variants folded and digit-flanked hyphens
// collapsed. It is idempotent.
func Normalize(text string) string {
	if text == "" || len(text) > MaxInputBytes {
		return text
	}
	t := transform.Chain(runes.Map(foldDash), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	return collapseHyphens(out)
}

func collapseHyphens(s string) string {
	locs := paddedHyphen.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		if end-start == 1 {
			continue
		}
		if start == 0 || end >= len(s) || !isDigit(s[start-1]) || !isDigit(s[end]) {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteByte('-')
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Alternatives are ordered so longer suffixes win ("min" before "m").
var compactToken = regexp.MustCompile(`(?i)\b(\d+)(hrs|hr|mins|min|secs|sec|yrs|yr|wks|wk|mos|mo|d|w|m|y|h|s)\b`)

var compactUnits = map[string]string{
	"hrs": "hour", "hr": "hour", "h": "hour",
	"mins": "minute", "min": "minute", "m": "minute",
	"secs": "second", "sec": "second", "s": "second",
	"yrs": "year", "yr": "year", "y": "year",
	"wks": "week", "wk": "week", "w": "week",
	"mos": "month", "mo": "month",
	"d": "day",
}

var tenseMarkers = map[string]bool{
	"ago":    true,
	"back":   true,
	"before": true,
	"from":   true,
	"later":  true,
}

type compactMatch struct {
	start, end int
	n          int
	unit       string
}

// ExpandCompactTokens rewrites tokens like "2y" into "2 years". A run of
// compact tokens that is neither preceded by "in" nor followed by a tense
// marker gets an implicit " ago". Zero cardinalities are left as written.
func ExpandCompactTokens(text string) string {
	if text == "" || len(text) > MaxInputBytes {
		return text
	}
	var matches []compactMatch
	for _, loc := range compactToken.FindAllStringSubmatchIndex(text, -1) {
		num, suffix := text[loc[2]:loc[3]], strings.ToLower(text[loc[4]:loc[5]])
		n, err := strconv.Atoi(num)
		if err != nil || n == 0 {
			continue
		}
		if suffix == "s" && len(num) == 4 && num[3] == '0' {
			continue
		}
		matches = append(matches, compactMatch{start: loc[0], end: loc[1], n: n, unit: compactUnits[suffix]})
	}
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + 16*len(matches))
	last := 0
	chainStart := 0
	for i, m := range matches {
		if i > 0 && !adjacent(text, matches[i-1], m) {
			chainStart = i
		}
		b.WriteString(text[last:m.start])
		b.WriteString(strconv.Itoa(m.n))
		b.WriteByte(' ')
		b.WriteString(m.unit)
		if m.n != 1 {
			b.WriteByte('s')
		}
		last = m.end

		chainEnds := i == len(matches)-1 || !adjacent(text, m, matches[i+1])
		if !chainEnds {
			continue
		}
		before := previousWord(text, matches[chainStart].start)
		after := nextWord(text, m.end)
		if before != "in" && !tenseMarkers[after] {
			b.WriteString(" ago")
		}
	}
	b.WriteString(text[last:])
	return b.String()
}

// adjacent reports whether b follows a with only whitespace between them.
func adjacent(text string, a, b compactMatch) bool {
	return strings.TrimSpace(text[a.end:b.start]) == ""
}

func nextWord(text string, from int) string {
	rest := strings.TrimLeftFunc(text[from:], unicode.IsSpace)
	end := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(rest)
	}
	return strings.ToLower(rest[:end])
}

func previousWord(text string, to int) string {
	head := strings.TrimRightFunc(text[:to], unicode.IsSpace)
	start := strings.LastIndexFunc(head, func(r rune) bool { return !unicode.IsLetter(r) })
	if start >= 0 {
		_, size := utf8.DecodeRuneInString(head[start:])
		head = head[start+size:]
	}
	return strings.ToLower(head)
}
