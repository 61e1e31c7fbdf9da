// Package explicit classifies explicit calendar dates in text ("2024-01-15",
// "January 2024", "15th of March", "2014-2015") without resolving them.
//
// Patterns are tried from most to least specific. A span of text claimed by a
// more specific pattern cannot be matched again by a less specific one, so
// "January 15, 2024" is a single full date rather than a month-day plus a
// year.
package explicit

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/textnorm"
)

// Tag names the shape of an explicit date.
type Tag string

const (
	FullExplicitDate  Tag = "FULL_EXPLICIT_DATE"
	YearRange         Tag = "YEAR_RANGE"
	MonthYear         Tag = "MONTH_YEAR"
	YearMonth         Tag = "YEAR_MONTH"
	MonthDay          Tag = "MONTH_DAY"
	DayMonth          Tag = "DAY_MONTH"
	DayMonthAmbiguous Tag = "DAY_MONTH_AMBIGUOUS"
	YearOnly          Tag = "YEAR_ONLY"
)

const (
	month = `(january|february|march|april|may|june|july|august|september|october|november|december|sept|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec)\.?`
	year  = `((?:19|20)\d{2})`
	day   = `(\d{1,2})(?:st|nd|rd|th)?`
)

type rule struct {
	re       *regexp.Regexp
	classify func(groups []string) (Tag, bool)
	// literal is the capture group reported as the date; 0 is the whole match.
	literal int
}

// quantityUnits follow a number that is a quantity rather than a year, as in
// "2000 days ago".
var quantityUnits = map[string]bool{
	"second": true, "seconds": true, "sec": true, "secs": true,
	"minute": true, "minutes": true, "min": true, "mins": true,
	"hour": true, "hours": true, "hr": true, "hrs": true,
	"day": true, "days": true,
	"week": true, "weeks": true, "wk": true, "wks": true,
	"month": true, "months": true, "mo": true, "mos": true,
	"year": true, "years": true, "yr": true, "yrs": true,
	"decade": true, "decades": true,
}

func always(tag Tag) func([]string) (Tag, bool) {
	return func([]string) (Tag, bool) { return tag, true }
}

var rules = []rule{
	{re: regexp.MustCompile(`(?i)\b(\d{4})-(\d{1,2})-(\d{1,2})\b`), classify: func(g []string) (Tag, bool) {
		return FullExplicitDate, validMonth(g[2]) && validDay(g[3])
	}},
	{re: regexp.MustCompile(`(?i)\b(\d{1,2})([/.-])(\d{1,2})([/.-])(\d{4})\b`), classify: func(g []string) (Tag, bool) {
		if g[2] != g[4] {
			return "", false
		}
		ok := (validMonth(g[1]) && validDay(g[3])) || (validDay(g[1]) && validMonth(g[3]))
		return FullExplicitDate, ok
	}},
	{re: regexp.MustCompile(`(?i)\b` + month + `\s+` + day + `,?\s+` + year + `\b`), classify: func(g []string) (Tag, bool) {
		return FullExplicitDate, validDay(g[2])
	}},
	{re: regexp.MustCompile(`(?i)\b` + day + `\s+(?:of\s+)?` + month + `,?\s+` + year + `\b`), classify: func(g []string) (Tag, bool) {
		return FullExplicitDate, validDay(g[1])
	}},
	{re: regexp.MustCompile(`(?i)\b` + year + `\s*(?:-|to|through|until)\s*` + year + `\b`), classify: func(g []string) (Tag, bool) {
		return YearRange, atoi(g[1]) <= atoi(g[2])
	}},
	{re: regexp.MustCompile(`(?i)\b` + month + `,?\s+` + year + `\b`), classify: always(MonthYear)},
	{re: regexp.MustCompile(`(?i)\b(\d{1,2})/` + year + `\b`), classify: func(g []string) (Tag, bool) {
		return MonthYear, validMonth(g[1])
	}},
	{re: regexp.MustCompile(`(?i)\b` + year + `-(\d{2})\b`), classify: func(g []string) (Tag, bool) {
		return YearMonth, validMonth(g[2])
	}},
	{re: regexp.MustCompile(`(?i)\b` + year + `\s+` + month + `\b`), classify: always(YearMonth)},
	{re: regexp.MustCompile(`(?i)\b` + month + `\s+` + day + `\b`), classify: func(g []string) (Tag, bool) {
		return MonthDay, validDay(g[2])
	}},
	{re: regexp.MustCompile(`(?i)\b` + day + `\s+(?:of\s+)?` + month + `\b`), classify: func(g []string) (Tag, bool) {
		return DayMonth, validDay(g[1])
	}},
	{re: regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`), classify: func(g []string) (Tag, bool) {
		switch {
		case validMonth(g[1]) && validMonth(g[2]):
			return DayMonthAmbiguous, true
		case validMonth(g[1]) && validDay(g[2]):
			return MonthDay, true
		case validDay(g[1]) && validMonth(g[2]):
			return DayMonth, true
		}
		return "", false
	}},
	{re: regexp.MustCompile(`(?i)\b` + year + `\b(\s+[a-z]+)?`), classify: func(g []string) (Tag, bool) {
		return YearOnly, !quantityUnits[strings.ToLower(strings.TrimSpace(g[2]))]
	}, literal: 1},
}

// Extract returns every explicit date literal in text with its tag. Literals
// are returned as written, after dash normalization.
func Extract(text string) map[string]Tag {
	out := make(map[string]Tag)
	if text == "" || len(text) > textnorm.MaxInputBytes {
		return out
	}
	text = textnorm.Normalize(text)
	var claimed [][2]int
	for _, r := range rules {
		for _, loc := range r.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if overlaps(claimed, start, end) {
				continue
			}
			groups := make([]string, len(loc)/2)
			for i := range groups {
				if loc[2*i] >= 0 {
					groups[i] = text[loc[2*i]:loc[2*i+1]]
				}
			}
			tag, ok := r.classify(groups)
			if !ok {
				continue
			}
			claimed = append(claimed, [2]int{start, end})
			literal := groups[r.literal]
			if _, seen := out[literal]; !seen {
				out[literal] = tag
			}
		}
	}
	return out
}

// HasDates reports whether text contains at least one explicit date.
func HasDates(text string) bool {
	return len(Extract(text)) > 0
}

func overlaps(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimLeft(s, "0"))
	if err != nil {
		return 0
	}
	return n
}

func validMonth(s string) bool {
	n := atoi(s)
	return n >= 1 && n <= 12
}

func validDay(s string) bool {
	n := atoi(s)
	return n >= 1 && n <= 31
}
