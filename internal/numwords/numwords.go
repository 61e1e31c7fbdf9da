// Package numwords rewrites written quantities in a token stream as numeric
// tokens so the knowledge base only has to know digits.
//
// It understands cardinal words up to the thousands ("two hundred and five"),
// "dozen", indefinite articles ("a day" is "1 day"), the informal quantifiers
// "few", "several" and "couple", and halves of a unit ("half an hour" is
// "30 minutes", "an hour and a half" is "90 minutes").
//
// Convert never fails. Tokens it does not recognise pass through unchanged.
package numwords

import "strconv"

var cardinals = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
	"hundred": 100, "thousand": 1000, "dozen": 12,
}

// multipliers scale the group that precedes them.
var multipliers = map[string]bool{
	"hundred":  true,
	"thousand": true,
	"dozen":    true,
}

var quantifiers = map[string]int{
	"few":     3,
	"several": 3,
	"couple":  2,
}

type subdivision struct {
	unit string
	per  int
}

// halves maps a unit to the next-smaller unit it is split into when halved.
var halves = map[string]subdivision{
	"minute": {"seconds", 60},
	"hour":   {"minutes", 60},
	"day":    {"hours", 24},
	"week":   {"hours", 168},
	"month":  {"days", 30},
	"year":   {"months", 12},
	"decade": {"years", 10},
}

// Convert returns terms with written quantities replaced by digit tokens.
func Convert(terms []string) []string {
	out := make([]string, 0, len(terms))
	for i := 0; i < len(terms); {
		tok := terms[i]
		switch {
		case tok == "half":
			if n, unit, next, ok := half(terms, i); ok {
				out = append(out, n, unit)
				i = next
				continue
			}
			out = append(out, tok)
			i++
		case tok == "a" || tok == "an":
			if i+1 < len(terms) {
				next := terms[i+1]
				if _, ok := quantifiers[next]; ok || next == "half" {
					i++
					continue
				}
				if multipliers[next] {
					n, end := number(terms, i+1, 1)
					out = append(out, strconv.Itoa(n))
					i = end
					continue
				}
			}
			out = append(out, "1")
			i++
		case quantifiers[tok] != 0:
			out = append(out, strconv.Itoa(quantifiers[tok]))
			i++
			if tok == "couple" && i < len(terms) && terms[i] == "of" {
				i++
			}
		default:
			if _, ok := cardinals[tok]; ok {
				n, end := number(terms, i, 0)
				out = append(out, strconv.Itoa(n))
				i = end
				continue
			}
			out = append(out, tok)
			i++
		}
	}
	return joinHalves(out)
}

// number consumes a run of cardinal words starting at terms[i] and returns
// its value and the index after the run. seed pre-loads the group, as "a"
// does in "a hundred".
func number(terms []string, i int, seed int) (int, int) {
	total, group := 0, seed
	afterMultiplier := seed > 0
	j := i
loop:
	for j < len(terms) {
		tok := terms[j]
		if tok == "and" && afterMultiplier && j+1 < len(terms) {
			if v, ok := cardinals[terms[j+1]]; ok && v < 100 && !multipliers[terms[j+1]] {
				j++
				afterMultiplier = false
				continue
			}
			break
		}
		val, ok := cardinals[tok]
		if !ok {
			break
		}
		switch {
		case tok == "hundred":
			if group >= 100 {
				break loop
			}
			if group == 0 {
				group = 1
			}
			group *= 100
			afterMultiplier = true
		case tok == "thousand":
			if total > 0 && group == 0 {
				break loop
			}
			if group == 0 {
				group = 1
			}
			total += group * 1000
			group = 0
			afterMultiplier = true
		case tok == "dozen":
			if group == 0 {
				group = 1
			}
			group *= 12
			afterMultiplier = true
		case val < 10:
			if j > i && (group%10 != 0 || (group%100 >= 10 && group%100 < 20)) {
				break loop
			}
			group += val
			afterMultiplier = false
		default:
			if group%100 != 0 {
				break loop
			}
			group += val
			afterMultiplier = false
		}
		j++
	}
	return total + group, j
}

// half matches "half [a|an] UNIT" at terms[i].
func half(terms []string, i int) (string, string, int, bool) {
	j := i + 1
	if j < len(terms) && (terms[j] == "a" || terms[j] == "an") {
		j++
	}
	if j >= len(terms) {
		return "", "", 0, false
	}
	sub, ok := halves[terms[j]]
	if !ok {
		return "", "", 0, false
	}
	return strconv.Itoa(sub.per / 2), sub.unit, j + 1, true
}

// joinHalves folds "N UNIT and half" and "N and half UNITs" into a single
// quantity of the next-smaller unit.
func joinHalves(terms []string) []string {
	out := make([]string, 0, len(terms))
	for i := 0; i < len(terms); i++ {
		if i+3 < len(terms) && terms[i+2] == "and" && terms[i+3] == "half" {
			if n, err := strconv.Atoi(terms[i]); err == nil {
				if sub, ok := unitOf(terms[i+1]); ok {
					out = append(out, strconv.Itoa(n*sub.per+sub.per/2), sub.unit)
					i += 3
					continue
				}
			}
		}
		if i+3 < len(terms) && terms[i+1] == "and" && terms[i+2] == "half" {
			if n, err := strconv.Atoi(terms[i]); err == nil {
				if sub, ok := unitOf(terms[i+3]); ok {
					out = append(out, strconv.Itoa(n*sub.per+sub.per/2), sub.unit)
					i += 3
					continue
				}
			}
		}
		out = append(out, terms[i])
	}
	return out
}

func unitOf(word string) (subdivision, bool) {
	if sub, ok := halves[word]; ok {
		return sub, true
	}
	if n := len(word); n > 1 && word[n-1] == 's' {
		sub, ok := halves[word[:n-1]]
		return sub, ok
	}
	return subdivision{}, false
}
