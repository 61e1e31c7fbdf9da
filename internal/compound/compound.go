// Package compound decomposes chained multi-unit expressions such as
// "1 year 2 months ago" or "in 3 hours and 20 minutes" into one single-unit
// phrase per quantity and resolves each of them against the knowledge base.
package compound

import (
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/sequence"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/solver"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/reltime"
)

const connector = "and"

var (
	pastSuffixes = map[string]bool{"ago": true, "back": true, "before": true}
	pastPrefixes = map[string]bool{"last": true, "past": true}
	futurePrefix = map[string]bool{"in": true, "next": true}
	markers      = map[string]bool{
		"ago": true, "back": true, "before": true, "from": true, "now": true,
		"today": true, "later": true, "in": true, "last": true, "past": true, "next": true,
	}
)

// MinPairs is the number of quantity/unit pairs a region needs before it is
// treated as a compound expression.
const MinPairs = 2

// Pair is one quantity and its unit word.
type Pair struct {
	Quantity string
	Unit     string
}

// Region is a maximal span of quantities, units, connectors and markers.
type Region struct {
	Start, End int
	Terms      []string
}

// Regions returns the candidate spans of terms, in input order.
func Regions(terms []string, k *kb.KnowledgeBase) []Region {
	var regions []Region
	start := -1
	for i := 0; i <= len(terms); i++ {
		if i < len(terms) && belongs(terms[i], k) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			regions = append(regions, Region{Start: start, End: i, Terms: terms[start:i]})
			start = -1
		}
	}
	return regions
}

func belongs(term string, k *kb.KnowledgeBase) bool {
	return tokenizer.IsNumeric(term) || k.IsUnit(term) || term == connector || markers[term]
}

// Split classifies the tense of a region, strips its tense markers and
// connectors, and pairs each quantity with the unit that follows it. Tokens
// that do not fit the pattern are skipped.
func Split(region []string, k *kb.KnowledgeBase) (reltime.Tense, []Pair) {
	terms := region
	tense := reltime.Past
	n := len(terms)
	switch {
	case n > 0 && pastSuffixes[terms[n-1]]:
		terms = terms[:n-1]
	case n > 0 && terms[n-1] == "later":
		tense = reltime.Future
		terms = terms[:n-1]
	case n > 1 && (terms[n-1] == "now" || terms[n-1] == "today") && terms[n-2] == "from":
		tense = reltime.Future
		terms = terms[:n-2]
	case n > 0 && futurePrefix[terms[0]]:
		tense = reltime.Future
		terms = terms[1:]
	case n > 0 && pastPrefixes[terms[0]]:
		terms = terms[1:]
	}

	var pairs []Pair
	for i := 0; i < len(terms); i++ {
		if terms[i] == connector {
			continue
		}
		if i+1 < len(terms) && tokenizer.IsNumeric(terms[i]) && k.IsUnit(terms[i+1]) {
			pairs = append(pairs, Pair{Quantity: terms[i], Unit: terms[i+1]})
			i++
		}
	}
	return tense, pairs
}

// Phrase renders a pair as the single-unit phrase for tense.
func (p Pair) Phrase(tense reltime.Tense) []string {
	if tense == reltime.Future {
		return []string{"in", p.Quantity, p.Unit}
	}
	return []string{p.Quantity, p.Unit, "ago"}
}

// Expand resolves every compound region in terms. Regions with fewer than
// MinPairs pairs contribute nothing.
func Expand(terms []string, k *kb.KnowledgeBase, s *solver.Solver) []kb.Slot {
	var slots []kb.Slot
	for _, region := range Regions(terms, k) {
		tense, pairs := Split(region.Terms, k)
		if len(pairs) < MinPairs {
			continue
		}
		for _, pair := range pairs {
			seqs := sequence.Filter(sequence.Extract(pair.Phrase(tense), k), k)
			for _, seq := range seqs {
				if slot, outcome := s.Find(seq, k); outcome == solver.Resolved {
					slots = append(slots, slot)
				}
			}
		}
	}
	return slots
}
