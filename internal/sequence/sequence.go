// Package sequence finds candidate temporal phrases in a token stream.
//
// Extract cuts the stream into maximal runs of knowledge-base keyterms.
// Filter then trims each run against the phrase index: a run is kept as-is
// when it is a phrase, or with its first or last token dropped when that
// yields a phrase. Runs with more than one token of noise on the same end are
// not recovered.
package sequence

import "github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb"

// Extract returns the maximal contiguous runs of terms that are all
// keyterms, in input order.
func Extract(terms []string, k *kb.KnowledgeBase) [][]string {
	var (
		seqs    [][]string
		current []string
	)
	for _, term := range terms {
		if k.IsKeyterm(term) {
			current = append(current, term)
			continue
		}
		if len(current) > 0 {
			seqs = append(seqs, current)
			current = nil
		}
	}
	if len(current) > 0 {
		seqs = append(seqs, current)
	}
	return seqs
}

// Filter reduces each candidate to a known phrase or drops it.
func Filter(seqs [][]string, k *kb.KnowledgeBase) [][]string {
	out := make([][]string, 0, len(seqs))
	for _, seq := range seqs {
		if trimmed, ok := trim(seq, k); ok {
			out = append(out, trimmed)
		}
	}
	return out
}

func trim(seq []string, k *kb.KnowledgeBase) ([]string, bool) {
	switch {
	case len(seq) == 0:
		return nil, false
	case k.Contains(seq):
		return seq, true
	case len(seq) == 1:
		return nil, false
	case k.Contains(seq[1:]):
		return seq[1:], true
	case k.Contains(seq[:len(seq)-1]):
		return seq[:len(seq)-1], true
	}
	return nil, false
}
