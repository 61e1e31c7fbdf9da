// Package solver resolves a filtered sequence to the single phrase that
// contains all of its keyterms.
package solver

import (
	"log/slog"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb"
)

// Outcome classifies a Find call.
type Outcome int

const (
	Resolved Outcome = iota
	NoMatch
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case NoMatch:
		return "no_match"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Solver intersects keyterm posting lists. The zero value is not usable; use
// New.
type Solver struct {
	logger      *slog.Logger
	onAmbiguous func(seq []string, candidates int)
}

// Option configures a Solver.
type Option func(*Solver)

// WithAmbiguityHook registers a callback for sequences that match more than
// one phrase, which indicates an inconsistent knowledge base.
func WithAmbiguityHook(fn func(seq []string, candidates int)) Option {
	return func(s *Solver) { s.onAmbiguous = fn }
}

// New creates a Solver.
func New(opts ...Option) *Solver {
	s := &Solver{logger: slog.Default().With("component", "solver")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Find returns the slot of the unique phrase with the same length as seq
// that contains every term of seq.
func (s *Solver) Find(seq []string, k *kb.KnowledgeBase) (kb.Slot, Outcome) {
	if len(seq) == 0 {
		return kb.Slot{}, NoMatch
	}
	terms := slices.Clone(seq)
	slices.Sort(terms)
	terms = slices.Compact(terms)

	// Shortest list first keeps the candidate set small from the start.
	slices.SortFunc(terms, func(a, b string) int { return k.Count(a) - k.Count(b) })
	lists := make([]kb.PostingList, len(terms))
	for i, term := range terms {
		lists[i] = k.Postings(term)
		if len(lists[i]) == 0 {
			return kb.Slot{}, NoMatch
		}
	}

	var (
		match kb.PhraseID
		found int
	)
	for _, id := range kb.Intersect(lists...) {
		if k.Phrase(id).Len != len(seq) {
			continue
		}
		match = id
		found++
	}

	switch found {
	case 0:
		return kb.Slot{}, NoMatch
	case 1:
		return k.Phrase(match).Slot, Resolved
	default:
		s.logger.Warn("sequence matches multiple phrases", "sequence", seq, "candidates", found)
		if s.onAmbiguous != nil {
			s.onAmbiguous(seq, found)
		}
		return kb.Slot{}, Ambiguous
	}
}
