package kb

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInconsistent is wrapped by the error Validate returns.
var ErrInconsistent = errors.New("knowledge base is inconsistent")

// Collision is a set of equal-length phrases that share every keyterm, so a
// posting-list intersection cannot tell them apart.
type Collision struct {
	Phrases []string
}

// ConsistencyError lists every collision found by Validate.
type ConsistencyError struct {
	Collisions []Collision
}

func (e *ConsistencyError) Error() string {
	const shown = 5
	var parts []string
	for i, c := range e.Collisions {
		if i == shown {
			parts = append(parts, fmt.Sprintf("and %d more", len(e.Collisions)-shown))
			break
		}
		parts = append(parts, strings.Join(c.Phrases, " | "))
	}
	return fmt.Sprintf("%s: %d ambiguous phrase groups: %s", ErrInconsistent, len(e.Collisions), strings.Join(parts, "; "))
}

func (e *ConsistencyError) Unwrap() error {
	return ErrInconsistent
}

// Validate checks that every phrase is the only phrase of its length
// containing all of its keyterms. This is the property the solver relies on
// to resolve a sequence to exactly one slot. It is a build-time check and
// walks the whole index.
func (kb *KnowledgeBase) Validate() error {
	groups := make(map[string][]PhraseID)
	var repeated []PhraseID
	for i, p := range kb.phrases {
		terms := strings.Fields(p.Text)
		set := slices.Clone(terms)
		slices.Sort(set)
		set = slices.Compact(set)
		if len(set) < len(terms) {
			repeated = append(repeated, PhraseID(i))
		}
		key := fmt.Sprintf("%d|%s", p.Len, strings.Join(set, " "))
		groups[key] = append(groups[key], PhraseID(i))
	}

	var collisions []Collision
	for _, ids := range groups {
		if len(ids) > 1 {
			collisions = append(collisions, kb.collision(ids))
		}
	}

	// A phrase with repeated terms has fewer distinct keyterms than positions,
	// so a longer-set phrase of the same length can still contain all of them.
	for _, id := range repeated {
		p := kb.phrases[id]
		var lists []PostingList
		for _, term := range uniqueTerms(strings.Fields(p.Text)) {
			lists = append(lists, kb.postings[term])
		}
		slices.SortFunc(lists, func(a, b PostingList) int { return len(a) - len(b) })
		var same []PhraseID
		for _, other := range Intersect(lists...) {
			if kb.phrases[other].Len == p.Len {
				same = append(same, other)
			}
		}
		if len(same) > 1 {
			collisions = append(collisions, kb.collision(same))
		}
	}

	if len(collisions) == 0 {
		return nil
	}
	slices.SortFunc(collisions, func(a, b Collision) int {
		return strings.Compare(strings.Join(a.Phrases, "|"), strings.Join(b.Phrases, "|"))
	})
	collisions = slices.CompactFunc(collisions, func(a, b Collision) bool {
		return slices.Equal(a.Phrases, b.Phrases)
	})
	return &ConsistencyError{Collisions: collisions}
}

func (kb *KnowledgeBase) collision(ids []PhraseID) Collision {
	c := Collision{Phrases: make([]string, len(ids))}
	for i, id := range ids {
		c.Phrases[i] = kb.phrases[id].Text
	}
	slices.Sort(c.Phrases)
	return c
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
