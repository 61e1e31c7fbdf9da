package kb

import (
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/tokenizer"
)

var (
	// ErrConflictingPhrase is returned when a phrase is added twice with
	// different meanings.
	ErrConflictingPhrase = errors.New("phrase already defined with a different slot")
	// ErrEmptyPhrase is returned for phrases with no terms.
	ErrEmptyPhrase = errors.New("empty phrase")
)

// Builder accumulates phrases and units and freezes them into a
// KnowledgeBase. A Builder is not safe for concurrent use.
type Builder struct {
	phrases  []Phrase
	slots    map[string]PhraseID
	postings map[string]PostingList
	units    map[string]Unit
	maxLen   int
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		slots:    make(map[string]PhraseID),
		postings: make(map[string]PostingList),
		units:    make(map[string]Unit),
	}
}

// AddUnit registers a unit surface form.
func (b *Builder) AddUnit(form string, unit Unit) {
	if unit.Scale <= 0 {
		unit.Scale = 1
	}
	b.units[form] = unit
}

// Add registers a phrase. Re-adding an identical phrase with the same slot is
// a no-op.
func (b *Builder) Add(terms []string, slot Slot) error {
	if len(terms) == 0 {
		return ErrEmptyPhrase
	}
	text := tokenizer.Join(terms)
	if id, ok := b.slots[text]; ok {
		if b.phrases[id].Slot != slot {
			return fmt.Errorf("%w: %q", ErrConflictingPhrase, text)
		}
		return nil
	}
	id := PhraseID(len(b.phrases))
	b.phrases = append(b.phrases, Phrase{Text: text, Len: len(terms), Slot: slot})
	b.slots[text] = id
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		b.postings[term] = append(b.postings[term], id)
	}
	if len(terms) > b.maxLen {
		b.maxLen = len(terms)
	}
	return nil
}

// AddText tokenizes text and registers it as a phrase.
func (b *Builder) AddText(text string, slot Slot) error {
	return b.Add(tokenizer.Terms(text), slot)
}

// Len returns the number of phrases added so far.
func (b *Builder) Len() int {
	return len(b.phrases)
}

// Build freezes the builder into a KnowledgeBase. The builder must not be
// used afterwards.
func (b *Builder) Build() *KnowledgeBase {
	counts := make(map[string]int, len(b.postings))
	for term, list := range b.postings {
		counts[term] = len(list)
	}
	kb := &KnowledgeBase{
		phrases:  b.phrases,
		slots:    b.slots,
		postings: b.postings,
		counts:   counts,
		units:    b.units,
		maxLen:   b.maxLen,
	}
	*b = Builder{}
	return kb
}
