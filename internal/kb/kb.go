// Package kb holds the knowledge base that drives relative-time extraction:
// every phrase the engine can resolve, an inverted index from keyterm to the
// phrases containing it, the document frequency of each keyterm, and the unit
// vocabulary.
//
// A KnowledgeBase is immutable once built and safe for concurrent readers.
// Replacing it at runtime goes through Handle, which swaps whole snapshots.
package kb

import (
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/reltime"
)

// Slot is the resolved meaning of a phrase.
type Slot struct {
	Cardinality int           `json:"cardinality"`
	Frame       reltime.Frame `json:"frame"`
	Tense       reltime.Tense `json:"tense"`
}

// RelativeTime converts the slot into its public value.
func (s Slot) RelativeTime() reltime.RelativeTime {
	return reltime.New(s.Cardinality, s.Frame, s.Tense)
}

// PhraseID identifies a phrase within one KnowledgeBase.
type PhraseID uint32

// Phrase is one canonical phrase and its meaning.
type Phrase struct {
	Text string
	Len  int
	Slot Slot
}

// Unit is a surface form of a calendar unit. Scale multiplies the cardinality,
// which is how "decade" folds into years.
type Unit struct {
	Frame reltime.Frame `json:"frame" yaml:"frame"`
	Scale int           `json:"scale" yaml:"scale"`
}

// KnowledgeBase is an immutable phrase index.
type KnowledgeBase struct {
	phrases  []Phrase
	slots    map[string]PhraseID
	postings map[string]PostingList
	counts   map[string]int
	units    map[string]Unit
	maxLen   int
}

// IsKeyterm reports whether term occurs in at least one phrase.
func (kb *KnowledgeBase) IsKeyterm(term string) bool {
	_, ok := kb.postings[term]
	return ok
}

// IsUnit reports whether term is a surface form of a calendar unit.
func (kb *KnowledgeBase) IsUnit(term string) bool {
	_, ok := kb.units[term]
	return ok
}

// Unit returns the unit a surface form names.
func (kb *KnowledgeBase) Unit(term string) (Unit, bool) {
	u, ok := kb.units[term]
	return u, ok
}

// Lookup returns the slot for an exact canonical phrase.
func (kb *KnowledgeBase) Lookup(terms []string) (Slot, bool) {
	id, ok := kb.slots[tokenizer.Join(terms)]
	if !ok {
		return Slot{}, false
	}
	return kb.phrases[id].Slot, true
}

// Contains reports whether terms form an exact phrase.
func (kb *KnowledgeBase) Contains(terms []string) bool {
	_, ok := kb.slots[tokenizer.Join(terms)]
	return ok
}

// Postings returns the sorted phrase IDs containing term. The returned slice
// is shared and must not be modified.
func (kb *KnowledgeBase) Postings(term string) PostingList {
	return kb.postings[term]
}

// Count returns how many phrases contain term.
func (kb *KnowledgeBase) Count(term string) int {
	return kb.counts[term]
}

// Phrase returns the phrase with the given ID.
func (kb *KnowledgeBase) Phrase(id PhraseID) Phrase {
	return kb.phrases[id]
}

// Len returns the number of phrases.
func (kb *KnowledgeBase) Len() int {
	return len(kb.phrases)
}

// Stats summarises a knowledge base.
type Stats struct {
	Phrases      int `json:"phrases"`
	Keyterms     int `json:"keyterms"`
	Units        int `json:"units"`
	Postings     int `json:"postings"`
	MaxPhraseLen int `json:"max_phrase_len"`
}

// Stats returns size figures for the knowledge base.
func (kb *KnowledgeBase) Stats() Stats {
	total := 0
	for _, c := range kb.counts {
		total += c
	}
	return Stats{
		Phrases:      len(kb.phrases),
		Keyterms:     len(kb.postings),
		Units:        len(kb.units),
		Postings:     total,
		MaxPhraseLen: kb.maxLen,
	}
}
