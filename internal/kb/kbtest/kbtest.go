// Package kbtest builds small knowledge bases for tests.
package kbtest

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb"
)

// MaxCardinality bounds the knowledge base returned by New.
const MaxCardinality = 60

// New returns a knowledge base generated from the embedded seed with the
// cardinality range cut down to MaxCardinality.
func New(tb testing.TB) *kb.KnowledgeBase {
	tb.Helper()
	seed, err := kb.ParseSeed(kb.DefaultSeed())
	if err != nil {
		tb.Fatalf("parsing embedded seed: %v", err)
	}
	seed.MaxCardinality = MaxCardinality
	k, err := kb.FromSeed(seed)
	if err != nil {
		tb.Fatalf("building knowledge base: %v", err)
	}
	return k
}

// FromPhrases builds a knowledge base containing exactly the given phrases.
func FromPhrases(tb testing.TB, phrases map[string]kb.Slot) *kb.KnowledgeBase {
	tb.Helper()
	b := kb.NewBuilder()
	for text, slot := range phrases {
		if err := b.AddText(text, slot); err != nil {
			tb.Fatalf("adding %q: %v", text, err)
		}
	}
	return b.Build()
}
