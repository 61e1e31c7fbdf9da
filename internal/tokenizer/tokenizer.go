// Package tokenizer splits normalized text into lower-cased terms. Unlike a
// search tokenizer it keeps every word: articles, connectors and one-letter
// words all carry meaning in temporal expressions ("a day ago", "in 2 weeks").
package tokenizer

import (
	"strings"
	"unicode"
)

// Token represents a single lower-cased term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into lower-cased Tokens on non-alphanumeric
// boundaries.
func Tokenize(text string) []Token {
	words := Terms(text)
	tokens := make([]Token, len(words))
	for i, word := range words {
		tokens[i] = Token{Term: word, Position: i}
	}
	return tokens
}

// Terms is Tokenize without positions.
func Terms(text string) []string {
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Join renders terms in the canonical phrase form used as a lookup key:
// single spaces, no padding.
func Join(terms []string) string {
	return strings.Join(terms, " ")
}

// IsNumeric reports whether term is a non-empty run of ASCII digits.
func IsNumeric(term string) bool {
	if term == "" {
		return false
	}
	for i := 0; i < len(term); i++ {
		if term[i] < '0' || term[i] > '9' {
			return false
		}
	}
	return true
}
