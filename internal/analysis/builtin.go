package analysis

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// filterFunc maps a lowercased word to its indexed form; "" drops the word.
type filterFunc func(word string) string

type chainAnalyzer struct {
	name   string
	split  func(r rune) bool
	lower  bool
	filter filterFunc
}

func (a *chainAnalyzer) Name() string { return a.name }

func (a *chainAnalyzer) Analyze(text string) []Token {
	if a.lower {
		text = strings.ToLower(text)
	}
	words := strings.FieldsFunc(text, a.split)
	tokens := make([]Token, 0, len(words))
	for pos, word := range words {
		term := word
		if a.filter != nil {
			term = a.filter(word)
		}
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{Term: term, Position: pos})
	}
	return tokens
}

func notAlphanumeric(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// Standard lowercases and splits on non-alphanumeric runes. It removes no
// stop-words and does not stem.
func Standard() Analyzer {
	return &chainAnalyzer{name: "standard", split: notAlphanumeric, lower: true}
}

// Simple lowercases, drops stop-words and single characters and applies a
// light suffix stemmer.
func Simple() Analyzer {
	return &chainAnalyzer{
		name:  "simple",
		split: notAlphanumeric,
		lower: true,
		filter: func(word string) string {
			if len(word) < 2 {
				return ""
			}
			if _, isStop := stopWords[word]; isStop {
				return ""
			}
			return stem(word)
		},
	}
}

// English lowercases, drops stop-words and applies the Snowball English
// stemmer.
func English() Analyzer {
	return &chainAnalyzer{
		name:  "english",
		split: notAlphanumeric,
		lower: true,
		filter: func(word string) string {
			if _, isStop := stopWords[word]; isStop {
				return ""
			}
			return english.Stem(word, false)
		},
	}
}

// Whitespace splits on whitespace only and keeps case.
func Whitespace() Analyzer {
	return &chainAnalyzer{name: "whitespace", split: unicode.IsSpace}
}

type keywordAnalyzer struct{}

// Keyword emits the whole input as a single token.
func Keyword() Analyzer { return keywordAnalyzer{} }

func (keywordAnalyzer) Name() string { return "keyword" }

func (keywordAnalyzer) Analyze(text string) []Token {
	if text == "" {
		return nil
	}
	return []Token{{Term: text, Position: 0}}
}
