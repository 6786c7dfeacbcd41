// Package text provides the tokenization, sentence segmentation and fuzzy
// string matching primitives shared by the lexical index, the reranker and
// the citation verifier.
package text

import (
	"strings"
	"unicode"
)

// stopWords is a small English stop-word list. Stop words are skipped both at
// indexing and at query time, so a stop-word-only query produces an empty
// term list rather than matching everything.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"he": {}, "her": {}, "his": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "its": {}, "may": {}, "no": {}, "not": {}, "of": {}, "on": {},
	"or": {}, "our": {}, "she": {}, "so": {}, "such": {}, "that": {},
	"the": {}, "their": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "to": {}, "was": {}, "we": {}, "were": {}, "what": {},
	"which": {}, "will": {}, "with": {}, "would": {}, "you": {},
}

// IsStopWord reports whether the lowercased token is a stop word.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// Tokenize lowercases the input and splits it into tokens, trimming
// non-alphanumeric runes from token edges. Stop words are retained.
func Tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Terms tokenizes the input and drops stop words. This is the query/index
// term pipeline: a stop-word-only input yields an empty slice.
func Terms(s string) []string {
	tokens := Tokenize(s)
	terms := tokens[:0]
	for _, t := range tokens {
		if !IsStopWord(t) {
			terms = append(terms, t)
		}
	}
	return terms
}

// Span is a half-open rune-offset range.
type Span struct {
	Start int
	End   int
}

// Sentences segments s into sentence spans with rune offsets into s.
// Segmentation splits on '.', '!', '?' and newlines; abbreviation handling is
// deliberately minimal. Whitespace-only segments are dropped.
func Sentences(s string) []Span {
	runes := []rune(s)
	var spans []Span
	start := 0
	flush := func(end int) {
		for start < end && unicode.IsSpace(runes[start]) {
			start++
		}
		last := end
		for last > start && unicode.IsSpace(runes[last-1]) {
			last--
		}
		if last > start {
			spans = append(spans, Span{Start: start, End: last})
		}
		start = end
	}
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			// Consume trailing terminators and closing quotes.
			j := i + 1
			for j < len(runes) && (runes[j] == '.' || runes[j] == '!' || runes[j] == '?' || runes[j] == '"' || runes[j] == '\'' || runes[j] == ')') {
				j++
			}
			flush(j)
			i = j - 1
		case '\n':
			flush(i)
			start = i + 1
		}
	}
	flush(len(runes))
	return spans
}

// TokenEquals reports whether two tokens match. Beyond exact equality, tokens
// of at least four runes match when one is a prefix of the other (so
// "terminate" matches "terminated"), and tokens of at least five runes with
// near-equal length match at an edit distance of one.
func TokenEquals(a, b string) bool {
	if a == b {
		return true
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) >= 4 && len(rb) >= 4 {
		n := min(len(ra), len(rb))
		if string(ra[:n]) == string(rb[:n]) {
			return true
		}
	}
	if len(ra) >= 5 && len(rb) >= 5 && abs(len(ra)-len(rb)) <= 1 {
		return Levenshtein(a, b) <= 1
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
