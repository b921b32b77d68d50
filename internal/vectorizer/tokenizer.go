package vectorizer

import (
	"strings"
	"unicode"
)

// minTokenLen drops single-character fragments left by splitting.
const minTokenLen = 2

// stopwords are filtered before vectorization. The set is fixed; changing
// it invalidates every stored vector, so treat it as part of the index
// format.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "such": {}, "that": {}, "the": {}, "their": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "will": {}, "with": {},
}

// Tokenize normalizes text into index terms: lowercase, split on
// non-alphanumeric boundaries, drop tokens shorter than two characters
// and stopwords. Deterministic for a given input.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < minTokenLen {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// IsStopword reports whether a normalized token is in the stopword set.
func IsStopword(token string) bool {
	_, ok := stopwords[strings.ToLower(token)]
	return ok
}
