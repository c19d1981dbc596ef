// Package tokenize provides the text-level collaborators of the extraction
// core: a tokenizer for clinical narrative text, a normalizer that fills
// the normalized token attribute, and a sentencizer that derives sentence
// spans. Entity and qualifier matching consume their output but do not
// depend on their internals.
package tokenize

import (
	"unicode"
	"unicode/utf8"

	"github.com/pvdheide/clinform/internal/doc"
)

// Tokenize splits text into tokens with byte offsets. Alphanumeric runs
// form one token, every punctuation character is its own token, and
// newlines are kept as tokens because they can end a sentence. Spaces and
// tabs separate tokens and are discarded.
func Tokenize(text string) []doc.Token {
	var tokens []doc.Token

	add := func(start, end int) {
		tokens = append(tokens, doc.Token{
			Text:  text[start:end],
			Start: start,
			End:   end,
			Index: len(tokens),
		})
	}

	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])

		switch {
		case r == ' ' || r == '\t':
			i += size

		case r == '\n' || r == '\r':
			add(i, i+size)
			i += size

		case unicode.IsLetter(r) || unicode.IsDigit(r):
			start := i
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
			add(start, i)

		default:
			add(i, i+size)
			i += size
		}
	}

	return tokens
}

// Split returns only the token texts of a phrase. Pattern compilation uses
// this so phrases align with document tokenization.
func Split(phrase string) []string {
	tokens := Tokenize(phrase)
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = tok.Text
	}
	return words
}
