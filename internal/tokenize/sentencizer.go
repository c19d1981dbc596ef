package tokenize

import (
	"context"
	"unicode"
	"unicode/utf8"

	"github.com/pvdheide/clinform/internal/doc"
)

// Sentencizer derives non-overlapping sentence spans over the token
// sequence. Any character in EndChars can mark the end of a sentence; the
// boundary then falls at the next token that is alphanumeric, starts with
// "[", or is listed in StartPunct.
type Sentencizer struct {
	EndChars   map[string]struct{}
	StartPunct map[string]struct{}
}

// NewSentencizer creates a sentencizer with the default boundary rules for
// clinical text, where a newline ends a sentence as reliably as a period.
func NewSentencizer() *Sentencizer {
	return &Sentencizer{
		EndChars:   toSet(".", "!", "?", "\n", "\r"),
		StartPunct: toSet("-", "*", "[", "("),
	}
}

func toSet(items ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// Name implements the pipeline stage contract.
func (s *Sentencizer) Name() string { return "sentencizer" }

// Process attaches sentence spans to the document.
func (s *Sentencizer) Process(_ context.Context, d *doc.Document) error {
	starts := s.sentenceStarts(d.Tokens)

	d.Sentences = d.Sentences[:0]

	open := -1
	for i := range d.Tokens {
		if !starts[i] {
			continue
		}
		if open >= 0 {
			span, err := d.Span(open, i)
			if err != nil {
				return err
			}
			d.Sentences = append(d.Sentences, span)
		}
		open = i
	}

	if open >= 0 {
		span, err := d.Span(open, len(d.Tokens))
		if err != nil {
			return err
		}
		d.Sentences = append(d.Sentences, span)
	}

	return nil
}

// sentenceStarts marks the tokens that open a sentence.
func (s *Sentencizer) sentenceStarts(tokens []doc.Token) []bool {
	starts := make([]bool, len(tokens))
	if len(tokens) == 0 {
		return starts
	}

	seenEndChar := true

	for i, tok := range tokens {
		if seenEndChar && s.canStart(tok) {
			starts[i] = true
			seenEndChar = false
		}
		if _, ok := s.EndChars[tok.Text]; ok {
			seenEndChar = true
		}
	}

	return starts
}

func (s *Sentencizer) canStart(tok doc.Token) bool {
	r, _ := utf8.DecodeRuneInString(tok.Text)
	if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '[' {
		return true
	}
	_, ok := s.StartPunct[tok.Text]
	return ok
}
