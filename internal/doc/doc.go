// Package doc holds the document data model: tokens, spans, sentences,
// entities and their qualifier sets. Everything downstream (matching,
// qualifier detection, rendering) operates on these types.
package doc

import (
	"fmt"
	"sort"
)

// Attr selects which token attribute matching operates on.
type Attr int

const (
	// AttrText matches on the literal token text.
	AttrText Attr = iota
	// AttrNorm matches on the normalized token text (lowercased, de-accented).
	AttrNorm
)

// ParseAttr parses an attribute name ("text" or "norm", case-insensitive).
func ParseAttr(s string) (Attr, error) {
	switch s {
	case "text", "TEXT", "Text":
		return AttrText, nil
	case "norm", "NORM", "Norm":
		return AttrNorm, nil
	}
	return AttrText, fmt.Errorf("unknown token attribute %q (expected \"text\" or \"norm\")", s)
}

// String returns the attribute name.
func (a Attr) String() string {
	if a == AttrNorm {
		return "norm"
	}
	return "text"
}

// Token is an atomic unit of text. Tokens are produced by the tokenizer and
// immutable afterwards, except for Norm which the normalizer fills in.
type Token struct {
	Text  string `json:"text"`            // Literal text
	Norm  string `json:"norm,omitempty"`  // Normalized form
	Start int    `json:"start"`           // Start character offset in the document text
	End   int    `json:"end"`             // End character offset (exclusive)
	Index int    `json:"index"`           // Position in the token sequence
}

// Attr returns the token attribute value for the given selector. A token
// without a normalized form falls back to its literal text.
func (t Token) Attr(a Attr) string {
	if a == AttrNorm {
		if t.Norm == "" {
			return t.Text
		}
		return t.Norm
	}
	return t.Text
}

// Document is an ordered sequence of tokens over a raw text, plus the
// derived annotations (sentences, entities) attached during one pipeline
// run. A Document owns its annotations for its lifetime.
type Document struct {
	Text      string
	Tokens    []Token
	Sentences []Span
	Entities  []*Entity
}

// New creates a document from raw text and its token sequence. It rejects
// token sequences with out-of-bounds or non-monotonic offsets, which
// indicate a bug in the tokenizer rather than bad user input.
func New(text string, tokens []Token) (*Document, error) {
	prevEnd := 0
	for i, tok := range tokens {
		if tok.Start < prevEnd || tok.End < tok.Start || tok.End > len(text) {
			return nil, fmt.Errorf("token %d (%q): non-monotonic or out-of-bounds offsets [%d, %d)",
				i, tok.Text, tok.Start, tok.End)
		}
		if tok.Index != i {
			return nil, fmt.Errorf("token %d (%q): sequence index %d does not match position",
				i, tok.Text, tok.Index)
		}
		prevEnd = tok.End
	}

	return &Document{Text: text, Tokens: tokens}, nil
}

// Span returns a span over the document's tokens, with its text cached.
func (d *Document) Span(start, end int) (Span, error) {
	if start < 0 || end > len(d.Tokens) || start >= end {
		return Span{}, fmt.Errorf("span [%d, %d) out of bounds for document with %d tokens",
			start, end, len(d.Tokens))
	}

	return Span{
		doc:   d,
		Start: start,
		End:   end,
		text:  d.Text[d.Tokens[start].Start:d.Tokens[end-1].End],
	}, nil
}

// SentenceOf returns the sentence fully containing the given token range.
// An entity crossing a sentence boundary violates the input contract
// between sentencizer and entity matcher, and is reported as an error.
func (d *Document) SentenceOf(start, end int) (Span, error) {
	for _, sent := range d.Sentences {
		if sent.Start <= start && end <= sent.End {
			return sent, nil
		}
	}
	return Span{}, fmt.Errorf("token range [%d, %d) crosses a sentence boundary", start, end)
}

// Span is a contiguous half-open token range [Start, End) over a document.
// Spans are value objects; two spans are equal if they reference the same
// document and token range.
type Span struct {
	doc   *Document
	Start int
	End   int
	text  string
}

// Text returns the literal text covered by the span.
func (s Span) Text() string { return s.text }

// Doc returns the owning document.
func (s Span) Doc() *Document { return s.doc }

// Len returns the number of tokens in the span.
func (s Span) Len() int { return s.End - s.Start }

// CharStart returns the character offset of the span's first token.
func (s Span) CharStart() int { return s.doc.Tokens[s.Start].Start }

// CharEnd returns the character offset just past the span's last token.
func (s Span) CharEnd() int { return s.doc.Tokens[s.End-1].End }

// Qualifier assigns one qualifier class to one of its values for an entity.
// Prob is only set by detectors that produce confidence scores.
type Qualifier struct {
	Name      string   `json:"name"`
	Value     string   `json:"value"`
	IsDefault bool     `json:"is_default"`
	Priority  int      `json:"-"`
	Prob      *float64 `json:"prob,omitempty"`
}

// String returns the qualifier in "Name.Value" form.
func (q Qualifier) String() string { return q.Name + "." + q.Value }

// Entity is a span matched against a concept dictionary. Its qualifier set
// holds at most one qualifier per class; after a full detection pass it
// holds exactly one per declared class.
type Entity struct {
	Span
	Label      string
	qualifiers map[string]Qualifier
}

// NewEntity creates an entity for the given span and concept label.
func NewEntity(span Span, label string) *Entity {
	return &Entity{Span: span, Label: label}
}

// SetQualifier sets the qualifier for its class, replacing any previous
// value for the same class.
func (e *Entity) SetQualifier(q Qualifier) {
	if e.qualifiers == nil {
		e.qualifiers = make(map[string]Qualifier)
	}
	e.qualifiers[q.Name] = q
}

// Qualifier returns the qualifier assigned for the given class name.
func (e *Entity) Qualifier(name string) (Qualifier, bool) {
	q, ok := e.qualifiers[name]
	return q, ok
}

// Qualifiers returns the entity's qualifier set, ordered by class name.
func (e *Entity) Qualifiers() []Qualifier {
	qs := make([]Qualifier, 0, len(e.qualifiers))
	for _, q := range e.qualifiers {
		qs = append(qs, q)
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i].Name < qs[j].Name })
	return qs
}
