// Package entity implements rule-based entity matching: concept
// dictionaries of terms are compiled into patterns, matched over a
// document, pruned of pseudo matches, and optionally resolved for overlap.
package entity

import (
	"fmt"

	"github.com/pvdheide/clinform/internal/doc"
	"github.com/pvdheide/clinform/internal/matcher"
	"github.com/pvdheide/clinform/internal/tokenize"
)

// Defaults are the matcher-level matching settings. A term only overrides
// the fields it sets explicitly.
type Defaults struct {
	Attr        doc.Attr
	Proximity   int
	Fuzzy       int
	FuzzyMinLen int
	Pseudo      bool
}

// Term is a single matching specification for a concept. Optional fields
// are pointers so that an explicit zero ("fuzzy: 0") is distinguishable
// from "not set, inherit the matcher default".
type Term struct {
	Phrase      string  `json:"phrase" yaml:"phrase"`
	Attr        *string `json:"attr,omitempty" yaml:"attr,omitempty"`
	Proximity   *int    `json:"proximity,omitempty" yaml:"proximity,omitempty"`
	Fuzzy       *int    `json:"fuzzy,omitempty" yaml:"fuzzy,omitempty"`
	FuzzyMinLen *int    `json:"fuzzy_min_len,omitempty" yaml:"fuzzy_min_len,omitempty"`
	Pseudo      *bool   `json:"pseudo,omitempty" yaml:"pseudo,omitempty"`
}

// NewTerm creates a term matching the given phrase with all settings
// inherited from the matcher.
func NewTerm(phrase string) Term {
	return Term{Phrase: phrase}
}

// resolve merges the term's overrides onto the matcher defaults.
func (t Term) resolve(defaults Defaults) (Defaults, error) {
	out := defaults

	if t.Attr != nil {
		attr, err := doc.ParseAttr(*t.Attr)
		if err != nil {
			return out, fmt.Errorf("term %q: %w", t.Phrase, err)
		}
		out.Attr = attr
	}
	if t.Proximity != nil {
		out.Proximity = *t.Proximity
	}
	if t.Fuzzy != nil {
		out.Fuzzy = *t.Fuzzy
	}
	if t.FuzzyMinLen != nil {
		out.FuzzyMinLen = *t.FuzzyMinLen
	}
	if t.Pseudo != nil {
		out.Pseudo = *t.Pseudo
	}

	return out, nil
}

// compile turns the term into a phrase pattern. Phrase words are split
// with the document tokenizer, and normalized when matching on the
// normalized attribute, so patterns see the same forms documents do.
func (t Term) compile(id string, defaults Defaults) (*matcher.Pattern, bool, error) {
	settings, err := t.resolve(defaults)
	if err != nil {
		return nil, false, err
	}

	words := tokenize.Split(t.Phrase)
	if settings.Attr == doc.AttrNorm {
		for i, w := range words {
			words[i] = tokenize.Normalize(w)
		}
	}

	pattern, err := matcher.CompilePhrase(id, words, matcher.PhraseOpts{
		Attr:        settings.Attr,
		Proximity:   settings.Proximity,
		Fuzzy:       settings.Fuzzy,
		FuzzyMinLen: settings.FuzzyMinLen,
	})
	if err != nil {
		return nil, false, fmt.Errorf("term %q: %w", t.Phrase, err)
	}

	return pattern, settings.Pseudo, nil
}
