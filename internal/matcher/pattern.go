// Package matcher finds occurrences of registered patterns in a token
// sequence. It is the shared substrate for both entity matching and
// qualifier trigger matching. Patterns are either phrases (with optional
// fuzzy and proximity matching) or structured per-token constraint lists.
package matcher

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/pvdheide/clinform/internal/doc"
)

// PhraseOpts control how a phrase pattern matches.
type PhraseOpts struct {
	// Attr is the token attribute to match on.
	Attr doc.Attr
	// Proximity is the number of arbitrary tokens allowed between
	// consecutive phrase words. A phrase of N words with proximity P spans
	// at most N + P*(N-1) tokens; this is enforced as a hard loop bound.
	Proximity int
	// Fuzzy is the maximum edit distance per word, 0 for exact matching.
	Fuzzy int
	// FuzzyMinLen disables fuzzy matching for phrase words shorter than
	// this, to avoid false positives on short words.
	FuzzyMinLen int
}

// Constraint restricts a single token position in a structured pattern.
// Exactly one of Value, In or Regex may be set; a constraint with none of
// them set must be Optional and matches any single token (a wildcard).
type Constraint struct {
	Attr     doc.Attr `json:"-"`
	Value    string   `json:"value,omitempty"`
	In       []string `json:"in,omitempty"`
	Regex    string   `json:"regex,omitempty"`
	Fuzzy    int      `json:"fuzzy,omitempty"`
	Optional bool     `json:"optional,omitempty"`

	re    *regexp.Regexp
	inSet map[string]struct{}
}

// matches reports whether a token satisfies the constraint.
func (c *Constraint) matches(tok doc.Token) bool {
	val := tok.Attr(c.Attr)

	switch {
	case c.Value != "":
		if val == c.Value {
			return true
		}
		return c.Fuzzy > 0 && withinDistance(c.Value, val, c.Fuzzy)
	case c.inSet != nil:
		_, ok := c.inSet[val]
		return ok
	case c.re != nil:
		return c.re.MatchString(val)
	default:
		// Wildcard: any token.
		return true
	}
}

func (c *Constraint) compile() error {
	set := 0
	if c.Value != "" {
		set++
	}
	if len(c.In) > 0 {
		set++
	}
	if c.Regex != "" {
		set++
	}

	if set > 1 {
		return fmt.Errorf("constraint may set only one of value, in, regex")
	}
	if set == 0 && !c.Optional {
		return fmt.Errorf("constraint without value, in or regex must be optional")
	}

	if len(c.In) > 0 {
		c.inSet = make(map[string]struct{}, len(c.In))
		for _, v := range c.In {
			c.inSet[v] = struct{}{}
		}
	}

	if c.Regex != "" {
		re, err := regexp.Compile(c.Regex)
		if err != nil {
			return fmt.Errorf("compile regex %q: %w", c.Regex, err)
		}
		c.re = re
	}

	return nil
}

// RawConstraint is the serialized form of a constraint, with the attribute
// as a string and "op" for the optional marker. It appears in rule files
// and concept dictionaries.
type RawConstraint struct {
	Attr  string   `json:"attr" yaml:"attr"`
	Value string   `json:"value" yaml:"value"`
	In    []string `json:"in" yaml:"in"`
	Regex string   `json:"regex" yaml:"regex"`
	Fuzzy int      `json:"fuzzy" yaml:"fuzzy"`
	Op    string   `json:"op" yaml:"op"`
}

// ParseConstraint builds a constraint from its serialized JSON form. The
// defaultAttr applies when the constraint does not name one.
func ParseConstraint(raw json.RawMessage, defaultAttr doc.Attr) (Constraint, error) {
	var rc RawConstraint
	if err := json.Unmarshal(raw, &rc); err != nil {
		return Constraint{}, fmt.Errorf("parse token constraint: %w", err)
	}
	return rc.Compile(defaultAttr)
}

// Compile turns the serialized constraint into a matchable one.
func (rc RawConstraint) Compile(defaultAttr doc.Attr) (Constraint, error) {
	c := Constraint{
		Attr:  defaultAttr,
		Value: rc.Value,
		In:    rc.In,
		Regex: rc.Regex,
		Fuzzy: rc.Fuzzy,
	}

	if rc.Attr != "" {
		attr, err := doc.ParseAttr(rc.Attr)
		if err != nil {
			return Constraint{}, err
		}
		c.Attr = attr
	}

	switch rc.Op {
	case "":
	case "?":
		c.Optional = true
	default:
		return Constraint{}, fmt.Errorf("unknown constraint op %q (only \"?\" is supported)", rc.Op)
	}

	if err := c.compile(); err != nil {
		return Constraint{}, err
	}

	return c, nil
}

// Pattern is a compiled matching specification, identified by ID. A pattern
// is either a phrase (words non-empty) or a structured constraint sequence.
type Pattern struct {
	ID string

	words []string
	opts  PhraseOpts

	constraints []Constraint
}

// CompilePhrase compiles a multi-word phrase pattern. The words must be
// pre-split with the same tokenizer used for documents, and pre-normalized
// when matching on the normalized attribute. An empty phrase is a
// configuration error.
func CompilePhrase(id string, words []string, opts PhraseOpts) (*Pattern, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("pattern %s: empty phrase", id)
	}
	if opts.Proximity < 0 || opts.Fuzzy < 0 || opts.FuzzyMinLen < 0 {
		return nil, fmt.Errorf("pattern %s: negative matching option", id)
	}

	return &Pattern{ID: id, words: words, opts: opts}, nil
}

// CompileTokens compiles a structured pattern from per-token constraints.
// An empty constraint list is a configuration error, as is a pattern with
// no required positions (it would match the empty span everywhere).
func CompileTokens(id string, constraints []Constraint) (*Pattern, error) {
	if len(constraints) == 0 {
		return nil, fmt.Errorf("pattern %s: empty constraint list", id)
	}

	required := 0
	for i := range constraints {
		c := constraints[i]
		if err := c.compile(); err != nil {
			return nil, fmt.Errorf("pattern %s, position %d: %w", id, i, err)
		}
		if !c.Optional {
			required++
		}
		constraints[i] = c
	}

	if required == 0 {
		return nil, fmt.Errorf("pattern %s: all positions optional", id)
	}

	return &Pattern{ID: id, constraints: constraints}, nil
}

// IsPhrase reports whether this is a phrase pattern (as opposed to a
// structured one).
func (p *Pattern) IsPhrase() bool { return len(p.words) > 0 }
