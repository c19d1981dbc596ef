package entity

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pvdheide/clinform/internal/doc"
	"github.com/pvdheide/clinform/internal/matcher"
)

// Options configure a Matcher.
type Options struct {
	// Defaults are the matcher-level matching settings, overridable per term.
	Defaults Defaults
	// ResolveOverlap removes overlapping entities across concepts, keeping
	// the longest span (earliest start on equal length, first-registered
	// concept on a full tie).
	ResolveOverlap bool
	// PseudoExact requires a pseudo match to coincide exactly with a
	// positive match to suppress it. By default any overlap suppresses.
	PseudoExact bool
}

type termEntry struct {
	concept string
	pseudo  bool
}

// Matcher matches concept dictionaries against documents. Terms accumulate
// per concept; registration order only affects how full ties are broken.
// After construction and loading, a Matcher is read-only and safe to share
// across concurrently processed documents.
type Matcher struct {
	opts     Options
	patterns []*matcher.Pattern
	entries  map[string]termEntry
}

// NewMatcher creates an empty entity matcher.
func NewMatcher(opts Options) *Matcher {
	return &Matcher{
		opts:    opts,
		entries: make(map[string]termEntry),
	}
}

// AddPhrase registers a literal phrase for a concept, with all matching
// settings inherited from the matcher.
func (m *Matcher) AddPhrase(concept, phrase string) error {
	return m.AddTerm(concept, NewTerm(phrase))
}

// AddTerm registers a term for a concept. Duplicate concepts accumulate.
func (m *Matcher) AddTerm(concept string, t Term) error {
	id := m.nextID()

	pattern, pseudo, err := t.compile(id, m.opts.Defaults)
	if err != nil {
		return fmt.Errorf("concept %q: %w", concept, err)
	}

	m.patterns = append(m.patterns, pattern)
	m.entries[id] = termEntry{concept: concept, pseudo: pseudo}

	return nil
}

// AddPattern registers a structured token pattern for a concept. Structured
// patterns are matched exactly as specified; the matcher-level fuzzy,
// proximity and attribute settings do not apply to them.
func (m *Matcher) AddPattern(concept string, constraints []matcher.Constraint) error {
	id := m.nextID()

	pattern, err := matcher.CompileTokens(id, constraints)
	if err != nil {
		return fmt.Errorf("concept %q: %w", concept, err)
	}

	m.patterns = append(m.patterns, pattern)
	m.entries[id] = termEntry{concept: concept}

	return nil
}

func (m *Matcher) nextID() string {
	return "term_" + strconv.Itoa(len(m.patterns))
}

// Len returns the number of registered terms.
func (m *Matcher) Len() int { return len(m.patterns) }

// Match finds all entities in the document. Positive matches suppressed by
// a pseudo match of the same concept are dropped; pseudo matches never
// produce entities themselves. The document's tokens are not mutated.
func (m *Matcher) Match(d *doc.Document) ([]*doc.Entity, error) {
	if len(m.patterns) == 0 {
		return nil, fmt.Errorf("no concepts added")
	}

	matches := matcher.FindMatches(d.Tokens, m.patterns)

	var positive []matcher.Match
	var pseudo []matcher.Match

	for _, match := range matches {
		if m.entries[match.PatternID].pseudo {
			pseudo = append(pseudo, match)
		} else {
			positive = append(positive, match)
		}
	}

	var entities []*doc.Entity

	for _, match := range positive {
		if m.suppressed(match, pseudo) {
			continue
		}

		span, err := d.Span(match.Start, match.End)
		if err != nil {
			return nil, fmt.Errorf("entity match %s: %w", match.PatternID, err)
		}

		entities = append(entities, doc.NewEntity(span, m.entries[match.PatternID].concept))
	}

	if m.opts.ResolveOverlap {
		entities = resolveOverlap(entities)
	}

	return entities, nil
}

// suppressed reports whether a positive match is cancelled by a pseudo
// match of the same concept.
func (m *Matcher) suppressed(match matcher.Match, pseudo []matcher.Match) bool {
	concept := m.entries[match.PatternID].concept

	for _, pm := range pseudo {
		if m.entries[pm.PatternID].concept != concept {
			continue
		}
		if m.opts.PseudoExact {
			if pm.Start == match.Start && pm.End == match.End {
				return true
			}
		} else if pm.Start < match.End && match.Start < pm.End {
			return true
		}
	}

	return false
}

// resolveOverlap keeps the longest entity wherever entities overlap.
// Entities arrive ordered by start, so on equal text length the earlier
// (or first-registered) entity survives.
func resolveOverlap(entities []*doc.Entity) []*doc.Entity {
	if len(entities) == 0 {
		return entities
	}

	disjoint := []*doc.Entity{entities[0]}

	for _, ent := range entities[1:] {
		last := disjoint[len(disjoint)-1]
		if ent.Start < last.End {
			if len(last.Text()) < len(ent.Text()) {
				disjoint[len(disjoint)-1] = ent
			}
		} else {
			disjoint = append(disjoint, ent)
		}
	}

	return disjoint
}

// Stage adapts the matcher to the pipeline stage contract, attaching the
// matched entities to the document.
type Stage struct {
	Matcher *Matcher
}

// Name implements the pipeline stage contract.
func (s *Stage) Name() string { return "entity_matcher" }

// Process attaches matched entities to the document.
func (s *Stage) Process(_ context.Context, d *doc.Document) error {
	entities, err := s.Matcher.Match(d)
	if err != nil {
		return err
	}
	d.Entities = entities
	return nil
}
