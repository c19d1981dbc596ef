package qualifier

import (
	"context"
	"fmt"
	"sort"

	"github.com/pvdheide/clinform/internal/doc"
	"github.com/pvdheide/clinform/internal/matcher"
)

// ContextAlgorithm is the rule-based qualifier detector: trigger phrases
// found near an entity propagate their qualifier value over a directional,
// bounded scope. Sentences are the unit of containment; no state crosses
// sentence or document boundaries, so documents and sentences can be
// processed concurrently by the caller.
type ContextAlgorithm struct {
	rules *RuleSet
}

// NewContextAlgorithm creates the detector for a compiled rule store. A
// store without rules is a configuration error.
func NewContextAlgorithm(rules *RuleSet) (*ContextAlgorithm, error) {
	if rules.Len() == 0 {
		return nil, fmt.Errorf("cannot detect qualifiers without any context rule")
	}
	return &ContextAlgorithm{rules: rules}, nil
}

// Classes returns the qualifier classes the rule store declares.
func (ca *ContextAlgorithm) Classes() map[string]*Class { return ca.rules.classes }

// triggerMatch is one trigger occurrence within a sentence, with its
// resolved scope. Ephemeral: produced and consumed within one sentence pass.
type triggerMatch struct {
	rule       *Rule
	start, end int
	// scope is the token range the trigger's effect extends over, clipped
	// by terminations.
	scopeStart, scopeEnd int
	// order is the scan position, the final tie-breaker.
	order int
}

// Detect assigns qualifiers to every entity. Each entity first receives the
// default value of every declared class, then triggers overwrite per class;
// the result always holds exactly one value per class, and re-running
// detection yields the same qualifier sets.
func (ca *ContextAlgorithm) Detect(_ context.Context, d *doc.Document) error {
	if len(d.Entities) == 0 {
		return nil
	}

	initDefaults(d, ca.rules.classes)

	sentences, err := entitiesBySentence(d)
	if err != nil {
		return err
	}

	for _, group := range sentences {
		if err := ca.detectSentence(d, group.sentence, group.entities); err != nil {
			return err
		}
	}

	return nil
}

type sentenceGroup struct {
	sentence doc.Span
	entities []*doc.Entity
}

// entitiesBySentence groups entities under their containing sentence,
// preserving sentence order. An entity outside every sentence breaks the
// contract with the sentencizer and fails the pass.
func entitiesBySentence(d *doc.Document) ([]sentenceGroup, error) {
	index := make(map[int]int)
	var groups []sentenceGroup

	for _, ent := range d.Entities {
		sent, err := d.SentenceOf(ent.Start, ent.End)
		if err != nil {
			return nil, fmt.Errorf("entity %q [%d, %d): %w", ent.Text(), ent.Start, ent.End, err)
		}

		i, ok := index[sent.Start]
		if !ok {
			i = len(groups)
			index[sent.Start] = i
			groups = append(groups, sentenceGroup{sentence: sent})
		}
		groups[i].entities = append(groups[i].entities, ent)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].sentence.Start < groups[j].sentence.Start })

	return groups, nil
}

func (ca *ContextAlgorithm) detectSentence(d *doc.Document, sent doc.Span, entities []*doc.Entity) error {
	matches := matcher.FindMatches(d.Tokens[sent.Start:sent.End], ca.rules.patterns)

	triggers := make([]*triggerMatch, 0, len(matches))
	for i, m := range matches {
		rule := ca.rules.rules[m.PatternID]

		tm := &triggerMatch{
			rule:  rule,
			start: m.Start + sent.Start,
			end:   m.End + sent.Start,
			order: i,
		}
		tm.initScope(sent)
		triggers = append(triggers, tm)
	}

	scoped := resolveScopes(triggers, sent)

	for _, ent := range entities {
		assignEntity(ent, scoped)
	}

	return nil
}

// initScope sets the trigger's initial scope from its direction and scope
// limit, bounded by the sentence. Termination and pseudo triggers get no
// scope of their own.
func (tm *triggerMatch) initScope(sent doc.Span) {
	maxScope := tm.rule.MaxScope
	if maxScope == 0 {
		maxScope = sent.Len()
	}

	lo := tm.start - maxScope
	if lo < sent.Start {
		lo = sent.Start
	}
	hi := tm.end + maxScope
	if hi > sent.End {
		hi = sent.End
	}

	switch tm.rule.Direction {
	case Preceding:
		tm.scopeStart, tm.scopeEnd = tm.start, hi
	case Following:
		tm.scopeStart, tm.scopeEnd = lo, tm.end
	case Bidirectional:
		tm.scopeStart, tm.scopeEnd = lo, hi
	}
}

// resolveScopes applies pseudo suppression and termination clipping within
// each qualifier value group, returning the triggers that claim entities.
func resolveScopes(triggers []*triggerMatch, sent doc.Span) []*triggerMatch {
	groups := make(map[string][]*triggerMatch)
	var keys []string

	for _, tm := range triggers {
		key := tm.rule.Qualifier.String()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], tm)
	}
	sort.Strings(keys)

	var scoped []*triggerMatch

	for _, key := range keys {
		var claims, pseudo, terminations []*triggerMatch

		for _, tm := range groups[key] {
			switch tm.rule.Direction {
			case Pseudo:
				pseudo = append(pseudo, tm)
			case Termination:
				terminations = append(terminations, tm)
			default:
				claims = append(claims, tm)
			}
		}

		// A pseudo match kills every overlapping claim of the same value:
		// "niet uitgesloten" must not fire the "niet" trigger.
		kept := claims[:0]
		for _, tm := range claims {
			suppressed := false
			for _, p := range pseudo {
				if p.start < tm.end && tm.start < p.end {
					suppressed = true
					break
				}
			}
			if !suppressed {
				kept = append(kept, tm)
			}
		}

		// A termination inside a claim's scope clips the scope on the side
		// the termination lies, provided the direction extends that way.
		for _, term := range terminations {
			for _, tm := range kept {
				if term.start >= tm.scopeEnd || tm.scopeStart >= term.end {
					continue
				}
				if tm.rule.Direction != Following && term.start >= tm.end {
					tm.scopeEnd = term.start
				}
				if tm.rule.Direction != Preceding && term.end <= tm.start {
					tm.scopeStart = term.end
				}
			}
		}

		scoped = append(scoped, kept...)
	}

	return scoped
}

// assignEntity claims the entity for every trigger whose scope covers it,
// then resolves conflicts per qualifier class: nearest trigger wins, then
// highest declared priority (lowest integer), then earliest in scan order.
func assignEntity(ent *doc.Entity, scoped []*triggerMatch) {
	byClass := make(map[string][]*triggerMatch)

	for _, tm := range scoped {
		if tm.scopeStart >= ent.End || ent.Start >= tm.scopeEnd {
			continue
		}
		// An entity overlapping the trigger's own span is not claimed by
		// it: the trigger words themselves are not qualified content.
		if ent.Start < tm.end && tm.start < ent.End {
			continue
		}
		name := tm.rule.Qualifier.Name
		byClass[name] = append(byClass[name], tm)
	}

	for _, candidates := range byClass {
		best := candidates[0]
		for _, tm := range candidates[1:] {
			if better(ent, tm, best) {
				best = tm
			}
		}
		ent.SetQualifier(best.rule.Qualifier)
	}
}

// better reports whether trigger a beats trigger b for this entity.
func better(ent *doc.Entity, a, b *triggerMatch) bool {
	da := intervalDist(ent.Start, ent.End, a.start, a.end)
	db := intervalDist(ent.Start, ent.End, b.start, b.end)
	if da != db {
		return da < db
	}
	if a.rule.Qualifier.Priority != b.rule.Qualifier.Priority {
		return a.rule.Qualifier.Priority < b.rule.Qualifier.Priority
	}
	return a.order < b.order
}

// intervalDist is the token gap between two half-open intervals, 0 when
// they touch or overlap.
func intervalDist(startA, endA, startB, endB int) int {
	d := 0
	if v := startA - endB; v > d {
		d = v
	}
	if v := startB - endA; v > d {
		d = v
	}
	return d
}
