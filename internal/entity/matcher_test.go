package entity

import (
	"context"
	"testing"

	"github.com/pvdheide/clinform/internal/doc"
	"github.com/pvdheide/clinform/internal/tokenize"
)

func makeDoc(t *testing.T, text string) *doc.Document {
	t.Helper()

	d, err := doc.New(text, tokenize.Tokenize(text))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := tokenize.NewNormalizer().Process(context.Background(), d); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return d
}

func normDefaults() Defaults {
	return Defaults{Attr: doc.AttrNorm, FuzzyMinLen: 2}
}

func TestMatcher_BasicPhraseMatch(t *testing.T) {
	m := NewMatcher(Options{Defaults: normDefaults()})
	if err := m.AddPhrase("symptoom_koorts", "koorts"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	entities, err := m.Match(makeDoc(t, "Patient heeft koorts."))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(entities) != 1 {
		t.Fatalf("Expected 1 entity, got %d", len(entities))
	}
	if entities[0].Label != "symptoom_koorts" {
		t.Errorf("Expected label symptoom_koorts, got %s", entities[0].Label)
	}
	if entities[0].Text() != "koorts" {
		t.Errorf("Expected text koorts, got %q", entities[0].Text())
	}
}

func TestMatcher_EmptyIsConfigurationError(t *testing.T) {
	m := NewMatcher(Options{Defaults: normDefaults()})
	if _, err := m.Match(makeDoc(t, "koorts")); err == nil {
		t.Error("Expected error matching with no concepts added")
	}
}

func TestMatcher_PseudoExcludesSupersetMatch(t *testing.T) {
	m := NewMatcher(Options{Defaults: normDefaults()})

	if err := m.AddTerm("prematuriteit", NewTerm("prematuur")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	pseudo := true
	term := NewTerm("prematuur ademhalingspatroon")
	term.Pseudo = &pseudo
	if err := m.AddTerm("prematuriteit", term); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// The pseudo phrase overlaps the positive match and suppresses it.
	entities, err := m.Match(makeDoc(t, "prematuur ademhalingspatroon"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("Expected pseudo term to suppress the entity, got %d entities", len(entities))
	}

	// The positive term alone still matches.
	entities, err = m.Match(makeDoc(t, "prematuur"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entities) != 1 {
		t.Errorf("Expected 1 entity for the bare positive term, got %d", len(entities))
	}
}

func TestMatcher_PseudoOnlySuppressesSameConcept(t *testing.T) {
	m := NewMatcher(Options{Defaults: normDefaults()})

	if err := m.AddPhrase("ademhaling", "ademhalingspatroon"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	pseudo := true
	term := NewTerm("prematuur ademhalingspatroon")
	term.Pseudo = &pseudo
	if err := m.AddTerm("prematuriteit", term); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	entities, err := m.Match(makeDoc(t, "prematuur ademhalingspatroon"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entities) != 1 || entities[0].Label != "ademhaling" {
		t.Errorf("Expected the other concept's entity to survive, got %v", entities)
	}
}

func TestMatcher_PseudoExactMode(t *testing.T) {
	m := NewMatcher(Options{Defaults: normDefaults(), PseudoExact: true})

	if err := m.AddPhrase("prematuriteit", "prematuur"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	pseudo := true
	term := NewTerm("prematuur ademhalingspatroon")
	term.Pseudo = &pseudo
	if err := m.AddTerm("prematuriteit", term); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// In exact mode the overlapping (non-identical) pseudo span does not
	// suppress the shorter positive match.
	entities, err := m.Match(makeDoc(t, "prematuur ademhalingspatroon"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entities) != 1 {
		t.Errorf("Expected overlap to survive in exact mode, got %d entities", len(entities))
	}
}

func TestMatcher_FuzzyTermOverride(t *testing.T) {
	m := NewMatcher(Options{Defaults: normDefaults()})

	fuzzy := 1
	minLen := 0
	term := NewTerm("diabetes")
	term.Fuzzy = &fuzzy
	term.FuzzyMinLen = &minLen
	if err := m.AddTerm("diabetes", term); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	entities, err := m.Match(makeDoc(t, "diabetis"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entities) != 1 {
		t.Errorf("Expected fuzzy match at distance 1, got %d entities", len(entities))
	}

	entities, err = m.Match(makeDoc(t, "diabetse"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("Expected no match at distance 2, got %d entities", len(entities))
	}
}

func TestMatcher_ResolveOverlapKeepsLongest(t *testing.T) {
	m := NewMatcher(Options{Defaults: normDefaults(), ResolveOverlap: true})

	if err := m.AddPhrase("kort", "bloeding"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := m.AddPhrase("lang", "intracraniele bloeding"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	entities, err := m.Match(makeDoc(t, "intracraniele bloeding links"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(entities) != 1 {
		t.Fatalf("Expected 1 entity after overlap resolution, got %d", len(entities))
	}
	if entities[0].Label != "lang" {
		t.Errorf("Expected the longer span to survive, got %s", entities[0].Label)
	}
}

func TestMatcher_ResolveOverlapEqualLengthEarliestStart(t *testing.T) {
	m := NewMatcher(Options{Defaults: normDefaults(), ResolveOverlap: true})

	// Both spans cover ten characters.
	if err := m.AddPhrase("eerste", "acute pijn"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := m.AddPhrase("tweede", "pijn borst"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	entities, err := m.Match(makeDoc(t, "acute pijn borst"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(entities) != 1 {
		t.Fatalf("Expected 1 entity, got %d", len(entities))
	}
	if entities[0].Label != "eerste" {
		t.Errorf("Expected the earliest span to win the tie, got %s", entities[0].Label)
	}
}

func TestMatcher_AttrOverrideLiteralText(t *testing.T) {
	m := NewMatcher(Options{Defaults: normDefaults()})

	attr := "text"
	term := NewTerm("COPD")
	term.Attr = &attr
	if err := m.AddTerm("copd", term); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	entities, err := m.Match(makeDoc(t, "bekend met COPD"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("Expected literal-text match, got %d entities", len(entities))
	}

	entities, err = m.Match(makeDoc(t, "bekend met copd"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("Expected no match on lowercased text with attr=text, got %d", len(entities))
	}
}

func TestMatcher_NormalizedPhraseMatchesAccentedText(t *testing.T) {
	m := NewMatcher(Options{Defaults: normDefaults()})
	if err := m.AddPhrase("hoofdpijn", "céphalée"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	entities, err := m.Match(makeDoc(t, "Cephalee sinds gisteren"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entities) != 1 {
		t.Errorf("Expected normalized match across diacritics, got %d entities", len(entities))
	}
}

func TestStage_AttachesEntities(t *testing.T) {
	m := NewMatcher(Options{Defaults: normDefaults()})
	if err := m.AddPhrase("koorts", "koorts"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	d := makeDoc(t, "koorts")
	stage := &Stage{Matcher: m}

	if stage.Name() != "entity_matcher" {
		t.Errorf("Unexpected stage name %q", stage.Name())
	}
	if err := stage.Process(context.Background(), d); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(d.Entities) != 1 {
		t.Errorf("Expected 1 entity attached, got %d", len(d.Entities))
	}
}
