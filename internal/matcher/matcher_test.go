package matcher

import (
	"testing"

	"github.com/pvdheide/clinform/internal/doc"
)

func makeTokens(words ...string) []doc.Token {
	tokens := make([]doc.Token, len(words))
	pos := 0
	for i, w := range words {
		tokens[i] = doc.Token{Text: w, Norm: w, Start: pos, End: pos + len(w), Index: i}
		pos += len(w) + 1
	}
	return tokens
}

func mustPhrase(t *testing.T, id string, opts PhraseOpts, words ...string) *Pattern {
	t.Helper()
	p, err := CompilePhrase(id, words, opts)
	if err != nil {
		t.Fatalf("Expected no error compiling %s, got %v", id, err)
	}
	return p
}

func TestFindMatches_ExactPhrase(t *testing.T) {
	tokens := makeTokens("geen", "aanwijzing", "voor", "pneumonie")
	p := mustPhrase(t, "p0", PhraseOpts{Attr: doc.AttrNorm}, "geen", "aanwijzing", "voor")

	matches := FindMatches(tokens, []*Pattern{p})

	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if matches[0].Start != 0 || matches[0].End != 3 {
		t.Errorf("Expected match [0, 3), got [%d, %d)", matches[0].Start, matches[0].End)
	}
	if matches[0].PatternID != "p0" {
		t.Errorf("Expected pattern id p0, got %s", matches[0].PatternID)
	}
}

func TestFindMatches_OverlappingMatchesKept(t *testing.T) {
	tokens := makeTokens("geen", "aanwijzing", "voor")

	p1 := mustPhrase(t, "p1", PhraseOpts{Attr: doc.AttrNorm}, "geen", "aanwijzing")
	p2 := mustPhrase(t, "p2", PhraseOpts{Attr: doc.AttrNorm}, "aanwijzing", "voor")

	matches := FindMatches(tokens, []*Pattern{p1, p2})

	if len(matches) != 2 {
		t.Fatalf("Expected 2 overlapping matches, got %d", len(matches))
	}
	if matches[0].Start > matches[1].Start {
		t.Error("Expected matches ordered by start position")
	}
}

func TestFindMatches_NoMatchIsNotAnError(t *testing.T) {
	tokens := makeTokens("alleen", "hoesten")
	p := mustPhrase(t, "p0", PhraseOpts{Attr: doc.AttrNorm}, "pneumonie")

	if matches := FindMatches(tokens, []*Pattern{p}); len(matches) != 0 {
		t.Errorf("Expected no matches, got %d", len(matches))
	}
}

func TestFindMatches_FuzzyPhrase(t *testing.T) {
	p := mustPhrase(t, "p0", PhraseOpts{Attr: doc.AttrNorm, Fuzzy: 1}, "diabetes")

	// One substitution away.
	if matches := FindMatches(makeTokens("diabetis"), []*Pattern{p}); len(matches) != 1 {
		t.Errorf("Expected fuzzy match for diabetis, got %d matches", len(matches))
	}

	// A transposition is two edits, beyond distance 1.
	if matches := FindMatches(makeTokens("diabetse"), []*Pattern{p}); len(matches) != 0 {
		t.Errorf("Expected no match for diabetse at distance 1, got %d matches", len(matches))
	}
}

func TestFindMatches_FuzzyMinLenDisablesShortWords(t *testing.T) {
	p := mustPhrase(t, "p0", PhraseOpts{Attr: doc.AttrNorm, Fuzzy: 1, FuzzyMinLen: 5}, "koud")

	// "koud" has 4 runes, below the threshold, so only exact matches apply.
	if matches := FindMatches(makeTokens("kout"), []*Pattern{p}); len(matches) != 0 {
		t.Errorf("Expected no fuzzy match below fuzzy_min_len, got %d matches", len(matches))
	}
	if matches := FindMatches(makeTokens("koud"), []*Pattern{p}); len(matches) != 1 {
		t.Errorf("Expected exact match, got %d matches", len(matches))
	}
}

func TestFindMatches_Proximity(t *testing.T) {
	p := mustPhrase(t, "p0", PhraseOpts{Attr: doc.AttrNorm, Proximity: 1}, "kleine", "trombus")

	// One skipped token is within proximity 1.
	matches := FindMatches(makeTokens("kleine", "verkalkte", "trombus"), []*Pattern{p})
	if len(matches) != 1 {
		t.Fatalf("Expected 1 proximity match, got %d", len(matches))
	}
	if matches[0].Start != 0 || matches[0].End != 3 {
		t.Errorf("Expected match [0, 3), got [%d, %d)", matches[0].Start, matches[0].End)
	}

	// Two skipped tokens exceed proximity 1.
	matches = FindMatches(makeTokens("kleine", "deels", "verkalkte", "trombus"), []*Pattern{p})
	if len(matches) != 0 {
		t.Errorf("Expected no match beyond proximity bound, got %d", len(matches))
	}
}

func TestFindMatches_StructuredPattern(t *testing.T) {
	constraints := []Constraint{
		{Attr: doc.AttrNorm, Value: "status"},
		{Attr: doc.AttrNorm, Value: ".", Optional: true},
		{Attr: doc.AttrNorm, Value: "na"},
	}
	p, err := CompileTokens("p0", constraints)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Optional position consumed.
	matches := FindMatches(makeTokens("status", ".", "na"), []*Pattern{p})
	if len(matches) != 1 || matches[0].End != 3 {
		t.Fatalf("Expected one match ending at 3, got %v", matches)
	}

	// Optional position skipped.
	matches = FindMatches(makeTokens("status", "na"), []*Pattern{p})
	if len(matches) != 1 || matches[0].End != 2 {
		t.Fatalf("Expected one match ending at 2, got %v", matches)
	}
}

func TestFindMatches_StructuredRegexAndIn(t *testing.T) {
	constraints := []Constraint{
		{Attr: doc.AttrNorm, In: []string{"in", "sinds"}},
		{Attr: doc.AttrNorm, Regex: "^(19|20)[0-9]{2}$"},
	}
	p, err := CompileTokens("p0", constraints)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if matches := FindMatches(makeTokens("in", "2012"), []*Pattern{p}); len(matches) != 1 {
		t.Errorf("Expected regex/in match, got %d matches", len(matches))
	}
	if matches := FindMatches(makeTokens("in", "212"), []*Pattern{p}); len(matches) != 0 {
		t.Errorf("Expected no match for non-year token, got %d matches", len(matches))
	}
}

func TestCompilePhrase_EmptyIsConfigurationError(t *testing.T) {
	if _, err := CompilePhrase("p0", nil, PhraseOpts{}); err == nil {
		t.Error("Expected error for empty phrase")
	}
}

func TestCompileTokens_Invalid(t *testing.T) {
	if _, err := CompileTokens("p0", nil); err == nil {
		t.Error("Expected error for empty constraint list")
	}

	allOptional := []Constraint{{Attr: doc.AttrNorm, Value: "na", Optional: true}}
	if _, err := CompileTokens("p1", allOptional); err == nil {
		t.Error("Expected error for pattern with only optional positions")
	}

	conflicting := []Constraint{{Attr: doc.AttrNorm, Value: "na", Regex: "x"}}
	if _, err := CompileTokens("p2", conflicting); err == nil {
		t.Error("Expected error for constraint setting both value and regex")
	}
}

func TestRawConstraint_Compile(t *testing.T) {
	rc := RawConstraint{Attr: "text", Value: "Status", Op: "?"}
	c, err := rc.Compile(doc.AttrNorm)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if c.Attr != doc.AttrText {
		t.Error("Expected explicit attr to override the default")
	}
	if !c.Optional {
		t.Error("Expected op \"?\" to mark the constraint optional")
	}

	if _, err := (RawConstraint{Value: "x", Op: "*"}).Compile(doc.AttrNorm); err == nil {
		t.Error("Expected error for unsupported op")
	}
}
