package doc

import "testing"

func tokensFor(words ...string) (string, []Token) {
	text := ""
	tokens := make([]Token, len(words))
	for i, w := range words {
		if i > 0 {
			text += " "
		}
		start := len(text)
		text += w
		tokens[i] = Token{Text: w, Start: start, End: len(text), Index: i}
	}
	return text, tokens
}

func TestNew_RejectsBadOffsets(t *testing.T) {
	if _, err := New("ab", []Token{{Text: "ab", Start: 1, End: 0, Index: 0}}); err == nil {
		t.Error("Expected error for end < start")
	}

	overlapping := []Token{
		{Text: "ab", Start: 0, End: 2, Index: 0},
		{Text: "b", Start: 1, End: 2, Index: 1},
	}
	if _, err := New("ab", overlapping); err == nil {
		t.Error("Expected error for non-monotonic offsets")
	}

	if _, err := New("ab", []Token{{Text: "abc", Start: 0, End: 3, Index: 0}}); err == nil {
		t.Error("Expected error for out-of-bounds token")
	}

	badIndex := []Token{{Text: "ab", Start: 0, End: 2, Index: 3}}
	if _, err := New("ab", badIndex); err == nil {
		t.Error("Expected error for index not matching position")
	}
}

func TestSpan_TextAndOffsets(t *testing.T) {
	text, tokens := tokensFor("geen", "aanwijzing", "voor", "pneumonie")
	d, err := New(text, tokens)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	span, err := d.Span(1, 3)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if span.Text() != "aanwijzing voor" {
		t.Errorf("Expected \"aanwijzing voor\", got %q", span.Text())
	}
	if span.Len() != 2 {
		t.Errorf("Expected length 2, got %d", span.Len())
	}
	if span.CharStart() != 5 || span.CharEnd() != 20 {
		t.Errorf("Expected chars [5, 20), got [%d, %d)", span.CharStart(), span.CharEnd())
	}

	if _, err := d.Span(3, 3); err == nil {
		t.Error("Expected error for empty span")
	}
	if _, err := d.Span(0, 5); err == nil {
		t.Error("Expected error for out-of-bounds span")
	}
}

func TestSentenceOf_BoundaryViolation(t *testing.T) {
	text, tokens := tokensFor("a", "b", "c", "d")
	d, _ := New(text, tokens)

	s1, _ := d.Span(0, 2)
	s2, _ := d.Span(2, 4)
	d.Sentences = []Span{s1, s2}

	sent, err := d.SentenceOf(0, 2)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if sent.Start != 0 || sent.End != 2 {
		t.Errorf("Expected sentence [0, 2), got [%d, %d)", sent.Start, sent.End)
	}

	if _, err := d.SentenceOf(1, 3); err == nil {
		t.Error("Expected error for a range crossing a sentence boundary")
	}
}

func TestEntity_QualifierSet(t *testing.T) {
	text, tokens := tokensFor("hoesten")
	d, _ := New(text, tokens)
	span, _ := d.Span(0, 1)
	ent := NewEntity(span, "symptoom")

	ent.SetQualifier(Qualifier{Name: "Presence", Value: "Present", IsDefault: true})
	ent.SetQualifier(Qualifier{Name: "Temporality", Value: "Current", IsDefault: true})
	// Overwrite within the same class.
	ent.SetQualifier(Qualifier{Name: "Presence", Value: "Absent"})

	qs := ent.Qualifiers()
	if len(qs) != 2 {
		t.Fatalf("Expected one qualifier per class, got %d", len(qs))
	}
	if qs[0].Name != "Presence" || qs[0].Value != "Absent" {
		t.Errorf("Expected Presence.Absent first, got %s.%s", qs[0].Name, qs[0].Value)
	}

	q, ok := ent.Qualifier("Temporality")
	if !ok || q.Value != "Current" {
		t.Errorf("Expected Temporality.Current, got %v (%t)", q, ok)
	}
}

func TestParseAttr(t *testing.T) {
	if a, err := ParseAttr("norm"); err != nil || a != AttrNorm {
		t.Errorf("Expected AttrNorm, got %v (%v)", a, err)
	}
	if _, err := ParseAttr("lemma"); err == nil {
		t.Error("Expected error for unknown attribute")
	}
}
