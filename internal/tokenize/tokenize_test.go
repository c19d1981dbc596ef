package tokenize

import (
	"context"
	"testing"

	"github.com/pvdheide/clinform/internal/doc"
)

func TestTokenize_OffsetsAndPunctuation(t *testing.T) {
	tokens := Tokenize("geen koorts, wel hoesten.")

	texts := make([]string, len(tokens))
	for i, tok := range tokens {
		texts[i] = tok.Text
	}

	want := []string{"geen", "koorts", ",", "wel", "hoesten", "."}
	if len(texts) != len(want) {
		t.Fatalf("Expected %d tokens, got %d: %v", len(want), len(texts), texts)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("Token %d: expected %q, got %q", i, want[i], texts[i])
		}
	}

	text := "geen koorts, wel hoesten."
	for _, tok := range tokens {
		if text[tok.Start:tok.End] != tok.Text {
			t.Errorf("Token %q: offsets [%d, %d) do not recover the text", tok.Text, tok.Start, tok.End)
		}
	}
}

func TestTokenize_NewlinesAreTokens(t *testing.T) {
	tokens := Tokenize("koorts\nhoesten")

	if len(tokens) != 3 {
		t.Fatalf("Expected 3 tokens, got %d", len(tokens))
	}
	if tokens[1].Text != "\n" {
		t.Errorf("Expected newline token, got %q", tokens[1].Text)
	}
}

func TestTokenize_ValidForDocument(t *testing.T) {
	text := "DD: mogelijk pneumonie (links)?"
	if _, err := doc.New(text, Tokenize(text)); err != nil {
		t.Fatalf("Expected tokenizer output to satisfy the document contract, got %v", err)
	}
}

func TestSplit_MatchesTokenization(t *testing.T) {
	words := Split("geen aanwijzing voor")
	if len(words) != 3 || words[0] != "geen" || words[2] != "voor" {
		t.Errorf("Expected [geen aanwijzing voor], got %v", words)
	}
}

func TestNormalizer_LowercaseAndDiacritics(t *testing.T) {
	n := NewNormalizer()

	if got := n.Normalize("Céphalée"); got != "cephalee" {
		t.Errorf("Expected cephalee, got %q", got)
	}
	if got := Normalize("PreMatuur"); got != "prematuur" {
		t.Errorf("Expected prematuur, got %q", got)
	}
}

func TestNormalizer_Process(t *testing.T) {
	text := "Openingsdruk verhoogd"
	d, err := doc.New(text, Tokenize(text))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := NewNormalizer().Process(context.Background(), d); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if d.Tokens[0].Norm != "openingsdruk" {
		t.Errorf("Expected normalized form openingsdruk, got %q", d.Tokens[0].Norm)
	}
	if d.Tokens[0].Text != "Openingsdruk" {
		t.Error("Expected literal text to stay untouched")
	}
}

func TestSentencizer_PeriodAndNewlineBoundaries(t *testing.T) {
	text := "Patient hoest. Geen koorts\nvoorgeschiedenis blanco"
	d, err := doc.New(text, Tokenize(text))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := NewSentencizer().Process(context.Background(), d); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(d.Sentences) != 3 {
		t.Fatalf("Expected 3 sentences, got %d", len(d.Sentences))
	}

	first := d.Sentences[0]
	if first.Text() != "Patient hoest." {
		t.Errorf("Expected first sentence \"Patient hoest.\", got %q", first.Text())
	}
}

func TestSentencizer_NoOverlap(t *testing.T) {
	text := "a. b! c? d"
	d, err := doc.New(text, Tokenize(text))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := NewSentencizer().Process(context.Background(), d); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	for i := 1; i < len(d.Sentences); i++ {
		if d.Sentences[i].Start < d.Sentences[i-1].End {
			t.Errorf("Sentences %d and %d overlap", i-1, i)
		}
	}
}
