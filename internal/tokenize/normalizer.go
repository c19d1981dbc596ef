package tokenize

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pvdheide/clinform/internal/doc"
)

// Normalizer fills the normalized form of each token: lowercased and with
// non-ASCII characters mapped to their ASCII counterparts, so that "Céphalée"
// and "cephalee" match the same patterns.
type Normalizer struct {
	Lowercase   bool
	MapNonASCII bool
}

// NewNormalizer creates a normalizer with both steps enabled.
func NewNormalizer() *Normalizer {
	return &Normalizer{Lowercase: true, MapNonASCII: true}
}

// Name implements the pipeline stage contract.
func (n *Normalizer) Name() string { return "normalizer" }

// Process sets Norm on every token of the document.
func (n *Normalizer) Process(_ context.Context, d *doc.Document) error {
	for i := range d.Tokens {
		d.Tokens[i].Norm = n.Normalize(d.Tokens[i].Text)
	}
	return nil
}

// Normalize applies the configured normalization steps to a string.
func (n *Normalizer) Normalize(text string) string {
	if n.Lowercase {
		text = strings.ToLower(text)
	}
	if n.MapNonASCII {
		text = mapNonASCII(text)
	}
	return text
}

// Normalize is the package-level normalization with all steps enabled,
// used when compiling patterns that match on the normalized attribute.
func Normalize(text string) string {
	return mapNonASCII(strings.ToLower(text))
}

// mapNonASCII decomposes characters (NFD), drops combining marks and
// recomposes, turning e.g. "ë" into "e". Characters without an ASCII
// counterpart are kept as-is. The transformer chain carries state, so a
// fresh one is built per call; this keeps normalization safe for
// concurrent document processing.
func mapNonASCII(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}
