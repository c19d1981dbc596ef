package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pvdheide/clinform/internal/model"
)

// Renderer writes reports in the configured output formats.
type Renderer struct {
	// IncludeDefaults keeps default qualifier values in the output instead
	// of only the trigger-assigned ones.
	IncludeDefaults bool
}

// NewRenderer creates a renderer.
func NewRenderer(includeDefaults bool) *Renderer {
	return &Renderer{IncludeDefaults: includeDefaults}
}

// RenderJSON writes the report as indented JSON to a file.
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return r.WriteJSON(report, f)
}

// WriteJSON writes the report as indented JSON.
func (r *Renderer) WriteJSON(report *model.Report, w io.Writer) error {
	out := r.filtered(report)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// RenderMarkdown writes the report as a Markdown table to a file.
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return r.WriteMarkdown(report, f)
}

// WriteMarkdown writes the report as Markdown.
func (r *Renderer) WriteMarkdown(report *model.Report, w io.Writer) error {
	out := r.filtered(report)

	var b strings.Builder

	fmt.Fprintf(&b, "# Extraction Report: %s\n\n", out.Source)
	fmt.Fprintf(&b, "Processed: %s\n\n", out.ProcessedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Text length: %d characters\n", out.TextLength)
	fmt.Fprintf(&b, "- Tokens: %d\n", out.TokenCount)
	fmt.Fprintf(&b, "- Sentences: %d\n", out.SentenceCount)
	fmt.Fprintf(&b, "- Entities: %d\n\n", len(out.Entities))

	if len(out.Entities) > 0 {
		b.WriteString("| Entity | Concept | Chars | Qualifiers |\n")
		b.WriteString("|--------|---------|-------|------------|\n")

		for _, ent := range out.Entities {
			fmt.Fprintf(&b, "| %s | %s | %d-%d | %s |\n",
				ent.Text, ent.Label, ent.StartChar, ent.EndChar, formatQualifiers(ent.Qualifiers))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderSummary prints a short human-readable summary to stdout.
func (r *Renderer) RenderSummary(report *model.Report) {
	fmt.Printf("%s: %d entities in %d sentences\n",
		report.Source, len(report.Entities), report.SentenceCount)

	for _, ent := range report.Entities {
		qualifiers := ent.NonDefault()
		if r.IncludeDefaults {
			qualifiers = ent.Qualifiers
		}
		fmt.Printf("  %q [%d-%d] %s", ent.Text, ent.StartChar, ent.EndChar, ent.Label)
		if len(qualifiers) > 0 {
			fmt.Printf("  (%s)", formatQualifiers(qualifiers))
		}
		fmt.Println()
	}
}

// filtered applies the defaults filter to a copy of the report.
func (r *Renderer) filtered(report *model.Report) *model.Report {
	if r.IncludeDefaults {
		return report
	}

	out := *report
	out.Entities = make([]model.EntityResult, len(report.Entities))
	for i, ent := range report.Entities {
		filtered := ent
		filtered.Qualifiers = ent.NonDefault()
		out.Entities[i] = filtered
	}
	return &out
}

func formatQualifiers(qs []model.QualifierResult) string {
	if len(qs) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(qs))
	for _, q := range qs {
		parts = append(parts, q.Name+"."+q.Value)
	}
	return strings.Join(parts, ", ")
}
