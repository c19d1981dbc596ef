package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pvdheide/clinform/internal/model"
)

func writeConcepts(t *testing.T) string {
	t.Helper()

	content := `
hoesten:
  - hoesten
koorts:
  - koorts
pneumonie:
  - pneumonie
  - longontsteking
`
	path := filepath.Join(t.TempDir(), "concepts.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return path
}

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()

	cfg := model.DefaultConfig()
	cfg.Concepts.Path = writeConcepts(t)

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return p
}

func TestNew_RequiresConcepts(t *testing.T) {
	cfg := model.DefaultConfig()
	if _, err := New(cfg); err == nil {
		t.Error("Expected error when no concepts file is configured")
	}
}

func TestNew_RejectsUnknownProvider(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Concepts.Path = writeConcepts(t)
	cfg.LLM.Provider = "anthropic"

	if _, err := New(cfg); err == nil {
		t.Error("Expected error for an unsupported LLM provider")
	}
}

func TestProcessText_EndToEnd(t *testing.T) {
	p := testPipeline(t)

	text := "Patient heeft geen koorts. Wel hoesten sinds gisteren."
	report, err := p.ProcessText(context.Background(), "note-1", text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if report.Source != "note-1" {
		t.Errorf("Expected source note-1, got %s", report.Source)
	}
	if report.SentenceCount != 2 {
		t.Errorf("Expected 2 sentences, got %d", report.SentenceCount)
	}
	if len(report.Entities) != 2 {
		t.Fatalf("Expected 2 entities, got %d", len(report.Entities))
	}

	byLabel := make(map[string]model.EntityResult)
	for _, ent := range report.Entities {
		byLabel[ent.Label] = ent
	}

	koorts, ok := byLabel["koorts"]
	if !ok {
		t.Fatal("Expected a koorts entity")
	}
	if got := presenceOf(t, koorts); got != "Absent" {
		t.Errorf("Expected negated koorts, got Presence.%s", got)
	}

	hoesten, ok := byLabel["hoesten"]
	if !ok {
		t.Fatal("Expected a hoesten entity")
	}
	if got := presenceOf(t, hoesten); got != "Present" {
		t.Errorf("Expected hoesten in the second sentence unaffected, got Presence.%s", got)
	}

	// Every entity carries a full qualifier set from the embedded classes.
	for _, ent := range report.Entities {
		if len(ent.Qualifiers) != 3 {
			t.Errorf("%s: expected 3 qualifiers, got %d", ent.Label, len(ent.Qualifiers))
		}
	}
}

func presenceOf(t *testing.T, ent model.EntityResult) string {
	t.Helper()
	for _, q := range ent.Qualifiers {
		if q.Name == "Presence" {
			return q.Value
		}
	}
	t.Fatalf("Entity %s carries no Presence qualifier", ent.Label)
	return ""
}

func TestProcessText_ContextCancellation(t *testing.T) {
	p := testPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.ProcessText(ctx, "note", "geen koorts"); err == nil {
		t.Error("Expected error for a cancelled context")
	}
}

func TestProcessFile_PlainTextAndHTML(t *testing.T) {
	p := testPipeline(t)
	dir := t.TempDir()

	txtPath := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(txtPath, []byte("Patient heeft hoesten."), 0644); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	report, err := p.ProcessFile(context.Background(), txtPath)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(report.Entities) != 1 || report.Entities[0].Label != "hoesten" {
		t.Errorf("Expected one hoesten entity, got %v", report.Entities)
	}

	htmlPath := filepath.Join(dir, "note.html")
	page := `<html><head><title>x</title><style>p{}</style></head>
<body><p>Patient heeft pneumonie.</p><script>alert(1)</script></body></html>`
	if err := os.WriteFile(htmlPath, []byte(page), 0644); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	report, err = p.ProcessFile(context.Background(), htmlPath)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(report.Entities) != 1 || report.Entities[0].Label != "pneumonie" {
		t.Errorf("Expected markup stripped and pneumonie matched, got %v", report.Entities)
	}

	if _, err := p.ProcessFile(context.Background(), filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestExtractText_SkipsInvisibleContent(t *testing.T) {
	page := `<html><head><script>var x = "hidden";</script></head>
<body><div>geen koorts</div><ul><li>hoesten</li><li>moe</li></ul></body></html>`

	text, err := ExtractText(page)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	for _, want := range []string{"geen koorts", "hoesten", "moe"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected extracted text to contain %q, got %q", want, text)
		}
	}
	if strings.Contains(text, "hidden") {
		t.Errorf("Expected script content to be stripped, got %q", text)
	}

	// Block elements contribute newlines so sentence splitting survives.
	if !strings.Contains(text, "\n") {
		t.Error("Expected block boundaries as newlines")
	}
}
