package llm

import (
	"os"
	"path/filepath"
	"testing"

	"triagebot/internal/domain"
)

func TestGlossaryApply(t *testing.T) {
	g := &Glossary{
		Terms: []GlossaryTerm{
			{Phrase: "duplicate charge", Category: "billing"},
		},
		PriorityHints: []PriorityHint{
			{Phrase: "production down", Priority: "high"},
			{Phrase: "someday", Priority: "urgent"}, // invalid level, ignored
		},
	}

	ticket := domain.Ticket{Title: "Duplicate charge on my invoice", Description: "Charged twice this month"}
	cl := g.Apply(ticket, Classification{Category: "question", Priority: "low", Confidence: 0.6})
	if cl.Category != "billing" {
		t.Fatalf("term should pin category, got %q", cl.Category)
	}
	if cl.Confidence < 0.99 {
		t.Fatalf("term match should raise confidence, got %f", cl.Confidence)
	}
	if cl.Priority != "low" {
		t.Fatalf("priority should be untouched without a hint, got %q", cl.Priority)
	}

	outage := domain.Ticket{Title: "Production down", Description: "nothing loads"}
	cl = g.Apply(outage, Classification{Category: "bug", Priority: "medium", Confidence: 0.8})
	if cl.Priority != "high" {
		t.Fatalf("hint should override priority, got %q", cl.Priority)
	}

	invalid := domain.Ticket{Title: "Maybe someday add dark mode", Description: ""}
	cl = g.Apply(invalid, Classification{Category: "feature_request", Priority: "low", Confidence: 0.7})
	if cl.Priority != "low" {
		t.Fatalf("invalid hint level must be ignored, got %q", cl.Priority)
	}
}

func TestLoadGlossary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glossary.yaml")
	content := `terms:
  - phrase: duplicate charge
    category: billing
priority_hints:
  - phrase: data loss
    priority: high
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write glossary: %v", err)
	}

	g, err := LoadGlossary(path)
	if err != nil {
		t.Fatalf("LoadGlossary failed: %v", err)
	}
	if len(g.Terms) != 1 || g.Terms[0].Category != "billing" {
		t.Fatalf("unexpected terms: %+v", g.Terms)
	}
	if len(g.PriorityHints) != 1 || g.PriorityHints[0].Priority != "high" {
		t.Fatalf("unexpected hints: %+v", g.PriorityHints)
	}

	if _, err := LoadGlossary(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error loading missing glossary")
	}
}
