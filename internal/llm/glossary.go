package llm

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"triagebot/internal/domain"
)

// Glossary holds deterministic phrase overrides applied on top of the
// model's verdict. Support teams use it to pin known phrasings ("duplicate
// charge" is always billing) regardless of what the model answers.
type Glossary struct {
	Terms         []GlossaryTerm `yaml:"terms"`
	PriorityHints []PriorityHint `yaml:"priority_hints"`
}

type GlossaryTerm struct {
	Phrase   string `yaml:"phrase"`
	Category string `yaml:"category"`
}

type PriorityHint struct {
	Phrase   string `yaml:"phrase"`
	Priority string `yaml:"priority"`
}

func LoadGlossary(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary: %w", err)
	}
	var g Glossary
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse glossary yaml: %w", err)
	}
	return &g, nil
}

// Apply returns cl with any matching glossary overrides applied. A term
// match pins the category and raises confidence; a priority hint only
// replaces the priority when it names a valid level.
func (g *Glossary) Apply(t domain.Ticket, cl Classification) Classification {
	text := normalizeText(t.Title + " " + t.Description)

	for _, term := range g.Terms {
		phrase := normalizeText(term.Phrase)
		category := normalizeCategory(term.Category)
		if phrase == "" || category == "" {
			continue
		}
		if strings.Contains(text, phrase) {
			cl.Category = category
			if cl.Confidence < 0.99 {
				cl.Confidence = 0.99
			}
			break
		}
	}

	for _, hint := range g.PriorityHints {
		phrase := normalizeText(hint.Phrase)
		priority := strings.ToLower(strings.TrimSpace(hint.Priority))
		if phrase == "" || !domain.ValidPriority(priority) {
			continue
		}
		if strings.Contains(text, phrase) {
			cl.Priority = priority
			break
		}
	}

	return cl
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
