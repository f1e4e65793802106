package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"triagebot/internal/domain"
	"triagebot/internal/llm"
)

// Summary is the run-level fold of an outcome set. It feeds the persisted
// run's summary text and usage totals.
type Summary struct {
	TotalAttempted    int
	TotalFailed       int
	CategoryCounts    map[string]int
	PriorityCounts    map[string]int
	AverageConfidence float64
	TotalTokens       int64
	TotalCost         float64
	Narrative         string
}

// Summarize is a pure function of the outcome set: no clock, no
// randomness, no external calls. The same outcomes always produce the
// same Summary, byte for byte.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{
		TotalAttempted: len(outcomes),
		CategoryCounts: map[string]int{},
		PriorityCounts: map[string]int{},
	}

	var successes []Outcome
	var usage llm.Usage
	var confidenceSum float64
	for _, o := range outcomes {
		if o.Failed() {
			s.TotalFailed++
			continue
		}
		successes = append(successes, o)
		s.CategoryCounts[o.Classification.Category]++
		s.PriorityCounts[o.Classification.Priority]++
		confidenceSum += o.Classification.Confidence
		usage.Add(o.Usage)
	}
	if len(successes) > 0 {
		s.AverageConfidence = confidenceSum / float64(len(successes))
	}
	s.TotalTokens = usage.TotalTokens()
	s.TotalCost = usage.Cost

	// Outcome order is whatever the pool produced; pin it down before
	// composing text.
	sort.Slice(successes, func(i, j int) bool { return successes[i].TicketID < successes[j].TicketID })
	s.Narrative = composeNarrative(s, successes)
	return s
}

func composeNarrative(s Summary, successes []Outcome) string {
	if s.TotalAttempted == 0 {
		return "No tickets analyzed."
	}

	var parts []string

	analyzed := len(successes)
	if s.TotalFailed == 0 {
		parts = append(parts, fmt.Sprintf("Analyzed %d support ticket%s.", analyzed, plural(analyzed)))
	} else {
		parts = append(parts, fmt.Sprintf("Analyzed %d of %d support tickets. %d failed.", analyzed, s.TotalAttempted, s.TotalFailed))
	}

	if analyzed > 0 {
		parts = append(parts, "Categories: "+describeCategories(s.CategoryCounts, analyzed)+".")

		if line := describePriorities(s.PriorityCounts, analyzed); line != "" {
			parts = append(parts, "Priority breakdown: "+line+".")
		}

		if issues := keyIssues(successes); issues != "" {
			parts = append(parts, "Key issues: "+issues+".")
		}

		if high := s.PriorityCounts[domain.PriorityHigh]; high > 0 {
			verb := "require"
			if high == 1 {
				verb = "requires"
			}
			parts = append(parts, fmt.Sprintf("%d high-priority issue%s %s immediate attention.", high, plural(high), verb))
		}
	}

	return strings.Join(parts, " ")
}

func describeCategories(counts map[string]int, total int) string {
	type catCount struct {
		name  string
		count int
	}
	sorted := make([]catCount, 0, len(counts))
	for name, count := range counts {
		sorted = append(sorted, catCount{name, count})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].name < sorted[j].name
	})
	if len(sorted) > 5 {
		sorted = sorted[:5]
	}

	var descriptions []string
	for _, c := range sorted {
		pct := float64(c.count) / float64(total) * 100
		descriptions = append(descriptions, fmt.Sprintf("%d %s (%.0f%%)", c.count, strings.ReplaceAll(c.name, "_", " "), pct))
	}
	return strings.Join(descriptions, ", ")
}

func describePriorities(counts map[string]int, total int) string {
	var descriptions []string
	for _, priority := range []string{domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow} {
		count := counts[priority]
		if count == 0 {
			continue
		}
		pct := float64(count) / float64(total) * 100
		descriptions = append(descriptions, fmt.Sprintf("%d %s-priority (%.0f%%)", count, priority, pct))
	}
	return strings.Join(descriptions, ", ")
}

// keyIssues pulls the first sentence of each analysis, up to five, in
// ticket-id order. More than three get elided with a count.
func keyIssues(successes []Outcome) string {
	var themes []string
	for _, o := range successes {
		if len(themes) >= 5 {
			break
		}
		text := o.Classification.Analysis
		sentence := text
		if idx := strings.Index(text, "."); idx >= 0 {
			sentence = text[:idx]
		} else if len(text) > 80 {
			sentence = text[:80]
		}
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		duplicate := false
		for _, t := range themes {
			if t == sentence {
				duplicate = true
				break
			}
		}
		if !duplicate {
			themes = append(themes, sentence)
		}
	}
	if len(themes) == 0 {
		return ""
	}
	if len(themes) > 3 {
		return strings.Join(themes[:3], "; ") + fmt.Sprintf("; +%d more", len(themes)-3)
	}
	return strings.Join(themes, "; ")
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
