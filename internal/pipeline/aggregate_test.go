package pipeline

import (
	"strings"
	"testing"

	"triagebot/internal/llm"
)

func success(id int64, category, priority, analysis string, confidence float64, tokens int64, cost float64) Outcome {
	return Outcome{
		TicketID: id,
		Classification: llm.Classification{
			Category:   category,
			Priority:   priority,
			Analysis:   analysis,
			Confidence: confidence,
		},
		Usage: llm.Usage{InputTokens: tokens, OutputTokens: 0, Cost: cost},
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalAttempted != 0 || s.TotalFailed != 0 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.Narrative != "No tickets analyzed." {
		t.Fatalf("unexpected narrative: %q", s.Narrative)
	}
	if s.TotalTokens != 0 || s.TotalCost != 0 {
		t.Fatalf("expected zero usage, got tokens=%d cost=%f", s.TotalTokens, s.TotalCost)
	}
}

func TestSummarizeCounts(t *testing.T) {
	outcomes := []Outcome{
		success(1, "bug", "high", "App crashes on startup. Details follow.", 0.9, 100, 0.001),
		success(2, "bug", "medium", "Settings page throws an error.", 0.8, 100, 0.001),
		success(3, "billing", "low", "Invoice amount is wrong.", 0.7, 100, 0.001),
		failure(4, llm.Errf(llm.KindTimeout, "deadline exceeded")),
	}
	s := Summarize(outcomes)

	if s.TotalAttempted != 4 || s.TotalFailed != 1 {
		t.Fatalf("unexpected counts: attempted=%d failed=%d", s.TotalAttempted, s.TotalFailed)
	}
	if s.CategoryCounts["bug"] != 2 || s.CategoryCounts["billing"] != 1 {
		t.Fatalf("unexpected categories: %v", s.CategoryCounts)
	}
	if s.PriorityCounts["high"] != 1 || s.PriorityCounts["medium"] != 1 || s.PriorityCounts["low"] != 1 {
		t.Fatalf("unexpected priorities: %v", s.PriorityCounts)
	}
	want := (0.9 + 0.8 + 0.7) / 3
	if diff := s.AverageConfidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("unexpected average confidence: %f", s.AverageConfidence)
	}
	// Usage is summed over successes only.
	if s.TotalTokens != 300 {
		t.Fatalf("unexpected tokens: %d", s.TotalTokens)
	}
	if !strings.Contains(s.Narrative, "Analyzed 3 of 4 support tickets. 1 failed.") {
		t.Fatalf("unexpected narrative: %q", s.Narrative)
	}
	if !strings.Contains(s.Narrative, "1 high-priority issue requires immediate attention.") {
		t.Fatalf("narrative missing high-priority warning: %q", s.Narrative)
	}
	if !strings.Contains(s.Narrative, "App crashes on startup") {
		t.Fatalf("narrative missing key issue: %q", s.Narrative)
	}
}

func TestSummarizeDeterministicAcrossOrderings(t *testing.T) {
	a := success(1, "bug", "high", "First issue here.", 0.9, 50, 0.0005)
	b := success(2, "billing", "medium", "Second issue here.", 0.8, 60, 0.0006)
	c := success(3, "question", "low", "Third issue here.", 0.7, 70, 0.0007)
	f := failure(4, llm.Errf(llm.KindNetwork, "connection reset"))

	base := Summarize([]Outcome{a, b, c, f})
	orderings := [][]Outcome{
		{c, a, f, b},
		{f, c, b, a},
		{b, f, a, c},
	}
	for i, outcomes := range orderings {
		got := Summarize(outcomes)
		if got.Narrative != base.Narrative {
			t.Fatalf("ordering %d changed the narrative:\n%q\nvs\n%q", i, got.Narrative, base.Narrative)
		}
		if got.TotalTokens != base.TotalTokens || got.TotalCost != base.TotalCost {
			t.Fatalf("ordering %d changed usage totals", i)
		}
		if got.AverageConfidence != base.AverageConfidence {
			t.Fatalf("ordering %d changed average confidence", i)
		}
	}
}

func TestSummarizeAllFailed(t *testing.T) {
	outcomes := []Outcome{
		failure(1, llm.Errf(llm.KindTimeout, "t")),
		failure(2, llm.Errf(llm.KindRateLimited, "r")),
	}
	s := Summarize(outcomes)
	if s.TotalAttempted != 2 || s.TotalFailed != 2 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.AverageConfidence != 0 {
		t.Fatalf("expected zero confidence with no successes, got %f", s.AverageConfidence)
	}
	if !strings.Contains(s.Narrative, "Analyzed 0 of 2 support tickets. 2 failed.") {
		t.Fatalf("unexpected narrative: %q", s.Narrative)
	}
}

func TestDescribeCategoriesTopFiveByCount(t *testing.T) {
	counts := map[string]int{
		"bug": 5, "billing": 4, "question": 3, "support": 2, "feature_request": 1, "other": 1,
	}
	line := describeCategories(counts, 16)
	if !strings.HasPrefix(line, "5 bug (31%)") {
		t.Fatalf("expected biggest category first: %q", line)
	}
	if strings.Contains(line, "other") {
		t.Fatalf("expected sixth category elided (ties break by name): %q", line)
	}
	if !strings.Contains(line, "feature request") {
		t.Fatalf("expected underscores rendered as spaces: %q", line)
	}
}

func TestKeyIssuesElidesBeyondThree(t *testing.T) {
	var successes []Outcome
	for i := int64(1); i <= 5; i++ {
		successes = append(successes, success(i, "bug", "low", "Issue "+strings.Repeat("x", int(i))+". rest", 0.5, 10, 0))
	}
	line := keyIssues(successes)
	if !strings.HasSuffix(line, "; +2 more") {
		t.Fatalf("expected elision suffix: %q", line)
	}
	if strings.Count(line, ";") != 3 {
		t.Fatalf("expected three themes plus suffix: %q", line)
	}
}
