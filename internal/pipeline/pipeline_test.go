package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"triagebot/internal/domain"
	"triagebot/internal/llm"
)

// fakeSource serves tickets from a map and can drop ids between the
// validation and fetch reads to simulate concurrent deletion.
type fakeSource struct {
	mu         sync.Mutex
	tickets    map[int64]domain.Ticket
	reads      int
	dropOnRead map[int]int64 // read number -> ticket id to delete first
	err        error
}

func newFakeSource(ids ...int64) *fakeSource {
	s := &fakeSource{tickets: map[int64]domain.Ticket{}}
	for _, id := range ids {
		s.tickets[id] = domain.Ticket{ID: id, Title: "t", Description: "d", Status: domain.TicketOpen}
	}
	return s
}

func (s *fakeSource) beforeRead() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if id, ok := s.dropOnRead[s.reads]; ok {
		delete(s.tickets, id)
	}
	return s.err
}

func (s *fakeSource) ListAll(context.Context) ([]domain.Ticket, error) {
	if err := s.beforeRead(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Ticket
	for id := int64(1); id <= 1000; id++ {
		if t, ok := s.tickets[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeSource) ListByIDs(_ context.Context, ids []int64) ([]domain.Ticket, error) {
	if err := s.beforeRead(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Ticket
	for _, id := range ids {
		if t, ok := s.tickets[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// fakeSink records run lifecycle calls in memory.
type fakeSink struct {
	mu           sync.Mutex
	nextRunID    int64
	created      []int64
	committed    map[int64][]domain.TicketAnalysis
	status       map[int64]string
	summary      map[int64]string
	failedReason map[int64]string
	createErr    error
	commitErr    error
	markErr      error
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		committed:    map[int64][]domain.TicketAnalysis{},
		status:       map[int64]string{},
		summary:      map[int64]string{},
		failedReason: map[int64]string{},
	}
}

func (s *fakeSink) CreatePendingRun(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return 0, s.createErr
	}
	s.nextRunID++
	s.created = append(s.created, s.nextRunID)
	s.status[s.nextRunID] = domain.RunPending
	return s.nextRunID, nil
}

func (s *fakeSink) CommitRun(_ context.Context, runID int64, status, summary string, totalTokens int64, totalCost float64, analyses []domain.TicketAnalysis) (domain.AnalysisRun, []domain.TicketAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return domain.AnalysisRun{}, nil, s.commitErr
	}
	s.status[runID] = status
	s.summary[runID] = summary
	s.committed[runID] = analyses
	run := domain.AnalysisRun{ID: runID, Status: status, Summary: summary, TotalTokens: &totalTokens, TotalCost: &totalCost}
	return run, analyses, nil
}

func (s *fakeSink) MarkRunFailed(_ context.Context, runID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.status[runID] = domain.RunFailed
	s.failedReason[runID] = reason
	return nil
}

func (s *fakeSink) runStatus(runID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[runID]
}

func newOrchestrator(src *fakeSource, sink *fakeSink, fn func(t domain.Ticket, attempt int) (llm.Classification, llm.Usage, error)) *Orchestrator {
	return &Orchestrator{
		Tickets:    src,
		Runs:       sink,
		Classifier: &stubClassifier{fn: fn},
		Pool:       Pool{Workers: 2, MaxAttempts: 1},
	}
}

func allSucceed(t domain.Ticket, _ int) (llm.Classification, llm.Usage, error) {
	return okVerdict()
}

func TestExecuteHappyPath(t *testing.T) {
	src := newFakeSource(1, 2, 3)
	sink := newFakeSink()
	orch := newOrchestrator(src, sink, allSucceed)

	result, err := orch.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Run.Status != domain.RunCompleted {
		t.Fatalf("expected completed run, got %q", result.Run.Status)
	}
	if len(result.Analyses) != 3 {
		t.Fatalf("expected 3 analyses, got %d", len(result.Analyses))
	}
	if result.Summary.TotalAttempted != 3 || result.Summary.TotalFailed != 0 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if sink.runStatus(result.Run.ID) != domain.RunCompleted {
		t.Fatalf("run not committed as completed in sink")
	}
}

func TestExecuteExplicitSubset(t *testing.T) {
	src := newFakeSource(1, 2, 3, 4)
	sink := newFakeSink()
	orch := newOrchestrator(src, sink, allSucceed)

	result, err := orch.Execute(context.Background(), []int64{2, 4, 2})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	// Duplicate ids collapse to one analysis each.
	if len(result.Analyses) != 2 {
		t.Fatalf("expected 2 analyses, got %d", len(result.Analyses))
	}
}

func TestExecuteEmptySelectionCommitsEmptyRun(t *testing.T) {
	src := newFakeSource(1, 2)
	sink := newFakeSink()
	orch := newOrchestrator(src, sink, allSucceed)

	result, err := orch.Execute(context.Background(), []int64{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Run.Status != domain.RunCompleted {
		t.Fatalf("expected completed empty run, got %q", result.Run.Status)
	}
	if len(result.Analyses) != 0 {
		t.Fatalf("expected no analyses, got %d", len(result.Analyses))
	}
	if result.Run.Summary != "No tickets analyzed." {
		t.Fatalf("unexpected summary: %q", result.Run.Summary)
	}
}

func TestExecuteUnknownIDFailsBeforeRunCreation(t *testing.T) {
	src := newFakeSource(1, 2)
	sink := newFakeSink()
	orch := newOrchestrator(src, sink, allSucceed)

	_, err := orch.Execute(context.Background(), []int64{1, 99})
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %v", err)
	}
	if runErr.Kind != ErrInvalidInput {
		t.Fatalf("expected invalid_input, got %s", runErr.Kind)
	}
	if runErr.RunID != 0 {
		t.Fatalf("no run should exist for invalid input, got run %d", runErr.RunID)
	}
	if len(sink.created) != 0 {
		t.Fatalf("no run row should have been created, got %v", sink.created)
	}
}

func TestExecutePartialFailuresStillComplete(t *testing.T) {
	src := newFakeSource(1, 2, 3)
	sink := newFakeSink()
	orch := newOrchestrator(src, sink, func(tk domain.Ticket, _ int) (llm.Classification, llm.Usage, error) {
		if tk.ID == 2 {
			return llm.Classification{}, llm.Usage{}, llm.Errf(llm.KindInvalidResponse, "garbage")
		}
		return okVerdict()
	})

	result, err := orch.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("per-ticket failures must not fail the run: %v", err)
	}
	if result.Run.Status != domain.RunCompleted {
		t.Fatalf("expected completed run, got %q", result.Run.Status)
	}
	if len(result.Analyses) != 2 {
		t.Fatalf("expected 2 analyses, got %d", len(result.Analyses))
	}
	if result.Summary.TotalFailed != 1 {
		t.Fatalf("expected 1 failure in summary, got %d", result.Summary.TotalFailed)
	}
}

func TestExecuteAllFailuresFailTheRun(t *testing.T) {
	src := newFakeSource(1, 2)
	sink := newFakeSink()
	orch := newOrchestrator(src, sink, func(domain.Ticket, int) (llm.Classification, llm.Usage, error) {
		return llm.Classification{}, llm.Usage{}, llm.Errf(llm.KindNetwork, "down")
	})

	_, err := orch.Execute(context.Background(), nil)
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %v", err)
	}
	if runErr.Kind != ErrExecution {
		t.Fatalf("expected execution kind, got %s", runErr.Kind)
	}
	if runErr.RunID == 0 {
		t.Fatalf("run id should be carried in the error")
	}
	// The run row still commits, in failed status with the summary text.
	if sink.runStatus(runErr.RunID) != domain.RunFailed {
		t.Fatalf("expected run committed as failed, got %q", sink.runStatus(runErr.RunID))
	}
	if len(sink.committed[runErr.RunID]) != 0 {
		t.Fatalf("failed run should have no analysis rows")
	}
}

func TestExecuteVanishedTicketBecomesFailureOutcome(t *testing.T) {
	src := newFakeSource(1, 2)
	// First read validates both ids; ticket 2 disappears before the
	// second (fetch) read.
	src.dropOnRead = map[int]int64{2: 2}
	sink := newFakeSink()
	orch := newOrchestrator(src, sink, allSucceed)

	result, err := orch.Execute(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Run.Status != domain.RunCompleted {
		t.Fatalf("expected completed run, got %q", result.Run.Status)
	}
	if len(result.Analyses) != 1 || result.Analyses[0].TicketID != 1 {
		t.Fatalf("expected only ticket 1 analyzed, got %+v", result.Analyses)
	}
	if result.Summary.TotalAttempted != 2 || result.Summary.TotalFailed != 1 {
		t.Fatalf("vanished ticket should count as a failure: %+v", result.Summary)
	}
}

func TestExecutePersistenceFailureMarksRunFailed(t *testing.T) {
	src := newFakeSource(1)
	sink := newFakeSink()
	sink.commitErr = errors.New("disk full")
	orch := newOrchestrator(src, sink, allSucceed)

	_, err := orch.Execute(context.Background(), nil)
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %v", err)
	}
	if runErr.Kind != ErrPersistence {
		t.Fatalf("expected persistence kind, got %s", runErr.Kind)
	}
	if !errors.Is(err, sink.commitErr) {
		t.Fatalf("expected wrapped commit error, got %v", err)
	}
	if sink.runStatus(runErr.RunID) != domain.RunFailed {
		t.Fatalf("run should be marked failed, got %q", sink.runStatus(runErr.RunID))
	}
	if sink.failedReason[runErr.RunID] == "" {
		t.Fatalf("mark-failed reason should be recorded")
	}
}

func TestExecuteCreateRunFailure(t *testing.T) {
	src := newFakeSource(1)
	sink := newFakeSink()
	sink.createErr = errors.New("locked")
	orch := newOrchestrator(src, sink, allSucceed)

	_, err := orch.Execute(context.Background(), nil)
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %v", err)
	}
	if runErr.Kind != ErrPersistence || runErr.RunID != 0 {
		t.Fatalf("expected persistence error with no run id, got %+v", runErr)
	}
}

func TestExecuteCancelledContextStillPersists(t *testing.T) {
	src := newFakeSource(1, 2)
	sink := newFakeSink()
	ctx, cancel := context.WithCancel(context.Background())
	orch := newOrchestrator(src, sink, func(tk domain.Ticket, _ int) (llm.Classification, llm.Usage, error) {
		if tk.ID == 1 {
			cancel()
			return okVerdict()
		}
		return llm.Classification{}, llm.Usage{}, llm.Errf(llm.KindCancelled, "cancelled")
	})
	orch.Pool.Workers = 1

	result, err := orch.Execute(ctx, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	// The outcome collected before the cancel must survive persist.
	if len(result.Analyses) != 1 {
		t.Fatalf("expected 1 analysis, got %d", len(result.Analyses))
	}
	if result.Summary.TotalFailed != 1 {
		t.Fatalf("expected 1 cancelled failure, got %d", result.Summary.TotalFailed)
	}
	if sink.runStatus(result.Run.ID) != domain.RunCompleted {
		t.Fatalf("run should have committed despite the cancelled context")
	}
}

func TestRunErrorFormatting(t *testing.T) {
	withRun := runErrf(ErrExecution, 7, nil, "boom")
	if withRun.Error() != "execution (run 7): boom" {
		t.Fatalf("unexpected message: %q", withRun.Error())
	}
	withoutRun := runErrf(ErrInvalidInput, 0, nil, "bad ids")
	if withoutRun.Error() != "invalid_input: bad ids" {
		t.Fatalf("unexpected message: %q", withoutRun.Error())
	}

	inner := errors.New("inner")
	wrapped := runErrf(ErrPersistence, 1, inner, "outer")
	if !errors.Is(wrapped, inner) {
		t.Fatalf("RunError should unwrap to the cause")
	}
}
