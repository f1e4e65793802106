package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"triagebot/internal/domain"
)

// TicketSource is the read-only view of ticket storage the pipeline
// needs. Missing ids are absent from results, not errors.
type TicketSource interface {
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	ListByIDs(ctx context.Context, ids []int64) ([]domain.Ticket, error)
}

// RunSink persists run state. CommitRun must be atomic: the run fields
// and every analysis row land together or not at all.
type RunSink interface {
	CreatePendingRun(ctx context.Context) (int64, error)
	CommitRun(ctx context.Context, runID int64, status, summary string, totalTokens int64, totalCost float64, analyses []domain.TicketAnalysis) (domain.AnalysisRun, []domain.TicketAnalysis, error)
	MarkRunFailed(ctx context.Context, runID int64, reason string) error
}

// Orchestrator sequences one analysis run: validate, create the run row,
// fetch tickets, fan out classification, aggregate, persist. Collaborators
// are injected so tests can substitute fakes.
type Orchestrator struct {
	Tickets    TicketSource
	Runs       RunSink
	Classifier Classifier
	Pool       Pool

	// Deadline bounds a whole invocation; zero means the caller's context
	// is the only limit.
	Deadline time.Duration
}

// Result is a committed run plus its persisted analyses.
type Result struct {
	Run      domain.AnalysisRun
	Analyses []domain.TicketAnalysis
	Summary  Summary
}

// runState carries one invocation between stages. Each stage reads the
// fields of the previous one and fills in its own.
type runState struct {
	invocation string
	requested  []int64 // nil means all tickets; empty non-nil means none
	selectAll  bool
	runID      int64
	tickets    []domain.Ticket
	vanished   []int64 // validated ids that disappeared before fetch
	outcomes   []Outcome
	summary    Summary
	status     string
	run        domain.AnalysisRun
	analyses   []domain.TicketAnalysis
}

// Execute runs the pipeline once. A nil ticketIDs slice selects every
// ticket; an empty non-nil slice analyzes nothing (the run still commits,
// empty). Failures come back as a *RunError; per-ticket classification
// failures do not fail the invocation and only show up in the summary.
func (o *Orchestrator) Execute(ctx context.Context, ticketIDs []int64) (Result, error) {
	if o.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Deadline)
		defer cancel()
	}

	state := &runState{
		invocation: uuid.NewString(),
		requested:  ticketIDs,
		selectAll:  ticketIDs == nil,
	}

	stages := []struct {
		name string
		fn   func(context.Context, *runState) error
	}{
		{"validate", o.validate},
		{"initialize", o.initialize},
		{"fetch", o.fetch},
		{"classify", o.classify},
		{"aggregate", o.aggregate},
		{"persist", o.persist},
	}
	for _, stage := range stages {
		log.Printf("pipeline invocation=%s run=%d stage=%s", state.invocation, state.runID, stage.name)
		if err := stage.fn(ctx, state); err != nil {
			return Result{}, o.fail(ctx, state, err)
		}
	}

	log.Printf("pipeline invocation=%s run=%d status=%s attempted=%d failed=%d tokens=%d cost=%.6f",
		state.invocation, state.runID, state.status,
		state.summary.TotalAttempted, state.summary.TotalFailed,
		state.summary.TotalTokens, state.summary.TotalCost)

	if state.status == domain.RunFailed {
		// The run row is committed in failed status; surface the total
		// classification failure to the caller.
		return Result{}, runErrf(ErrExecution, state.runID, nil,
			"all %d classifications failed", state.summary.TotalAttempted)
	}
	return Result{Run: state.run, Analyses: state.analyses, Summary: state.summary}, nil
}

// validate rejects unknown ticket ids before any run row exists. A nil or
// empty selection has nothing to check.
func (o *Orchestrator) validate(ctx context.Context, state *runState) error {
	if state.selectAll || len(state.requested) == 0 {
		return nil
	}

	state.requested = dedupeIDs(state.requested)
	tickets, err := o.Tickets.ListByIDs(ctx, state.requested)
	if err != nil {
		return runErrf(ErrExecution, 0, err, "loading tickets for validation: %v", err)
	}
	if len(tickets) == len(state.requested) {
		return nil
	}

	found := make(map[int64]bool, len(tickets))
	for _, t := range tickets {
		found[t.ID] = true
	}
	var missing []int64
	for _, id := range state.requested {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return runErrf(ErrInvalidInput, 0, nil, "ticket ids not found: %v", missing)
}

func (o *Orchestrator) initialize(ctx context.Context, state *runState) error {
	runID, err := o.Runs.CreatePendingRun(ctx)
	if err != nil {
		return runErrf(ErrPersistence, 0, err, "creating run: %v", err)
	}
	state.runID = runID
	return nil
}

// fetch loads the full ticket records. An id that validated but vanished
// since is recorded for a per-ticket failure outcome, not a fatal abort.
func (o *Orchestrator) fetch(ctx context.Context, state *runState) error {
	if !state.selectAll && len(state.requested) == 0 {
		return nil
	}

	var tickets []domain.Ticket
	var err error
	if state.selectAll {
		tickets, err = o.Tickets.ListAll(ctx)
	} else {
		tickets, err = o.Tickets.ListByIDs(ctx, state.requested)
	}
	if err != nil {
		return runErrf(ErrExecution, state.runID, err, "fetching tickets: %v", err)
	}
	state.tickets = tickets

	if !state.selectAll && len(tickets) < len(state.requested) {
		found := make(map[int64]bool, len(tickets))
		for _, t := range tickets {
			found[t.ID] = true
		}
		for _, id := range state.requested {
			if !found[id] {
				state.vanished = append(state.vanished, id)
			}
		}
		log.Printf("pipeline invocation=%s run=%d vanished=%v", state.invocation, state.runID, state.vanished)
	}
	return nil
}

func (o *Orchestrator) classify(ctx context.Context, state *runState) error {
	outcomes := o.Pool.ClassifyAll(ctx, o.Classifier, state.tickets)
	if len(outcomes) != len(state.tickets) {
		return runErrf(ErrExecution, state.runID, nil,
			"worker pool returned %d outcomes for %d tickets", len(outcomes), len(state.tickets))
	}
	for _, id := range state.vanished {
		outcomes = append(outcomes, failureNotFound(id))
	}
	state.outcomes = outcomes
	return nil
}

func (o *Orchestrator) aggregate(_ context.Context, state *runState) error {
	state.summary = Summarize(state.outcomes)

	succeeded := state.summary.TotalAttempted - state.summary.TotalFailed
	if state.summary.TotalAttempted > 0 && succeeded == 0 {
		state.status = domain.RunFailed
	} else {
		state.status = domain.RunCompleted
	}
	return nil
}

// persist commits the run and its analysis rows in one transaction. It
// runs detached from the invocation deadline: outcomes collected before a
// mid-classify cutoff must still land.
func (o *Orchestrator) persist(ctx context.Context, state *runState) error {
	var analyses []domain.TicketAnalysis
	for _, oc := range state.outcomes {
		if oc.Failed() {
			continue
		}
		analyses = append(analyses, domain.TicketAnalysis{
			RunID:              state.runID,
			TicketID:           oc.TicketID,
			Category:           oc.Classification.Category,
			Priority:           oc.Classification.Priority,
			Analysis:           oc.Classification.Analysis,
			PotentialCauses:    oc.Classification.PotentialCauses,
			SuggestedSolutions: oc.Classification.SuggestedSolutions,
			Confidence:         oc.Classification.Confidence,
		})
	}

	run, persisted, err := o.Runs.CommitRun(
		context.WithoutCancel(ctx),
		state.runID, state.status, state.summary.Narrative,
		state.summary.TotalTokens, state.summary.TotalCost, analyses,
	)
	if err != nil {
		return runErrf(ErrPersistence, state.runID, err, "committing run: %v", err)
	}
	state.run = run
	state.analyses = persisted
	return nil
}

// fail converts a stage error into a *RunError and best-effort marks the
// run failed. A mark failure is logged, never swallowed into silence.
func (o *Orchestrator) fail(ctx context.Context, state *runState, err error) error {
	var runErr *RunError
	if !errors.As(err, &runErr) {
		runErr = runErrf(ErrExecution, state.runID, err, "%v", err)
	}
	if runErr.RunID == 0 {
		runErr.RunID = state.runID
	}
	log.Printf("pipeline invocation=%s run=%d failed kind=%s: %s", state.invocation, state.runID, runErr.Kind, runErr.Message)

	if state.runID != 0 {
		markCtx := context.WithoutCancel(ctx)
		if markErr := o.Runs.MarkRunFailed(markCtx, state.runID, runErr.Message); markErr != nil {
			log.Printf("pipeline invocation=%s run=%d mark-failed error: %v", state.invocation, state.runID, markErr)
			runErr.Message = fmt.Sprintf("%s (marking run failed also failed: %v)", runErr.Message, markErr)
		}
	}
	return runErr
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
