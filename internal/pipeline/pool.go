package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"triagebot/internal/domain"
	"triagebot/internal/llm"
)

// Classifier is the single external call the pool fans out.
type Classifier interface {
	Classify(ctx context.Context, t domain.Ticket) (llm.Classification, llm.Usage, error)
}

// Pool executes classification calls for a batch with a fixed number of
// workers, independent of batch size. It returns exactly one Outcome per
// input ticket; a failed call becomes a Failure outcome, never an error.
type Pool struct {
	Workers     int
	MaxAttempts int
	BaseDelay   time.Duration
}

// ClassifyAll blocks until every ticket has a terminal outcome. When ctx
// is cancelled mid-batch, tickets not yet finished come back with a
// cancelled failure; completed outcomes are kept.
func (p *Pool) ClassifyAll(ctx context.Context, classifier Classifier, tickets []domain.Ticket) []Outcome {
	if len(tickets) == 0 {
		return nil
	}

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(tickets) {
		workers = len(tickets)
	}

	// One slot per ticket, each written by exactly one worker.
	outcomes := make([]Outcome, len(tickets))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = p.classifyOne(ctx, classifier, tickets[i])
			}
		}()
	}
	for i := range tickets {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

func (p *Pool) classifyOne(ctx context.Context, classifier Classifier, t domain.Ticket) (out Outcome) {
	// A panicking classifier must not take the whole batch down.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pool worker panic ticket=%d: %v", t.ID, r)
			out = failure(t.ID, llm.Errf(llm.KindInvalidResponse, "classifier panic: %v", r))
		}
	}()

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr *llm.CallError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return failure(t.ID, llm.Errf(llm.KindCancelled, "%v", err))
		}

		cl, usage, err := classifier.Classify(ctx, t)
		if err == nil {
			return Outcome{TicketID: t.ID, Classification: cl, Usage: usage}
		}

		lastErr = asCallError(err)
		if lastErr.Kind == llm.KindCancelled {
			return failure(t.ID, lastErr)
		}
		if !lastErr.Transient() || attempt == maxAttempts {
			break
		}

		delay := p.BaseDelay << (attempt - 1)
		log.Printf("pool retry ticket=%d attempt=%d kind=%s delay=%s", t.ID, attempt, lastErr.Kind, delay)
		if !sleepCtx(ctx, delay) {
			return failure(t.ID, llm.Errf(llm.KindCancelled, "cancelled during retry backoff"))
		}
	}
	return failure(t.ID, lastErr)
}

func asCallError(err error) *llm.CallError {
	var callErr *llm.CallError
	if errors.As(err, &callErr) {
		return callErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.Errf(llm.KindTimeout, "%v", err)
	}
	if errors.Is(err, context.Canceled) {
		return llm.Errf(llm.KindCancelled, "%v", err)
	}
	return llm.Errf(llm.KindNetwork, "%v", err)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
