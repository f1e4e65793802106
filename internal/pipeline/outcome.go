package pipeline

import "triagebot/internal/llm"

// Outcome is the terminal result of attempting to classify one ticket
// within a run: either a classification plus usage, or a classified
// failure. Outcomes are never persisted directly.
type Outcome struct {
	TicketID       int64
	Classification llm.Classification
	Usage          llm.Usage
	Err            *llm.CallError
}

func (o Outcome) Failed() bool {
	return o.Err != nil
}

func failure(ticketID int64, err *llm.CallError) Outcome {
	return Outcome{TicketID: ticketID, Err: err}
}

// failureNotFound covers a ticket that validated but vanished before the
// fetch stage loaded it.
func failureNotFound(ticketID int64) Outcome {
	return failure(ticketID, llm.Errf(llm.KindNotFound, "ticket %d no longer exists", ticketID))
}
