package domain

import "time"

// Ticket statuses as stored in the tickets table.
const (
	TicketOpen       = "open"
	TicketInProgress = "in_progress"
	TicketResolved   = "resolved"
	TicketClosed     = "closed"
)

// AnalysisRun lifecycle states.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Priorities the classifier may assign.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Well-known ticket categories. The category column is an open string,
// so stored values are not restricted to this set.
const (
	CategoryBug            = "bug"
	CategoryBilling        = "billing"
	CategoryFeatureRequest = "feature_request"
	CategoryQuestion       = "question"
	CategorySupport        = "support"
	CategoryOther          = "other"
)

type Ticket struct {
	ID          int64
	Title       string
	Description string
	Status      string
	Tags        string // comma-separated: "billing,refund"
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AnalysisRun groups the per-ticket analyses produced by one pipeline
// execution. TotalTokens and TotalCost stay nil until the run commits.
type AnalysisRun struct {
	ID          int64
	CreatedAt   time.Time
	Summary     string
	Status      string
	TotalTokens *int64
	TotalCost   *float64
}

// TicketAnalysis is one classifier verdict for one ticket within a run.
// At most one row may exist per (RunID, TicketID) pair.
type TicketAnalysis struct {
	ID                 int64
	RunID              int64
	TicketID           int64
	Category           string
	Priority           string
	Analysis           string
	PotentialCauses    []string
	SuggestedSolutions []string
	Confidence         float64
	CreatedAt          time.Time
}

func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

func ValidTicketStatus(s string) bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved, TicketClosed:
		return true
	}
	return false
}
