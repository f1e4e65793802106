package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"triagebot/internal/domain"
)

type RunStore struct {
	DB *sql.DB
}

// CreatePendingRun inserts an empty run row in pending status and returns
// its id. The row exists before any ticket work begins so that later stage
// failures leave an auditable record.
func (s *RunStore) CreatePendingRun(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO analysis_runs (summary, status) VALUES ('', ?)`, domain.RunPending)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CommitRun finalizes a run and writes its analysis rows in a single
// transaction: either the run fields and every row land together, or
// nothing does. A duplicate (run_id, ticket_id) pair aborts the whole
// commit via the schema's UNIQUE constraint.
func (s *RunStore) CommitRun(
	ctx context.Context,
	runID int64,
	status, summary string,
	totalTokens int64,
	totalCost float64,
	analyses []domain.TicketAnalysis,
) (domain.AnalysisRun, []domain.TicketAnalysis, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.AnalysisRun{}, nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE analysis_runs SET summary = ?, status = ?, total_tokens = ?, total_cost = ? WHERE id = ?`,
		summary, status, totalTokens, totalCost, runID,
	)
	if err != nil {
		return domain.AnalysisRun{}, nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.AnalysisRun{}, nil, err
	}
	if n == 0 {
		return domain.AnalysisRun{}, nil, fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ticket_analysis
		 (run_id, ticket_id, category, priority, analysis, potential_causes, suggested_solutions, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return domain.AnalysisRun{}, nil, err
	}
	defer stmt.Close()

	for _, a := range analyses {
		causes, err := json.Marshal(a.PotentialCauses)
		if err != nil {
			return domain.AnalysisRun{}, nil, fmt.Errorf("marshaling causes for ticket %d: %w", a.TicketID, err)
		}
		solutions, err := json.Marshal(a.SuggestedSolutions)
		if err != nil {
			return domain.AnalysisRun{}, nil, fmt.Errorf("marshaling solutions for ticket %d: %w", a.TicketID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, a.TicketID, a.Category, a.Priority, a.Analysis,
			string(causes), string(solutions), a.Confidence,
		); err != nil {
			return domain.AnalysisRun{}, nil, fmt.Errorf("inserting analysis for ticket %d: %w", a.TicketID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.AnalysisRun{}, nil, err
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return domain.AnalysisRun{}, nil, err
	}
	persisted, err := s.AnalysesForRun(ctx, runID)
	if err != nil {
		return run, nil, err
	}
	return run, persisted, nil
}

// MarkRunFailed is best-effort: callers log the returned error but do not
// let it mask the failure that got the run here.
func (s *RunStore) MarkRunFailed(ctx context.Context, runID int64, reason string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE analysis_runs SET status = ?, summary = ? WHERE id = ?`,
		domain.RunFailed, reason, runID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, id int64) (domain.AnalysisRun, error) {
	var r domain.AnalysisRun
	var tokens sql.NullInt64
	var cost sql.NullFloat64
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, created_at, summary, status, total_tokens, total_cost FROM analysis_runs WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.CreatedAt, &r.Summary, &r.Status, &tokens, &cost)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	if tokens.Valid {
		r.TotalTokens = &tokens.Int64
	}
	if cost.Valid {
		r.TotalCost = &cost.Float64
	}
	return r, nil
}

func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, created_at, summary, status, total_tokens, total_cost
		 FROM analysis_runs ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.AnalysisRun
	for rows.Next() {
		var r domain.AnalysisRun
		var tokens sql.NullInt64
		var cost sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Summary, &r.Status, &tokens, &cost); err != nil {
			return nil, err
		}
		if tokens.Valid {
			r.TotalTokens = &tokens.Int64
		}
		if cost.Valid {
			r.TotalCost = &cost.Float64
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *RunStore) AnalysesForRun(ctx context.Context, runID int64) ([]domain.TicketAnalysis, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, run_id, ticket_id, category, priority, COALESCE(analysis, ''),
		        COALESCE(potential_causes, '[]'), COALESCE(suggested_solutions, '[]'), confidence, created_at
		 FROM ticket_analysis WHERE run_id = ? ORDER BY ticket_id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TicketAnalysis
	for rows.Next() {
		var a domain.TicketAnalysis
		var causes, solutions string
		if err := rows.Scan(&a.ID, &a.RunID, &a.TicketID, &a.Category, &a.Priority,
			&a.Analysis, &causes, &solutions, &a.Confidence, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(causes), &a.PotentialCauses); err != nil {
			return nil, fmt.Errorf("analysis %d: decoding potential_causes: %w", a.ID, err)
		}
		if err := json.Unmarshal([]byte(solutions), &a.SuggestedSolutions); err != nil {
			return nil, fmt.Errorf("analysis %d: decoding suggested_solutions: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
