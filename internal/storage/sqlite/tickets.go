package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"triagebot/internal/domain"
)

var ErrNotFound = errors.New("not found")

type TicketStore struct {
	DB *sql.DB
}

const ticketColumns = `id, title, description, status, COALESCE(tags, ''), created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Tags, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

func (s *TicketStore) Insert(ctx context.Context, t domain.Ticket) (int64, error) {
	if t.Status == "" {
		t.Status = domain.TicketOpen
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO tickets (title, description, status, tags) VALUES (?, ?, ?, ?)`,
		t.Title, t.Description, t.Status, t.Tags,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *TicketStore) Update(ctx context.Context, t domain.Ticket) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE tickets SET title = ?, description = ?, status = ?, tags = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		t.Title, t.Description, t.Status, t.Tags, t.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *TicketStore) Delete(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *TicketStore) Get(ctx context.Context, id int64) (domain.Ticket, error) {
	return scanTicket(s.DB.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
}

func (s *TicketStore) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickets(rows)
}

// ListByIDs returns the tickets that exist among ids, in id order.
// Missing ids are simply absent from the result.
func (s *TicketStore) ListByIDs(ctx context.Context, ids []int64) ([]domain.Ticket, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM tickets WHERE id IN (%s) ORDER BY id`, ticketColumns, placeholders),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickets(rows)
}

func (s *TicketStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&n)
	return n, err
}

func collectTickets(rows *sql.Rows) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}
