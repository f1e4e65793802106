package sqlite

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tickets (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		title       TEXT NOT NULL,
		description TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'open',
		tags        TEXT DEFAULT '',
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);

	CREATE TABLE IF NOT EXISTS analysis_runs (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		summary      TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'pending',
		total_tokens INTEGER,
		total_cost   REAL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON analysis_runs(created_at);

	CREATE TABLE IF NOT EXISTS ticket_analysis (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id              INTEGER NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
		ticket_id           INTEGER NOT NULL REFERENCES tickets(id),
		category            TEXT NOT NULL,
		priority            TEXT NOT NULL,
		analysis            TEXT DEFAULT '',
		potential_causes    TEXT DEFAULT '[]',
		suggested_solutions TEXT DEFAULT '[]',
		confidence          REAL NOT NULL DEFAULT 0,
		created_at          DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, ticket_id)
	);
	CREATE INDEX IF NOT EXISTS idx_ta_run ON ticket_analysis(run_id);
	CREATE INDEX IF NOT EXISTS idx_ta_ticket ON ticket_analysis(ticket_id);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	return db, nil
}
