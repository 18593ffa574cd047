package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Archive persists evicted results and tickets to SQLite so operators can
// audit invocations after the in-memory window has passed.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens or creates the archive database at path.
func OpenArchive(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS invocations (
		request_id   TEXT PRIMARY KEY,
		session_id   TEXT,
		tool_name    TEXT NOT NULL,
		status       TEXT NOT NULL,
		payload      TEXT,
		error_kind   TEXT,
		error_detail TEXT,
		ticket_id    TEXT,
		created_at   TIMESTAMP NOT NULL,
		finished_at  TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS tickets (
		id         TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		session_id TEXT,
		tool_name  TEXT NOT NULL,
		arguments  TEXT,
		status     TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		decided_at TIMESTAMP,
		deadline   TIMESTAMP NOT NULL,
		decided_by TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_invocations_tool ON invocations(tool_name);
	CREATE INDEX IF NOT EXISTS idx_tickets_session ON tickets(session_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("Invocation archive opened")

	return &Archive{db: db}, nil
}

// ArchiveResults writes evicted results in one transaction.
func (a *Archive) ArchiveResults(results []Result) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO invocations
		(request_id, session_id, tool_name, status, payload, error_kind, error_detail, ticket_id, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare archive statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			payload = []byte("null")
		}
		if _, err := stmt.Exec(r.RequestID, r.SessionID, r.ToolName, string(r.Status),
			string(payload), r.ErrorKind, r.ErrorDetail, r.TicketID, r.CreatedAt, r.FinishedAt); err != nil {
			return fmt.Errorf("failed to archive result %s: %w", r.RequestID, err)
		}
	}

	return tx.Commit()
}

// ArchiveTickets writes evicted tickets in one transaction.
func (a *Archive) ArchiveTickets(tickets []Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO tickets
		(id, request_id, session_id, tool_name, arguments, status, created_at, decided_at, deadline, decided_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare archive statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range tickets {
		args, err := json.Marshal(t.Arguments)
		if err != nil {
			args = []byte("null")
		}
		var decidedAt interface{}
		if t.DecidedAt != nil {
			decidedAt = *t.DecidedAt
		}
		if _, err := stmt.Exec(t.ID, t.RequestID, t.SessionID, t.ToolName,
			string(args), string(t.Status), t.CreatedAt, decidedAt, t.Deadline, t.DecidedBy); err != nil {
			return fmt.Errorf("failed to archive ticket %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// CountInvocations returns how many invocations have been archived.
func (a *Archive) CountInvocations() (int, error) {
	var count int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM invocations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count archived invocations: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
