// Package postgres persists audit events in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"refiler/internal/audit"
	id "refiler/pkg/domain"
	txcontext "refiler/pkg/platform/tx"
)

// Store implements audit.Store on database/sql. Inserts join the caller's
// transaction when one is present in the context, so a status transition and
// its audit event commit atomically.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes one audit event. The events table is append-only; this store
// has no update or delete path.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, submission_id, report_id, stage, actor,
			filename, content_sha256, snapshot, note, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID,
		uuid.UUID(event.SubmissionID),
		uuid.UUID(event.ReportID),
		string(event.Stage),
		event.Actor,
		event.Filename,
		event.ContentSHA256,
		event.Snapshot,
		event.Note,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListBySubmission returns the audit trail for one submission in append order.
func (s *Store) ListBySubmission(ctx context.Context, submissionID id.SubmissionID) ([]audit.Event, error) {
	query := `
		SELECT id, submission_id, report_id, stage, actor,
		       filename, content_sha256, snapshot, note, recorded_at
		FROM audit_events
		WHERE submission_id = $1
		ORDER BY recorded_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(submissionID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e          audit.Event
			subID, rID uuid.UUID
			stage      string
		)
		if err := rows.Scan(&e.ID, &subID, &rID, &stage, &e.Actor,
			&e.Filename, &e.ContentSHA256, &e.Snapshot, &e.Note, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.SubmissionID = id.SubmissionID(subID)
		e.ReportID = id.ReportID(rID)
		e.Stage = audit.Stage(stage)
		events = append(events, e)
	}
	return events, rows.Err()
}
