// Package postgres persists FilingSubmission records in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"refiler/internal/submission"
	id "refiler/pkg/domain"
	"refiler/pkg/platform/sentinel"
	txcontext "refiler/pkg/platform/tx"
)

// Schema is the DDL this store expects. The partial unique index is what
// enforces at-most-one active submission per report at the database level.
const Schema = `
CREATE TABLE IF NOT EXISTS filing_submissions (
	id                 UUID PRIMARY KEY,
	report_id          UUID        NOT NULL,
	status             TEXT        NOT NULL,
	attempts           INT         NOT NULL DEFAULT 0,
	uploaded_filename  TEXT        NOT NULL DEFAULT '',
	payload_snapshot   BYTEA,
	activity_seq_num   INT         NOT NULL DEFAULT 0,
	response_snapshot  BYTEA,
	receipt_id         TEXT        NOT NULL DEFAULT '',
	rejection_code     TEXT        NOT NULL DEFAULT '',
	rejection_message  TEXT        NOT NULL DEFAULT '',
	last_error         TEXT        NOT NULL DEFAULT '',
	messages_processed BOOLEAN     NOT NULL DEFAULT FALSE,
	next_poll_at       TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS filing_submissions_one_active
	ON filing_submissions (report_id)
	WHERE status IN ('queued', 'submitted');

CREATE TABLE IF NOT EXISTS audit_events (
	id             UUID PRIMARY KEY,
	submission_id  UUID        NOT NULL,
	report_id      UUID        NOT NULL,
	stage          TEXT        NOT NULL,
	actor          TEXT        NOT NULL DEFAULT '',
	filename       TEXT        NOT NULL DEFAULT '',
	content_sha256 TEXT        NOT NULL DEFAULT '',
	snapshot       BYTEA,
	note           TEXT        NOT NULL DEFAULT '',
	recorded_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS audit_events_by_submission
	ON audit_events (submission_id, recorded_at);
`

const columns = `
	id, report_id, status, attempts, uploaded_filename,
	payload_snapshot, activity_seq_num, response_snapshot,
	receipt_id, rejection_code, rejection_message, last_error,
	messages_processed, next_poll_at, created_at, updated_at
`

// Store implements submission.Store on database/sql.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a PostgreSQL-backed submission store.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate applies the store schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate filing schema: %w", err)
	}
	return nil
}

// execer returns the caller's transaction when one is carried in the context,
// so writes inside WithTx commit together.
func (s *Store) execer(ctx context.Context) interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Create(ctx context.Context, sub *submission.FilingSubmission) error {
	now := s.clock()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	query := `INSERT INTO filing_submissions (` + columns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(sub.ID), uuid.UUID(sub.ReportID), string(sub.Status), sub.Attempts, sub.UploadedFilename,
		sub.PayloadSnapshot, sub.ActivitySeqNum, sub.ResponseSnapshot,
		sub.ReceiptID, sub.RejectionCode, sub.RejectionMessage, sub.LastError,
		sub.MessagesProcessed, sub.NextPollAt, sub.CreatedAt, sub.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, subID id.SubmissionID) (*submission.FilingSubmission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM filing_submissions WHERE id = $1`, uuid.UUID(subID))
	return scanSubmission(row)
}

func (s *Store) LatestByReport(ctx context.Context, reportID id.ReportID) (*submission.FilingSubmission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM filing_submissions WHERE report_id = $1 ORDER BY created_at DESC LIMIT 1`,
		uuid.UUID(reportID))
	return scanSubmission(row)
}

func (s *Store) DuePolls(ctx context.Context, now time.Time, limit int) ([]*submission.FilingSubmission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM filing_submissions
		 WHERE (status = $1 OR (status = $2 AND receipt_id = ''))
		   AND next_poll_at IS NOT NULL AND next_poll_at <= $3
		 ORDER BY next_poll_at
		 LIMIT $4`,
		string(submission.StatusSubmitted), string(submission.StatusAccepted), now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due polls: %w", err)
	}
	defer rows.Close()

	var due []*submission.FilingSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, sub)
	}
	return due, rows.Err()
}

// Apply runs mutate under a SELECT ... FOR UPDATE row lock so concurrent
// transitions on the same submission serialize, and the expected-status check
// cannot race. Inside WithTx it joins the caller's transaction; otherwise it
// opens and commits its own.
func (s *Store) Apply(ctx context.Context, subID id.SubmissionID, expect submission.Status, mutate func(*submission.FilingSubmission) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return s.applyIn(ctx, tx, subID, expect, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.applyIn(ctx, tx, subID, expect, mutate); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply tx: %w", err)
	}
	return nil
}

func (s *Store) applyIn(ctx context.Context, tx *sql.Tx, subID id.SubmissionID, expect submission.Status, mutate func(*submission.FilingSubmission) error) error {
	row := tx.QueryRowContext(ctx,
		`SELECT `+columns+` FROM filing_submissions WHERE id = $1 FOR UPDATE`, uuid.UUID(subID))
	sub, err := scanSubmission(row)
	if err != nil {
		return err
	}
	if sub.Status != expect {
		return sentinel.ErrInvalidState
	}

	if err := mutate(sub); err != nil {
		return err
	}
	if sub.Status != expect && !submission.CanTransition(expect, sub.Status) {
		return sentinel.ErrInvalidState
	}
	sub.UpdatedAt = s.clock()

	_, err = tx.ExecContext(ctx, `
		UPDATE filing_submissions SET
			status = $2, attempts = $3, uploaded_filename = $4,
			payload_snapshot = $5, activity_seq_num = $6, response_snapshot = $7,
			receipt_id = $8, rejection_code = $9, rejection_message = $10,
			last_error = $11, messages_processed = $12, next_poll_at = $13,
			updated_at = $14
		WHERE id = $1`,
		uuid.UUID(sub.ID), string(sub.Status), sub.Attempts, sub.UploadedFilename,
		sub.PayloadSnapshot, sub.ActivitySeqNum, sub.ResponseSnapshot,
		sub.ReceiptID, sub.RejectionCode, sub.RejectionMessage,
		sub.LastError, sub.MessagesProcessed, sub.NextPollAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction exposed through the context, so callers
// can group a status transition with its audit event.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*submission.FilingSubmission, error) {
	var (
		sub        submission.FilingSubmission
		subID, rID uuid.UUID
		status     string
		nextPoll   sql.NullTime
	)
	err := row.Scan(
		&subID, &rID, &status, &sub.Attempts, &sub.UploadedFilename,
		&sub.PayloadSnapshot, &sub.ActivitySeqNum, &sub.ResponseSnapshot,
		&sub.ReceiptID, &sub.RejectionCode, &sub.RejectionMessage, &sub.LastError,
		&sub.MessagesProcessed, &nextPoll, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	sub.ID = id.SubmissionID(subID)
	sub.ReportID = id.ReportID(rID)
	sub.Status = submission.Status(status)
	if nextPoll.Valid {
		t := nextPoll.Time
		sub.NextPollAt = &t
	}
	return &sub, nil
}
