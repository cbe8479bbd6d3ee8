package submission

import (
	"context"
	"time"

	id "refiler/pkg/domain"
)

// Store is the persistence boundary for FilingSubmission records. Submissions
// are created once, mutated only through Apply, and never deleted.
type Store interface {
	// Create inserts a new submission. It fails with sentinel.ErrConflict
	// when another submission for the same report is still active (queued or
	// submitted); this is what enforces at-most-one-in-flight per report.
	Create(ctx context.Context, sub *FilingSubmission) error

	// Get returns one submission by ID, or sentinel.ErrNotFound.
	Get(ctx context.Context, subID id.SubmissionID) (*FilingSubmission, error)

	// LatestByReport returns the most recently created submission for a
	// report, or sentinel.ErrNotFound.
	LatestByReport(ctx context.Context, reportID id.ReportID) (*FilingSubmission, error)

	// DuePolls returns submissions still awaiting a response file — those in
	// submitted state, plus accepted ones whose receipt has not arrived —
	// whose NextPollAt has elapsed, oldest first, up to limit.
	DuePolls(ctx context.Context, now time.Time, limit int) ([]*FilingSubmission, error)

	// Apply loads the submission, verifies it is still in the expected
	// status, runs mutate, and persists the result — all atomically with
	// respect to concurrent Apply calls for the same row (row lock in
	// postgres, mutex in memory). A status mismatch returns
	// sentinel.ErrInvalidState and mutate is not called.
	Apply(ctx context.Context, subID id.SubmissionID, expect Status, mutate func(*FilingSubmission) error) error

	// WithTx runs fn with a store transaction carried in the context, so a
	// status transition and the audit events recording it commit or roll
	// back as one unit (audit appends join via pkg/platform/tx). The memory
	// store runs fn directly.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
