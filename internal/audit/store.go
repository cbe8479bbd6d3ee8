package audit

import (
	"context"

	id "refiler/pkg/domain"
)

// Store is the append-only persistence boundary for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubmission(ctx context.Context, submissionID id.SubmissionID) ([]Event, error)
}
