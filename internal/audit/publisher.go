package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	id "refiler/pkg/domain"
)

// Publisher captures structured audit events. It is append-only and uses the
// store for persistence so tests can swap sinks easily. Emission happens
// before the orchestrator acts on a result, never after.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit stamps the event with an ID, timestamp and content hash and appends it.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == (uuid.UUID{}) {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if len(event.Snapshot) > 0 && event.ContentSHA256 == "" {
		sum := sha256.Sum256(event.Snapshot)
		event.ContentSHA256 = hex.EncodeToString(sum[:])
	}
	return p.store.Append(ctx, event)
}

// List returns the audit trail for one submission in append order.
func (p *Publisher) List(ctx context.Context, submissionID id.SubmissionID) ([]Event, error) {
	return p.store.ListBySubmission(ctx, submissionID)
}
