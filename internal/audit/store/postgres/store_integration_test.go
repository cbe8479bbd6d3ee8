//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"refiler/internal/audit"
	"refiler/internal/audit/store/postgres"
	submissionpg "refiler/internal/submission/store/postgres"
	id "refiler/pkg/domain"
	txcontext "refiler/pkg/platform/tx"
	"refiler/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	// The audit_events table ships with the submission schema.
	s.Require().NoError(submissionpg.New(s.pg.DB).Migrate(context.Background()))
	s.store = postgres.New(s.pg.DB)
}

func (s *AuditStoreSuite) SetupTest() {
	_, err := s.pg.DB.Exec("TRUNCATE audit_events")
	s.Require().NoError(err)
}

func newEvent(subID id.SubmissionID, stage audit.Stage, at time.Time) audit.Event {
	return audit.Event{
		ID:           uuid.New(),
		SubmissionID: subID,
		ReportID:     id.ReportID(uuid.New()),
		Stage:        stage,
		Timestamp:    at,
		Actor:        "ops@example.com",
		Note:         string(stage),
	}
}

func (s *AuditStoreSuite) TestAppendAndListInOrder() {
	ctx := context.Background()
	subID := id.NewSubmissionID()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	stages := []audit.Stage{audit.StageDocumentBuilt, audit.StageUploaded, audit.StageStatusChanged}
	for i, stage := range stages {
		s.Require().NoError(s.store.Append(ctx, newEvent(subID, stage, base.Add(time.Duration(i)*time.Second))))
	}
	// An event for a different submission must not leak into the trail.
	s.Require().NoError(s.store.Append(ctx, newEvent(id.NewSubmissionID(), audit.StageUploaded, base)))

	events, err := s.store.ListBySubmission(ctx, subID)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	for i, stage := range stages {
		s.Equal(stage, events[i].Stage)
		s.Equal(subID, events[i].SubmissionID)
	}
}

func (s *AuditStoreSuite) TestSnapshotRoundTrip() {
	ctx := context.Background()
	event := newEvent(id.NewSubmissionID(), audit.StageDocumentBuilt, time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	event.Filename = "RERX_5f9c2d4e_20260401090000.xml"
	event.ContentSHA256 = "deadbeef"
	event.Snapshot = []byte(`<?xml version="1.0"?><EFilingBatchXML/>`)

	s.Require().NoError(s.store.Append(ctx, event))

	events, err := s.store.ListBySubmission(ctx, event.SubmissionID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(event.Filename, events[0].Filename)
	s.Equal(event.ContentSHA256, events[0].ContentSHA256)
	s.Equal(event.Snapshot, events[0].Snapshot)
	s.True(event.Timestamp.Equal(events[0].Timestamp))
}

func (s *AuditStoreSuite) TestAppendJoinsCallerTransaction() {
	ctx := context.Background()
	event := newEvent(id.NewSubmissionID(), audit.StageStatusChanged, time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))

	tx, err := s.pg.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(txcontext.WithTx(ctx, tx), event))
	s.Require().NoError(tx.Rollback())

	// Rolled back with the transaction, so nothing was recorded.
	events, err := s.store.ListBySubmission(ctx, event.SubmissionID)
	s.Require().NoError(err)
	s.Empty(events)
}
