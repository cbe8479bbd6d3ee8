// Package audit persists payload snapshots, response snapshots and structured
// events for every filing attempt, so any terminal state can be traced to the
// exact bytes that produced it. Credentials are never recorded.
package audit

import (
	"time"

	"github.com/google/uuid"

	id "refiler/pkg/domain"
)

// Stage names the pipeline step an event was recorded at.
type Stage string

const (
	StageDocumentBuilt      Stage = "document_built"
	StageUploadAttempted    Stage = "upload_attempted"
	StageUploaded           Stage = "uploaded"
	StageResponseDownloaded Stage = "response_downloaded"
	StageMessagesParsed     Stage = "messages_parsed"
	StageAckParsed          Stage = "acknowledgment_parsed"
	StageParseFailed        Stage = "parse_failed"
	StageStatusChanged      Stage = "status_changed"
)

// Event is emitted from the orchestrator to capture one pipeline step. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID           uuid.UUID
	SubmissionID id.SubmissionID
	ReportID     id.ReportID
	Stage        Stage
	Timestamp    time.Time

	// Actor is the authenticated caller for operator-triggered steps, empty
	// for scheduler-triggered ones.
	Actor string

	// Filename is the remote file involved, when any.
	Filename string

	// ContentSHA256 is the hex digest of Snapshot; stored separately so
	// integrity can be checked without reading the blob.
	ContentSHA256 string
	// Snapshot is the non-secret payload or response bytes at this step.
	Snapshot []byte

	// Note carries a short human-readable outcome, e.g. the transition taken
	// or the transport error encountered.
	Note string
}
