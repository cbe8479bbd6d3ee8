// Package submission owns the FilingSubmission record and the orchestrator
// that drives it through the filing state machine.
package submission

import (
	"time"

	id "refiler/pkg/domain"
)

// Status is the submission state machine position.
//
//	not_started → queued → submitted → {accepted | rejected | needs_review}
//
// accepted and rejected are terminal for an attempt-set; needs_review is
// terminal but actionable (an operator triggers a new submission, which
// supersedes this one rather than mutating it).
type Status string

const (
	StatusNotStarted  Status = "not_started"
	StatusQueued      Status = "queued"
	StatusSubmitted   Status = "submitted"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusNeedsReview Status = "needs_review"
)

// Terminal reports whether no further automated progress happens from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusNeedsReview:
		return true
	}
	return false
}

// Active reports whether s occupies the single in-flight slot for a report.
func (s Status) Active() bool {
	return s == StatusQueued || s == StatusSubmitted
}

// canTransition encodes the legal state-machine edges. accepted → accepted is
// the idempotent refinement that attaches a late-arriving receipt.
var canTransition = map[Status][]Status{
	StatusNotStarted: {StatusQueued},
	StatusQueued:     {StatusSubmitted, StatusNeedsReview},
	StatusSubmitted:  {StatusAccepted, StatusRejected, StatusNeedsReview},
	StatusAccepted:   {StatusAccepted},
}

// CanTransition reports whether from → to is a legal edge. There is no edge
// into accepted or rejected that bypasses submitted: acceptance is only ever
// derived from a parsed response to an actual upload.
func CanTransition(from, to Status) bool {
	for _, next := range canTransition[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FilingSubmission is the persistent record of one filing attempt-set for a
// report. At any time at most one submission per report is active; a new
// submission supersedes, never duplicates, an old one. Rows are never
// deleted. Only the orchestrator mutates them.
type FilingSubmission struct {
	ID       id.SubmissionID `json:"id"`
	ReportID id.ReportID     `json:"report_id"`
	Status   Status          `json:"status"`

	// Attempts counts upload attempts, including failed ones.
	Attempts int `json:"attempts"`

	// UploadedFilename is the name of the last uploaded document.
	UploadedFilename string `json:"uploaded_filename,omitempty"`

	// PayloadSnapshot is the Document bytes at time of upload.
	PayloadSnapshot []byte `json:"-"`
	// ActivitySeqNum matches acknowledgment receipts back to our activity.
	ActivitySeqNum int `json:"-"`
	// ResponseSnapshot is the raw content of the last response file applied.
	ResponseSnapshot []byte `json:"-"`

	// ReceiptID is the regulator's permanent receipt identifier, populated
	// by the acknowledgment response.
	ReceiptID string `json:"receipt_id,omitempty"`

	// RejectionCode and RejectionMessage carry the regulator's own rejection
	// verbatim for operator display.
	RejectionCode    string `json:"rejection_code,omitempty"`
	RejectionMessage string `json:"rejection_message,omitempty"`

	// LastError records the final transport or parse error when the
	// submission escalated to needs_review, or when polling an accepted
	// submission for its receipt was abandoned.
	LastError string `json:"last_error,omitempty"`

	// MessagesProcessed marks that the fast response was already applied, so
	// polling only looks for the acknowledgment afterwards.
	MessagesProcessed bool `json:"-"`

	// NextPollAt schedules the next acknowledgment poll; nil once terminal.
	NextPollAt *time.Time `json:"next_poll_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
