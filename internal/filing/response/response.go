// Package response parses the two classes of regulator response file: the
// fast "messages" file and the slow "acknowledgment" file.
package response

// Outcome is the overall signal carried by a messages file.
type Outcome string

const (
	OutcomeAccepted     Outcome = "accepted"
	OutcomeWarnings     Outcome = "accepted_with_warnings"
	OutcomeRejected     Outcome = "rejected"
)

// Severity classifies a per-item issue.
type Severity string

const (
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
	SeverityFatal Severity = "FATAL"
)

// Issue is one regulator-reported code/message pair. Text is surfaced to
// operators verbatim.
type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Messages is the parsed fast response: an overall outcome and zero or more
// human-readable issues. It never carries the permanent receipt identifier.
type Messages struct {
	Outcome Outcome
	Issues  []Issue
}

// Errors returns only the error-level issues.
func (m Messages) Errors() []Issue {
	var out []Issue
	for _, i := range m.Issues {
		if i.Severity != SeverityWarn {
			out = append(out, i)
		}
	}
	return out
}

// Acknowledgment is the parsed slow response: per-activity permanent receipt
// identifiers keyed by the activity's sequence number, plus per-item issues.
type Acknowledgment struct {
	// Receipts maps Activity SeqNum to the regulator's permanent receipt ID.
	Receipts map[int]string
	Issues   []Issue
}

// Fatal reports whether any per-item issue is fatal, which rejects the filing.
func (a Acknowledgment) Fatal() bool {
	for _, i := range a.Issues {
		if i.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// ParseError reports a response file that could not be understood. Retrying
// will not change a malformed file, so the orchestrator escalates immediately.
type ParseError struct {
	File   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return "parse response: " + e.Reason
	}
	return "parse " + e.File + ": " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }
