package domain

import (
	"github.com/google/uuid"

	dErrors "refiler/pkg/domain-errors"
)

// Typed identifiers keep report and submission IDs from being swapped at call
// sites. Both are UUIDs under the hood; parsing enforces non-nil at trust
// boundaries (HTTP handlers, CLI input).

type ReportID uuid.UUID

type SubmissionID uuid.UUID

func (id ReportID) String() string     { return uuid.UUID(id).String() }
func (id ReportID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id SubmissionID) String() string { return uuid.UUID(id).String() }
func (id SubmissionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// Text marshalling renders the IDs as canonical UUID strings in JSON bodies
// and structured logs.

func (id ReportID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ReportID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*id = ReportID(u)
	return nil
}

func (id SubmissionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *SubmissionID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*id = SubmissionID(u)
	return nil
}

// NewSubmissionID allocates a fresh submission identifier.
func NewSubmissionID() SubmissionID { return SubmissionID(uuid.New()) }

// ParseReportID validates and converts a string into a ReportID.
func ParseReportID(s string) (ReportID, error) {
	u, err := parse(s, "report id")
	return ReportID(u), err
}

// ParseSubmissionID validates and converts a string into a SubmissionID.
func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parse(s, "submission id")
	return SubmissionID(u), err
}

func parse(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", what)
	}
	return u, nil
}
