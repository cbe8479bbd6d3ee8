package aggregator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"refiler/internal/filing"
)

type AggregatorSuite struct {
	suite.Suite
}

func TestAggregatorSuite(t *testing.T) {
	suite.Run(t, new(AggregatorSuite))
}

// validSnapshot covers every role with complete data; individual tests break
// exactly one thing at a time.
func validSnapshot() filing.ReportSnapshot {
	return filing.ReportSnapshot{
		ReportID:    uuid.NewString(),
		ClosingDate: "2026-03-31",
		Property: filing.PropertySnap{
			Street:     "14 Shore Rd",
			City:       "Mystic",
			State:      "CT",
			PostalCode: "06355",
		},
		TotalConsideration: 850000,
		Payments: []filing.PaymentSnap{
			{Method: "wire", Amount: 850000, Date: "2026-03-31"},
		},
		Parties: []filing.PartySnapshot{
			{
				Role: "reporting_person", FirstName: "Dana", LastName: "Reyes",
				TINKind: "ssn", TINValue: "123-45-6789",
				Street: "1 Main St", City: "Hartford", State: "CT", PostalCode: "06103",
				Email: "dana@titleco.example", Phone: "8605550100",
			},
			{
				Role: "transmitter", LegalName: "TitleCo Filings LLC",
				TINKind: "ein", TINValue: "12-3456789", TCC: "TCCX0001",
				Street: "1 Main St", City: "Hartford", State: "CT", PostalCode: "06103",
			},
			{
				Role: "transmitter_contact", FirstName: "Sam", LastName: "Okafor",
				TINKind: "ssn", TINValue: "987654321",
				Street: "1 Main St", City: "Hartford", State: "CT", PostalCode: "06103",
				Email: "sam@titleco.example",
			},
			{
				Role: "transferee", Kind: "entity", LegalName: "Harbor Holdings LLC",
				TINKind: "ein", TINValue: "98-7654321",
				Street: "9 Pier Ave", City: "New London", State: "CT", PostalCode: "06320",
				AssociatedPersons: []filing.AssociatedSnap{
					{
						FirstName: "Noor", LastName: "Haddad",
						TINKind: "ssn", TINValue: "111223333",
						Street: "9 Pier Ave", City: "New London", State: "CT", PostalCode: "06320",
						CapacityText: "managing member", OwnershipPercent: 100,
					},
				},
			},
			{
				Role: "transferor", Kind: "individual", FirstName: "Lee", LastName: "Crandall",
				TINKind: "ssn", TINValue: "444556666",
				Street: "14 Shore Rd", City: "Mystic", State: "CT", PostalCode: "06355",
			},
			{
				Role: "financial_institution", LegalName: "First Mystic Bank",
				TINKind: "ein", TINValue: "555667777",
				Street: "2 Bank St", City: "Mystic", State: "CT", PostalCode: "06355",
				AccountNumber: "9900112233",
			},
		},
	}
}

func (s *AggregatorSuite) TestValidSnapshotBuilds() {
	req, err := Build(validSnapshot())
	require.NoError(s.T(), err)

	assert.Equal(s.T(), "Harbor Holdings LLC", req.Transferees[0].Entity.LegalName)
	assert.Len(s.T(), req.Transferees[0].Associated, 1)
	assert.Equal(s.T(), "TCCX0001", req.Transmitter.TCC)
	assert.Equal(s.T(), int64(850000), req.TotalConsideration)
	assert.Equal(s.T(), "US", req.Property.Address.Country)
}

// A snapshot with several independent problems reports all of them at once;
// the collection UI renders the whole punch-list, not just the first failure.
func (s *AggregatorSuite) TestCollectsEveryIssue() {
	snap := validSnapshot()
	snap.ClosingDate = ""
	snap.Property.Street = ""
	snap.TotalConsideration = 0
	snap.Parties[0].Email = ""
	snap.Parties[3].AssociatedPersons = nil

	_, err := Build(snap)
	var aggErr *AggregationError
	require.ErrorAs(s.T(), err, &aggErr)

	fields := make([]string, 0, len(aggErr.Issues))
	for _, issue := range aggErr.Issues {
		fields = append(fields, issue.Field)
	}
	assert.Contains(s.T(), fields, "closing_date")
	assert.Contains(s.T(), fields, "property.street")
	assert.Contains(s.T(), fields, "total_consideration")
	assert.Contains(s.T(), fields, "parties[0].email")
	assert.Contains(s.T(), fields, "parties[3].associated_persons")
	assert.Len(s.T(), aggErr.Issues, 5)
}

func (s *AggregatorSuite) TestRoleCardinality() {
	tests := []struct {
		name   string
		mutate func(*filing.ReportSnapshot)
		reason string
	}{
		{
			name:   "no reporting person",
			mutate: func(snap *filing.ReportSnapshot) { snap.Parties = snap.Parties[1:] },
			reason: "exactly one reporting person is required, found none",
		},
		{
			name: "two transmitters",
			mutate: func(snap *filing.ReportSnapshot) {
				snap.Parties = append(snap.Parties, snap.Parties[1])
			},
			reason: "exactly one transmitter is required, found 2",
		},
		{
			name: "no transferee",
			mutate: func(snap *filing.ReportSnapshot) {
				snap.Parties = append(snap.Parties[:3], snap.Parties[4:]...)
			},
			reason: "at least one transferee is required",
		},
		{
			name: "no transferor",
			mutate: func(snap *filing.ReportSnapshot) {
				snap.Parties = append(snap.Parties[:4], snap.Parties[5:]...)
			},
			reason: "at least one transferor is required",
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			snap := validSnapshot()
			tc.mutate(&snap)

			_, err := Build(snap)
			var aggErr *AggregationError
			require.ErrorAs(s.T(), err, &aggErr)

			reasons := make([]string, 0, len(aggErr.Issues))
			for _, issue := range aggErr.Issues {
				reasons = append(reasons, issue.Reason)
			}
			assert.Contains(s.T(), reasons, tc.reason)
		})
	}
}

func (s *AggregatorSuite) TestTINShape() {
	tests := []struct {
		name    string
		kind    string
		value   string
		wantErr bool
	}{
		{name: "ssn with punctuation", kind: "ssn", value: "123-45-6789"},
		{name: "bare ein", kind: "ein", value: "123456789"},
		{name: "ssn too short", kind: "ssn", value: "12345678", wantErr: true},
		{name: "ein too long", kind: "ein", value: "12-34567890", wantErr: true},
		{name: "foreign free-form", kind: "foreign", value: "GB-XJ449"},
		{name: "foreign blank", kind: "foreign", value: "  ", wantErr: true},
		{name: "unknown kind", kind: "itin", value: "123456789", wantErr: true},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			snap := validSnapshot()
			snap.Parties[0].TINKind = tc.kind
			snap.Parties[0].TINValue = tc.value

			_, err := Build(snap)
			if tc.wantErr {
				var aggErr *AggregationError
				require.ErrorAs(s.T(), err, &aggErr)
				assert.Len(s.T(), aggErr.Issues, 1)
			} else {
				require.NoError(s.T(), err)
			}
		})
	}
}

func (s *AggregatorSuite) TestUnknownRoleRejected() {
	snap := validSnapshot()
	snap.Parties[5].Role = "escrow_agent"

	_, err := Build(snap)
	var aggErr *AggregationError
	require.ErrorAs(s.T(), err, &aggErr)
	assert.Contains(s.T(), aggErr.Issues[0].Reason, `unknown party role "escrow_agent"`)
}

func (s *AggregatorSuite) TestTransferorTrustKeepsEmptyAssociated() {
	snap := validSnapshot()
	snap.Parties[4] = filing.PartySnapshot{
		Role: "transferor", Kind: "trust", LegalName: "Crandall Family Trust",
		TINKind: "ein", TINValue: "777889999",
		Street: "14 Shore Rd", City: "Mystic", State: "CT", PostalCode: "06355",
	}

	req, err := Build(snap)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), req.Transferors[0].Entity)
	assert.Empty(s.T(), req.Transferors[0].Associated)
}

func (s *AggregatorSuite) TestBadReportID() {
	snap := validSnapshot()
	snap.ReportID = "not-a-uuid"

	_, err := Build(snap)
	var aggErr *AggregationError
	require.ErrorAs(s.T(), err, &aggErr)
	assert.Equal(s.T(), "report_id", aggErr.Issues[0].Field)
}
