package document

import (
	"encoding/xml"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"refiler/internal/filing"
	id "refiler/pkg/domain"
)

type BuilderSuite struct {
	suite.Suite
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderSuite))
}

func testAddress() filing.Address {
	return filing.Address{
		Street: "1 Main St", City: "Hartford", State: "CT",
		PostalCode: "06103", Country: "US",
	}
}

func testIndividual(first, last, ssn string) filing.Individual {
	return filing.Individual{
		FirstName: first,
		LastName:  last,
		DOB:       time.Date(1980, 6, 15, 0, 0, 0, 0, time.UTC),
		TIN:       filing.TIN{Kind: filing.TINSSN, Value: ssn},
		Address:   testAddress(),
	}
}

func testEntity(name, ein string) filing.Entity {
	return filing.Entity{
		LegalName: name,
		TIN:       filing.TIN{Kind: filing.TINEIN, Value: ein},
		Address:   testAddress(),
	}
}

func validRequest() filing.FilingRequest {
	ind := testIndividual("Lee", "Crandall", "444556666")
	return filing.FilingRequest{
		ReportID:    id.ReportID(uuid.MustParse("5f9c2d4e-8a3b-4c7d-9e1f-0a2b3c4d5e6f")),
		ClosingDate: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Property: filing.Property{
			Address:          testAddress(),
			LegalDescription: "Lot 7, Shoreline Subdivision",
		},
		ReportingPerson: filing.ReportingPerson{
			Individual: testIndividual("Dana", "Reyes", "123-45-6789"),
			Email:      "dana@titleco.example",
			Phone:      "(860) 555-0100",
		},
		Transmitter: filing.Transmitter{
			Entity: testEntity("TitleCo Filings LLC", "12-3456789"),
			TCC:    "TCCX0001",
		},
		TransmitterContact: filing.TransmitterContact{
			Individual: testIndividual("Sam", "Okafor", "987654321"),
			Email:      "sam@titleco.example",
		},
		Transferees: []filing.Transferee{{
			Kind:   filing.KindEntity,
			Entity: ptr(testEntity("Harbor Holdings LLC", "98-7654321")),
			Associated: []filing.AssociatedPerson{{
				Individual:       testIndividual("Noor", "Haddad", "111223333"),
				CapacityText:     "managing member",
				OwnershipPercent: 100,
			}},
		}},
		Transferors: []filing.Transferor{{
			Kind:       filing.KindIndividual,
			Individual: &ind,
		}},
		Institutions: []filing.FinancialInstitution{{
			Entity:        testEntity("First Mystic Bank", "555667777"),
			AccountNumber: "9900112233",
		}},
		TotalConsideration: 850000,
		Payments: []filing.Payment{
			{Method: "wire", Amount: 800000, Date: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)},
			{Method: "check", Amount: 50000, Date: time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func ptr[T any](v T) *T { return &v }

// The same request must always produce byte-identical output; filed documents
// are compared against their audit snapshots by hash.
func (s *BuilderSuite) TestDeterminism() {
	req := validRequest()

	first, err := Build(req)
	require.NoError(s.T(), err)
	second, err := Build(req)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), first.Bytes, second.Bytes)
	assert.Equal(s.T(), first.ActivitySeqNum, second.ActivitySeqNum)
	assert.Equal(s.T(), 1, first.ActivitySeqNum)
}

func (s *BuilderSuite) TestPassesStructuralBattery() {
	doc, err := Build(validRequest())
	require.NoError(s.T(), err)

	problems := Check(doc.Bytes, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Empty(s.T(), problems)
}

// TINs are serialized digits-only regardless of how the collection UI
// punctuated them.
func (s *BuilderSuite) TestTINsSerializedDigitsOnly() {
	doc, err := Build(validRequest())
	require.NoError(s.T(), err)

	out := string(doc.Bytes)
	assert.Contains(s.T(), out, ">123456789<")
	assert.Contains(s.T(), out, ">987654321<")
	assert.NotContains(s.T(), out, "12-3456789")
	assert.NotContains(s.T(), out, "123-45-6789")
}

func (s *BuilderSuite) TestForeignTINKeptVerbatim() {
	req := validRequest()
	req.Transferors[0].Individual.TIN = filing.TIN{Kind: filing.TINForeign, Value: "GB-XJ449"}

	doc, err := Build(req)
	require.NoError(s.T(), err)
	assert.Contains(s.T(), string(doc.Bytes), ">GB-XJ449<")
}

func (s *BuilderSuite) TestRoundTrip() {
	doc, err := Build(validRequest())
	require.NoError(s.T(), err)

	var batch Batch
	require.NoError(s.T(), xml.Unmarshal(doc.Bytes, &batch))

	require.Len(s.T(), batch.Activities, 1)
	activity := batch.Activities[0]
	assert.Equal(s.T(), FormTypeCode, batch.FormTypeCode)
	assert.Len(s.T(), activity.Parties, 6)
	assert.Equal(s.T(), "Y", activity.Association.InitialReportIndicator)
	require.NotNil(s.T(), activity.Transfer)
	assert.Equal(s.T(), "850000", activity.Transfer.TotalConsiderationText)
	assert.Equal(s.T(), "20260331", activity.Transfer.ClosingDateText)
	assert.Len(s.T(), activity.Transfer.Payments, 2)

	// The entity transferee carries its beneficial owner as a nested party.
	var transferee *Party
	for i := range activity.Parties {
		if activity.Parties[i].TypeCode == CodeTransfereeEntity {
			transferee = &activity.Parties[i]
		}
	}
	require.NotNil(s.T(), transferee)
	require.Len(s.T(), transferee.Associated, 1)
	assert.Equal(s.T(), CodeAssociatedPerson, transferee.Associated[0].TypeCode)
	assert.Equal(s.T(), "100", transferee.Associated[0].OwnershipPercentText)
}

// Count attributes and SeqNum contiguity must hold for any structurally valid
// request, not just the fixture, so this exercises the builder over randomized
// party mixes with a fixed seed.
func (s *BuilderSuite) TestCountInvariantsOverRandomizedRequests() {
	rng := rand.New(rand.NewSource(20260331))

	for i := 0; i < 50; i++ {
		req := randomRequest(rng)
		doc, err := Build(req)
		require.NoError(s.T(), err, "request %d", i)

		problems := Check(doc.Bytes, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
		require.Empty(s.T(), problems, "request %d: %v", i, problems)

		var batch Batch
		require.NoError(s.T(), xml.Unmarshal(doc.Bytes, &batch))
		assert.Equal(s.T(), len(req.Transferees), batch.TransfereeCount, "request %d", i)
		assert.Equal(s.T(), len(req.Transferors), batch.TransferorCount, "request %d", i)
		assert.Equal(s.T(), fmt.Sprint(req.TotalConsideration), batch.TotalAmount, "request %d", i)
	}
}

func randomRequest(rng *rand.Rand) filing.FilingRequest {
	req := validRequest()
	req.Transferees = nil
	req.Transferors = nil
	req.Institutions = nil
	req.Payments = nil

	for i := 0; i <= rng.Intn(3); i++ {
		if rng.Intn(2) == 0 {
			ind := testIndividual("Buyer", fmt.Sprintf("Tee%d", i), "111223333")
			req.Transferees = append(req.Transferees, filing.Transferee{
				Kind: filing.KindIndividual, Individual: &ind,
			})
		} else {
			req.Transferees = append(req.Transferees, filing.Transferee{
				Kind:   filing.KindEntity,
				Entity: ptr(testEntity(fmt.Sprintf("Buyer Co %d", i), "987654321")),
				Associated: []filing.AssociatedPerson{{
					Individual: testIndividual("Owner", fmt.Sprintf("Bo%d", i), "444556666"),
				}},
			})
		}
	}
	kinds := []filing.PartyKind{filing.KindIndividual, filing.KindEntity, filing.KindTrust}
	for i := 0; i <= rng.Intn(3); i++ {
		kind := kinds[rng.Intn(len(kinds))]
		if kind == filing.KindIndividual {
			ind := testIndividual("Seller", fmt.Sprintf("Tor%d", i), "555667777")
			req.Transferors = append(req.Transferors, filing.Transferor{
				Kind: kind, Individual: &ind,
			})
		} else {
			req.Transferors = append(req.Transferors, filing.Transferor{
				Kind:   kind,
				Entity: ptr(testEntity(fmt.Sprintf("Seller Co %d", i), "123456789")),
			})
		}
	}
	for i := 0; i < rng.Intn(3); i++ {
		req.Institutions = append(req.Institutions, filing.FinancialInstitution{
			Entity:        testEntity(fmt.Sprintf("Bank %d", i), "555667777"),
			AccountNumber: fmt.Sprintf("99001122%02d", i),
		})
	}
	req.TotalConsideration = int64(rng.Intn(5_000_000) + 1)
	for i := 0; i < rng.Intn(4); i++ {
		req.Payments = append(req.Payments, filing.Payment{
			Method: "wire",
			Amount: int64(rng.Intn(100_000) + 1),
			Date:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		})
	}
	return req
}

func (s *BuilderSuite) TestSeqNumsContiguousFromOne() {
	doc, err := Build(validRequest())
	require.NoError(s.T(), err)

	// Collect SeqNum attributes in document order.
	var seqs []int
	for _, line := range strings.Split(string(doc.Bytes), "\n") {
		if idx := strings.Index(line, `SeqNum="`); idx >= 0 {
			rest := line[idx+len(`SeqNum="`):]
			end := strings.IndexByte(rest, '"')
			var n int
			_, err := fmt.Sscanf(rest[:end], "%d", &n)
			require.NoError(s.T(), err)
			seqs = append(seqs, n)
		}
	}
	require.NotEmpty(s.T(), seqs)
	for i, n := range seqs {
		assert.Equal(s.T(), i+1, n)
	}
}

func (s *BuilderSuite) TestPreflightRejectsUnvalidatedRequest() {
	tests := []struct {
		name      string
		mutate    func(*filing.FilingRequest)
		violation string
	}{
		{
			name:      "nil report id",
			mutate:    func(r *filing.FilingRequest) { r.ReportID = id.ReportID{} },
			violation: "report id is nil",
		},
		{
			name:      "missing transmitter control code",
			mutate:    func(r *filing.FilingRequest) { r.Transmitter.TCC = "" },
			violation: "transmitter is missing or lacks a control code",
		},
		{
			name:      "no transferor",
			mutate:    func(r *filing.FilingRequest) { r.Transferors = nil },
			violation: "no transferor party present",
		},
		{
			name: "transferee without payload",
			mutate: func(r *filing.FilingRequest) {
				r.Transferees = []filing.Transferee{{Kind: filing.KindEntity}}
			},
			violation: "transferee 0 has no individual or entity payload",
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			req := validRequest()
			tc.mutate(&req)

			_, err := Build(req)
			var pfErr *PreflightError
			require.ErrorAs(s.T(), err, &pfErr)
			assert.Equal(s.T(), tc.violation, pfErr.Violation)
		})
	}
}
