// Package aggregator assembles a validated FilingRequest from the raw report
// snapshot supplied by collaborators. It is the primary validator of the
// pipeline: it either returns a complete FilingRequest or an AggregationError
// listing every problem found, never a partial result.
package aggregator

import (
	"fmt"
	"strings"
	"time"

	"refiler/internal/filing"
	id "refiler/pkg/domain"
)

// Issue is one missing or invalid field, addressed so the collection UI can
// route the operator back to the right screen.
type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (i Issue) String() string { return i.Field + ": " + i.Reason }

// AggregationError reports every preflight failure at once. Callers render the
// full punch-list; nothing about the input is retryable without new data.
type AggregationError struct {
	Issues []Issue
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("report failed preflight with %d issue(s)", len(e.Issues))
}

// Details renders the issues as strings for error envelopes.
func (e *AggregationError) Details() []string {
	out := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		out[i] = issue.String()
	}
	return out
}

type collector struct {
	issues []Issue
}

func (c *collector) add(field, format string, args ...any) {
	c.issues = append(c.issues, Issue{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// Build validates the snapshot against the filing invariants and assembles the
// canonical FilingRequest. All issues are collected before returning.
func Build(snap filing.ReportSnapshot) (filing.FilingRequest, error) {
	c := &collector{}
	var req filing.FilingRequest

	reportID, err := id.ParseReportID(snap.ReportID)
	if err != nil {
		c.add("report_id", "must be a valid non-nil UUID")
	}
	req.ReportID = reportID

	if snap.ClosingDate == "" {
		c.add("closing_date", "is required")
	} else if t, err := parseDate(snap.ClosingDate); err != nil {
		c.add("closing_date", "must be a YYYY-MM-DD date")
	} else {
		req.ClosingDate = t
	}

	req.Property = buildProperty(c, snap.Property)

	if snap.TotalConsideration <= 0 {
		c.add("total_consideration", "must be a positive whole-unit amount")
	}
	req.TotalConsideration = snap.TotalConsideration
	req.Payments = buildPayments(c, snap.Payments)
	req.ExemptDetermination = snap.ExemptDetermined

	buildParties(c, snap.Parties, &req)

	if len(c.issues) > 0 {
		return filing.FilingRequest{}, &AggregationError{Issues: c.issues}
	}
	return req, nil
}

func buildProperty(c *collector, p filing.PropertySnap) filing.Property {
	if p.Street == "" {
		c.add("property.street", "is required")
	}
	if p.City == "" {
		c.add("property.city", "is required")
	}
	if p.State == "" {
		c.add("property.state", "is required")
	}
	if p.PostalCode == "" {
		c.add("property.postal_code", "is required")
	}
	return filing.Property{
		Address: filing.Address{
			Street:     p.Street,
			City:       p.City,
			State:      p.State,
			PostalCode: p.PostalCode,
			Country:    defaultCountry(p.Country),
		},
		LegalDescription: p.LegalDescription,
	}
}

func buildPayments(c *collector, snaps []filing.PaymentSnap) []filing.Payment {
	payments := make([]filing.Payment, 0, len(snaps))
	for i, p := range snaps {
		field := fmt.Sprintf("payments[%d]", i)
		if p.Method == "" {
			c.add(field+".method", "is required")
		}
		if p.Amount <= 0 {
			c.add(field+".amount", "must be a positive whole-unit amount")
		}
		var date time.Time
		if p.Date == "" {
			c.add(field+".date", "is required")
		} else if t, err := parseDate(p.Date); err != nil {
			c.add(field+".date", "must be a YYYY-MM-DD date")
		} else {
			date = t
		}
		payments = append(payments, filing.Payment{Method: p.Method, Amount: p.Amount, Date: date})
	}
	return payments
}

// buildParties enforces the role-cardinality invariant: exactly one reporting
// person, transmitter and transmitter contact; at least one transferee and one
// transferor.
func buildParties(c *collector, snaps []filing.PartySnapshot, req *filing.FilingRequest) {
	var reportingPersons, transmitters, contacts int

	for i, p := range snaps {
		field := fmt.Sprintf("parties[%d]", i)
		switch filing.PartyRole(p.Role) {
		case filing.RoleReportingPerson:
			reportingPersons++
			ind := buildIndividual(c, field, p)
			if p.Email == "" {
				c.add(field+".email", "reporting person email is required")
			}
			req.ReportingPerson = filing.ReportingPerson{Individual: ind, Email: p.Email, Phone: p.Phone}
		case filing.RoleTransmitter:
			transmitters++
			ent := buildEntity(c, field, p)
			if p.TCC == "" {
				c.add(field+".tcc", "transmitter control code is required")
			}
			req.Transmitter = filing.Transmitter{Entity: ent, TCC: p.TCC}
		case filing.RoleTransmitterContact:
			contacts++
			ind := buildIndividual(c, field, p)
			req.TransmitterContact = filing.TransmitterContact{Individual: ind, Email: p.Email, Phone: p.Phone}
		case filing.RoleTransferee:
			req.Transferees = append(req.Transferees, buildTransferee(c, field, p))
		case filing.RoleTransferor:
			req.Transferors = append(req.Transferors, buildTransferor(c, field, p))
		case filing.RoleFinancialInstitution:
			ent := buildEntity(c, field, p)
			req.Institutions = append(req.Institutions, filing.FinancialInstitution{
				Entity:        ent,
				AccountNumber: p.AccountNumber,
			})
		default:
			c.add(field+".role", "unknown party role %q", p.Role)
		}
	}

	switch reportingPersons {
	case 1:
	case 0:
		c.add("parties", "exactly one reporting person is required, found none")
	default:
		c.add("parties", "exactly one reporting person is required, found %d", reportingPersons)
	}
	if transmitters != 1 {
		c.add("parties", "exactly one transmitter is required, found %d", transmitters)
	}
	if contacts != 1 {
		c.add("parties", "exactly one transmitter contact is required, found %d", contacts)
	}
	if len(req.Transferees) == 0 {
		c.add("parties", "at least one transferee is required")
	}
	if len(req.Transferors) == 0 {
		c.add("parties", "at least one transferor is required")
	}
}

func buildTransferee(c *collector, field string, p filing.PartySnapshot) filing.Transferee {
	t := filing.Transferee{Kind: filing.PartyKind(p.Kind)}
	switch t.Kind {
	case filing.KindIndividual:
		ind := buildIndividual(c, field, p)
		t.Individual = &ind
	case filing.KindEntity:
		ent := buildEntity(c, field, p)
		t.Entity = &ent
		t.Associated = buildAssociated(c, field, p.AssociatedPersons)
		if len(t.Associated) == 0 {
			c.add(field+".associated_persons", "entity transferee requires at least one beneficial owner")
		}
	default:
		c.add(field+".kind", "transferee kind must be individual or entity, got %q", p.Kind)
	}
	return t
}

func buildTransferor(c *collector, field string, p filing.PartySnapshot) filing.Transferor {
	t := filing.Transferor{Kind: filing.PartyKind(p.Kind)}
	switch t.Kind {
	case filing.KindIndividual:
		ind := buildIndividual(c, field, p)
		t.Individual = &ind
	case filing.KindEntity, filing.KindTrust:
		ent := buildEntity(c, field, p)
		t.Entity = &ent
		t.Associated = buildAssociated(c, field, p.AssociatedPersons)
	default:
		c.add(field+".kind", "transferor kind must be individual, entity or trust, got %q", p.Kind)
	}
	return t
}

func buildIndividual(c *collector, field string, p filing.PartySnapshot) filing.Individual {
	if p.FirstName == "" {
		c.add(field+".first_name", "is required")
	}
	if p.LastName == "" {
		c.add(field+".last_name", "is required")
	}
	var dob time.Time
	if p.DOB != "" {
		t, err := parseDate(p.DOB)
		if err != nil {
			c.add(field+".dob", "must be a YYYY-MM-DD date")
		} else {
			dob = t
		}
	}
	return filing.Individual{
		FirstName:  p.FirstName,
		MiddleName: p.MiddleName,
		LastName:   p.LastName,
		DOB:        dob,
		TIN:        buildTIN(c, field, p.TINKind, p.TINValue),
		Address:    buildAddress(c, field, p),
	}
}

func buildEntity(c *collector, field string, p filing.PartySnapshot) filing.Entity {
	if p.LegalName == "" {
		c.add(field+".legal_name", "is required")
	}
	return filing.Entity{
		LegalName: p.LegalName,
		DBAName:   p.DBAName,
		TIN:       buildTIN(c, field, p.TINKind, p.TINValue),
		Address:   buildAddress(c, field, p),
	}
}

func buildAssociated(c *collector, field string, snaps []filing.AssociatedSnap) []filing.AssociatedPerson {
	out := make([]filing.AssociatedPerson, 0, len(snaps))
	for i, a := range snaps {
		af := fmt.Sprintf("%s.associated_persons[%d]", field, i)
		if a.FirstName == "" {
			c.add(af+".first_name", "is required")
		}
		if a.LastName == "" {
			c.add(af+".last_name", "is required")
		}
		var dob time.Time
		if a.DOB != "" {
			t, err := parseDate(a.DOB)
			if err != nil {
				c.add(af+".dob", "must be a YYYY-MM-DD date")
			} else {
				dob = t
			}
		}
		out = append(out, filing.AssociatedPerson{
			Individual: filing.Individual{
				FirstName:  a.FirstName,
				MiddleName: a.MiddleName,
				LastName:   a.LastName,
				DOB:        dob,
				TIN:        buildTIN(c, af, a.TINKind, a.TINValue),
				Address: filing.Address{
					Street:     a.Street,
					City:       a.City,
					State:      a.State,
					PostalCode: a.PostalCode,
					Country:    defaultCountry(a.Country),
				},
			},
			CapacityText:     a.CapacityText,
			OwnershipPercent: a.OwnershipPercent,
		})
	}
	return out
}

func buildAddress(c *collector, field string, p filing.PartySnapshot) filing.Address {
	if p.Street == "" {
		c.add(field+".street", "is required")
	}
	if p.City == "" {
		c.add(field+".city", "is required")
	}
	return filing.Address{
		Street:     p.Street,
		City:       p.City,
		State:      p.State,
		PostalCode: p.PostalCode,
		Country:    defaultCountry(p.Country),
	}
}

// buildTIN validates shape only: domestic numbers must contain exactly nine
// digits once punctuation is stripped; foreign identifiers just need content.
func buildTIN(c *collector, field, kind, value string) filing.TIN {
	k := filing.TINKind(kind)
	switch k {
	case filing.TINSSN, filing.TINEIN:
		if digits := digitsOnly(value); len(digits) != 9 {
			c.add(field+".tin_value", "must contain exactly 9 digits")
		}
	case filing.TINForeign:
		if strings.TrimSpace(value) == "" {
			c.add(field+".tin_value", "is required")
		}
	default:
		c.add(field+".tin_kind", "must be ssn, ein or foreign, got %q", kind)
	}
	return filing.TIN{Kind: k, Value: value}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func defaultCountry(c string) string {
	if c == "" {
		return "US"
	}
	return c
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
