// Package filing defines the canonical transaction model the pipeline files
// with the regulator: the collaborator-facing ReportSnapshot input and the
// validated FilingRequest the document builder consumes.
package filing

import (
	"time"

	id "refiler/pkg/domain"
)

// PartyRole identifies the regulator-defined role a party plays in a filing.
type PartyRole string

const (
	RoleReportingPerson      PartyRole = "reporting_person"
	RoleTransmitter          PartyRole = "transmitter"
	RoleTransmitterContact   PartyRole = "transmitter_contact"
	RoleTransferee           PartyRole = "transferee"
	RoleTransferor           PartyRole = "transferor"
	RoleFinancialInstitution PartyRole = "financial_institution"
)

// PartyKind distinguishes the legal form of a transferee or transferor.
type PartyKind string

const (
	KindIndividual PartyKind = "individual"
	KindEntity     PartyKind = "entity"
	KindTrust      PartyKind = "trust"
)

// TINKind identifies what sort of taxpayer identification number a party holds.
type TINKind string

const (
	TINSSN     TINKind = "ssn"
	TINEIN     TINKind = "ein"
	TINForeign TINKind = "foreign"
)

// Address is a postal address. Required-ness depends on the owning party role;
// the aggregator enforces it.
type Address struct {
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

// TIN is a taxpayer identification number as supplied by collaborators,
// possibly with formatting punctuation. The document builder serializes it
// digits-only.
type TIN struct {
	Kind  TINKind
	Value string
}

// Individual carries the identifying fields of a natural person.
type Individual struct {
	FirstName  string
	MiddleName string
	LastName   string
	DOB        time.Time
	TIN        TIN
	Address    Address
}

// Entity carries the identifying fields of a legal entity or trust.
type Entity struct {
	LegalName string
	DBAName   string
	TIN       TIN
	Address   Address
}

// ReportingPerson is the professional responsible for the filing.
type ReportingPerson struct {
	Individual
	Email string
	Phone string
}

// Transmitter is the system or organization transmitting the batch.
type Transmitter struct {
	Entity
	// TCC is the transmitter control code issued by the regulator.
	TCC string
}

// TransmitterContact is the human point of contact for transmission issues.
type TransmitterContact struct {
	Individual
	Email string
	Phone string
}

// AssociatedPerson is a beneficial owner or signing individual nested under an
// entity or trust party. Owned by the party it describes, never free-standing.
type AssociatedPerson struct {
	Individual
	// CapacityText describes the relationship, e.g. "beneficial owner".
	CapacityText string
	// OwnershipPercent is 0 when not applicable.
	OwnershipPercent int
}

// Transferee is a party receiving the property interest.
type Transferee struct {
	Kind       PartyKind
	Individual *Individual // set when Kind == KindIndividual
	Entity     *Entity     // set when Kind == KindEntity
	Associated []AssociatedPerson
}

// Transferor is a party conveying the property interest.
type Transferor struct {
	Kind       PartyKind
	Individual *Individual // set when Kind == KindIndividual
	Entity     *Entity     // set when Kind is KindEntity or KindTrust
	Associated []AssociatedPerson
}

// FinancialInstitution is a bank or similar institution involved in settlement.
type FinancialInstitution struct {
	Entity
	AccountNumber string
}

// Property describes the real property being transferred.
type Property struct {
	Address          Address
	LegalDescription string
}

// Payment is one component of the consideration paid.
type Payment struct {
	// Method is a regulator code, e.g. "wire", "check", "currency".
	Method string
	// Amount is in whole currency units; the regulator schema takes no cents.
	Amount int64
	// Date the payment was made.
	Date time.Time
}

// FilingRequest is the canonical, validated in-memory transaction record,
// ready for document building. Construction goes through the aggregator;
// the struct shape itself encodes the role-cardinality invariants (exactly
// one reporting person, transmitter and contact; slices for the rest).
// It is handed to the builder by value and never mutated afterwards.
type FilingRequest struct {
	ReportID    id.ReportID
	ClosingDate time.Time
	Property    Property

	ReportingPerson    ReportingPerson
	Transmitter        Transmitter
	TransmitterContact TransmitterContact
	Transferees        []Transferee
	Transferors        []Transferor
	Institutions       []FinancialInstitution

	// TotalConsideration is in whole currency units.
	TotalConsideration int64
	Payments           []Payment

	// ExemptDetermination is produced upstream; the pipeline records it but
	// never re-derives it.
	ExemptDetermination bool
}
