package filing

// ReportSnapshot is the collaborator-supplied report/party data, as collected
// by the wizard and party portals. It is the wire contract of the filing
// request boundary: loosely typed, JSON-friendly, and validated only by the
// aggregator. Field names mirror what the collection UIs produce.
type ReportSnapshot struct {
	ReportID    string          `json:"report_id"`
	ClosingDate string          `json:"closing_date"` // RFC 3339 date, e.g. "2026-03-31"
	Property    PropertySnap    `json:"property"`
	Parties     []PartySnapshot `json:"parties"`

	TotalConsideration int64          `json:"total_consideration"`
	Payments           []PaymentSnap  `json:"payments"`
	ExemptDetermined   bool           `json:"exempt_determined"`
}

// PropertySnap mirrors the property section of the wizard.
type PropertySnap struct {
	Street           string `json:"street"`
	City             string `json:"city"`
	State            string `json:"state"`
	PostalCode       string `json:"postal_code"`
	Country          string `json:"country"`
	LegalDescription string `json:"legal_description"`
}

// PaymentSnap mirrors one payment row.
type PaymentSnap struct {
	Method string `json:"method"`
	Amount int64  `json:"amount"`
	Date   string `json:"date"` // RFC 3339 date
}

// PartySnapshot mirrors one collected party. Role and kind are strings on the
// wire; the aggregator maps them onto the typed model and rejects unknowns.
type PartySnapshot struct {
	Role string `json:"role"` // reporting_person, transmitter, transmitter_contact, transferee, transferor, financial_institution
	Kind string `json:"kind,omitempty"` // individual, entity, trust (transferee/transferor only)

	// Individual fields.
	FirstName  string `json:"first_name,omitempty"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	DOB        string `json:"dob,omitempty"` // RFC 3339 date

	// Entity fields.
	LegalName string `json:"legal_name,omitempty"`
	DBAName   string `json:"dba_name,omitempty"`

	TINKind  string `json:"tin_kind,omitempty"` // ssn, ein, foreign
	TINValue string `json:"tin_value,omitempty"`

	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`

	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`

	// Transmitter control code.
	TCC string `json:"tcc,omitempty"`

	// Financial institution settlement account.
	AccountNumber string `json:"account_number,omitempty"`

	// Beneficial owners collected for entity/trust parties.
	AssociatedPersons []AssociatedSnap `json:"associated_persons,omitempty"`
}

// AssociatedSnap mirrors one beneficial-owner row nested under a party.
type AssociatedSnap struct {
	FirstName        string `json:"first_name"`
	MiddleName       string `json:"middle_name,omitempty"`
	LastName         string `json:"last_name"`
	DOB              string `json:"dob,omitempty"`
	TINKind          string `json:"tin_kind,omitempty"`
	TINValue         string `json:"tin_value,omitempty"`
	Street           string `json:"street,omitempty"`
	City             string `json:"city,omitempty"`
	State            string `json:"state,omitempty"`
	PostalCode       string `json:"postal_code,omitempty"`
	Country          string `json:"country,omitempty"`
	CapacityText     string `json:"capacity_text,omitempty"`
	OwnershipPercent int    `json:"ownership_percent,omitempty"`
}
