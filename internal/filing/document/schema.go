// Package document serializes a FilingRequest into the regulator's batch XML
// dialect and provides the structural validation battery used by dry runs.
package document

import "encoding/xml"

// Namespace constants for the regulator's batch schema.
const (
	NamespaceURI   = "www.fincen.gov/base"
	SchemaLocation = "www.fincen.gov/base EFL_RERXBatchSchema.xsd"
	FormTypeCode   = "RERX"
)

// ActivityPartyTypeCode values. The regulator dispatches party semantics off
// these codes, so they must match the published schema exactly.
const (
	CodeFinancialInstitution = "34"
	CodeTransmitter          = "35"
	CodeTransmitterContact   = "37"
	CodeReportingPerson      = "63"
	CodeTransfereeIndividual = "64"
	CodeTransfereeEntity     = "65"
	CodeAssociatedPerson     = "66"
	CodeTransferorIndividual = "67"
	CodeTransferorEntity     = "68"
	CodeTransferorTrust      = "69"
)

// PartyIdentificationTypeCode values.
const (
	IDTypeSSN     = "1"
	IDTypeEIN     = "2"
	IDTypeForeign = "9"
)

// Batch is the root element. The count attributes are derived from the
// elements actually present (see applyCounts), never computed independently.
type Batch struct {
	XMLName        xml.Name `xml:"EFilingBatchXML"`
	Xmlns          string   `xml:"xmlns,attr"`
	XmlnsXSI       string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`
	FormTypeCode   string   `xml:"FormTypeCode,attr"`

	ActivityCount   int    `xml:"ActivityCount,attr"`
	PartyCount      int    `xml:"PartyCount,attr"`
	AccountCount    int    `xml:"AccountCount,attr"`
	TransfereeCount int    `xml:"TransfereeCount,attr"`
	TransferorCount int    `xml:"TransferorCount,attr"`
	TotalAmount     string `xml:"TotalAmount,attr"`

	Activities []Activity `xml:"Activity"`
}

// Activity is one reportable transaction.
type Activity struct {
	SeqNum      int                  `xml:"SeqNum,attr"`
	Association *ActivityAssociation `xml:"ActivityAssociation,omitempty"`
	Parties     []Party              `xml:"Party"`
	Asset       *Asset               `xml:"Asset,omitempty"`
	Transfer    *ValueTransfer       `xml:"ValueTransfer,omitempty"`
}

// ActivityAssociation flags whether the activity is an initial report or a
// correction of a prior one.
type ActivityAssociation struct {
	SeqNum                  int    `xml:"SeqNum,attr"`
	InitialReportIndicator  string `xml:"InitialReportIndicator,omitempty"`
	CorrectsReportIndicator string `xml:"CorrectsAmendsPriorReportIndicator,omitempty"`
}

// Party is any participant in the activity. Role-specific children are
// omitted when empty so one struct covers every party type code.
type Party struct {
	SeqNum   int    `xml:"SeqNum,attr"`
	TypeCode string `xml:"ActivityPartyTypeCode"`

	TransmitterControlCode string `xml:"TransmitterControlCode,omitempty"`
	BirthDateText          string `xml:"IndividualBirthDateText,omitempty"`
	ElectronicAddressText  string `xml:"ElectronicAddressText,omitempty"`
	PhoneNumberText        string `xml:"PhoneNumberText,omitempty"`
	CapacityText           string `xml:"PartyAssociationCapacityText,omitempty"`
	OwnershipPercentText   string `xml:"OwnershipPercentageText,omitempty"`

	Names           []PartyName           `xml:"PartyName"`
	Addresses       []PartyAddress        `xml:"Address"`
	Identifications []PartyIdentification `xml:"PartyIdentification"`
	Accounts        []Account             `xml:"Account"`
	Associated      []Party               `xml:"AssociatedParty"`
}

// PartyName carries either an entity full name or an individual's name parts.
type PartyName struct {
	SeqNum           int    `xml:"SeqNum,attr"`
	TypeCode         string `xml:"PartyNameTypeCode"` // "L" legal, "DBA" doing-business-as
	RawPartyFullName string `xml:"RawPartyFullName,omitempty"`
	RawLastName      string `xml:"RawEntityIndividualLastName,omitempty"`
	RawFirstName     string `xml:"RawIndividualFirstName,omitempty"`
	RawMiddleName    string `xml:"RawIndividualMiddleName,omitempty"`
}

// PartyAddress is a postal address in raw (unvalidated) schema form.
type PartyAddress struct {
	SeqNum         int    `xml:"SeqNum,attr"`
	RawStreetText  string `xml:"RawStreetAddress1Text,omitempty"`
	RawCityText    string `xml:"RawCityText,omitempty"`
	RawStateCode   string `xml:"RawStateCodeText,omitempty"`
	RawZIPCode     string `xml:"RawZIPCode,omitempty"`
	RawCountryCode string `xml:"RawCountryCodeText,omitempty"`
}

// PartyIdentification is a government identifying number, digits only.
type PartyIdentification struct {
	SeqNum     int    `xml:"SeqNum,attr"`
	TypeCode   string `xml:"PartyIdentificationTypeCode"`
	NumberText string `xml:"PartyIdentificationNumberText"`
}

// Account is a settlement account held at a financial institution party.
type Account struct {
	SeqNum            int    `xml:"SeqNum,attr"`
	AccountNumberText string `xml:"AccountNumberText"`
}

// Asset describes the real property transferred.
type Asset struct {
	SeqNum               int           `xml:"SeqNum,attr"`
	Address              *PartyAddress `xml:"Address,omitempty"`
	LegalDescriptionText string        `xml:"LegalDescriptionText,omitempty"`
}

// ValueTransfer carries the consideration and payment breakdown.
type ValueTransfer struct {
	SeqNum                   int             `xml:"SeqNum,attr"`
	ClosingDateText          string          `xml:"ClosingDateText"`
	TotalConsiderationText   string          `xml:"TotalConsiderationAmountText"`
	ExemptTransferIndicator  string          `xml:"ExemptTransferIndicator,omitempty"`
	Payments                 []PaymentDetail `xml:"PaymentDetail"`
}

// PaymentDetail is one component of the consideration.
type PaymentDetail struct {
	SeqNum          int    `xml:"SeqNum,attr"`
	PaymentTypeText string `xml:"PaymentTypeText"`
	PaymentAmount   string `xml:"PaymentAmountText"`
	PaymentDateText string `xml:"PaymentDateText"`
}
