package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"refiler/internal/filing"
)

// Document is the serialized XML artifact submitted to the regulator, plus
// the sequence number of its Activity element so acknowledgment receipts can
// be matched back.
type Document struct {
	Bytes          []byte
	ActivitySeqNum int
}

// PreflightError is the builder's defense-in-depth failure: a structurally
// invalid FilingRequest reached the builder without going through the
// aggregator. It names the first violation only; the aggregator remains the
// component that reports complete punch-lists.
type PreflightError struct {
	Violation string
}

func (e *PreflightError) Error() string {
	return "document preflight: " + e.Violation
}

// Build serializes the request into the regulator's batch XML. It is a pure
// function: the same request always yields byte-identical output, which the
// golden-file tests depend on.
func Build(req filing.FilingRequest) (Document, error) {
	if err := preflight(req); err != nil {
		return Document{}, err
	}

	var seq seqCounter
	activity := Activity{SeqNum: seq.next()}
	activity.Association = &ActivityAssociation{
		SeqNum:                 seq.next(),
		InitialReportIndicator: "Y",
	}

	// Schema-defined party order. Changing this reorders sequence numbers and
	// breaks determinism against previously filed documents.
	activity.Parties = append(activity.Parties, buildReportingPerson(&seq, req.ReportingPerson))
	activity.Parties = append(activity.Parties, buildTransmitter(&seq, req.Transmitter))
	activity.Parties = append(activity.Parties, buildTransmitterContact(&seq, req.TransmitterContact))
	for _, t := range req.Transferees {
		activity.Parties = append(activity.Parties, buildTransferee(&seq, t))
	}
	for _, t := range req.Transferors {
		activity.Parties = append(activity.Parties, buildTransferor(&seq, t))
	}
	for _, fi := range req.Institutions {
		activity.Parties = append(activity.Parties, buildInstitution(&seq, fi))
	}

	activity.Asset = &Asset{
		SeqNum:               seq.next(),
		Address:              buildAddress(&seq, req.Property.Address),
		LegalDescriptionText: req.Property.LegalDescription,
	}
	activity.Transfer = buildValueTransfer(&seq, req)

	batch := Batch{
		Xmlns:          NamespaceURI,
		XmlnsXSI:       "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: SchemaLocation,
		FormTypeCode:   FormTypeCode,
		Activities:     []Activity{activity},
	}
	applyCounts(&batch)

	out, err := xml.MarshalIndent(batch, "", "  ")
	if err != nil {
		return Document{}, fmt.Errorf("marshal batch: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(out)
	buf.WriteByte('\n')

	return Document{Bytes: buf.Bytes(), ActivitySeqNum: activity.SeqNum}, nil
}

// applyCounts derives every root count attribute from the elements actually
// present in the built batch. Counting anywhere else risks drift between the
// attribute and the document body.
func applyCounts(b *Batch) {
	b.ActivityCount = len(b.Activities)
	var total int64
	for _, a := range b.Activities {
		b.PartyCount += len(a.Parties)
		for _, p := range a.Parties {
			b.AccountCount += len(p.Accounts)
			switch p.TypeCode {
			case CodeTransfereeIndividual, CodeTransfereeEntity:
				b.TransfereeCount++
			case CodeTransferorIndividual, CodeTransferorEntity, CodeTransferorTrust:
				b.TransferorCount++
			}
		}
		if a.Transfer != nil {
			amt, _ := strconv.ParseInt(a.Transfer.TotalConsiderationText, 10, 64)
			total += amt
		}
	}
	b.TotalAmount = strconv.FormatInt(total, 10)
}

type seqCounter struct{ n int }

func (s *seqCounter) next() int {
	s.n++
	return s.n
}

func buildReportingPerson(seq *seqCounter, rp filing.ReportingPerson) Party {
	p := buildIndividualParty(seq, CodeReportingPerson, rp.Individual)
	p.ElectronicAddressText = rp.Email
	p.PhoneNumberText = digitsOnly(rp.Phone)
	return p
}

func buildTransmitter(seq *seqCounter, t filing.Transmitter) Party {
	p := buildEntityParty(seq, CodeTransmitter, t.Entity)
	p.TransmitterControlCode = t.TCC
	return p
}

func buildTransmitterContact(seq *seqCounter, tc filing.TransmitterContact) Party {
	p := buildIndividualParty(seq, CodeTransmitterContact, tc.Individual)
	p.ElectronicAddressText = tc.Email
	p.PhoneNumberText = digitsOnly(tc.Phone)
	return p
}

func buildTransferee(seq *seqCounter, t filing.Transferee) Party {
	if t.Kind == filing.KindIndividual && t.Individual != nil {
		return buildIndividualParty(seq, CodeTransfereeIndividual, *t.Individual)
	}
	p := buildEntityParty(seq, CodeTransfereeEntity, *t.Entity)
	p.Associated = buildAssociated(seq, t.Associated)
	return p
}

func buildTransferor(seq *seqCounter, t filing.Transferor) Party {
	switch t.Kind {
	case filing.KindIndividual:
		return buildIndividualParty(seq, CodeTransferorIndividual, *t.Individual)
	case filing.KindTrust:
		p := buildEntityParty(seq, CodeTransferorTrust, *t.Entity)
		p.Associated = buildAssociated(seq, t.Associated)
		return p
	default:
		p := buildEntityParty(seq, CodeTransferorEntity, *t.Entity)
		p.Associated = buildAssociated(seq, t.Associated)
		return p
	}
}

func buildInstitution(seq *seqCounter, fi filing.FinancialInstitution) Party {
	p := buildEntityParty(seq, CodeFinancialInstitution, fi.Entity)
	if fi.AccountNumber != "" {
		p.Accounts = append(p.Accounts, Account{
			SeqNum:            seq.next(),
			AccountNumberText: fi.AccountNumber,
		})
	}
	return p
}

func buildAssociated(seq *seqCounter, people []filing.AssociatedPerson) []Party {
	out := make([]Party, 0, len(people))
	for _, ap := range people {
		p := buildIndividualParty(seq, CodeAssociatedPerson, ap.Individual)
		p.CapacityText = ap.CapacityText
		if ap.OwnershipPercent > 0 {
			p.OwnershipPercentText = strconv.Itoa(ap.OwnershipPercent)
		}
		out = append(out, p)
	}
	return out
}

func buildIndividualParty(seq *seqCounter, code string, ind filing.Individual) Party {
	p := Party{SeqNum: seq.next(), TypeCode: code}
	p.Names = append(p.Names, PartyName{
		SeqNum:        seq.next(),
		TypeCode:      "L",
		RawLastName:   ind.LastName,
		RawFirstName:  ind.FirstName,
		RawMiddleName: ind.MiddleName,
	})
	if addr := buildAddress(seq, ind.Address); addr != nil {
		p.Addresses = append(p.Addresses, *addr)
	}
	p.Identifications = append(p.Identifications, buildIdentification(seq, ind.TIN))
	p.BirthDateText = dateText(ind.DOB)
	return p
}

func buildEntityParty(seq *seqCounter, code string, ent filing.Entity) Party {
	p := Party{SeqNum: seq.next(), TypeCode: code}
	p.Names = append(p.Names, PartyName{
		SeqNum:           seq.next(),
		TypeCode:         "L",
		RawPartyFullName: ent.LegalName,
	})
	if ent.DBAName != "" {
		p.Names = append(p.Names, PartyName{
			SeqNum:           seq.next(),
			TypeCode:         "DBA",
			RawPartyFullName: ent.DBAName,
		})
	}
	if addr := buildAddress(seq, ent.Address); addr != nil {
		p.Addresses = append(p.Addresses, *addr)
	}
	p.Identifications = append(p.Identifications, buildIdentification(seq, ent.TIN))
	return p
}

func buildAddress(seq *seqCounter, a filing.Address) *PartyAddress {
	if a == (filing.Address{}) {
		return nil
	}
	return &PartyAddress{
		SeqNum:         seq.next(),
		RawStreetText:  a.Street,
		RawCityText:    a.City,
		RawStateCode:   a.State,
		RawZIPCode:     a.PostalCode,
		RawCountryCode: a.Country,
	}
}

// buildIdentification serializes a TIN digits-only with its schema type code.
func buildIdentification(seq *seqCounter, tin filing.TIN) PartyIdentification {
	code := IDTypeForeign
	switch tin.Kind {
	case filing.TINSSN:
		code = IDTypeSSN
	case filing.TINEIN:
		code = IDTypeEIN
	}
	number := tin.Value
	if code != IDTypeForeign {
		number = digitsOnly(number)
	}
	return PartyIdentification{
		SeqNum:     seq.next(),
		TypeCode:   code,
		NumberText: number,
	}
}

func buildValueTransfer(seq *seqCounter, req filing.FilingRequest) *ValueTransfer {
	vt := &ValueTransfer{
		SeqNum:                 seq.next(),
		ClosingDateText:        dateText(req.ClosingDate),
		TotalConsiderationText: strconv.FormatInt(req.TotalConsideration, 10),
	}
	if req.ExemptDetermination {
		vt.ExemptTransferIndicator = "Y"
	}
	for _, pay := range req.Payments {
		vt.Payments = append(vt.Payments, PaymentDetail{
			SeqNum:          seq.next(),
			PaymentTypeText: pay.Method,
			PaymentAmount:   strconv.FormatInt(pay.Amount, 10),
			PaymentDateText: dateText(pay.Date),
		})
	}
	return vt
}

// preflight is the builder's last line of defense when the aggregator was
// bypassed. It reports the first structural violation only.
func preflight(req filing.FilingRequest) error {
	switch {
	case req.ReportID.IsNil():
		return &PreflightError{Violation: "report id is nil"}
	case req.ClosingDate.IsZero():
		return &PreflightError{Violation: "closing date is zero"}
	case req.ReportingPerson.LastName == "":
		return &PreflightError{Violation: "reporting person is missing"}
	case req.Transmitter.LegalName == "" || req.Transmitter.TCC == "":
		return &PreflightError{Violation: "transmitter is missing or lacks a control code"}
	case req.TransmitterContact.LastName == "":
		return &PreflightError{Violation: "transmitter contact is missing"}
	case len(req.Transferees) == 0:
		return &PreflightError{Violation: "no transferee party present"}
	case len(req.Transferors) == 0:
		return &PreflightError{Violation: "no transferor party present"}
	case req.TotalConsideration <= 0:
		return &PreflightError{Violation: "total consideration must be positive"}
	}
	for i, t := range req.Transferees {
		if t.Individual == nil && t.Entity == nil {
			return &PreflightError{Violation: fmt.Sprintf("transferee %d has no individual or entity payload", i)}
		}
	}
	for i, t := range req.Transferors {
		if t.Individual == nil && t.Entity == nil {
			return &PreflightError{Violation: fmt.Sprintf("transferor %d has no individual or entity payload", i)}
		}
	}
	return nil
}

func dateText(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("20060102")
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
