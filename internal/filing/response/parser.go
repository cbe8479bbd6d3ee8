package response

import (
	"encoding/xml"
	"strings"
)

// Wire shapes for the regulator's response files. Unknown elements are
// ignored by encoding/xml, which gives us the forward compatibility the
// gateway's release notes call for; the parsers fail closed on anything
// missing that we require.

type messagesXML struct {
	XMLName    xml.Name        `xml:"EFilingSubmissionXML"`
	StatusCode string          `xml:"StatusCode,attr"`
	Messages   []submissionMsg `xml:"SubmissionMessage"`
}

type submissionMsg struct {
	CodeText     string `xml:"CodeText,attr"`
	SeverityText string `xml:"SeverityText,attr"`
	Text         string `xml:",chardata"`
}

type acknowledgmentXML struct {
	XMLName    xml.Name          `xml:"EFilingBatchAcknowledgementXML"`
	Activities []ackActivityXML  `xml:"EFilingActivityXML"`
}

type ackActivityXML struct {
	SeqNum        int           `xml:"SeqNum,attr"`
	BSAIdentifier string        `xml:"BSAIdentifier"`
	Errors        []ackErrorXML `xml:"EFilingActivityErrorXML"`
}

type ackErrorXML struct {
	TypeCode  string `xml:"ErrorTypeCode"`
	LevelText string `xml:"ErrorLevelText"`
	Text      string `xml:"ErrorText"`
}

// ParseMessages parses the fast "messages" response file.
func ParseMessages(data []byte) (Messages, error) {
	var wire messagesXML
	if err := xml.Unmarshal(data, &wire); err != nil {
		return Messages{}, &ParseError{File: "messages", Reason: "malformed XML", Err: err}
	}

	var outcome Outcome
	switch strings.ToUpper(strings.TrimSpace(wire.StatusCode)) {
	case "A":
		outcome = OutcomeAccepted
	case "W":
		outcome = OutcomeWarnings
	case "R":
		outcome = OutcomeRejected
	case "":
		return Messages{}, &ParseError{File: "messages", Reason: "missing StatusCode"}
	default:
		return Messages{}, &ParseError{File: "messages", Reason: "unknown StatusCode " + wire.StatusCode}
	}

	msg := Messages{Outcome: outcome}
	for _, m := range wire.Messages {
		sev := SeverityError
		if strings.EqualFold(m.SeverityText, string(SeverityWarn)) {
			sev = SeverityWarn
		}
		msg.Issues = append(msg.Issues, Issue{
			Code:     m.CodeText,
			Severity: sev,
			Message:  strings.TrimSpace(m.Text),
		})
	}
	return msg, nil
}

// ParseAcknowledgment parses the slow "acknowledgment" response file.
func ParseAcknowledgment(data []byte) (Acknowledgment, error) {
	var wire acknowledgmentXML
	if err := xml.Unmarshal(data, &wire); err != nil {
		return Acknowledgment{}, &ParseError{File: "acknowledgment", Reason: "malformed XML", Err: err}
	}
	if len(wire.Activities) == 0 {
		return Acknowledgment{}, &ParseError{File: "acknowledgment", Reason: "no activity entries present"}
	}

	ack := Acknowledgment{Receipts: map[int]string{}}
	for _, a := range wire.Activities {
		receipt := strings.TrimSpace(a.BSAIdentifier)
		if receipt == "" {
			return Acknowledgment{}, &ParseError{File: "acknowledgment", Reason: "activity entry lacks a BSAIdentifier"}
		}
		if a.SeqNum <= 0 {
			return Acknowledgment{}, &ParseError{File: "acknowledgment", Reason: "activity entry lacks a SeqNum"}
		}
		ack.Receipts[a.SeqNum] = receipt
		for _, e := range a.Errors {
			sev := SeverityError
			switch strings.ToUpper(e.LevelText) {
			case string(SeverityWarn):
				sev = SeverityWarn
			case string(SeverityFatal):
				sev = SeverityFatal
			}
			ack.Issues = append(ack.Issues, Issue{
				Code:     e.TypeCode,
				Severity: sev,
				Message:  strings.TrimSpace(e.Text),
			})
		}
	}
	return ack, nil
}
