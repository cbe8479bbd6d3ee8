package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ParserSuite struct {
	suite.Suite
}

func TestParserSuite(t *testing.T) {
	suite.Run(t, new(ParserSuite))
}

func (s *ParserSuite) TestParseMessagesAccepted() {
	data := []byte(`<?xml version="1.0"?>
<EFilingSubmissionXML StatusCode="A">
</EFilingSubmissionXML>`)

	msgs, err := ParseMessages(data)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), OutcomeAccepted, msgs.Outcome)
	assert.Empty(s.T(), msgs.Issues)
}

func (s *ParserSuite) TestParseMessagesRejectedWithIssues() {
	data := []byte(`<?xml version="1.0"?>
<EFilingSubmissionXML StatusCode="R">
  <SubmissionMessage CodeText="C17" SeverityText="ERROR">Batch failed schema validation</SubmissionMessage>
  <SubmissionMessage CodeText="C22" SeverityText="WARN">Deprecated element present</SubmissionMessage>
</EFilingSubmissionXML>`)

	msgs, err := ParseMessages(data)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), OutcomeRejected, msgs.Outcome)
	require.Len(s.T(), msgs.Issues, 2)
	assert.Equal(s.T(), "C17", msgs.Issues[0].Code)
	assert.Equal(s.T(), SeverityError, msgs.Issues[0].Severity)
	assert.Equal(s.T(), "Batch failed schema validation", msgs.Issues[0].Message)
	assert.Equal(s.T(), SeverityWarn, msgs.Issues[1].Severity)

	errs := msgs.Errors()
	require.Len(s.T(), errs, 1)
	assert.Equal(s.T(), "C17", errs[0].Code)
}

// Unknown elements and attributes must be ignored: the gateway adds fields
// between releases and existing filings must keep parsing.
func (s *ParserSuite) TestParseMessagesTolerantOfUnknownContent() {
	data := []byte(`<?xml version="1.0"?>
<EFilingSubmissionXML StatusCode="W" TrackingID="T-9931">
  <ProcessingWindow>overnight</ProcessingWindow>
  <SubmissionMessage CodeText="C22" SeverityText="WARN">Deprecated element present</SubmissionMessage>
  <FutureBlock><Nested attr="x"/></FutureBlock>
</EFilingSubmissionXML>`)

	msgs, err := ParseMessages(data)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), OutcomeWarnings, msgs.Outcome)
	assert.Len(s.T(), msgs.Issues, 1)
}

func (s *ParserSuite) TestParseMessagesFailsClosed() {
	tests := []struct {
		name   string
		data   string
		reason string
	}{
		{
			name:   "missing status code",
			data:   `<EFilingSubmissionXML></EFilingSubmissionXML>`,
			reason: "missing StatusCode",
		},
		{
			name:   "unknown status code",
			data:   `<EFilingSubmissionXML StatusCode="Q"></EFilingSubmissionXML>`,
			reason: "unknown StatusCode Q",
		},
		{
			name:   "malformed xml",
			data:   `<EFilingSubmissionXML StatusCode="A">`,
			reason: "malformed XML",
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			_, err := ParseMessages([]byte(tc.data))
			var perr *ParseError
			require.ErrorAs(s.T(), err, &perr)
			assert.Equal(s.T(), tc.reason, perr.Reason)
		})
	}
}

func (s *ParserSuite) TestParseAcknowledgment() {
	data := []byte(`<?xml version="1.0"?>
<EFilingBatchAcknowledgementXML>
  <EFilingActivityXML SeqNum="1">
    <BSAIdentifier>31000123456789</BSAIdentifier>
  </EFilingActivityXML>
</EFilingBatchAcknowledgementXML>`)

	ack, err := ParseAcknowledgment(data)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "31000123456789", ack.Receipts[1])
	assert.False(s.T(), ack.Fatal())
}

func (s *ParserSuite) TestParseAcknowledgmentWithItemErrors() {
	data := []byte(`<?xml version="1.0"?>
<EFilingBatchAcknowledgementXML>
  <EFilingActivityXML SeqNum="1">
    <BSAIdentifier>31000123456789</BSAIdentifier>
    <EFilingActivityErrorXML>
      <ErrorTypeCode>E44</ErrorTypeCode>
      <ErrorLevelText>FATAL</ErrorLevelText>
      <ErrorText>Transferee identification failed verification</ErrorText>
    </EFilingActivityErrorXML>
    <EFilingActivityErrorXML>
      <ErrorTypeCode>E12</ErrorTypeCode>
      <ErrorLevelText>WARN</ErrorLevelText>
      <ErrorText>Address could not be standardized</ErrorText>
    </EFilingActivityErrorXML>
  </EFilingActivityXML>
</EFilingBatchAcknowledgementXML>`)

	ack, err := ParseAcknowledgment(data)
	require.NoError(s.T(), err)
	assert.True(s.T(), ack.Fatal())
	require.Len(s.T(), ack.Issues, 2)
	assert.Equal(s.T(), SeverityFatal, ack.Issues[0].Severity)
	assert.Equal(s.T(), "E44", ack.Issues[0].Code)
	assert.Equal(s.T(), SeverityWarn, ack.Issues[1].Severity)
}

func (s *ParserSuite) TestParseAcknowledgmentMultipleActivities() {
	data := []byte(`<?xml version="1.0"?>
<EFilingBatchAcknowledgementXML>
  <EFilingActivityXML SeqNum="1"><BSAIdentifier>31000000000001</BSAIdentifier></EFilingActivityXML>
  <EFilingActivityXML SeqNum="7"><BSAIdentifier>31000000000002</BSAIdentifier></EFilingActivityXML>
</EFilingBatchAcknowledgementXML>`)

	ack, err := ParseAcknowledgment(data)
	require.NoError(s.T(), err)
	assert.Len(s.T(), ack.Receipts, 2)
	assert.Equal(s.T(), "31000000000002", ack.Receipts[7])
}

func (s *ParserSuite) TestParseAcknowledgmentFailsClosed() {
	tests := []struct {
		name   string
		data   string
		reason string
	}{
		{
			name:   "no activities",
			data:   `<EFilingBatchAcknowledgementXML></EFilingBatchAcknowledgementXML>`,
			reason: "no activity entries present",
		},
		{
			name: "missing identifier",
			data: `<EFilingBatchAcknowledgementXML>
  <EFilingActivityXML SeqNum="1"><BSAIdentifier>  </BSAIdentifier></EFilingActivityXML>
</EFilingBatchAcknowledgementXML>`,
			reason: "activity entry lacks a BSAIdentifier",
		},
		{
			name: "missing seqnum",
			data: `<EFilingBatchAcknowledgementXML>
  <EFilingActivityXML><BSAIdentifier>31000000000001</BSAIdentifier></EFilingActivityXML>
</EFilingBatchAcknowledgementXML>`,
			reason: "activity entry lacks a SeqNum",
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			_, err := ParseAcknowledgment([]byte(tc.data))
			var perr *ParseError
			require.ErrorAs(s.T(), err, &perr)
			assert.Equal(s.T(), tc.reason, perr.Reason)
		})
	}
}
