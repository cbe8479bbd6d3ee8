package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"refiler/internal/audit"
	"refiler/internal/filing"
	"refiler/internal/filing/aggregator"
	"refiler/internal/filing/document"
	"refiler/internal/filing/response"
	"refiler/internal/platform/metrics"
	"refiler/internal/transport"
	id "refiler/pkg/domain"
	"refiler/pkg/platform/middleware/auth"
)

// Config carries the orchestrator's tunables, injected at construction.
type Config struct {
	// MaxUploadAttempts bounds upload and download retries.
	MaxUploadAttempts int
	// FirstPollDelay schedules the first acknowledgment poll after upload;
	// the messages file takes hours to appear, so polling sooner is wasted.
	FirstPollDelay time.Duration
	// PollInterval reschedules polls that found nothing new.
	PollInterval time.Duration
	// BackoffInitial seeds the exponential backoff between transport retries.
	BackoffInitial time.Duration
}

// Service is the orchestrator: it owns every FilingSubmission mutation and is
// the only component that retries transport calls. The aggregator, builder
// and parsers it drives stay pure.
type Service struct {
	store     Store
	transport transport.Client
	auditor   *audit.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	cfg       Config
	clock     func() time.Time
	tracer    trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithServiceClock injects a clock for testability.
func WithServiceClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService wires the orchestrator. All dependencies are required.
func NewService(store Store, tc transport.Client, auditor *audit.Publisher, logger *slog.Logger, m *metrics.Metrics, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("submission store is required")
	}
	if tc == nil {
		return nil, errors.New("transport client is required")
	}
	if auditor == nil {
		return nil, errors.New("audit publisher is required")
	}
	if cfg.MaxUploadAttempts <= 0 {
		cfg.MaxUploadAttempts = 3
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Hour
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 500 * time.Millisecond
	}
	s := &Service{
		store:     store,
		transport: tc,
		auditor:   auditor,
		logger:    logger,
		metrics:   m,
		cfg:       cfg,
		clock:     time.Now,
		tracer:    otel.Tracer("refiler/submission"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RequestFiling runs the synchronous half of the pipeline: aggregate, build,
// upload. It returns once the submission is submitted (or failed), leaving
// the regulator's asynchronous responses to the polling path.
//
// A validation failure returns the aggregator's full punch-list and creates
// no submission. A second request while one is queued or submitted returns
// sentinel.ErrConflict.
func (s *Service) RequestFiling(ctx context.Context, snap filing.ReportSnapshot) (*FilingSubmission, error) {
	ctx, span := s.tracer.Start(ctx, "filing.request")
	defer span.End()
	s.metrics.FilingsRequested.Inc()

	req, err := aggregator.Build(snap)
	if err != nil {
		s.metrics.ValidationFailures.Inc()
		return nil, err
	}
	span.SetAttributes(attribute.String("report_id", req.ReportID.String()))

	sub := &FilingSubmission{
		ID:       id.NewSubmissionID(),
		ReportID: req.ReportID,
		Status:   StatusQueued,
	}
	if err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, sub); err != nil {
			return err
		}
		s.audit(ctx, sub, audit.StageStatusChanged, "", nil, "not_started -> queued")
		return nil
	}); err != nil {
		return nil, err
	}
	s.countTransition(StatusQueued)

	doc, err := document.Build(req)
	if err != nil {
		// The aggregator just validated this request, so a preflight failure
		// here is a bug, not bad input. Park the submission for a human.
		s.escalate(ctx, sub, StatusQueued, err)
		return nil, err
	}

	filename := transport.UploadFilename(req.ReportID, s.clock())
	s.audit(ctx, sub, audit.StageDocumentBuilt, filename, doc.Bytes, "")

	uploadErr := s.retry(ctx, func() error {
		if err := s.store.Apply(ctx, sub.ID, StatusQueued, func(cur *FilingSubmission) error {
			cur.Attempts++
			sub.Attempts = cur.Attempts
			return nil
		}); err != nil {
			return backoff.Permanent(err)
		}
		s.audit(ctx, sub, audit.StageUploadAttempted, filename, nil, fmt.Sprintf("attempt %d", sub.Attempts))
		if sub.Attempts > 1 {
			s.metrics.UploadRetries.Inc()
		}

		if _, err := s.transport.Upload(ctx, doc.Bytes, filename); err != nil {
			s.metrics.Uploads.WithLabelValues("failure").Inc()
			s.audit(ctx, sub, audit.StageUploadAttempted, filename, nil, "failed: "+err.Error())
			return err
		}
		return nil
	})
	if uploadErr != nil {
		s.escalate(ctx, sub, StatusQueued, uploadErr)
		return nil, uploadErr
	}

	s.metrics.Uploads.WithLabelValues("success").Inc()
	nextPoll := s.clock().Add(s.cfg.FirstPollDelay)
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Apply(ctx, sub.ID, StatusQueued, func(cur *FilingSubmission) error {
			cur.Status = StatusSubmitted
			cur.UploadedFilename = filename
			cur.PayloadSnapshot = doc.Bytes
			cur.ActivitySeqNum = doc.ActivitySeqNum
			cur.NextPollAt = &nextPoll
			*sub = *cur
			return nil
		}); err != nil {
			return err
		}
		s.audit(ctx, sub, audit.StageUploaded, filename, nil, "")
		s.audit(ctx, sub, audit.StageStatusChanged, filename, nil, "queued -> submitted")
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.countTransition(StatusSubmitted)

	s.logger.InfoContext(ctx, "filing submitted",
		"report_id", sub.ReportID,
		"submission_id", sub.ID,
		"filename", filename,
		"attempts", sub.Attempts,
	)
	return sub, nil
}

// Status returns the latest submission for a report.
func (s *Service) Status(ctx context.Context, reportID id.ReportID) (*FilingSubmission, error) {
	return s.store.LatestByReport(ctx, reportID)
}

// DuePolls exposes the store query for the scheduler.
func (s *Service) DuePolls(ctx context.Context, now time.Time, limit int) ([]*FilingSubmission, error) {
	return s.store.DuePolls(ctx, now, limit)
}

// Poll checks the outbound directory for response files belonging to one
// submission and applies whatever it finds: the fast messages outcome first,
// then the acknowledgment receipt. Finding nothing reschedules the poll.
func (s *Service) Poll(ctx context.Context, sub *FilingSubmission) error {
	ctx, span := s.tracer.Start(ctx, "filing.poll",
		trace.WithAttributes(attribute.String("submission_id", sub.ID.String())))
	defer span.End()
	start := s.clock()
	defer func() { s.metrics.ObservePoll(s.clock().Sub(start)) }()

	prefix := transport.ResponsePrefix(sub.UploadedFilename)

	var files []transport.RemoteFile
	listErr := s.retry(ctx, func() error {
		var err error
		files, err = s.transport.ListResponses(ctx, prefix)
		return err
	})
	if listErr != nil {
		s.escalate(ctx, sub, sub.Status, listErr)
		return listErr
	}

	progressed := false
	if !sub.MessagesProcessed {
		for _, f := range files {
			if !transport.IsMessages(f) {
				continue
			}
			if err := s.applyMessages(ctx, sub, f); err != nil {
				return err
			}
			progressed = true
			break
		}
	}

	if sub.Status == StatusSubmitted || (sub.Status == StatusAccepted && sub.ReceiptID == "") {
		for _, f := range files {
			if !transport.IsAcknowledgment(f) {
				continue
			}
			if err := s.applyAcknowledgment(ctx, sub, f); err != nil {
				return err
			}
			progressed = true
			break
		}
	}

	if sub.Status.Terminal() && sub.NextPollAt == nil {
		return nil
	}
	if !progressed {
		s.logger.DebugContext(ctx, "no new response files", "submission_id", sub.ID, "prefix", prefix)
	}

	// Still waiting on the regulator; look again later.
	next := s.clock().Add(s.cfg.PollInterval)
	return s.store.Apply(ctx, sub.ID, sub.Status, func(cur *FilingSubmission) error {
		cur.NextPollAt = &next
		*sub = *cur
		return nil
	})
}

// applyMessages downloads and applies the fast response file.
func (s *Service) applyMessages(ctx context.Context, sub *FilingSubmission, f transport.RemoteFile) error {
	data, err := s.download(ctx, sub, f)
	if err != nil {
		return err
	}

	msgs, err := response.ParseMessages(data)
	if err != nil {
		s.metrics.ResponsesParsed.WithLabelValues("messages", "parse_error").Inc()
		s.audit(ctx, sub, audit.StageParseFailed, f.Name, data, err.Error())
		s.escalate(ctx, sub, sub.Status, err)
		return err
	}
	s.metrics.ResponsesParsed.WithLabelValues("messages", string(msgs.Outcome)).Inc()
	s.audit(ctx, sub, audit.StageMessagesParsed, f.Name, data, string(msgs.Outcome))

	var to Status
	switch msgs.Outcome {
	case response.OutcomeAccepted:
		to = StatusAccepted
	case response.OutcomeWarnings:
		to = StatusNeedsReview
	case response.OutcomeRejected:
		to = StatusRejected
	}

	next := s.clock().Add(s.cfg.PollInterval)
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Apply(ctx, sub.ID, StatusSubmitted, func(cur *FilingSubmission) error {
			cur.MessagesProcessed = true
			cur.ResponseSnapshot = data
			cur.Status = to
			cur.RejectionCode, cur.RejectionMessage = firstIssue(msgs.Issues)
			switch to {
			case StatusAccepted:
				// Keep polling: the acknowledgment still owes us the receipt.
				cur.NextPollAt = &next
			default:
				cur.NextPollAt = nil
			}
			*sub = *cur
			return nil
		}); err != nil {
			return err
		}
		s.audit(ctx, sub, audit.StageStatusChanged, f.Name, nil, "submitted -> "+string(to))
		return nil
	})
	if err != nil {
		return err
	}
	s.countTransition(to)
	s.logger.InfoContext(ctx, "messages response applied",
		"submission_id", sub.ID, "outcome", string(msgs.Outcome))
	return nil
}

// applyAcknowledgment downloads and applies the slow response file.
func (s *Service) applyAcknowledgment(ctx context.Context, sub *FilingSubmission, f transport.RemoteFile) error {
	data, err := s.download(ctx, sub, f)
	if err != nil {
		return err
	}

	ack, err := response.ParseAcknowledgment(data)
	if err != nil {
		s.metrics.ResponsesParsed.WithLabelValues("acknowledgment", "parse_error").Inc()
		s.audit(ctx, sub, audit.StageParseFailed, f.Name, data, err.Error())
		s.escalate(ctx, sub, sub.Status, err)
		return err
	}

	receipt, ok := ack.Receipts[sub.ActivitySeqNum]
	if !ok {
		perr := &response.ParseError{File: f.Name, Reason: fmt.Sprintf("no receipt for activity SeqNum %d", sub.ActivitySeqNum)}
		s.metrics.ResponsesParsed.WithLabelValues("acknowledgment", "parse_error").Inc()
		s.audit(ctx, sub, audit.StageParseFailed, f.Name, data, perr.Reason)
		s.escalate(ctx, sub, sub.Status, perr)
		return perr
	}
	s.metrics.ResponsesParsed.WithLabelValues("acknowledgment", "ok").Inc()
	s.audit(ctx, sub, audit.StageAckParsed, f.Name, data, "receipt "+receipt)

	from := sub.Status
	to := StatusAccepted
	if ack.Fatal() && from == StatusSubmitted {
		to = StatusRejected
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Apply(ctx, sub.ID, from, func(cur *FilingSubmission) error {
			cur.ResponseSnapshot = data
			cur.ReceiptID = receipt
			cur.Status = to
			if to == StatusRejected {
				cur.RejectionCode, cur.RejectionMessage = firstIssue(ack.Issues)
			}
			cur.NextPollAt = nil
			*sub = *cur
			return nil
		}); err != nil {
			return err
		}
		if from != to {
			s.audit(ctx, sub, audit.StageStatusChanged, f.Name, nil, string(from)+" -> "+string(to))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if from != to {
		s.countTransition(to)
	}
	s.logger.InfoContext(ctx, "acknowledgment applied",
		"submission_id", sub.ID, "receipt_id", receipt, "status", string(to))
	return nil
}

func (s *Service) download(ctx context.Context, sub *FilingSubmission, f transport.RemoteFile) ([]byte, error) {
	var data []byte
	err := s.retry(ctx, func() error {
		var err error
		data, err = s.transport.Download(ctx, f)
		return err
	})
	if err != nil {
		s.escalate(ctx, sub, sub.Status, err)
		return nil, err
	}
	s.audit(ctx, sub, audit.StageResponseDownloaded, f.Name, data, "")
	return data, nil
}

// retry wraps one transport call in bounded exponential backoff. Transport
// clients never retry themselves; this is the only retry site in the pipeline.
func (s *Service) retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.BackoffInitial
	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(s.cfg.MaxUploadAttempts-1)), ctx)
	return backoff.Retry(op, policy)
}

// escalate parks a submission with the causing error recorded. Retries were
// already exhausted by the time this is reached; nothing is dropped silently.
// A submission that already reached accepted never regresses: it keeps its
// status through the accepted -> accepted refinement edge, recording the
// error and stopping the poll loop so a bad acknowledgment file is not
// re-swept forever.
func (s *Service) escalate(ctx context.Context, sub *FilingSubmission, from Status, cause error) {
	to := StatusNeedsReview
	if from == StatusAccepted {
		to = StatusAccepted
	}
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Apply(ctx, sub.ID, from, func(cur *FilingSubmission) error {
			cur.Status = to
			cur.LastError = cause.Error()
			cur.NextPollAt = nil
			*sub = *cur
			return nil
		}); err != nil {
			return err
		}
		s.audit(ctx, sub, audit.StageStatusChanged, sub.UploadedFilename, nil,
			string(from)+" -> "+string(to)+": "+cause.Error())
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to escalate submission",
			"submission_id", sub.ID, "cause", cause, "error", err)
		return
	}
	if to == StatusNeedsReview {
		s.countTransition(StatusNeedsReview)
	}
	s.logger.WarnContext(ctx, "submission needs review",
		"submission_id", sub.ID, "report_id", sub.ReportID, "status", string(to), "cause", cause)
}

func (s *Service) audit(ctx context.Context, sub *FilingSubmission, stage audit.Stage, filename string, snapshot []byte, note string) {
	event := audit.Event{
		SubmissionID: sub.ID,
		ReportID:     sub.ReportID,
		Stage:        stage,
		Actor:        auth.GetSubject(ctx),
		Filename:     filename,
		Snapshot:     snapshot,
		Note:         note,
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		// The audit trail is best-effort only for the emit itself; the
		// pipeline must not wedge because the sink hiccuped.
		s.logger.ErrorContext(ctx, "audit emit failed",
			"submission_id", sub.ID, "stage", string(stage), "error", err)
	}
}

func (s *Service) countTransition(to Status) {
	s.metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
}

func firstIssue(issues []response.Issue) (code, message string) {
	if len(issues) == 0 {
		return "", ""
	}
	codes := make([]string, 0, len(issues))
	texts := make([]string, 0, len(issues))
	for _, i := range issues {
		if i.Severity == response.SeverityWarn {
			continue
		}
		codes = append(codes, i.Code)
		texts = append(texts, i.Message)
	}
	if len(codes) == 0 {
		// Warnings only; keep them visible to operators anyway.
		for _, i := range issues {
			codes = append(codes, i.Code)
			texts = append(texts, i.Message)
		}
	}
	return codes[0], strings.Join(texts, "; ")
}
