// Package httpapi exposes the filing pipeline over HTTP: request a filing,
// read its status, and the operational endpoints.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"refiler/internal/filing"
	"refiler/internal/filing/aggregator"
	"refiler/internal/submission"
	id "refiler/pkg/domain"
	dErrors "refiler/pkg/domain-errors"
	"refiler/pkg/platform/httputil"
)

// Service is the slice of the orchestrator the handlers need.
//
//go:generate mockgen -source=handler.go -destination=mocks/service_mock.go -package=mocks
type Service interface {
	RequestFiling(ctx context.Context, snap filing.ReportSnapshot) (*submission.FilingSubmission, error)
	Status(ctx context.Context, reportID id.ReportID) (*submission.FilingSubmission, error)
}

// Handler serves the filing endpoints.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

// NewHandler creates the filing Handler.
func NewHandler(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the filing routes on an already-authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/filings/{reportID}", h.handleRequestFiling)
	r.Get("/filings/{reportID}", h.handleStatus)
}

// handleRequestFiling runs the synchronous pipeline half: validate, build,
// upload. The response carries the submission as it stands when the request
// returns, normally already in submitted state.
func (h *Handler) handleRequestFiling(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chimiddleware.GetReqID(ctx)

	reportID, err := id.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid report ID"))
		return
	}

	snap, err := httputil.Decode[filing.ReportSnapshot](r)
	if err != nil {
		h.logger.WarnContext(ctx, "malformed filing request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	if snap.ReportID != "" && snap.ReportID != reportID.String() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "report ID in path and body disagree"))
		return
	}
	snap.ReportID = reportID.String()

	sub, err := h.svc.RequestFiling(ctx, snap)
	if err != nil {
		var aggErr *aggregator.AggregationError
		if errors.As(err, &aggErr) {
			h.logger.WarnContext(ctx, "filing failed preflight",
				"request_id", requestID,
				"report_id", reportID,
				"issues", len(aggErr.Issues),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "report failed preflight").
				WithDetails(aggErr.Details()...))
			return
		}
		h.logger.ErrorContext(ctx, "filing request failed",
			"request_id", requestID,
			"report_id", reportID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, sub)
}

// handleStatus returns the latest submission for a report.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reportID, err := id.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid report ID"))
		return
	}

	sub, err := h.svc.Status(ctx, reportID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			h.logger.WarnContext(ctx, "status lookup failed",
				"request_id", chimiddleware.GetReqID(ctx),
				"report_id", reportID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, sub)
}
