package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "refiler/pkg/domain-errors"
	"refiler/pkg/platform/sentinel"
)

// errorResponse is the JSON error envelope used by every endpoint.
type errorResponse struct {
	Error       string   `json:"error"`
	Description string   `json:"error_description,omitempty"`
	Details     []string `json:"error_details,omitempty"`
}

// WriteJSON encodes v with the given status. Encoding failures are ignored;
// by the time they happen the status line has already been written.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto an HTTP response. Internal errors omit
// the description so infrastructure details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(translateSentinel(err))

	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.Description = de.Message
			resp.Details = de.Details
		} else {
			resp.Description = err.Error()
		}
	}
	WriteJSON(w, statusFor(code), resp)
}

// Decode parses a JSON request body into T, returning a coded error on failure.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&v); err != nil {
		return v, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed JSON request body")
	}
	return v, nil
}

// translateSentinel promotes bare infrastructure sentinels into coded errors so
// handlers do not need per-store translation.
func translateSentinel(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "record not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "conflicting record exists")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.New(dErrors.CodeUnavailable, "service unavailable")
	}
	return dErrors.New(dErrors.CodeInternal, err.Error())
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput:
		return http.StatusUnprocessableEntity
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
