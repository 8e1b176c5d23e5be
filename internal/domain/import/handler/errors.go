package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/FACorreiaa/smart-import/internal/domain/import/analyzer"
	"github.com/FACorreiaa/smart-import/internal/domain/import/parser"
	"github.com/FACorreiaa/smart-import/internal/domain/import/service"
	"github.com/FACorreiaa/smart-import/internal/domain/import/wizard"
)

var (
	errBadRequest   = errors.New("malformed request")
	errInvalidID    = errors.New("invalid session id")
	errMissingUser  = errors.New("missing or invalid X-User-ID header")
	errMissingFile  = errors.New("multipart field \"file\" is required")
	errRateLimited  = errors.New("too many requests")
	errUnavailable  = errors.New("service unavailable")
	errInternalFail = errors.New("internal error")
)

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

type errorResponse struct {
	Error        string       `json:"error"`
	Code         string       `json:"code"`
	Observations []string     `json:"observations,omitempty"`
	Fields       []fieldError `json:"fields,omitempty"`

	// Counts carries the session tallies when the failed call returned them.
	Counts *service.Counts `json:"counts,omitempty"`
}

// classify maps an error to its HTTP status and a stable code.
func classify(err error) (int, string) {
	var (
		maxBytes   *http.MaxBytesError
		extraction *parser.ExtractionError
		invalid    validator.ValidationErrors
	)
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, wizard.ErrInvalidTransition):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, service.ErrCancelled):
		return http.StatusConflict, "cancelled"
	case errors.Is(err, service.ErrUnsupportedFile), errors.Is(err, parser.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, "unsupported_file"
	case errors.Is(err, service.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "file_too_large"
	case errors.As(err, &extraction):
		return http.StatusUnprocessableEntity, "extraction_failed"
	case errors.Is(err, analyzer.ErrDuplicateField),
		errors.Is(err, analyzer.ErrUnknownField),
		errors.Is(err, analyzer.ErrColumnOutOfRange),
		errors.Is(err, analyzer.ErrDuplicateColumn),
		errors.Is(err, analyzer.ErrUnknownImportType):
		return http.StatusUnprocessableEntity, "invalid_mapping"
	case errors.Is(err, service.ErrUnknownItem), errors.Is(err, service.ErrInvalidMode):
		return http.StatusUnprocessableEntity, "invalid_request"
	case errors.Is(err, service.ErrNothingToImport):
		return http.StatusUnprocessableEntity, "nothing_to_import"
	case errors.As(err, &invalid), errors.Is(err, errBadRequest), errors.Is(err, errInvalidID), errors.Is(err, errMissingFile):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, errMissingUser):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, resp := errorBody(r, logger, err)
	writeJSON(w, status, resp)
}

func errorBody(r *http.Request, logger *slog.Logger, err error) (int, errorResponse) {
	status, code := classify(err)
	resp := errorResponse{Error: err.Error(), Code: code}

	var extraction *parser.ExtractionError
	if errors.As(err, &extraction) {
		resp.Error = extraction.Reason.Error()
		resp.Observations = extraction.Observations
	}
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		resp.Error = "request validation failed"
		for _, fe := range invalid {
			resp.Fields = append(resp.Fields, fieldError{Field: fe.Namespace(), Rule: fe.Tag()})
		}
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		if status == http.StatusInternalServerError {
			resp.Error = errInternalFail.Error()
		}
	}
	return status, resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
