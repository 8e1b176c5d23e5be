// Package handler exposes the import wizard over HTTP.
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
	"github.com/FACorreiaa/smart-import/internal/domain/import/service"
)

// multipartOverhead is allowed on top of the file limit for form framing.
const multipartOverhead = 1 << 20

const defaultMaxUpload = 10 << 20

// ImportHandler handles the import session endpoints
type ImportHandler struct {
	importSvc *service.ImportService
	validate  *validator.Validate
	maxUpload int64
	logger    *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc *service.ImportService, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc: importSvc,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		maxUpload: defaultMaxUpload,
		logger:    logger,
	}
}

// WithMaxUploadBytes caps the request body of uploads.
func (h *ImportHandler) WithMaxUploadBytes(n int64) *ImportHandler {
	if n > 0 {
		h.maxUpload = n
	}
	return h
}

type mappingDTO struct {
	ColumnIndex *int   `json:"column_index" validate:"required,min=0"`
	ColumnName  string `json:"column_name"`
	Field       string `json:"field" validate:"required"`
}

type mappingRequest struct {
	ImportType string       `json:"import_type" validate:"required,oneof=transacoes transacoes_fixas patrimonio"`
	Mappings   []mappingDTO `json:"mappings" validate:"required,min=1,dive"`
}

type destinationRequest struct {
	Mode       string     `json:"mode" validate:"omitempty,oneof=auto receita despesa"`
	AccountID  *uuid.UUID `json:"account_id"`
	CardID     *uuid.UUID `json:"card_id"`
	CategoryID *uuid.UUID `json:"category_id"`
}

type selectionRequest struct {
	ItemIDs  []int `json:"item_ids" validate:"required_without=All,dive,min=0"`
	All      bool  `json:"all"`
	Selected *bool `json:"selected" validate:"required"`
}

// Analyze accepts a multipart upload in the "file" field and opens a session.
func (h *ImportHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, r, h.logger, fmt.Errorf("%w: %w", service.ErrFileTooLarge, err))
			return
		}
		writeError(w, r, h.logger, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, h.logger, errMissingFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	snap, err := h.importSvc.Analyze(r.Context(), userID, service.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/v1/imports/"+snap.ID.String())
	writeJSON(w, http.StatusCreated, snap)
}

// Get returns the session snapshot.
func (h *ImportHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.ids(w, r)
	if !ok {
		return
	}
	snap, err := h.importSvc.Get(userID, sessionID)
	h.respond(w, r, snap, err)
}

// ConfirmMapping confirms the import type and column mappings.
func (h *ImportHandler) ConfirmMapping(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.ids(w, r)
	if !ok {
		return
	}
	var req mappingRequest
	if !h.decode(w, r, &req) {
		return
	}

	mappings := make([]model.ColumnMapping, 0, len(req.Mappings))
	for _, m := range req.Mappings {
		mappings = append(mappings, model.ColumnMapping{
			ColumnIndex: *m.ColumnIndex,
			ColumnName:  m.ColumnName,
			Field:       model.Field(m.Field),
		})
	}
	snap, err := h.importSvc.ConfirmMapping(r.Context(), userID, sessionID, model.ImportType(req.ImportType), mappings)
	h.respond(w, r, snap, err)
}

// BackToMapping re-enters the mapping step.
func (h *ImportHandler) BackToMapping(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.ids(w, r)
	if !ok {
		return
	}
	snap, err := h.importSvc.BackToMapping(userID, sessionID)
	h.respond(w, r, snap, err)
}

// SetDestination chooses the type mode and defaults, then prepares rows.
func (h *ImportHandler) SetDestination(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.ids(w, r)
	if !ok {
		return
	}
	var req destinationRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, err := h.importSvc.SetDestination(r.Context(), userID, sessionID, service.Destination{
		Mode:       model.TypeMode(req.Mode),
		AccountID:  req.AccountID,
		CardID:     req.CardID,
		CategoryID: req.CategoryID,
	})
	h.respond(w, r, snap, err)
}

// SetSelection toggles prepared items.
func (h *ImportHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.ids(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, err := h.importSvc.SetSelection(userID, sessionID, service.Selection{
		ItemIDs:  req.ItemIDs,
		All:      req.All,
		Selected: *req.Selected,
	})
	h.respond(w, r, snap, err)
}

// Execute runs the import and returns the final snapshot.
func (h *ImportHandler) Execute(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.ids(w, r)
	if !ok {
		return
	}
	snap, err := h.importSvc.Execute(r.Context(), userID, sessionID)
	h.respond(w, r, snap, err)
}

// Report downloads the invalid and failed rows as CSV.
func (h *ImportHandler) Report(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.ids(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.importSvc.ErrorReport(userID, sessionID, &buf); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"importacao-%s-erros.csv\"", sessionID))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Cancel discards the session and stops a running import.
func (h *ImportHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.ids(w, r)
	if !ok {
		return
	}
	if err := h.importSvc.Cancel(r.Context(), userID, sessionID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ImportHandler) ids(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, _ := UserIDFromContext(r.Context())
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, errInvalidID)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, sessionID, true
}

func (h *ImportHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: %w", errBadRequest, err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, r, h.logger, err)
		return false
	}
	return true
}

func (h *ImportHandler) respond(w http.ResponseWriter, r *http.Request, snap *service.Snapshot, err error) {
	if err != nil {
		status, resp := errorBody(r, h.logger, err)
		if snap != nil {
			resp.Counts = &snap.Counts
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
