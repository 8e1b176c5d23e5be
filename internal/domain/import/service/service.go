// Package service provides the import orchestration logic: it drives one
// wizard session per upload from analysis to execution.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/smart-import/internal/domain/import/analyzer"
	"github.com/FACorreiaa/smart-import/internal/domain/import/executor"
	"github.com/FACorreiaa/smart-import/internal/domain/import/filetype"
	"github.com/FACorreiaa/smart-import/internal/domain/import/lookup"
	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
	"github.com/FACorreiaa/smart-import/internal/domain/import/parser"
	"github.com/FACorreiaa/smart-import/internal/domain/import/preparer"
	"github.com/FACorreiaa/smart-import/internal/domain/import/report"
	"github.com/FACorreiaa/smart-import/internal/domain/import/repository"
	"github.com/FACorreiaa/smart-import/internal/domain/import/wizard"
	"github.com/FACorreiaa/smart-import/pkg/metrics"
	"github.com/FACorreiaa/smart-import/pkg/storage"
)

const tracerName = "github.com/FACorreiaa/smart-import/internal/domain/import/service"

// sniffBytes is how much of an upload is inspected for its file type.
const sniffBytes = 3072

var (
	ErrSessionNotFound = errors.New("import session not found")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrInvalidMode     = errors.New("invalid transaction type mode")
	ErrUnknownItem     = errors.New("unknown item id")
	ErrNothingToImport = errors.New("no selected valid items to import")
	ErrCancelled       = errors.New("import cancelled")
)

// Extractor turns an uploaded file into a raw table.
type Extractor interface {
	Extract(ctx context.Context, src parser.Source) (*parser.Table, error)
}

// Upload is a file received from the client.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Destination holds the choices made after the mapping step.
type Destination struct {
	Mode       model.TypeMode
	AccountID  *uuid.UUID
	CardID     *uuid.UUID
	CategoryID *uuid.UUID
}

// Selection toggles the Selected flag of prepared items. All applies the
// flag to every item and ignores ItemIDs.
type Selection struct {
	ItemIDs  []int
	All      bool
	Selected bool
}

// Counts summarizes a session at any step.
type Counts struct {
	Valid    int `json:"valid"`
	Invalid  int `json:"invalid"`
	Selected int `json:"selected"`
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Progress reports how many eligible items an import has attempted.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Snapshot is a point-in-time copy of a session, safe to serialize.
type Snapshot struct {
	ID              uuid.UUID                 `json:"id"`
	State           wizard.State              `json:"state"`
	Finished        bool                      `json:"finished"`
	ImportType      model.ImportType          `json:"import_type,omitempty"`
	Mode            model.TypeMode            `json:"mode,omitempty"`
	Mappings        []model.ColumnMapping     `json:"mappings,omitempty"`
	MissingRequired []model.Field             `json:"missing_required,omitempty"`
	Analysis        *model.FileAnalysis       `json:"analysis,omitempty"`
	Prepared        *model.PreparedImportData `json:"prepared,omitempty"`
	Result          *model.ImportResult       `json:"result,omitempty"`
	Counts          Counts                    `json:"counts"`
	Progress        Progress                  `json:"progress"`
	Error           string                    `json:"error,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// ImportService orchestrates file analysis and import operations
type ImportService struct {
	store     repository.Store
	extractor Extractor
	sessions  *SessionStore
	files     storage.Storage
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	maxUpload int64
	logger    *slog.Logger
}

// NewImportService creates a new import service
func NewImportService(store repository.Store, extractor Extractor, sessions *SessionStore, logger *slog.Logger) *ImportService {
	return &ImportService{
		store:     store,
		extractor: extractor,
		sessions:  sessions,
		tracer:    otel.Tracer(tracerName),
		logger:    logger,
	}
}

// WithFileStorage archives uploads for the lifetime of their session.
func (s *ImportService) WithFileStorage(files storage.Storage) *ImportService {
	s.files = files
	return s
}

// WithMetrics records pipeline metrics.
func (s *ImportService) WithMetrics(m *metrics.Metrics) *ImportService {
	s.metrics = m
	return s
}

// WithMaxUploadBytes rejects larger uploads; zero means no limit.
func (s *ImportService) WithMaxUploadBytes(n int64) *ImportService {
	s.maxUpload = n
	return s
}

// Analyze detects the file type, extracts the raw table, analyzes its
// columns and applies a saved mapping for the same headers when there is
// one. It opens a new session waiting for mapping confirmation.
func (s *ImportService) Analyze(ctx context.Context, userID uuid.UUID, up Upload) (snap *Snapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "import.Analyze", trace.WithAttributes(
		attribute.String("file.name", up.Name),
		attribute.Int("file.size", len(up.Data)),
	))
	defer func() { endSpan(span, err) }()

	if s.maxUpload > 0 && int64(len(up.Data)) > s.maxUpload {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrFileTooLarge, len(up.Data), s.maxUpload)
	}
	kind, ok := filetype.Detect(up.Name, up.ContentType, up.Data[:min(len(up.Data), sniffBytes)])
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, up.Name)
	}
	span.SetAttributes(attribute.String("file.kind", string(kind)))

	sess := s.sessions.create(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.wizard.StartAnalysis(); err != nil {
		return nil, err
	}

	start := time.Now()
	table, err := s.extractor.Extract(ctx, parser.Source{
		Name:     up.Name,
		Kind:     kind,
		Data:     up.Data,
		MIMEType: filetype.MIMEType(up.Name, up.Data),
	})
	s.metrics.ObserveAnalysis(string(kind), time.Since(start), err)
	if err != nil {
		_ = sess.wizard.Fail(err)
		s.sessions.remove(sess.ID)
		s.logger.Warn("file analysis failed",
			slog.String("file_type", string(kind)),
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to extract %s file: %w", kind, err)
	}

	analysis := analyzer.Analyze(table, analyzer.FileMeta{
		Name: up.Name,
		Kind: kind,
		Size: int64(len(up.Data)),
	})
	analysis = s.applyTemplate(ctx, userID, analysis)

	if err := sess.wizard.Analyzed(analysis.SuggestedImportType, analysis.SuggestedMappings); err != nil {
		return nil, err
	}
	sess.table = table
	sess.analysis = analysis
	sess.validation = analyzer.ValidateMappings(analysis.SuggestedImportType, analysis.SuggestedMappings, len(table.Headers))
	s.archive(ctx, sess, up)
	s.metrics.SetActiveSessions(s.sessions.Len())

	s.logger.Info("file analyzed",
		slog.String("session_id", sess.ID.String()),
		slog.String("file_type", string(kind)),
		slog.Int("rows", analysis.RowCount),
		slog.String("import_type", string(analysis.SuggestedImportType)),
		slog.Float64("confidence", analysis.Confidence),
		slog.Bool("template_applied", analysis.TemplateApplied))

	return snapshotOf(sess), nil
}

func (s *ImportService) applyTemplate(ctx context.Context, userID uuid.UUID, analysis *model.FileAnalysis) *model.FileAnalysis {
	tpl, err := s.store.GetTemplate(ctx, userID, analysis.Fingerprint)
	if errors.Is(err, repository.ErrNotFound) {
		return analysis
	}
	if err != nil {
		s.logger.Warn("failed to load mapping template", slog.Any("error", err))
		return analysis
	}
	return analyzer.ApplyTemplate(analysis, tpl.ImportType, tpl.Mappings)
}

func (s *ImportService) archive(ctx context.Context, sess *Session, up Upload) {
	if s.files == nil {
		return
	}
	info, err := s.files.Upload(ctx, sess.UserID, up.Name, up.ContentType, bytes.NewReader(up.Data))
	if err != nil {
		s.logger.Warn("failed to archive upload",
			slog.String("session_id", sess.ID.String()),
			slog.Any("error", err))
		return
	}
	sess.fileID = info.ID
}

func (s *ImportService) discard(ctx context.Context, sess *Session) {
	if s.files == nil || sess.fileID == uuid.Nil {
		return
	}
	if err := s.files.Delete(ctx, sess.UserID, sess.fileID); err != nil {
		s.logger.Warn("failed to delete archived upload",
			slog.String("session_id", sess.ID.String()),
			slog.Any("error", err))
	}
}

// ConfirmMapping validates and stores the user's column mapping, and saves
// it as a template for files with the same headers. Duplicate fields,
// foreign fields and out-of-range columns are rejected; missing required
// fields are reported in the snapshot and surface again per row.
func (s *ImportService) ConfirmMapping(ctx context.Context, userID, sessionID uuid.UUID, importType model.ImportType, mappings []model.ColumnMapping) (snap *Snapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "import.ConfirmMapping", trace.WithAttributes(
		attribute.String("import.type", string(importType)),
	))
	defer func() { endSpan(span, err) }()

	sess, err := s.session(userID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.wizard.State() != wizard.StateAwaitingMapping {
		return nil, fmt.Errorf("%w: mapping can only be confirmed while awaiting it", wizard.ErrInvalidTransition)
	}
	v := analyzer.ValidateMappings(importType, mappings, len(sess.table.Headers))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("invalid mappings: %w", err)
	}
	if err := sess.wizard.ConfirmMapping(importType, mappings); err != nil {
		return nil, err
	}
	sess.validation = v
	sess.prepared = nil
	sess.result = nil

	_, err = s.store.SaveTemplate(ctx, repository.MappingTemplate{
		UserID:      userID,
		Fingerprint: sess.analysis.Fingerprint,
		ImportType:  importType,
		Mappings:    mappings,
	})
	if err != nil {
		s.logger.Warn("failed to save mapping template",
			slog.String("session_id", sess.ID.String()),
			slog.Any("error", err))
	}

	return snapshotOf(sess), nil
}

// BackToMapping re-enters the mapping step; prepared rows are discarded.
func (s *ImportService) BackToMapping(userID, sessionID uuid.UUID) (*Snapshot, error) {
	sess, err := s.session(userID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.wizard.BackToMapping(); err != nil {
		return nil, err
	}
	sess.prepared = nil
	return snapshotOf(sess), nil
}

// SetDestination records the type mode and default ids, then prepares
// every row. The user's categories, accounts and cards are loaded once per
// session. It may be called again from the confirmation step.
func (s *ImportService) SetDestination(ctx context.Context, userID, sessionID uuid.UUID, dest Destination) (snap *Snapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "import.SetDestination", trace.WithAttributes(
		attribute.String("import.mode", string(dest.Mode)),
	))
	defer func() { endSpan(span, err) }()

	if dest.Mode == "" {
		dest.Mode = model.ModeAuto
	}
	if !dest.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, dest.Mode)
	}

	sess, err := s.session(userID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.wizard.State() == wizard.StateAwaitingConfirmation {
		if err := sess.wizard.BackToDestination(); err != nil {
			return nil, err
		}
	}
	cfg := sess.wizard.Config().
		WithMode(dest.Mode).
		WithDefaultAccount(dest.AccountID).
		WithDefaultCard(dest.CardID).
		WithDefaultCategory(dest.CategoryID)
	if err := sess.wizard.StartPreparing(cfg); err != nil {
		return nil, err
	}

	data, err := s.prepare(ctx, sess, cfg)
	if err != nil {
		_ = sess.wizard.BackToDestination()
		return nil, err
	}
	sess.prepared = data
	sess.result = nil
	if err := sess.wizard.Prepared(); err != nil {
		return nil, err
	}
	s.metrics.ObservePrepared(string(cfg.ImportType), data.ValidItems, data.InvalidItems)

	s.logger.Info("rows prepared",
		slog.String("session_id", sess.ID.String()),
		slog.String("import_type", string(cfg.ImportType)),
		slog.Int("valid", data.ValidItems),
		slog.Int("invalid", data.InvalidItems))

	return snapshotOf(sess), nil
}

func (s *ImportService) prepare(ctx context.Context, sess *Session, cfg wizard.Config) (*model.PreparedImportData, error) {
	if sess.lookups == nil {
		lookups, err := lookup.Load(ctx, s.store, sess.UserID)
		if err != nil {
			return nil, err
		}
		sess.lookups = lookups

		categories, accounts, cards := lookups.Sizes()
		s.logger.Debug("lookup context loaded",
			slog.String("session_id", sess.ID.String()),
			slog.Int("categories", categories),
			slog.Int("accounts", accounts),
			slog.Int("cards", cards))
	}
	return preparer.New(sess.lookups, s.logger).Prepare(ctx, sess.table, preparer.Options{
		ImportType: cfg.ImportType,
		Mappings:   cfg.Mappings,
		Mode:       cfg.Mode,
		AccountID:  cfg.DefaultAccountID,
		CardID:     cfg.DefaultCardID,
		CategoryID: cfg.DefaultCategoryID,
	})
}

// SetSelection toggles which prepared items will be imported.
func (s *ImportService) SetSelection(userID, sessionID uuid.UUID, sel Selection) (*Snapshot, error) {
	sess, err := s.session(userID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.wizard.State() != wizard.StateAwaitingConfirmation || sess.prepared == nil {
		return nil, fmt.Errorf("%w: selection needs prepared rows", wizard.ErrInvalidTransition)
	}

	items := sess.prepared.Items
	if sel.All {
		for i := range items {
			items[i].Selected = sel.Selected
		}
		return snapshotOf(sess), nil
	}

	for _, id := range sel.ItemIDs {
		if id < 0 || id >= len(items) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownItem, id)
		}
	}
	for _, id := range sel.ItemIDs {
		items[id].Selected = sel.Selected
	}
	return snapshotOf(sess), nil
}

// Execute persists every selected valid item. It runs detached from ctx's
// cancellation so a dropped connection does not stop it halfway; Cancel
// does. A store failure on one item is recorded and the next is attempted.
func (s *ImportService) Execute(ctx context.Context, userID, sessionID uuid.UUID) (snap *Snapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "import.Execute")
	defer func() { endSpan(span, err) }()

	sess, err := s.session(userID, sessionID)
	if err != nil {
		return nil, err
	}

	runCtx, cfg, data, err := s.beginImport(ctx, sess)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("import.type", string(cfg.ImportType)),
		attribute.Int("import.eligible", data.Eligible()),
	)

	exec := executor.New(s.store, s.logger).WithProgress(func(done, total int) {
		sess.done.Store(int64(done))
		sess.total.Store(int64(total))
	})
	result, runErr := exec.Execute(runCtx, userID, cfg.ImportType, data)
	sess.stop()
	sess.setCancel(nil)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.result = result
	if result != nil {
		s.metrics.ObserveImport(string(cfg.ImportType), result.Imported, result.Failed, result.Skipped)
	}

	switch {
	case runErr == nil:
		_ = sess.wizard.Completed()
	case errors.Is(runErr, context.Canceled):
		err = ErrCancelled
		_ = sess.wizard.Fail(err)
	default:
		err = runErr
		_ = sess.wizard.Fail(err)
	}
	return snapshotOf(sess), err
}

func (s *ImportService) beginImport(ctx context.Context, sess *Session) (context.Context, wizard.Config, *model.PreparedImportData, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.prepared != nil && sess.wizard.State() == wizard.StateAwaitingConfirmation && sess.prepared.Eligible() == 0 {
		return nil, wizard.Config{}, nil, ErrNothingToImport
	}
	if err := sess.wizard.StartImport(); err != nil {
		return nil, wizard.Config{}, nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess.setCancel(cancel)
	sess.done.Store(0)
	sess.total.Store(int64(sess.prepared.Eligible()))
	return runCtx, sess.wizard.Config(), sess.prepared, nil
}

// Cancel discards the session. A running import stops before its next
// item; rows already written are kept.
func (s *ImportService) Cancel(ctx context.Context, userID, sessionID uuid.UUID) error {
	sess, err := s.session(userID, sessionID)
	if err != nil {
		return err
	}
	sess.stop()
	s.sessions.remove(sess.ID)
	sess.release()
	s.discard(ctx, sess)
	s.metrics.SetActiveSessions(s.sessions.Len())

	s.logger.Info("import session cancelled", slog.String("session_id", sess.ID.String()))
	return nil
}

// Get returns the current snapshot of a session.
func (s *ImportService) Get(userID, sessionID uuid.UUID) (*Snapshot, error) {
	sess, err := s.session(userID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return snapshotOf(sess), nil
}

// ErrorReport writes the invalid rows and failed items of a session as CSV.
func (s *ImportService) ErrorReport(userID, sessionID uuid.UUID, w io.Writer) error {
	sess, err := s.session(userID, sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	rows := report.Build(sess.prepared, sess.result)
	sess.mu.Unlock()
	return report.WriteCSV(w, rows)
}

// SweepExpired drops idle sessions and their archived uploads, then prunes
// archived files orphaned by a restart.
func (s *ImportService) SweepExpired(ctx context.Context) int {
	expired := s.sessions.expire()
	for _, sess := range expired {
		s.discard(ctx, sess)
	}
	s.metrics.SetActiveSessions(s.sessions.Len())

	if s.files != nil {
		cutoff := s.sessions.now().Add(-2 * s.sessions.ttl)
		if n, err := s.files.Prune(ctx, cutoff); err != nil {
			s.logger.Warn("failed to prune archived uploads", slog.Any("error", err))
		} else if n > 0 {
			s.logger.Info("pruned orphaned uploads", slog.Int("files", n))
		}
	}
	return len(expired)
}

func (s *ImportService) session(userID, sessionID uuid.UUID) (*Session, error) {
	sess, ok := s.sessions.get(userID, sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// snapshotOf copies the session; callers hold sess.mu.
func snapshotOf(sess *Session) *Snapshot {
	cfg := sess.wizard.Config()
	snap := &Snapshot{
		ID:              sess.ID,
		State:           sess.wizard.State(),
		Finished:        sess.wizard.State().Terminal(),
		ImportType:      cfg.ImportType,
		Mode:            cfg.Mode,
		Mappings:        cfg.Mappings,
		MissingRequired: slices.Clone(sess.validation.MissingRequired),
		Analysis:        sess.analysis,
		Result:          sess.result,
		CreatedAt:       sess.CreatedAt,
		Progress: Progress{
			Done:  int(sess.done.Load()),
			Total: int(sess.total.Load()),
		},
	}
	if sess.prepared != nil {
		prepared := *sess.prepared
		prepared.Items = slices.Clone(sess.prepared.Items)
		snap.Prepared = &prepared
		snap.Counts.Valid = prepared.ValidItems
		snap.Counts.Invalid = prepared.InvalidItems
		snap.Counts.Selected = prepared.Eligible()
	}
	if sess.result != nil {
		snap.Counts.Imported = sess.result.Imported
		snap.Counts.Failed = sess.result.Failed
		snap.Counts.Skipped = sess.result.Skipped
	}
	if err := sess.wizard.Err(); err != nil {
		snap.Error = err.Error()
	}
	return snap
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
