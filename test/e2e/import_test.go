// Package e2etest drives complete import sessions through the HTTP router.
package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/smart-import/internal/domain/import/handler"
	"github.com/FACorreiaa/smart-import/internal/domain/import/lookup"
	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
	"github.com/FACorreiaa/smart-import/internal/domain/import/parser"
	"github.com/FACorreiaa/smart-import/internal/domain/import/repository"
	"github.com/FACorreiaa/smart-import/internal/domain/import/service"
	"github.com/FACorreiaa/smart-import/internal/domain/import/wizard"
	"github.com/FACorreiaa/smart-import/pkg/money"
)

type store struct {
	mu         sync.Mutex
	txs        []repository.Transaction
	recurring  []repository.RecurringTransaction
	assets     []repository.Asset
	categories []lookup.Category
}

func (s *store) ListCategories(context.Context, uuid.UUID) ([]lookup.Category, error) {
	return s.categories, nil
}

func (s *store) ListAccounts(context.Context, uuid.UUID) ([]lookup.Account, error) { return nil, nil }

func (s *store) ListCards(context.Context, uuid.UUID) ([]lookup.Card, error) { return nil, nil }

func (s *store) CreateTransaction(_ context.Context, tx repository.Transaction) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
	return uuid.New(), nil
}

func (s *store) CreateRecurringTransaction(_ context.Context, tx repository.RecurringTransaction) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recurring = append(s.recurring, tx)
	return uuid.New(), nil
}

func (s *store) CreateAsset(_ context.Context, a repository.Asset) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = append(s.assets, a)
	return uuid.New(), nil
}

func (s *store) GetTemplate(context.Context, uuid.UUID, string) (*repository.MappingTemplate, error) {
	return nil, repository.ErrNotFound
}

func (s *store) SaveTemplate(_ context.Context, tpl repository.MappingTemplate) (*repository.MappingTemplate, error) {
	return &tpl, nil
}

type client struct {
	t      *testing.T
	router http.Handler
	userID uuid.UUID
}

func newClient(t *testing.T, st *store) *client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewImportService(st, parser.NewExtractor(logger), service.NewSessionStore(time.Hour), logger)
	return &client{
		t:      t,
		router: handler.NewRouter(handler.NewImportHandler(svc, logger), handler.RouterConfig{}, logger),
		userID: uuid.New(),
	}
}

func (c *client) send(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(handler.UserIDHeader, c.userID.String())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func (c *client) upload(name string, data []byte) service.Snapshot {
	c.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(c.t, err)
	_, err = part.Write(data)
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())

	rec := c.send(http.MethodPost, "/v1/imports", &body, mw.FormDataContentType())
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	return c.decode(rec)
}

func (c *client) call(method, path string, payload any) *httptest.ResponseRecorder {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(c.t, err)
		body = bytes.NewReader(raw)
	}
	return c.send(method, path, body, "application/json")
}

func (c *client) decode(rec *httptest.ResponseRecorder) service.Snapshot {
	c.t.Helper()
	var snap service.Snapshot
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &snap), rec.Body.String())
	return snap
}

// confirm accepts the suggested mapping and the given destination mode.
func (c *client) confirm(snap service.Snapshot, mode model.TypeMode) service.Snapshot {
	c.t.Helper()
	base := "/v1/imports/" + snap.ID.String()
	rec := c.call(http.MethodPut, base+"/mapping", map[string]any{
		"import_type": snap.Analysis.SuggestedImportType,
		"mappings":    snap.Analysis.SuggestedMappings,
	})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.call(http.MethodPut, base+"/destination", map[string]any{"mode": mode})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	return c.decode(rec)
}

func TestCSVStatementImport(t *testing.T) {
	st := &store{categories: []lookup.Category{
		{ID: uuid.New(), Name: "Alimentação"},
		{ID: uuid.New(), Name: "Transporte"},
	}}
	c := newClient(t, st)

	csv := "Data;Descrição;Valor;Categoria\n" +
		"15/03/2024;Supermercado Extra;R$ 1.234,56;Alimentação\n" +
		"16/03/2024;Uber Viagem;23,90;Transporte\n" +
		"17/03/2024;Reembolso;-50,00;\n"
	snap := c.upload("extrato.csv", []byte(csv))
	assert.Equal(t, model.ImportTransactions, snap.Analysis.SuggestedImportType)
	assert.Empty(t, snap.Analysis.MissingRequired)

	snap = c.confirm(snap, model.ModeExpense)
	require.NotNil(t, snap.Prepared)
	assert.Equal(t, 3, snap.Counts.Valid)
	assert.Equal(t, "2024-03-15", snap.Prepared.Items[0].Data)
	assert.Equal(t, 1234.56, *snap.Prepared.Items[0].Valor)
	assert.NotNil(t, snap.Prepared.Items[0].CategoriaID)

	rec := c.call(http.MethodPost, "/v1/imports/"+snap.ID.String()+"/execute", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	final := c.decode(rec)
	assert.Equal(t, wizard.StateCompleted, final.State)
	assert.Equal(t, 3, final.Counts.Imported)
	assert.InDelta(t, money.Sum(1234.56, 23.90, 50), final.Result.Summary.TotalValue, 0.001)

	require.Len(t, st.txs, 3)
	for _, tx := range st.txs {
		assert.Equal(t, model.KindExpense, tx.Tipo)
		assert.Equal(t, c.userID, tx.UserID)
		assert.Contains(t, tx.Observacoes, "[importado]")
		assert.Positive(t, tx.Valor)
	}
}

func TestRecurringWithoutDayOfMonth(t *testing.T) {
	st := &store{}
	c := newClient(t, st)

	csv := "Descrição;Valor;Tipo\n" +
		"Aluguel;1.800,00;despesa\n" +
		"Internet;99,90;despesa\n"
	snap := c.upload("fixas.csv", []byte(csv))
	assert.Equal(t, model.ImportRecurring, snap.Analysis.SuggestedImportType)
	assert.Equal(t, []model.Field{model.FieldDayOfMonth}, snap.Analysis.MissingRequired)

	snap = c.confirm(snap, model.ModeAuto)
	assert.Equal(t, 0, snap.Counts.Valid)
	assert.Equal(t, 2, snap.Counts.Invalid)
	for _, item := range snap.Prepared.Items {
		assert.Contains(t, item.ValidationErrors, "Dia do mes obrigatorio")
	}

	base := "/v1/imports/" + snap.ID.String()
	rec := c.call(http.MethodPost, base+"/execute", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = c.send(http.MethodGet, base+"/report.csv", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "1,validacao,Aluguel,Dia do mes obrigatorio", lines[1])
	assert.Empty(t, st.recurring)
}

func TestXLSXAssetImport(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Ativo", "Instituição", "Valor Atual", "Valor de Aquisição"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Tesouro Selic 2029", "XP Investimentos", 10500.0, 10000.0}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"CDB Banco Inter", "Inter", 5230.10, 5000.0}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]any{"PETR4", "Clear", 3100.0, 2800.0}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	st := &store{}
	c := newClient(t, st)

	snap := c.upload("carteira.xlsx", buf.Bytes())
	assert.Equal(t, model.KindXLSX, snap.Analysis.FileType)
	assert.Equal(t, model.ImportAssets, snap.Analysis.SuggestedImportType)

	snap = c.confirm(snap, model.ModeAuto)
	assert.Equal(t, 3, snap.Counts.Valid)

	rec := c.call(http.MethodPost, "/v1/imports/"+snap.ID.String()+"/execute", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	final := c.decode(rec)
	assert.Equal(t, 3, final.Counts.Imported)
	assert.InDelta(t, 18830.10, final.Result.Summary.ByType["patrimonio"], 0.001)

	require.Len(t, st.assets, 3)
	assert.Equal(t, "Tesouro Selic 2029", st.assets[0].Nome)
	assert.Equal(t, "XP Investimentos", st.assets[0].Instituicao)
	require.NotNil(t, st.assets[0].ValorAquisicao)
	assert.Equal(t, 10000.0, *st.assets[0].ValorAquisicao)
}
