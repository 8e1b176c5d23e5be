package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
	"github.com/FACorreiaa/smart-import/internal/domain/import/repository"
)

// fakeStore records inserts and fails on the descriptions listed in failOn.
type fakeStore struct {
	failOn     map[string]error
	txs        []repository.Transaction
	recurring  []repository.RecurringTransaction
	assets     []repository.Asset
	afterWrite func()
}

func (f *fakeStore) fail(label string) error {
	if f.afterWrite != nil {
		defer f.afterWrite()
	}
	return f.failOn[label]
}

func (f *fakeStore) CreateTransaction(_ context.Context, tx repository.Transaction) (uuid.UUID, error) {
	if err := f.fail(tx.Descricao); err != nil {
		return uuid.Nil, err
	}
	f.txs = append(f.txs, tx)
	return uuid.New(), nil
}

func (f *fakeStore) CreateRecurringTransaction(_ context.Context, tx repository.RecurringTransaction) (uuid.UUID, error) {
	if err := f.fail(tx.Descricao); err != nil {
		return uuid.Nil, err
	}
	f.recurring = append(f.recurring, tx)
	return uuid.New(), nil
}

func (f *fakeStore) CreateAsset(_ context.Context, asset repository.Asset) (uuid.UUID, error) {
	if err := f.fail(asset.Nome); err != nil {
		return uuid.Nil, err
	}
	f.assets = append(f.assets, asset)
	return uuid.New(), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func movement(id int, date, desc string, value float64, kind model.TransactionKind, category string) model.PreparedImportItem {
	return model.PreparedImportItem{
		ID:               id,
		Selected:         true,
		Valid:            true,
		ValidationErrors: []string{},
		Data:             date,
		Descricao:        desc,
		Valor:            ptr(value),
		Tipo:             kind,
		Categoria:        category,
	}
}

func fiveTransactions() *model.PreparedImportData {
	return &model.PreparedImportData{
		Items: []model.PreparedImportItem{
			movement(0, "2024-03-01", "Supermercado Extra", 120.50, model.KindExpense, "Mercado"),
			movement(1, "2024-03-02", "Uber", 23.90, model.KindExpense, "Transporte"),
			movement(2, "2024-03-03", "Farmacia", 45.00, model.KindExpense, "Saude"),
			movement(3, "2024-03-05", "Salario", 5000.00, model.KindIncome, ""),
			movement(4, "2024-03-06", "Padaria", 12.30, model.KindExpense, "Mercado"),
		},
		TotalItems: 5,
		ValidItems: 5,
	}
}

func TestExecute_PartialFailure(t *testing.T) {
	store := &fakeStore{failOn: map[string]error{"Farmacia": errors.New("insert rejected")}}
	exec := New(store, testLogger())

	result, err := exec.Execute(context.Background(), uuid.New(), model.ImportTransactions, fiveTransactions())
	require.NoError(t, err)

	assert.Equal(t, 4, result.Imported)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].ItemIndex)
	assert.Equal(t, "Farmacia", result.Errors[0].ItemDescription)
	assert.Contains(t, result.Errors[0].Error, "insert rejected")

	// Items after the failure were still attempted.
	require.Len(t, store.txs, 4)
	assert.Equal(t, "Padaria", store.txs[3].Descricao)
}

func TestExecute_SummaryAndMarker(t *testing.T) {
	store := &fakeStore{}
	exec := New(store, testLogger())
	userID := uuid.New()

	result, err := exec.Execute(context.Background(), userID, model.ImportTransactions, fiveTransactions())
	require.NoError(t, err)

	assert.Equal(t, 5, result.Imported)
	assert.Empty(t, result.Errors)
	assert.InDelta(t, 5201.70, result.Summary.TotalValue, 1e-9)
	assert.InDelta(t, 132.80, result.Summary.ByCategory["Mercado"], 1e-9)
	assert.InDelta(t, 5000.00, result.Summary.ByCategory[UncategorizedLabel], 1e-9)
	assert.InDelta(t, 201.70, result.Summary.ByType["despesa"], 1e-9)
	assert.InDelta(t, 5000.00, result.Summary.ByType["receita"], 1e-9)

	first := store.txs[0]
	assert.Equal(t, userID, first.UserID)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), first.Data)
	assert.Equal(t, ImportedMarker, first.Observacoes)
}

func TestExecute_SkipsUnselectedAndInvalid(t *testing.T) {
	data := fiveTransactions()
	data.Items[1].Selected = false
	data.Items[4].Valid = false
	data.Items[4].ValidationErrors = []string{"Valor inválido."}

	store := &fakeStore{}
	result, err := New(store, testLogger()).Execute(context.Background(), uuid.New(), model.ImportTransactions, data)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, len(data.Items), result.Imported+result.Failed+result.Skipped)
}

func TestExecute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &fakeStore{}
	writes := 0
	store.afterWrite = func() {
		writes++
		if writes == 2 {
			cancel()
		}
	}

	result, err := New(store, testLogger()).Execute(ctx, uuid.New(), model.ImportTransactions, fiveTransactions())
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)

	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 3, result.Skipped)
	assert.Len(t, store.txs, 2, "rows written before cancel stay written")
}

func TestExecute_Progress(t *testing.T) {
	var calls [][2]int
	exec := New(&fakeStore{}, testLogger()).WithProgress(func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})

	_, err := exec.Execute(context.Background(), uuid.New(), model.ImportTransactions, fiveTransactions())
	require.NoError(t, err)
	require.Len(t, calls, 5)
	assert.Equal(t, [2]int{5, 5}, calls[4])
}

func TestExecute_Recurring(t *testing.T) {
	item := movement(0, "", "Aluguel", 1800, model.KindExpense, "Moradia")
	item.DiaMes = ptr(5)
	item.DataInicio = "2024-01-01"
	item.Observacoes = "contrato 2024"
	data := &model.PreparedImportData{Items: []model.PreparedImportItem{item}, TotalItems: 1}

	store := &fakeStore{}
	result, err := New(store, testLogger()).Execute(context.Background(), uuid.New(), model.ImportRecurring, data)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	require.Len(t, store.recurring, 1)
	got := store.recurring[0]
	assert.Equal(t, 5, got.DiaMes)
	require.NotNil(t, got.DataInicio)
	assert.Equal(t, 2024, got.DataInicio.Year())
	assert.Nil(t, got.DataFim)
	assert.Equal(t, "contrato 2024 [importado]", got.Observacoes)
}

func TestExecute_Assets(t *testing.T) {
	data := &model.PreparedImportData{
		Items: []model.PreparedImportItem{
			{ID: 0, Selected: true, Valid: true, Nome: "PETR4", ValorAtual: ptr(3100.0), Categoria: "Ações"},
			{ID: 1, Selected: true, Valid: true, Nome: "Tesouro Selic", ValorAtual: ptr(10250.75), DataAquisicao: "2022-05-10"},
		},
		TotalItems: 2,
	}

	store := &fakeStore{}
	result, err := New(store, testLogger()).Execute(context.Background(), uuid.New(), model.ImportAssets, data)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Imported)
	assert.InDelta(t, 13350.75, result.Summary.ByType["patrimonio"], 1e-9)
	assert.InDelta(t, 10250.75, result.Summary.ByCategory[UncategorizedLabel], 1e-9)
	require.Len(t, store.assets, 2)
	require.NotNil(t, store.assets[1].DataAquisicao)
	assert.Equal(t, time.May, store.assets[1].DataAquisicao.Month())
}

func TestExecute_BadDateIsItemFailure(t *testing.T) {
	data := fiveTransactions()
	data.Items[0].Data = "15/03/2024"

	result, err := New(&fakeStore{}, testLogger()).Execute(context.Background(), uuid.New(), model.ImportTransactions, data)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Imported)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Errors[0].ItemIndex)
}

func TestExecute_Errors(t *testing.T) {
	exec := New(&fakeStore{}, testLogger())

	_, err := exec.Execute(context.Background(), uuid.New(), model.ImportType("contas"), fiveTransactions())
	assert.Error(t, err)

	_, err = exec.Execute(context.Background(), uuid.New(), model.ImportTransactions, nil)
	assert.Error(t, err)
}
