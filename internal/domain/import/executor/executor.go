// Package executor persists prepared import items one by one and reports
// per-item outcomes.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
	"github.com/FACorreiaa/smart-import/internal/domain/import/repository"
	"github.com/FACorreiaa/smart-import/pkg/money"
)

// ImportedMarker is appended to observacoes of every persisted row.
const ImportedMarker = "[importado]"

// UncategorizedLabel groups summary totals of items without a category.
const UncategorizedLabel = "Sem categoria"

// Store is the subset of the data store the executor writes to.
type Store interface {
	CreateTransaction(ctx context.Context, tx repository.Transaction) (uuid.UUID, error)
	CreateRecurringTransaction(ctx context.Context, tx repository.RecurringTransaction) (uuid.UUID, error)
	CreateAsset(ctx context.Context, asset repository.Asset) (uuid.UUID, error)
}

// ProgressFunc is called after each attempted item.
type ProgressFunc func(done, total int)

// Executor writes eligible items to the store.
type Executor struct {
	store    Store
	logger   *slog.Logger
	progress ProgressFunc
}

// New creates an executor.
func New(store Store, logger *slog.Logger) *Executor {
	return &Executor{store: store, logger: logger}
}

// WithProgress returns a copy of the executor that reports progress to fn.
func (e *Executor) WithProgress(fn ProgressFunc) *Executor {
	cp := *e
	cp.progress = fn
	return &cp
}

type outcome struct {
	index int
	item  *model.PreparedImportItem
	err   error
}

// Execute persists every item that is both selected and valid. A failing
// item does not stop the others. When ctx is cancelled the loop stops
// before the next item and the partial result is returned with ctx.Err();
// rows already written stay written.
func (e *Executor) Execute(ctx context.Context, userID uuid.UUID, importType model.ImportType, data *model.PreparedImportData) (*model.ImportResult, error) {
	if !importType.Valid() {
		return nil, fmt.Errorf("unknown import type %q", importType)
	}
	if data == nil {
		return nil, errors.New("no prepared data")
	}

	eligible := data.Eligible()
	outcomes := make([]outcome, 0, eligible)

	var stopErr error
	for i := range data.Items {
		item := &data.Items[i]
		if !item.Selected || !item.Valid {
			continue
		}
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}

		err := e.persist(ctx, userID, importType, item)
		if err != nil {
			e.logger.Warn("import item failed",
				slog.Int("item_index", i),
				slog.String("import_type", string(importType)),
				slog.Any("error", err))
		}
		outcomes = append(outcomes, outcome{index: i, item: item, err: err})

		if e.progress != nil {
			e.progress(len(outcomes), eligible)
		}
	}

	result := reduce(importType, len(data.Items), outcomes)

	e.logger.Info("import executed",
		slog.String("import_type", string(importType)),
		slog.Int("imported", result.Imported),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped))

	return result, stopErr
}

func (e *Executor) persist(ctx context.Context, userID uuid.UUID, importType model.ImportType, item *model.PreparedImportItem) error {
	var err error
	switch importType {
	case model.ImportTransactions:
		var tx repository.Transaction
		if tx, err = toTransaction(userID, item); err == nil {
			_, err = e.store.CreateTransaction(ctx, tx)
		}
	case model.ImportRecurring:
		var tx repository.RecurringTransaction
		if tx, err = toRecurring(userID, item); err == nil {
			_, err = e.store.CreateRecurringTransaction(ctx, tx)
		}
	case model.ImportAssets:
		var asset repository.Asset
		if asset, err = toAsset(userID, item); err == nil {
			_, err = e.store.CreateAsset(ctx, asset)
		}
	}
	return err
}

func reduce(importType model.ImportType, total int, outcomes []outcome) *model.ImportResult {
	result := &model.ImportResult{Errors: []model.ItemError{}}
	byCategory := money.NewTotals(money.BRL)
	byType := money.NewTotals(money.BRL)

	for _, o := range outcomes {
		if o.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, model.ItemError{
				ItemIndex:       o.index,
				ItemDescription: o.item.Label(),
				Error:           o.err.Error(),
			})
			continue
		}

		result.Imported++
		value := o.item.Value()

		category := o.item.Categoria
		if category == "" {
			category = UncategorizedLabel
		}
		byCategory.AddFloat(category, value)

		kind := string(o.item.Tipo)
		if importType == model.ImportAssets {
			kind = string(model.ImportAssets)
		}
		byType.AddFloat(kind, value)
	}

	result.Skipped = total - result.Imported - result.Failed
	result.Summary = model.ImportSummary{
		TotalValue: byCategory.Total().ToFloat64(),
		ByCategory: byCategory.Floats(),
		ByType:     byType.Floats(),
	}
	return result
}

func withMarker(notes string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return ImportedMarker
	}
	return notes + " " + ImportedMarker
}

func parseISO(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return &t, nil
}

func toTransaction(userID uuid.UUID, item *model.PreparedImportItem) (repository.Transaction, error) {
	date, err := parseISO(item.Data)
	if err != nil {
		return repository.Transaction{}, err
	}
	if date == nil || item.Valor == nil {
		return repository.Transaction{}, errors.New("item is missing date or amount")
	}
	return repository.Transaction{
		UserID:      userID,
		Data:        *date,
		Descricao:   item.Descricao,
		Valor:       *item.Valor,
		Tipo:        item.Tipo,
		CategoriaID: item.CategoriaID,
		ContaID:     item.ContaID,
		CartaoID:    item.CartaoID,
		Observacoes: withMarker(item.Observacoes),
	}, nil
}

func toRecurring(userID uuid.UUID, item *model.PreparedImportItem) (repository.RecurringTransaction, error) {
	if item.Valor == nil || item.DiaMes == nil {
		return repository.RecurringTransaction{}, errors.New("item is missing amount or day of month")
	}
	start, err := parseISO(item.DataInicio)
	if err != nil {
		return repository.RecurringTransaction{}, err
	}
	end, err := parseISO(item.DataFim)
	if err != nil {
		return repository.RecurringTransaction{}, err
	}
	return repository.RecurringTransaction{
		UserID:      userID,
		Descricao:   item.Descricao,
		Valor:       *item.Valor,
		Tipo:        item.Tipo,
		DiaMes:      *item.DiaMes,
		CategoriaID: item.CategoriaID,
		ContaID:     item.ContaID,
		CartaoID:    item.CartaoID,
		DataInicio:  start,
		DataFim:     end,
		Observacoes: withMarker(item.Observacoes),
	}, nil
}

func toAsset(userID uuid.UUID, item *model.PreparedImportItem) (repository.Asset, error) {
	if item.ValorAtual == nil {
		return repository.Asset{}, errors.New("item is missing current value")
	}
	acquired, err := parseISO(item.DataAquisicao)
	if err != nil {
		return repository.Asset{}, err
	}
	return repository.Asset{
		UserID:         userID,
		Nome:           item.Nome,
		Categoria:      item.Categoria,
		ValorAtual:     *item.ValorAtual,
		ValorAquisicao: item.ValorAquisicao,
		DataAquisicao:  acquired,
		Instituicao:    item.Instituicao,
		Subcategoria:   item.Subcategoria,
		Observacoes:    withMarker(item.Observacoes),
	}, nil
}
