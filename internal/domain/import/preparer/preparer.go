// Package preparer applies confirmed column mappings to every extracted row,
// coercing values into the target schema and validating each row.
package preparer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/FACorreiaa/smart-import/internal/domain/import/analyzer"
	"github.com/FACorreiaa/smart-import/internal/domain/import/lookup"
	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
	"github.com/FACorreiaa/smart-import/internal/domain/import/normalizer"
	"github.com/FACorreiaa/smart-import/internal/domain/import/parser"
	"github.com/FACorreiaa/smart-import/pkg/money"
)

// Messages attached to invalid rows.
const (
	MsgInvalidDate   = "Data inválida."
	MsgInvalidAmount = "Valor inválido."
	MsgInvalidDay    = "Dia do mes inválido."

	MsgDateRequired         = "Data obrigatoria"
	MsgDescriptionRequired  = "Descricao obrigatoria"
	MsgAmountRequired       = "Valor obrigatorio"
	MsgDayOfMonthRequired   = "Dia do mes obrigatorio"
	MsgNameRequired         = "Nome obrigatorio"
	MsgCurrentValueRequired = "Valor atual obrigatorio"
)

// Options is what the user confirmed before preparation: the target, the
// mapping and the destination defaults.
type Options struct {
	ImportType model.ImportType
	Mappings   []model.ColumnMapping
	Mode       model.TypeMode
	AccountID  *uuid.UUID
	CardID     *uuid.UUID
	CategoryID *uuid.UUID
}

// Preparer turns table rows into validated import items.
type Preparer struct {
	lookups *lookup.Context
	hints   *normalizer.MerchantHinter
	logger  *slog.Logger
}

// New creates a preparer resolving names against lookups.
func New(lookups *lookup.Context, logger *slog.Logger) *Preparer {
	if lookups == nil {
		lookups = lookup.Empty()
	}
	return &Preparer{
		lookups: lookups,
		hints:   normalizer.NewMerchantHinter(),
		logger:  logger,
	}
}

// WithMerchantHints replaces the hinter used when a row has no category.
// A nil hinter disables hints.
func (p *Preparer) WithMerchantHints(h *normalizer.MerchantHinter) *Preparer {
	p.hints = h
	return p
}

// Prepare processes every row of table in order. Row problems never fail
// the call; they mark the row invalid. An error is returned only for an
// unusable mapping or a cancelled context.
func (p *Preparer) Prepare(ctx context.Context, table *parser.Table, opts Options) (*model.PreparedImportData, error) {
	if err := analyzer.ValidateMappings(opts.ImportType, opts.Mappings, len(table.Headers)).Err(); err != nil {
		return nil, fmt.Errorf("invalid mappings: %w", err)
	}
	if opts.Mode == "" {
		opts.Mode = model.ModeAuto
	}

	cols := make(map[model.Field]int, len(opts.Mappings))
	for _, m := range opts.Mappings {
		if m.Field != model.FieldIgnore {
			cols[m.Field] = m.ColumnIndex
		}
	}

	items := make([]model.PreparedImportItem, len(table.Rows))
	for row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items[row] = p.prepareRow(table, row, cols, opts)
	}

	data := Summarize(items)
	p.logger.Debug("rows prepared",
		slog.String("import_type", string(opts.ImportType)),
		slog.Int("total", data.TotalItems),
		slog.Int("valid", data.ValidItems),
		slog.Int("invalid", data.InvalidItems))
	return data, nil
}

func (p *Preparer) prepareRow(table *parser.Table, row int, cols map[model.Field]int, opts Options) model.PreparedImportItem {
	item := model.PreparedImportItem{ID: row, Raw: table.RowMap(row)}
	r := &rowReader{table: table, row: row, cols: cols, item: &item}

	switch opts.ImportType {
	case model.ImportTransactions:
		item.Data = r.date(model.FieldDate)
		p.fillMovement(r, opts)
	case model.ImportRecurring:
		item.DiaMes = r.dayOfMonth(model.FieldDayOfMonth)
		item.DataInicio = r.date(model.FieldStartDate)
		item.DataFim = r.date(model.FieldEndDate)
		p.fillMovement(r, opts)
	case model.ImportAssets:
		p.fillAsset(r, opts)
	}

	for _, req := range requirements[opts.ImportType] {
		if !req.present(&item) {
			r.fail(req.message)
		}
	}

	item.Valid = len(item.ValidationErrors) == 0
	item.Selected = item.Valid
	if item.ValidationErrors == nil {
		item.ValidationErrors = []string{}
	}
	return item
}

// fillMovement populates the fields shared by one-off and recurring
// transactions.
func (p *Preparer) fillMovement(r *rowReader, opts Options) {
	it := r.item
	it.Descricao = r.text(model.FieldDescription)
	it.Observacoes = r.text(model.FieldNotes)
	it.Categoria = r.text(model.FieldCategory)
	if it.Categoria == "" && it.Descricao != "" && p.hints != nil {
		if hint, ok := p.hints.CategoryHint(it.Descricao); ok {
			it.Categoria = hint
		}
	}
	it.CategoriaID = resolve(p.lookups.Category, it.Categoria, opts.CategoryID)
	it.ContaID = resolve(p.lookups.Account, r.text(model.FieldAccount), opts.AccountID)
	it.CartaoID = resolve(p.lookups.Card, r.text(model.FieldCard), opts.CardID)

	amount := r.amount(model.FieldAmount)
	kind, hasKind := normalizer.ParseKind(r.text(model.FieldType))
	it.Tipo = decideKind(amount, kind, hasKind, it.CartaoID != nil, opts.Mode)
	it.Valor = absolute(amount)
}

func (p *Preparer) fillAsset(r *rowReader, opts Options) {
	it := r.item
	it.Nome = r.text(model.FieldName)
	it.Categoria = r.text(model.FieldCategory)
	it.CategoriaID = resolve(p.lookups.Category, it.Categoria, opts.CategoryID)
	it.ValorAtual = absolute(r.amount(model.FieldCurrentValue))
	it.ValorAquisicao = absolute(r.amount(model.FieldAcquisitionCost))
	it.DataAquisicao = r.date(model.FieldAcquisitionDate)
	it.Instituicao = r.text(model.FieldInstitution)
	it.Subcategoria = r.text(model.FieldSubcategory)
	it.Observacoes = r.text(model.FieldNotes)
}

// decideKind picks tipo in precedence order: a target card, a fixed mode,
// the row's own type text, then the amount sign where negative is income.
func decideKind(amount *float64, kind model.TransactionKind, hasKind, toCard bool, mode model.TypeMode) model.TransactionKind {
	switch {
	case toCard:
		return model.KindCardExpense
	case mode == model.ModeIncome:
		return model.KindIncome
	case mode == model.ModeExpense:
		return model.KindExpense
	case hasKind:
		return kind
	case amount != nil && *amount < 0:
		return model.KindIncome
	}
	return model.KindExpense
}

func resolve(find func(string) (uuid.UUID, bool), name string, fallback *uuid.UUID) *uuid.UUID {
	if name != "" {
		if id, ok := find(name); ok {
			return &id
		}
	}
	if fallback == nil {
		return nil
	}
	id := *fallback
	return &id
}

func absolute(v *float64) *float64 {
	if v == nil {
		return nil
	}
	abs := *v
	if abs < 0 {
		abs = -abs
	}
	return &abs
}

type requirement struct {
	message string
	present func(*model.PreparedImportItem) bool
}

var requirements = map[model.ImportType][]requirement{
	model.ImportTransactions: {
		{MsgDateRequired, func(i *model.PreparedImportItem) bool { return i.Data != "" }},
		{MsgDescriptionRequired, func(i *model.PreparedImportItem) bool { return i.Descricao != "" }},
		{MsgAmountRequired, func(i *model.PreparedImportItem) bool { return i.Valor != nil }},
	},
	model.ImportRecurring: {
		{MsgDescriptionRequired, func(i *model.PreparedImportItem) bool { return i.Descricao != "" }},
		{MsgAmountRequired, func(i *model.PreparedImportItem) bool { return i.Valor != nil }},
		{MsgDayOfMonthRequired, func(i *model.PreparedImportItem) bool { return i.DiaMes != nil }},
	},
	model.ImportAssets: {
		{MsgNameRequired, func(i *model.PreparedImportItem) bool { return i.Nome != "" }},
		{MsgCurrentValueRequired, func(i *model.PreparedImportItem) bool { return i.ValorAtual != nil }},
	},
}

// Summarize computes the batch aggregates over items. The total value and
// the date range only count valid items.
func Summarize(items []model.PreparedImportItem) *model.PreparedImportData {
	data := &model.PreparedImportData{
		Items:      items,
		TotalItems: len(items),
		Categories: []string{},
	}

	seen := make(map[string]struct{})
	values := make([]float64, 0, len(items))
	for i := range items {
		it := &items[i]
		if it.Categoria != "" {
			if _, ok := seen[it.Categoria]; !ok {
				seen[it.Categoria] = struct{}{}
				data.Categories = append(data.Categories, it.Categoria)
			}
		}
		if !it.Valid {
			data.InvalidItems++
			continue
		}
		data.ValidItems++
		values = append(values, it.Value())

		if d := itemDate(it); d != "" {
			switch {
			case data.DateRange == nil:
				data.DateRange = &model.DateRange{Start: d, End: d}
			case d < data.DateRange.Start:
				data.DateRange.Start = d
			case d > data.DateRange.End:
				data.DateRange.End = d
			}
		}
	}
	data.TotalValue = money.Sum(values...)
	return data
}

// itemDate is the date that places an item in time. ISO dates order
// lexically.
func itemDate(it *model.PreparedImportItem) string {
	switch {
	case it.Data != "":
		return it.Data
	case it.DataInicio != "":
		return it.DataInicio
	}
	return it.DataAquisicao
}
