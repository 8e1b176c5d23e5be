// Package model holds the shared types of the smart import pipeline: file
// analysis, column mappings, prepared rows and import results.
package model

import (
	"slices"

	"github.com/google/uuid"
)

// ImportType identifies the target schema of an import.
type ImportType string

const (
	ImportTransactions ImportType = "transacoes"
	ImportRecurring    ImportType = "transacoes_fixas"
	ImportAssets       ImportType = "patrimonio"
)

// Valid reports whether t is one of the known targets.
func (t ImportType) Valid() bool {
	switch t {
	case ImportTransactions, ImportRecurring, ImportAssets:
		return true
	}
	return false
}

// FileKind is the detected kind of an uploaded file.
type FileKind string

const (
	KindPDF   FileKind = "pdf"
	KindXLSX  FileKind = "xlsx"
	KindXLS   FileKind = "xls"
	KindCSV   FileKind = "csv"
	KindImage FileKind = "image"
)

// IsSpreadsheet reports whether the kind is parsed as a workbook or CSV.
func (k FileKind) IsSpreadsheet() bool {
	return k == KindXLSX || k == KindXLS || k == KindCSV
}

// ColumnType is the inferred data type of a column.
type ColumnType string

const (
	ColumnDate     ColumnType = "date"
	ColumnNumber   ColumnType = "number"
	ColumnText     ColumnType = "text"
	ColumnCategory ColumnType = "category"
	ColumnUnknown  ColumnType = "unknown"
)

// Field is a semantic destination a column can be mapped to.
type Field string

const (
	FieldIgnore Field = "ignorar"

	// Shared between targets.
	FieldDescription Field = "descricao"
	FieldAmount      Field = "valor"
	FieldCategory    Field = "categoria"
	FieldType        Field = "tipo"
	FieldAccount     Field = "conta"
	FieldCard        Field = "cartao"
	FieldNotes       Field = "observacoes"

	// Transactions.
	FieldDate Field = "data"

	// Recurring transactions.
	FieldDayOfMonth Field = "dia_mes"
	FieldStartDate  Field = "data_inicio"
	FieldEndDate    Field = "data_fim"

	// Assets.
	FieldName            Field = "nome"
	FieldCurrentValue    Field = "valor_atual"
	FieldAcquisitionCost Field = "valor_aquisicao"
	FieldAcquisitionDate Field = "data_aquisicao"
	FieldInstitution     Field = "instituicao"
	FieldSubcategory     Field = "subcategoria"
)

var schemaFields = map[ImportType][]Field{
	ImportTransactions: {
		FieldDate, FieldDescription, FieldAmount, FieldCategory, FieldType,
		FieldAccount, FieldCard, FieldNotes, FieldIgnore,
	},
	ImportRecurring: {
		FieldDescription, FieldAmount, FieldType, FieldDayOfMonth, FieldCategory,
		FieldAccount, FieldCard, FieldStartDate, FieldEndDate, FieldNotes, FieldIgnore,
	},
	ImportAssets: {
		FieldName, FieldCategory, FieldCurrentValue, FieldAcquisitionCost,
		FieldAcquisitionDate, FieldInstitution, FieldSubcategory, FieldNotes, FieldIgnore,
	},
}

var requiredFields = map[ImportType][]Field{
	ImportTransactions: {FieldDate, FieldDescription, FieldAmount},
	ImportRecurring:    {FieldDescription, FieldAmount, FieldDayOfMonth},
	ImportAssets:       {FieldName, FieldCurrentValue},
}

// Fields returns the mappable fields of the target, ignorar included.
func (t ImportType) Fields() []Field {
	return slices.Clone(schemaFields[t])
}

// RequiredFields returns the fields a row of the target cannot omit.
func (t ImportType) RequiredFields() []Field {
	return slices.Clone(requiredFields[t])
}

// Accepts reports whether f belongs to the target schema.
func (t ImportType) Accepts(f Field) bool {
	return slices.Contains(schemaFields[t], f)
}

// TransactionKind is the sign carrier of an amount.
type TransactionKind string

const (
	KindIncome      TransactionKind = "receita"
	KindExpense     TransactionKind = "despesa"
	KindCardExpense TransactionKind = "despesa_cartao"
)

// TypeMode decides how the tipo of prepared transactions is chosen.
type TypeMode string

const (
	// ModeAuto reads tipo from the row, then from the amount sign.
	ModeAuto    TypeMode = "auto"
	ModeIncome  TypeMode = "receita"
	ModeExpense TypeMode = "despesa"
)

// Valid reports whether m is a known mode.
func (m TypeMode) Valid() bool {
	return m == ModeAuto || m == ModeIncome || m == ModeExpense
}

// ColumnInfo describes one column of the source table after analysis.
type ColumnInfo struct {
	Index          int        `json:"index"`
	OriginalName   string     `json:"original_name"`
	NormalizedName string     `json:"normalized_name"`
	SampleValues   []string   `json:"sample_values"`
	DetectedType   ColumnType `json:"detected_type"`
	SuggestedField Field      `json:"suggested_field"`
	Confidence     float64    `json:"confidence"`
}

// ColumnMapping binds a source column to a target field.
type ColumnMapping struct {
	ColumnIndex int    `json:"column_index"`
	ColumnName  string `json:"column_name"`
	Field       Field  `json:"field"`
}

// FileAnalysis is the immutable result of analyzing an uploaded file.
type FileAnalysis struct {
	FileName            string              `json:"file_name"`
	FileType            FileKind            `json:"file_type"`
	FileSize            int64               `json:"file_size"`
	RowCount            int                 `json:"row_count"`
	Columns             []ColumnInfo        `json:"columns"`
	SampleRows          []map[string]string `json:"sample_rows"`
	SuggestedImportType ImportType          `json:"suggested_import_type"`
	SuggestedMappings   []ColumnMapping     `json:"suggested_mappings"`
	MissingRequired     []Field             `json:"missing_required"`
	Confidence          float64             `json:"confidence"`
	Observations        []string            `json:"observations"`
	Fingerprint         string              `json:"fingerprint"`
	TemplateApplied     bool                `json:"template_applied"`
}

// PreparedImportItem is one coerced and validated source row. Only the
// fields of the chosen target are populated.
type PreparedImportItem struct {
	ID               int               `json:"id"`
	Selected         bool              `json:"selected"`
	Valid            bool              `json:"valid"`
	ValidationErrors []string          `json:"validation_errors"`
	Raw              map[string]string `json:"raw"`

	Data        string          `json:"data,omitempty"`
	Descricao   string          `json:"descricao,omitempty"`
	Valor       *float64        `json:"valor,omitempty"`
	Tipo        TransactionKind `json:"tipo,omitempty"`
	Categoria   string          `json:"categoria,omitempty"`
	CategoriaID *uuid.UUID      `json:"categoria_id,omitempty"`
	ContaID     *uuid.UUID      `json:"conta_id,omitempty"`
	CartaoID    *uuid.UUID      `json:"cartao_id,omitempty"`
	Observacoes string          `json:"observacoes,omitempty"`

	DiaMes     *int   `json:"dia_mes,omitempty"`
	DataInicio string `json:"data_inicio,omitempty"`
	DataFim    string `json:"data_fim,omitempty"`

	Nome           string   `json:"nome,omitempty"`
	ValorAtual     *float64 `json:"valor_atual,omitempty"`
	ValorAquisicao *float64 `json:"valor_aquisicao,omitempty"`
	DataAquisicao  string   `json:"data_aquisicao,omitempty"`
	Instituicao    string   `json:"instituicao,omitempty"`
	Subcategoria   string   `json:"subcategoria,omitempty"`
}

// Label is the human description of the item used in error reports.
func (i *PreparedImportItem) Label() string {
	if i.Nome != "" {
		return i.Nome
	}
	return i.Descricao
}

// Value is the amount counted in totals: valor_atual for assets, valor otherwise.
func (i *PreparedImportItem) Value() float64 {
	switch {
	case i.Valor != nil:
		return *i.Valor
	case i.ValorAtual != nil:
		return *i.ValorAtual
	}
	return 0
}

// DateRange is the inclusive span of dates seen in valid items.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// PreparedImportData aggregates the prepared rows of one import.
type PreparedImportData struct {
	Items        []PreparedImportItem `json:"items"`
	TotalItems   int                  `json:"total_items"`
	ValidItems   int                  `json:"valid_items"`
	InvalidItems int                  `json:"invalid_items"`
	TotalValue   float64              `json:"total_value"`
	DateRange    *DateRange           `json:"date_range,omitempty"`
	Categories   []string             `json:"categories"`
}

// Eligible counts items that will be sent to the store.
func (d *PreparedImportData) Eligible() int {
	n := 0
	for i := range d.Items {
		if d.Items[i].Selected && d.Items[i].Valid {
			n++
		}
	}
	return n
}

// ItemError records one item that the store rejected.
type ItemError struct {
	ItemIndex       int    `json:"item_index"`
	ItemDescription string `json:"item_description"`
	Error           string `json:"error"`
}

// ImportSummary holds totals of the persisted items.
type ImportSummary struct {
	TotalValue float64            `json:"total_value"`
	ByCategory map[string]float64 `json:"by_category"`
	ByType     map[string]float64 `json:"by_type"`
}

// ImportResult is the outcome of executing an import.
type ImportResult struct {
	Imported int           `json:"imported"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Errors   []ItemError   `json:"errors"`
	Summary  ImportSummary `json:"summary"`
}
