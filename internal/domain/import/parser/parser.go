// Package parser extracts a raw table (headers plus rows) from uploaded
// spreadsheets, PDFs and images.
package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
	"github.com/FACorreiaa/smart-import/internal/vision"
)

// Header detection only looks at the top of the sheet.
const headerSearchRows = 10

// DefaultMaxPDFPages caps text extraction on long statements.
const DefaultMaxPDFPages = 10

var (
	ErrUnsupportedType   = errors.New("unsupported file type")
	ErrEmptyFile         = errors.New("file is empty")
	ErrNoData            = errors.New("no tabular data found")
	ErrScannedPDF        = errors.New("no extractable text in pdf")
	ErrNoTransactions    = errors.New("no transactions recognized in image")
	ErrVisionUnavailable = errors.New("document vision is not configured")
	ErrVisionFailed      = errors.New("document vision request failed")
)

// ExtractionError carries the failure reason plus observations that help
// the user understand what happened.
type ExtractionError struct {
	Reason       error
	Observations []string
	Err          error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Reason, e.Err)
	}
	return e.Reason.Error()
}

func (e *ExtractionError) Unwrap() []error {
	errs := []error{e.Reason}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func fail(reason error, err error, observations ...string) error {
	return &ExtractionError{Reason: reason, Err: err, Observations: observations}
}

// Cell is one source value. Native numbers from workbooks keep their
// numeric value so spreadsheet date serials can be told apart from text.
type Cell struct {
	Text    string
	Number  float64
	Numeric bool
}

// TextCell wraps a textual value.
func TextCell(s string) Cell {
	return Cell{Text: strings.TrimSpace(s)}
}

// NumberCell wraps a native numeric value.
func NumberCell(v float64) Cell {
	return Cell{Text: strconv.FormatFloat(v, 'f', -1, 64), Number: v, Numeric: true}
}

// IsEmpty reports whether the cell holds nothing.
func (c Cell) IsEmpty() bool {
	return !c.Numeric && c.Text == ""
}

func (c Cell) String() string {
	return c.Text
}

// Table is the raw extraction result.
type Table struct {
	Headers   []string
	Rows      [][]Cell
	HeaderRow int
	Sheet     string
	// Confidence is set when an external reader produced the table.
	Confidence   *float64
	Observations []string
}

// Cell returns the cell at row, col or an empty cell when out of range.
func (t *Table) Cell(row, col int) Cell {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return Cell{}
	}
	return t.Rows[row][col]
}

// Keys returns the headers with repeated names suffixed, so they can key a
// map: "Valor", "Valor (2)".
func (t *Table) Keys() []string {
	seen := make(map[string]int, len(t.Headers))
	out := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		seen[h]++
		if seen[h] > 1 {
			out[i] = fmt.Sprintf("%s (%d)", h, seen[h])
			continue
		}
		out[i] = h
	}
	return out
}

// RowMap returns row as header key to cell text.
func (t *Table) RowMap(row int) map[string]string {
	keys := t.Keys()
	m := make(map[string]string, len(keys))
	for c, key := range keys {
		m[key] = t.Cell(row, c).Text
	}
	return m
}

// Source is an uploaded file ready for extraction.
type Source struct {
	Name string
	Kind model.FileKind
	Data []byte
	// MIMEType is forwarded to the vision service for images.
	MIMEType string
}

// DocumentReader reads structured transactions from an image.
type DocumentReader interface {
	ReadDocument(ctx context.Context, image []byte, mimeType string) (*vision.Document, error)
}

// Extractor dispatches a Source to the matching format reader.
type Extractor struct {
	vision      DocumentReader
	maxPDFPages int
	logger      *slog.Logger
}

// NewExtractor creates an extractor without image support.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		maxPDFPages: DefaultMaxPDFPages,
		logger:      logger,
	}
}

// WithDocumentReader enables image extraction.
func (e *Extractor) WithDocumentReader(r DocumentReader) *Extractor {
	e.vision = r
	return e
}

// WithMaxPDFPages overrides how many PDF pages are read.
func (e *Extractor) WithMaxPDFPages(n int) *Extractor {
	if n > 0 {
		e.maxPDFPages = n
	}
	return e
}

// Extract produces the raw table of src.
func (e *Extractor) Extract(ctx context.Context, src Source) (*Table, error) {
	if len(src.Data) == 0 {
		return nil, fail(ErrEmptyFile, nil)
	}

	var (
		table *Table
		err   error
	)
	switch src.Kind {
	case model.KindXLSX:
		table, err = parseXLSX(src.Data)
	case model.KindXLS:
		table, err = parseXLS(src.Data)
	case model.KindCSV:
		table, err = parseCSV(src.Data)
	case model.KindPDF:
		table, err = parsePDF(src.Data, e.maxPDFPages)
	case model.KindImage:
		table, err = e.parseImage(ctx, src)
	default:
		return nil, fail(ErrUnsupportedType, nil)
	}
	if err != nil {
		e.logger.Warn("extraction failed",
			slog.String("file", src.Name),
			slog.String("kind", string(src.Kind)),
			slog.Any("error", err),
		)
		return nil, err
	}

	e.logger.Debug("table extracted",
		slog.String("file", src.Name),
		slog.String("sheet", table.Sheet),
		slog.Int("header_row", table.HeaderRow),
		slog.Int("columns", len(table.Headers)),
		slog.Int("rows", len(table.Rows)),
	)
	return table, nil
}

// buildTable locates the header row among the first rows, names missing
// headers "Coluna {n}" and keeps the non-empty rows below it.
func buildTable(sheet string, rows [][]Cell) (*Table, error) {
	headerIdx := -1
	for i := 0; i < len(rows) && i < headerSearchRows; i++ {
		if nonEmpty(rows[i]) >= 2 {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fail(ErrNoData, nil, "nenhuma linha de cabeçalho encontrada nas primeiras linhas")
	}

	width := 0
	for _, row := range rows[headerIdx:] {
		width = max(width, len(row))
	}

	headers := make([]string, width)
	for i := range headers {
		if i < len(rows[headerIdx]) && !rows[headerIdx][i].IsEmpty() {
			headers[i] = rows[headerIdx][i].Text
			continue
		}
		headers[i] = fmt.Sprintf("Coluna %d", i+1)
	}

	var data [][]Cell
	for _, row := range rows[headerIdx+1:] {
		if nonEmpty(row) == 0 {
			continue
		}
		padded := make([]Cell, width)
		copy(padded, row)
		data = append(data, padded)
	}
	if len(data) == 0 {
		return nil, fail(ErrNoData, nil, "o arquivo não possui linhas de dados abaixo do cabeçalho")
	}

	return &Table{
		Headers:   headers,
		Rows:      data,
		HeaderRow: headerIdx,
		Sheet:     sheet,
	}, nil
}

func nonEmpty(row []Cell) int {
	n := 0
	for _, c := range row {
		if !c.IsEmpty() {
			n++
		}
	}
	return n
}

func textRows(records [][]string) [][]Cell {
	rows := make([][]Cell, len(records))
	for i, rec := range records {
		row := make([]Cell, len(rec))
		for j, v := range rec {
			row[j] = TextCell(v)
		}
		rows[i] = row
	}
	return rows
}
