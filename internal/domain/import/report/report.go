// Package report renders the rows a user needs to fix as a CSV download.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
)

const (
	StageValidation = "validacao"
	StageImport     = "importacao"
)

// ErrorRow is one line of the error report. Linha is 1-based and counts
// data rows only.
type ErrorRow struct {
	Linha     int    `csv:"linha"`
	Etapa     string `csv:"etapa"`
	Descricao string `csv:"descricao"`
	Erro      string `csv:"erro"`
}

// Build collects invalid rows from data and store failures from result,
// ordered by row. Either argument may be nil.
func Build(data *model.PreparedImportData, result *model.ImportResult) []ErrorRow {
	var rows []ErrorRow
	if data != nil {
		for i := range data.Items {
			item := &data.Items[i]
			if item.Valid {
				continue
			}
			rows = append(rows, ErrorRow{
				Linha:     item.ID + 1,
				Etapa:     StageValidation,
				Descricao: item.Label(),
				Erro:      strings.Join(item.ValidationErrors, " "),
			})
		}
	}
	if result != nil {
		for _, e := range result.Errors {
			rows = append(rows, ErrorRow{
				Linha:     e.ItemIndex + 1,
				Etapa:     StageImport,
				Descricao: e.ItemDescription,
				Erro:      e.Error,
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Linha < rows[j].Linha })
	return rows
}

// WriteCSV writes rows with a header line to w.
func WriteCSV(w io.Writer, rows []ErrorRow) error {
	if rows == nil {
		rows = []ErrorRow{}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write error report: %w", err)
	}
	return nil
}
