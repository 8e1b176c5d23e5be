package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// parseXLSX reads the sheet with the most rows. Raw cell values are kept so
// dates surface as serial numbers.
func parseXLSX(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fail(ErrNoData, fmt.Errorf("failed to open xlsx: %w", err))
	}
	defer f.Close()

	sheet, records := "", [][]string(nil)
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			continue
		}
		if len(rows) > len(records) {
			sheet, records = name, rows
		}
	}
	if len(records) == 0 {
		return nil, fail(ErrNoData, nil, "nenhuma planilha com dados")
	}

	rows := make([][]Cell, len(records))
	for r, rec := range records {
		row := make([]Cell, len(rec))
		for c, v := range rec {
			row[c] = xlsxCell(f, sheet, r, c, v)
		}
		rows[r] = row
	}

	return buildTable(sheet, rows)
}

func xlsxCell(f *excelize.File, sheet string, row, col int, raw string) Cell {
	if strings.TrimSpace(raw) == "" {
		return Cell{}
	}
	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return TextCell(raw)
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return TextCell(raw)
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeBool, excelize.CellTypeError, excelize.CellTypeDate:
		return TextCell(raw)
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return NumberCell(v)
	}
	return TextCell(raw)
}

// parseXLS reads legacy BIFF workbooks. The reader renders values as text,
// so plain numerals are promoted back to numbers.
func parseXLS(data []byte) (table *Table, err error) {
	defer func() {
		// The BIFF reader panics on some truncated files.
		if r := recover(); r != nil {
			table, err = nil, fail(ErrNoData, fmt.Errorf("failed to read xls: %v", r))
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fail(ErrNoData, fmt.Errorf("failed to open xls: %w", err))
	}

	var (
		sheetName string
		best      [][]Cell
	)
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		var rows [][]Cell
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]Cell, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, xlsCell(row.Col(c)))
			}
			rows = append(rows, cells)
		}
		if len(rows) > len(best) {
			sheetName, best = sheet.Name, rows
		}
	}
	if len(best) == 0 {
		return nil, fail(ErrNoData, nil, "nenhuma planilha com dados")
	}

	return buildTable(sheetName, best)
}

func xlsCell(raw string) Cell {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Cell{}
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return NumberCell(v)
	}
	return TextCell(raw)
}
