// Package analyzer infers column semantics of an extracted table, picks the
// import target and proposes column mappings.
package analyzer

import (
	"fmt"
	"math"
	"strings"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
	"github.com/FACorreiaa/smart-import/internal/domain/import/parser"
	"github.com/FACorreiaa/smart-import/internal/domain/import/sniffer"
)

// FileMeta describes the uploaded file being analyzed.
type FileMeta struct {
	Name string
	Kind model.FileKind
	Size int64
}

// Analyze profiles every column of table and assembles the file analysis.
// It has no side effects: the same table always yields the same analysis.
func Analyze(table *parser.Table, meta FileMeta) *model.FileAnalysis {
	columns := make([]model.ColumnInfo, len(table.Headers))
	fields := make([]model.Field, len(table.Headers))
	for i := range table.Headers {
		columns[i] = AnalyzeColumn(table, i)
		fields[i] = columns[i].SuggestedField
	}

	importType := ClassifyImportType(fields)
	mappings := GenerateMappings(columns, importType)
	missing := MissingRequired(importType, mappings)

	analysis := &model.FileAnalysis{
		FileName:            meta.Name,
		FileType:            meta.Kind,
		FileSize:            meta.Size,
		RowCount:            len(table.Rows),
		Columns:             columns,
		SampleRows:          sampleRows(table),
		SuggestedImportType: importType,
		SuggestedMappings:   mappings,
		MissingRequired:     missing,
		Confidence:          fileConfidence(columns, mappings, table.Confidence),
		Fingerprint:         sniffer.Fingerprint(table.Headers),
	}
	analysis.Observations = observations(table, analysis)
	return analysis
}

// ApplyTemplate returns a copy of analysis whose suggestions come from a
// mapping the user confirmed earlier for the same headers. Mappings that do
// not fit the columns are dropped and the original suggestion is kept.
func ApplyTemplate(analysis *model.FileAnalysis, importType model.ImportType, mappings []model.ColumnMapping) *model.FileAnalysis {
	if !importType.Valid() || len(mappings) != len(analysis.Columns) {
		return analysis
	}
	if v := ValidateMappings(importType, mappings, len(analysis.Columns)); v.Err() != nil {
		return analysis
	}

	applied := *analysis
	applied.SuggestedImportType = importType
	applied.SuggestedMappings = append([]model.ColumnMapping(nil), mappings...)
	applied.MissingRequired = MissingRequired(importType, mappings)
	applied.TemplateApplied = true
	applied.Observations = append(append([]string(nil), analysis.Observations...),
		"mapeamento salvo anteriormente aplicado")
	return &applied
}

func sampleRows(table *parser.Table) []map[string]string {
	n := min(len(table.Rows), displaySamples)
	rows := make([]map[string]string, n)
	for r := 0; r < n; r++ {
		rows[r] = table.RowMap(r)
	}
	return rows
}

// fileConfidence averages the confidence of mapped columns and blends in
// the reader's own confidence when the table came from an image.
func fileConfidence(columns []model.ColumnInfo, mappings []model.ColumnMapping, external *float64) float64 {
	sum, n := 0.0, 0
	for i, m := range mappings {
		if m.Field == model.FieldIgnore {
			continue
		}
		sum += columns[i].Confidence
		n++
	}

	score := 0.0
	if n > 0 {
		score = sum / float64(n)
	}
	if external != nil {
		if n == 0 {
			score = *external
		} else {
			score = (score + *external) / 2
		}
	}
	return math.Round(score*100) / 100
}

func observations(table *parser.Table, a *model.FileAnalysis) []string {
	obs := append([]string(nil), table.Observations...)
	if table.Sheet != "" {
		obs = append(obs, fmt.Sprintf("planilha selecionada: %s", table.Sheet))
	}
	if table.HeaderRow > 0 {
		obs = append(obs, fmt.Sprintf("cabeçalho encontrado na linha %d", table.HeaderRow+1))
	}
	obs = append(obs, fmt.Sprintf("%d linhas de dados encontradas", a.RowCount))

	ignored := 0
	for _, m := range a.SuggestedMappings {
		if m.Field == model.FieldIgnore {
			ignored++
		}
	}
	if ignored > 0 {
		obs = append(obs, fmt.Sprintf("%d colunas serão ignoradas", ignored))
	}

	if len(a.MissingRequired) > 0 {
		names := make([]string, len(a.MissingRequired))
		for i, f := range a.MissingRequired {
			names[i] = string(f)
		}
		obs = append(obs, "campos obrigatórios sem coluna: "+strings.Join(names, ", "))
	}
	return obs
}
