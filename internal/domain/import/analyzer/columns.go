package analyzer

import (
	"unicode/utf8"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
	"github.com/FACorreiaa/smart-import/internal/domain/import/normalizer"
	"github.com/FACorreiaa/smart-import/internal/domain/import/parser"
)

const (
	// sampleLimit bounds the values inspected per column.
	sampleLimit = 20
	// displaySamples is how many samples are shown to the user.
	displaySamples = 5
	// majorityRatio is the share a class needs to name the column type.
	majorityRatio = 0.7
	// categoryRatio is the distinct/total ratio under which a column is
	// treated as categorical.
	categoryRatio   = 0.3
	categoryMinRows = 5
)

// collectSamples returns up to sampleLimit non-empty cells of col.
func collectSamples(table *parser.Table, col int) []parser.Cell {
	var samples []parser.Cell
	for row := range table.Rows {
		c := table.Cell(row, col)
		if c.IsEmpty() {
			continue
		}
		samples = append(samples, c)
		if len(samples) == sampleLimit {
			break
		}
	}
	return samples
}

// DetectColumnType infers the type of a column from its samples. Date and
// number need a majority above 70%; a low-cardinality column is a category;
// anything else is text.
func DetectColumnType(samples []parser.Cell) model.ColumnType {
	if len(samples) == 0 {
		return model.ColumnUnknown
	}

	dates, numbers := 0, 0
	distinct := make(map[string]struct{}, len(samples))
	for _, c := range samples {
		distinct[normalizer.Fold(c.Text)] = struct{}{}
		switch {
		case isDateLike(c):
			dates++
		case isNumberLike(c):
			numbers++
		}
	}

	total := float64(len(samples))
	switch {
	case float64(dates)/total > majorityRatio:
		return model.ColumnDate
	case float64(numbers)/total > majorityRatio:
		return model.ColumnNumber
	case float64(len(distinct))/total < categoryRatio && len(samples) > categoryMinRows:
		return model.ColumnCategory
	}
	return model.ColumnText
}

func isDateLike(c parser.Cell) bool {
	if c.Numeric {
		return normalizer.IsSerialDate(c.Number)
	}
	return normalizer.LooksLikeDate(c.Text)
}

func isNumberLike(c parser.Cell) bool {
	if c.Numeric {
		return true
	}
	_, ok := normalizer.ParseAmount(c.Text)
	return ok
}

func averageLength(samples []parser.Cell) float64 {
	if len(samples) == 0 {
		return 0
	}
	total := 0
	for _, c := range samples {
		total += utf8.RuneCountInString(c.Text)
	}
	return float64(total) / float64(len(samples))
}

func sampleTexts(samples []parser.Cell) []string {
	n := min(len(samples), displaySamples)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = samples[i].Text
	}
	return out
}

// AnalyzeColumn profiles one column of the table.
func AnalyzeColumn(table *parser.Table, col int) model.ColumnInfo {
	name := ""
	if col < len(table.Headers) {
		name = table.Headers[col]
	}
	normalized := normalizer.NormalizeKey(name)
	samples := collectSamples(table, col)
	detected := DetectColumnType(samples)
	field := SuggestFieldForColumn(normalized, detected, averageLength(samples))

	return model.ColumnInfo{
		Index:          col,
		OriginalName:   name,
		NormalizedName: normalized,
		SampleValues:   sampleTexts(samples),
		DetectedType:   detected,
		SuggestedField: field,
		Confidence:     ScoreConfidence(normalized, field, detected),
	}
}
