package analyzer

import (
	"slices"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
)

// assetSignals are fields that only make sense for net-worth assets.
var assetSignals = []model.Field{
	model.FieldName,
	model.FieldCurrentValue,
	model.FieldInstitution,
	model.FieldAcquisitionCost,
}

// ClassifyImportType chooses the target from the suggested fields:
// two or more asset signals mean patrimonio; a day-of-month column, or a
// description and amount without any date, mean recurring transactions;
// everything else is a plain transaction list.
func ClassifyImportType(fields []model.Field) model.ImportType {
	signals := 0
	for _, f := range assetSignals {
		if slices.Contains(fields, f) {
			signals++
		}
	}

	switch {
	case signals >= 2:
		return model.ImportAssets
	case slices.Contains(fields, model.FieldDayOfMonth):
		return model.ImportRecurring
	case !slices.Contains(fields, model.FieldDate) &&
		slices.Contains(fields, model.FieldDescription) &&
		slices.Contains(fields, model.FieldAmount):
		return model.ImportRecurring
	}
	return model.ImportTransactions
}

// fieldAliases translate a suggestion into the closest field of a target
// that does not accept it.
var fieldAliases = map[model.ImportType]map[model.Field]model.Field{
	model.ImportTransactions: {
		model.FieldName:            model.FieldDescription,
		model.FieldCurrentValue:    model.FieldAmount,
		model.FieldAcquisitionDate: model.FieldDate,
		model.FieldStartDate:       model.FieldDate,
	},
	model.ImportRecurring: {
		model.FieldDate:         model.FieldStartDate,
		model.FieldName:         model.FieldDescription,
		model.FieldCurrentValue: model.FieldAmount,
	},
	model.ImportAssets: {
		model.FieldDescription: model.FieldName,
		model.FieldAmount:      model.FieldCurrentValue,
		model.FieldDate:        model.FieldAcquisitionDate,
		model.FieldAccount:     model.FieldInstitution,
	},
}

// GenerateMappings builds one mapping per column for the target. Fields the
// target does not accept are aliased or ignored, and when two columns claim
// the same field the more confident one keeps it.
func GenerateMappings(columns []model.ColumnInfo, importType model.ImportType) []model.ColumnMapping {
	mappings := make([]model.ColumnMapping, len(columns))
	owner := make(map[model.Field]int)

	for i, col := range columns {
		field := col.SuggestedField
		if !importType.Accepts(field) {
			if alias, ok := fieldAliases[importType][field]; ok {
				field = alias
			} else {
				field = model.FieldIgnore
			}
		}

		mappings[i] = model.ColumnMapping{
			ColumnIndex: col.Index,
			ColumnName:  col.OriginalName,
			Field:       field,
		}
		if field == model.FieldIgnore {
			continue
		}

		prev, taken := owner[field]
		switch {
		case !taken:
			owner[field] = i
		case col.Confidence > columns[prev].Confidence:
			mappings[prev].Field = model.FieldIgnore
			owner[field] = i
		default:
			mappings[i].Field = model.FieldIgnore
		}
	}
	return mappings
}

// MissingRequired lists the required fields of the target no mapping covers.
func MissingRequired(importType model.ImportType, mappings []model.ColumnMapping) []model.Field {
	var missing []model.Field
	for _, req := range importType.RequiredFields() {
		found := slices.ContainsFunc(mappings, func(m model.ColumnMapping) bool {
			return m.Field == req
		})
		if !found {
			missing = append(missing, req)
		}
	}
	return missing
}
