package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
)

var (
	ErrUnknownImportType = errors.New("unknown import type")
	ErrDuplicateField    = errors.New("field mapped by more than one column")
	ErrUnknownField      = errors.New("field not accepted by import type")
	ErrColumnOutOfRange  = errors.New("column index out of range")
	ErrDuplicateColumn   = errors.New("column mapped more than once")
)

// MappingValidation is the outcome of checking user-edited mappings.
// Missing required fields are warnings; everything else blocks confirmation.
type MappingValidation struct {
	MissingRequired []model.Field `json:"missing_required"`
	Duplicates      []model.Field `json:"duplicates"`
	UnknownFields   []model.Field `json:"unknown_fields"`
	OutOfRange      []int         `json:"out_of_range"`
	RepeatedColumns []int         `json:"repeated_columns"`
	unknownType     bool
}

// Err joins the blocking problems, or returns nil.
func (v MappingValidation) Err() error {
	var errs []error
	if v.unknownType {
		errs = append(errs, ErrUnknownImportType)
	}
	if len(v.Duplicates) > 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateField, joinFields(v.Duplicates)))
	}
	if len(v.UnknownFields) > 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownField, joinFields(v.UnknownFields)))
	}
	if len(v.OutOfRange) > 0 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrColumnOutOfRange, v.OutOfRange))
	}
	if len(v.RepeatedColumns) > 0 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrDuplicateColumn, v.RepeatedColumns))
	}
	return errors.Join(errs...)
}

// ValidateMappings checks mappings against the target schema and the column
// count. Each column takes one mapping, and two columns bound to the same
// non-ignorar field is an error.
func ValidateMappings(importType model.ImportType, mappings []model.ColumnMapping, columnCount int) MappingValidation {
	var v MappingValidation
	if !importType.Valid() {
		v.unknownType = true
		return v
	}

	seen := make(map[model.Field]int)
	columns := make(map[int]int)
	for _, m := range mappings {
		if m.ColumnIndex < 0 || m.ColumnIndex >= columnCount {
			v.OutOfRange = append(v.OutOfRange, m.ColumnIndex)
		}
		columns[m.ColumnIndex]++
		if columns[m.ColumnIndex] == 2 {
			v.RepeatedColumns = append(v.RepeatedColumns, m.ColumnIndex)
		}
		if m.Field == model.FieldIgnore {
			continue
		}
		if !importType.Accepts(m.Field) {
			v.UnknownFields = append(v.UnknownFields, m.Field)
			continue
		}
		seen[m.Field]++
		if seen[m.Field] == 2 {
			v.Duplicates = append(v.Duplicates, m.Field)
		}
	}

	v.MissingRequired = MissingRequired(importType, mappings)
	return v
}

func joinFields(fields []model.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
