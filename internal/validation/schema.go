// Package validation checks input tables before any computation runs.
package validation

import (
	"fmt"

	"biobank-trait-report/internal/domain"
)

// Sources named in SchemaError.
const (
	SourceData        = "data"
	SourceDescriptors = "descriptor_table"
)

// SchemaError reports a required column missing from the input table.
type SchemaError struct {
	Column string // missing column
	Role   string // what the column is used for (value, sex, participant id, descriptor)
	Source string // table the column was expected in
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("column %s (%s) cannot be found in --%s", e.Column, e.Role, e.Source)
}

// UnsupportedBiobankError reports an unrecognized biobank identifier.
type UnsupportedBiobankError struct {
	Biobank string
}

func (e *UnsupportedBiobankError) Error() string {
	return fmt.Sprintf("biobank %s is not currently supported (expected %s or %s)",
		e.Biobank, domain.BiobankAoU, domain.BiobankUKBB)
}

// Input is everything the schema check looks at.
type Input struct {
	Data        *domain.Table
	Descriptors domain.DescriptorTable
	Columns     domain.Columns
	Biobank     string
}

// Validate confirms every configured column and every descriptor exists in
// the data table and that the biobank is supported. It has no side effects.
func Validate(in Input) (domain.Biobank, error) {
	required := []struct {
		column string
		role   string
	}{
		{in.Columns.Value, "value"},
		{in.Columns.Sex, "sex"},
		{in.Columns.ParticipantID, "participant id"},
	}
	for _, r := range required {
		if !in.Data.HasColumn(r.column) {
			return "", &SchemaError{Column: r.column, Role: r.role, Source: SourceData}
		}
	}

	for _, d := range in.Descriptors {
		if !in.Data.HasColumn(d.Name) {
			return "", &SchemaError{Column: d.Name, Role: "descriptor from --" + SourceDescriptors, Source: SourceData}
		}
	}

	biobank := domain.Biobank(in.Biobank)
	if !biobank.IsValid() {
		return "", &UnsupportedBiobankError{Biobank: in.Biobank}
	}
	return biobank, nil
}
