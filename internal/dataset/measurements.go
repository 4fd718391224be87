package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"biobank-trait-report/internal/domain"
)

// ValueParseError reports a trait cell that is neither numeric nor missing.
type ValueParseError struct {
	Row    int // 1-based data row
	Column string
	Raw    string
}

func (e *ValueParseError) Error() string {
	return fmt.Sprintf("row %d: column %s: %q is not numeric", e.Row, e.Column, e.Raw)
}

// Measurements projects a validated table onto the configured columns.
// Missing trait cells become NaN; descriptor cells are normalized stratum values.
func Measurements(t *domain.Table, cols domain.Columns) ([]domain.MeasurementRow, error) {
	valueIdx, ok := t.ColumnIndex(cols.Value)
	if !ok {
		return nil, fmt.Errorf("column %s not found", cols.Value)
	}
	sexIdx, ok := t.ColumnIndex(cols.Sex)
	if !ok {
		return nil, fmt.Errorf("column %s not found", cols.Sex)
	}
	pidIdx, ok := t.ColumnIndex(cols.ParticipantID)
	if !ok {
		return nil, fmt.Errorf("column %s not found", cols.ParticipantID)
	}
	descIdx := make([]int, len(cols.Descriptors))
	for i, d := range cols.Descriptors {
		idx, ok := t.ColumnIndex(d)
		if !ok {
			return nil, fmt.Errorf("column %s not found", d)
		}
		descIdx[i] = idx
	}

	rows := make([]domain.MeasurementRow, t.Len())
	for i := range t.Rows {
		raw := t.Cell(i, valueIdx)
		value, err := ParseValue(raw)
		if err != nil {
			return nil, &ValueParseError{Row: i + 1, Column: cols.Value, Raw: raw}
		}

		descriptors := make(map[string]string, len(cols.Descriptors))
		for j, d := range cols.Descriptors {
			descriptors[d] = domain.NormalizeStratum(t.Cell(i, descIdx[j]))
		}

		rows[i] = domain.MeasurementRow{
			ParticipantID: t.Cell(i, pidIdx),
			Value:         value,
			Sex:           strings.TrimSpace(t.Cell(i, sexIdx)),
			Descriptors:   descriptors,
		}
	}
	return rows, nil
}

// ParseValue parses a trait cell. Empty and NA-like cells are missing (NaN).
func ParseValue(raw string) (float64, error) {
	v := strings.TrimSpace(raw)
	switch v {
	case "", "NA", "NaN", "nan", "<NA>", "None", "null":
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	return f, nil
}
