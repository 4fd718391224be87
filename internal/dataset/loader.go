// Package dataset loads input tables and projects them into measurement rows.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"biobank-trait-report/internal/domain"
)

// ErrEmptyTable is returned when a table has no header row.
var ErrEmptyTable = errors.New("table has no header row")

// Load reads a delimited text table, or the first sheet of an .xlsx workbook.
func Load(path string, sep rune) (*domain.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return loadWorkbook(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	t, err := Read(f, sep)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}
	return t, nil
}

// Read parses a delimited table with a header row.
func Read(r io.Reader, sep rune) (*domain.Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return fromRecords(records)
}

// loadWorkbook reads the first sheet of an Excel workbook.
func loadWorkbook(path string) (*domain.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("read workbook %s: %w", path, ErrEmptyTable)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	// GetRows trims trailing empty cells; pad rows to the header width
	if len(rows) > 0 {
		width := len(rows[0])
		for i := 1; i < len(rows); i++ {
			for len(rows[i]) < width {
				rows[i] = append(rows[i], "")
			}
		}
	}

	t, err := fromRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("read workbook %s: %w", path, err)
	}
	return t, nil
}

func fromRecords(records [][]string) (*domain.Table, error) {
	if len(records) == 0 {
		return nil, ErrEmptyTable
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	// Byte order mark left by spreadsheet exports
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	return domain.NewTable(header, records[1:]), nil
}
