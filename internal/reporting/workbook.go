package reporting

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"biobank-trait-report/internal/domain"
)

const maxSheetName = 31

// Sheet is one worksheet of the companion workbook.
type Sheet struct {
	Name  string
	Table *domain.Table
}

// WriteWorkbook writes every statistics table into one workbook, one sheet
// per table in the given order. Numeric cells are stored as numbers.
func WriteWorkbook(sheets []Sheet, dir, measurement string) (domain.Artifact, error) {
	name := domain.WorkbookName(measurement)
	path := filepath.Join(dir, name)

	f := excelize.NewFile()
	defer f.Close()

	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("workbook style: %w", err)
	}

	used := make(map[string]struct{}, len(sheets))
	for i, s := range sheets {
		sheet := uniqueSheetName(sheetName(s.Name), used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return domain.Artifact{}, fmt.Errorf("rename sheet %s: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return domain.Artifact{}, fmt.Errorf("add sheet %s: %w", sheet, err)
		}

		if err := writeSheet(f, sheet, s.Table); err != nil {
			return domain.Artifact{}, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		if err := f.SetColStyle(sheet, "A", wrap); err != nil {
			return domain.Artifact{}, fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return domain.Artifact{}, fmt.Errorf("save %s: %w", name, err)
	}
	return domain.Artifact{Kind: domain.ArtifactWorkbook, Name: name, Path: path}, nil
}

func writeSheet(f *excelize.File, sheet string, t *domain.Table) error {
	for c, h := range t.Columns {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for r, row := range t.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			var value interface{} = v
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				value = n
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// sheetName strips characters worksheets cannot hold and truncates to the
// worksheet name limit.
func sheetName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	clean = strings.Trim(clean, "'")
	if clean == "" {
		clean = "sheet"
	}
	if runes := []rune(clean); len(runes) > maxSheetName {
		clean = string(runes[:maxSheetName])
	}
	return clean
}

func uniqueSheetName(name string, used map[string]struct{}) string {
	candidate := name
	for i := 2; ; i++ {
		key := strings.ToLower(candidate)
		if _, taken := used[key]; !taken {
			used[key] = struct{}{}
			return candidate
		}
		suffix := "_" + strconv.Itoa(i)
		runes := []rune(name)
		if len(runes)+len(suffix) > maxSheetName {
			runes = runes[:maxSheetName-len(suffix)]
		}
		candidate = string(runes) + suffix
	}
}
