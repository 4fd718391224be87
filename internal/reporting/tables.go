package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"biobank-trait-report/internal/dataset"
	"biobank-trait-report/internal/domain"
	"biobank-trait-report/internal/labels"
)

// Column headers of the statistics tables.
var (
	OverallHeader    = []string{"sex", "count", "mean", "median", "std", "min", "max"}
	StratifiedHeader = []string{"strata", "sex", "count", "mean", "median", "std", "min", "max"}
)

// OverallTable builds the display table of the overall summary rows.
func OverallTable(rows []domain.SummaryRow) *domain.Table {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, append([]string{r.Key.Sex}, statCells(r)...))
	}
	return domain.NewTable(append([]string(nil), OverallHeader...), out)
}

// StratifiedTable builds the display table of one descriptor. The strata
// column shows the stratum label; rows keep aggregation order.
func StratifiedTable(rows []domain.SummaryRow, l *labels.Labels) *domain.Table {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		strata := r.Key.Stratum
		if l != nil {
			strata = l.Text(r.Key.Stratum)
		}
		out = append(out, append([]string{strata, r.Key.Sex}, statCells(r)...))
	}
	return domain.NewTable(append([]string(nil), StratifiedHeader...), out)
}

// statCells formats count and statistics. Suppressed rows carry the
// sentinel count and NA statistics.
func statCells(r domain.SummaryRow) []string {
	cells := []string{r.CountText()}
	for _, v := range r.Stats.Values() {
		cells = append(cells, domain.FormatStat(v))
	}
	return cells
}

// RenderTSV renders a table as tab-separated text. Cells holding tabs,
// quotes or line breaks (wrapped labels) are quoted.
func RenderTSV(t *domain.Table) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Comma = '\t'

	if err := w.Write(t.Columns); err != nil {
		return "", err
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteTSV writes a table artifact under dir.
func WriteTSV(t *domain.Table, dir, name string) (domain.Artifact, error) {
	content, err := RenderTSV(t)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("render %s: %w", name, err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return domain.Artifact{}, fmt.Errorf("write %s: %w", name, err)
	}
	return domain.Artifact{Kind: domain.ArtifactTable, Name: name, Path: path}, nil
}

// ReadTSV reads a table artifact back from disk.
func ReadTSV(path string) (*domain.Table, error) {
	return dataset.Load(path, '\t')
}
