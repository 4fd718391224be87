package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biobank-trait-report/internal/compiler"
	"biobank-trait-report/internal/config"
	"biobank-trait-report/internal/domain"
	"biobank-trait-report/internal/observability"
	"biobank-trait-report/internal/reporting"
	"biobank-trait-report/internal/storage/memory"
	"biobank-trait-report/internal/validation"
)

var fixedTime = time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)

func fixtureConfig(t *testing.T, biobank domain.Biobank) config.Config {
	t.Helper()
	dir := t.TempDir()
	dataPath, descPath, err := WriteFixtures(filepath.Join(dir, "input"))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.DataPath = dataPath
	cfg.DescriptorTablePath = descPath
	cfg.MeasurementName = "glucose"
	cfg.ValueColumn = FixtureValueColumn
	cfg.ValueDescription = "Fasting plasma glucose in mmol/L."
	cfg.SexColumn = FixtureSexColumn
	cfg.Biobank = biobank.String()
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.OutputPath = filepath.Join(cfg.OutputDir, "glucose_report.pdf")
	cfg.SkipCompile = true
	return cfg
}

func newTestPipeline(cfg config.Config) *Pipeline {
	return New(cfg).
		WithClock(func() time.Time { return fixedTime }).
		WithLogger(log.New(io.Discard, "", 0))
}

func readTable(t *testing.T, path string) *domain.Table {
	t.Helper()
	table, err := reporting.ReadTSV(path)
	require.NoError(t, err)
	return table
}

func TestPipeline_UKBBEndToEnd(t *testing.T) {
	cfg := fixtureConfig(t, domain.BiobankUKBB)
	store := memory.NewSummaryStore()

	res, err := newTestPipeline(cfg).WithStore(store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.BiobankUKBB, res.Biobank)
	assert.Len(t, res.RunID, 64)
	assert.Nil(t, res.PDF)
	assert.True(t, res.Archived)

	for _, name := range []string{
		"glucose_table.tsv",
		"glucose_site_table.tsv",
		"glucose_smoking_status_table.tsv",
		"glucose_tables.xlsx",
		"glucose_distplot.png",
		"glucose_site_distplot.png",
		"glucose_smoking_status_distplot.png",
		"glucose_report.tex",
		"glucose_report.md",
		"glucose_report.html",
	} {
		assert.FileExists(t, filepath.Join(cfg.OutputDir, name))
	}
	assert.Equal(t, filepath.Join(cfg.OutputDir, "glucose_report.tex"), res.TexPath)

	// overview, then one page-broken subsection per descriptor in declared order
	var subsections []string
	for _, b := range res.Document.Blocks {
		if b.Kind == reporting.BlockSubsection {
			subsections = append(subsections, b.Text)
		}
	}
	assert.Equal(t, []string{"site", "smoking_status"}, subsections)

	site := readTable(t, filepath.Join(cfg.OutputDir, "glucose_site_table.tsv"))
	assert.Equal(t, reporting.StratifiedHeader, site.Columns)
	require.Len(t, site.Rows, 9)
	for _, row := range site.Rows {
		assert.NotEqual(t, domain.SuppressedCount, row[2])
	}
	assert.True(t, strings.HasPrefix(site.Rows[0][0], "Site A\nN_obs="))

	records, err := store.GetByRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Len(t, records, countRows(res.Aggregation))
}

func TestPipeline_AoUSuppressesSmallStrata(t *testing.T) {
	cfg := fixtureConfig(t, domain.BiobankAoU)

	res, err := newTestPipeline(cfg).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Archived)

	overall := readTable(t, filepath.Join(cfg.OutputDir, "glucose_table.tsv"))
	for _, row := range overall.Rows {
		assert.NotEqual(t, domain.SuppressedCount, row[1])
	}

	site := readTable(t, filepath.Join(cfg.OutputDir, "glucose_site_table.tsv"))
	for _, row := range site.Rows {
		if strings.HasPrefix(row[0], "Site C\n") {
			assert.Equal(t, domain.SuppressedCount, row[2])
			assert.Equal(t, []string{"NA", "NA", "NA", "NA", "NA"}, row[3:])
		} else {
			assert.NotEqual(t, domain.SuppressedCount, row[2])
		}
	}

	// the missing smoking stratum has three participants
	smoking := readTable(t, filepath.Join(cfg.OutputDir, "glucose_smoking_status_table.tsv"))
	var sawMissing bool
	for _, row := range smoking.Rows {
		if strings.HasPrefix(row[0], domain.MissingStratum+"\n") {
			sawMissing = true
			assert.Equal(t, domain.SuppressedCount, row[2])
		}
	}
	assert.True(t, sawMissing)
}

func TestPipeline_RerunIsByteIdentical(t *testing.T) {
	cfg := fixtureConfig(t, domain.BiobankAoU)
	store := memory.NewSummaryStore()

	first, err := newTestPipeline(cfg).WithStore(store).Run(context.Background())
	require.NoError(t, err)
	tables := make(map[string][]byte)
	for _, art := range first.Artifacts {
		if art.Kind == domain.ArtifactTable || art.Name == "glucose_report.tex" {
			data, err := os.ReadFile(art.Path)
			require.NoError(t, err)
			tables[art.Name] = data
		}
	}
	require.Len(t, tables, 4)

	second, err := newTestPipeline(cfg).WithStore(store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.RunID, second.RunID)
	assert.True(t, first.Archived)
	assert.False(t, second.Archived, "identical inputs are already archived")
	require.NotNil(t, second.Verification)
	assert.True(t, second.Verification.OK())
	for name, want := range tables {
		got, err := os.ReadFile(filepath.Join(cfg.OutputDir, name))
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestPipeline_MissingColumn(t *testing.T) {
	cfg := fixtureConfig(t, domain.BiobankUKBB)
	cfg.SexColumn = "gender"

	p := newTestPipeline(cfg)
	_, err := p.Run(context.Background())

	var schemaErr *validation.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "gender", schemaErr.Column)
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "glucose_table.tsv"))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().PipelineRunsTotal.WithLabelValues(observability.StatusFailure)))
}

func TestPipeline_UnsupportedBiobank(t *testing.T) {
	cfg := fixtureConfig(t, domain.BiobankUKBB)
	cfg.Biobank = "FinnGen"

	_, err := newTestPipeline(cfg).Run(context.Background())

	var bbErr *validation.UnsupportedBiobankError
	require.ErrorAs(t, err, &bbErr)
	assert.Equal(t, "FinnGen", bbErr.Biobank)
}

func TestPipeline_OptionalOutputsDisabled(t *testing.T) {
	cfg := fixtureConfig(t, domain.BiobankUKBB)
	cfg.Workbook = false
	cfg.HTMLPreview = false

	_, err := newTestPipeline(cfg).Run(context.Background())
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "glucose_tables.xlsx"))
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "glucose_report.html"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "glucose_report.md"))
}

func fakeCompiler(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script compiler stub requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fakelatex")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestPipeline_Compile(t *testing.T) {
	cfg := fixtureConfig(t, domain.BiobankUKBB)
	cfg.SkipCompile = false
	cfg.CompilerPath = fakeCompiler(t, `base=$(basename "$5" .tex)
printf '%%PDF-1.5' > "$4/$base.pdf"
`)
	cfg.MetricsTextfile = filepath.Join(t.TempDir(), "report.prom")

	res, err := newTestPipeline(cfg).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, res.PDF)
	assert.Equal(t, cfg.OutputPath, res.PDF.Path)
	assert.FileExists(t, cfg.OutputPath)

	prom, err := os.ReadFile(cfg.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `biobank_report_pipeline_runs_total{status="success"} 1`)
	assert.Contains(t, string(prom), `biobank_report_output_artifacts_written_total{kind="plot"} 3`)
}

func TestPipeline_CompileFailure(t *testing.T) {
	cfg := fixtureConfig(t, domain.BiobankUKBB)
	cfg.SkipCompile = false
	cfg.CompilerPath = fakeCompiler(t, "echo '! Undefined control sequence.'\nexit 1\n")

	_, err := newTestPipeline(cfg).Run(context.Background())

	var cerr *compiler.CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 1, cerr.ExitCode)
	assert.Contains(t, cerr.Output, "Undefined control sequence")
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "glucose_report.tex"))
}
