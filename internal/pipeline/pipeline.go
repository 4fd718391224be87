// Package pipeline runs one report build end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"biobank-trait-report/internal/compiler"
	"biobank-trait-report/internal/config"
	"biobank-trait-report/internal/dataset"
	"biobank-trait-report/internal/domain"
	"biobank-trait-report/internal/idhash"
	"biobank-trait-report/internal/labels"
	"biobank-trait-report/internal/metrics"
	"biobank-trait-report/internal/observability"
	"biobank-trait-report/internal/plotting"
	"biobank-trait-report/internal/reporting"
	"biobank-trait-report/internal/storage"
	"biobank-trait-report/internal/validation"
	"biobank-trait-report/internal/verification"
)

// Stage names used for logging and the stage duration histogram.
const (
	StageLoad      = "load"
	StageValidate  = "validate"
	StageAggregate = "aggregate"
	StageLabel     = "label"
	StageTables    = "tables"
	StagePlots     = "plots"
	StageArchive   = "archive"
	StageAssemble  = "assemble"
	StageRender    = "render"
	StageCompile   = "compile"
)

// Result describes a finished run.
type Result struct {
	RunID       string
	Biobank     domain.Biobank
	Aggregation *metrics.Result
	Sufficiency *SufficiencyResult
	Document    *reporting.Document
	Artifacts   []domain.Artifact // in the order they were written
	TexPath     string
	PDF         *domain.Artifact // nil when compilation was skipped
	Archived    bool             // false when the run was already archived or no store is set

	// Verification compares an already archived run with this computation.
	// Nil unless the run was found in the archive.
	Verification *verification.VerificationReport
}

// Pipeline orchestrates one strictly sequential report build.
type Pipeline struct {
	cfg     config.Config
	store   storage.SummaryStore // optional
	metrics *observability.Metrics
	clock   func() time.Time
	logger  *log.Logger
}

// New creates a pipeline for cfg.
func New(cfg config.Config) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		metrics: observability.NewMetrics(""),
		clock:   func() time.Time { return time.Now().UTC() },
		logger:  log.Default(),
	}
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// WithLogger sets the logger shared by every stage.
func (p *Pipeline) WithLogger(logger *log.Logger) *Pipeline {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithStore enables archiving of every summary row.
func (p *Pipeline) WithStore(store storage.SummaryStore) *Pipeline {
	p.store = store
	return p
}

// WithMetrics replaces the metrics instance.
func (p *Pipeline) WithMetrics(m *observability.Metrics) *Pipeline {
	if m != nil {
		p.metrics = m
	}
	return p
}

// Metrics returns the metrics instance the pipeline records into.
func (p *Pipeline) Metrics() *observability.Metrics {
	return p.metrics
}

// Run executes every stage in order and stops at the first fatal error.
// Outputs are written under deterministic names and overwritten on rerun.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res, err := p.run(ctx)

	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusFailure
	}
	p.metrics.RecordPipelineRun(status, p.clock())

	if p.cfg.MetricsTextfile != "" {
		if werr := p.metrics.WriteTextfile(p.cfg.MetricsTextfile); werr != nil {
			p.logger.Printf("WARN: %v", werr)
		}
	}
	return res, err
}

type loaded struct {
	table       *domain.Table
	descriptors domain.DescriptorTable
}

func (p *Pipeline) run(ctx context.Context) (*Result, error) {
	outDir, err := filepath.Abs(p.cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	measurement := p.cfg.MeasurementName
	res := &Result{}

	// 1. Load
	var in loaded
	err = p.stage(StageLoad, func() error {
		var err error
		in, err = p.load()
		return err
	})
	if err != nil {
		return nil, err
	}

	// 2. Validate
	var rows []domain.MeasurementRow
	err = p.stage(StageValidate, func() error {
		cols := p.cfg.Columns(in.descriptors.Names())
		biobank, err := validation.Validate(validation.Input{
			Data:        in.table,
			Descriptors: in.descriptors,
			Columns:     cols,
			Biobank:     p.cfg.Biobank,
		})
		if err != nil {
			return err
		}
		res.Biobank = biobank

		rows, err = dataset.Measurements(in.table, cols)
		if err != nil {
			return err
		}
		p.metrics.RecordRowsLoaded(len(rows))

		res.RunID, err = p.runID()
		return err
	})
	if err != nil {
		return nil, err
	}
	p.logger.Printf("Run %s: %d rows, %d descriptors, biobank %s",
		idhash.ShortID(res.RunID), len(rows), len(in.descriptors), res.Biobank)

	res.Sufficiency = CheckSufficiency(rows, in.descriptors.Names())
	for _, c := range res.Sufficiency.Checks {
		if !c.Pass {
			p.logger.Printf("WARN: sufficiency check %q: %s (threshold %s)", c.Name, c.Actual, c.Threshold)
		}
	}
	for _, e := range res.Sufficiency.Errors {
		p.logger.Printf("WARN: %s", e)
	}

	// 3. Aggregate every descriptor over the raw rows
	err = p.stage(StageAggregate, func() error {
		res.Aggregation = metrics.NewAggregator(res.Biobank).
			WithLogger(p.logger).
			Aggregate(rows, in.descriptors.Names())
		return nil
	})
	if err != nil {
		return nil, err
	}
	agg := res.Aggregation
	p.metrics.RecordStrata(countRows(agg), agg.SuppressedStrata(), len(agg.Warnings))

	// 4. Label per-descriptor copies of the raw table
	labelsBy := make(map[string]*labels.Labels, len(in.descriptors))
	relabeled := make(map[string]*domain.Table, len(in.descriptors))
	err = p.stage(StageLabel, func() error {
		for _, d := range in.descriptors {
			l, err := labels.Build(in.table, d.Name, p.cfg.ParticipantIDColumn)
			if err != nil {
				return err
			}
			t, err := labels.Apply(in.table, l)
			if err != nil {
				return err
			}
			labelsBy[d.Name] = l
			relabeled[d.Name] = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 5. Statistics tables and workbook
	overview := reporting.Overview{Measurement: measurement, Description: p.cfg.ValueDescription}
	sections := make([]reporting.Section, len(in.descriptors))
	err = p.stage(StageTables, func() error {
		overallTable := reporting.OverallTable(agg.Overall)
		art, err := reporting.WriteTSV(overallTable, outDir, domain.TableName(measurement, ""))
		if err != nil {
			return err
		}
		overview.Table = p.record(res, art)

		sheets := []reporting.Sheet{{Name: domain.OverallDescriptor, Table: overallTable}}
		for i, d := range in.descriptors {
			t := reporting.StratifiedTable(agg.PerDescriptor[d.Name], labelsBy[d.Name])
			art, err := reporting.WriteTSV(t, outDir, domain.TableName(measurement, d.Name))
			if err != nil {
				return err
			}
			sections[i] = reporting.Section{Descriptor: d, Table: p.record(res, art)}
			sheets = append(sheets, reporting.Sheet{Name: d.Name, Table: t})
		}

		if p.cfg.Workbook {
			art, err := reporting.WriteWorkbook(sheets, outDir, measurement)
			if err != nil {
				return err
			}
			p.record(res, art)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 6. Plots
	err = p.stage(StagePlots, func() error {
		values := make([]float64, len(rows))
		for i, r := range rows {
			values[i] = r.Value
		}
		art, err := plotting.Overall(values, measurement, res.Biobank, outDir)
		if err != nil {
			return err
		}
		overview.Plot = p.record(res, art)

		for i, d := range in.descriptors {
			facets, err := plotting.Facets(relabeled[d.Name], p.cfg.ValueColumn, labelsBy[d.Name])
			if err != nil {
				return err
			}
			art, err := plotting.Stratified(facets, measurement, d.Name, outDir)
			if err != nil {
				return err
			}
			sections[i].Plot = p.record(res, art)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 7. Archive
	if p.store != nil {
		err = p.stage(StageArchive, func() error {
			return p.archive(ctx, res, agg, labelsBy)
		})
		if err != nil {
			return nil, err
		}
	}

	// 8. Assemble
	err = p.stage(StageAssemble, func() error {
		var err error
		res.Document, err = reporting.NewAssembler().
			WithClock(p.clock).
			WithLogger(p.logger).
			Assemble(overview, sections)
		return err
	})
	if err != nil {
		return nil, err
	}

	// 9. Render
	base := strings.TrimSuffix(filepath.Base(p.cfg.OutputPath), ".pdf")
	res.TexPath = filepath.Join(outDir, base+".tex")
	err = p.stage(StageRender, func() error {
		if err := p.writeDocument(res, res.TexPath, reporting.RenderLaTeX(res.Document)); err != nil {
			return err
		}
		md := reporting.RenderMarkdown(res.Document)
		if err := p.writeDocument(res, filepath.Join(outDir, base+".md"), md); err != nil {
			return err
		}
		if p.cfg.HTMLPreview {
			html := reporting.RenderHTML(md, measurement)
			if err := p.writeDocument(res, filepath.Join(outDir, base+".html"), string(html)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 10. Compile
	if p.cfg.SkipCompile {
		p.logger.Printf("Compilation skipped, document source at %s", res.TexPath)
		return res, nil
	}
	err = p.stage(StageCompile, func() error {
		pdf, err := compiler.New(p.cfg.CompilerPath).
			WithLogger(p.logger).
			Compile(ctx, res.TexPath, outDir)
		if err != nil {
			return err
		}
		pdf, err = p.placePDF(pdf)
		if err != nil {
			return err
		}
		res.PDF = &pdf
		p.record(res, pdf)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// stage runs fn, logs its outcome and records its duration.
func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		p.logger.Printf("Stage %s failed: %v", name, err)
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (p *Pipeline) load() (loaded, error) {
	sep := p.cfg.SeparatorRune()
	table, err := dataset.Load(p.cfg.DataPath, sep)
	if err != nil {
		return loaded{}, fmt.Errorf("load data: %w", err)
	}
	descriptors, err := dataset.LoadDescriptors(p.cfg.DescriptorTablePath, sep)
	if err != nil {
		return loaded{}, fmt.Errorf("load descriptor table: %w", err)
	}
	return loaded{table: table, descriptors: descriptors}, nil
}

func (p *Pipeline) runID() (string, error) {
	dataDigest, err := idhash.FileDigest(p.cfg.DataPath)
	if err != nil {
		return "", err
	}
	descDigest, err := idhash.FileDigest(p.cfg.DescriptorTablePath)
	if err != nil {
		return "", err
	}
	return idhash.ComputeRunID(idhash.RunInputs{
		Measurement:         p.cfg.MeasurementName,
		ValueColumn:         p.cfg.ValueColumn,
		ValueDescription:    p.cfg.ValueDescription,
		SexColumn:           p.cfg.SexColumn,
		ParticipantIDColumn: p.cfg.ParticipantIDColumn,
		Biobank:             p.cfg.Biobank,
		Separator:           p.cfg.Separator,
		DataDigest:          dataDigest,
		DescriptorDigest:    descDigest,
	}), nil
}

// archive stores every summary row of the run. A run whose rows are already
// archived is not an error; its archived rows are verified against this
// computation instead.
func (p *Pipeline) archive(
	ctx context.Context,
	res *Result,
	agg *metrics.Result,
	labelsBy map[string]*labels.Labels,
) error {
	createdAt := p.clock().UnixMilli()
	records := make([]*domain.SummaryRecord, 0, countRows(agg))
	add := func(row domain.SummaryRow, label string) {
		records = append(records, domain.NewSummaryRecord(
			res.RunID, p.cfg.MeasurementName, res.Biobank, len(records), row, label, createdAt))
	}
	for _, row := range agg.Overall {
		add(row, "")
	}
	for _, d := range agg.Descriptors {
		l := labelsBy[d]
		for _, row := range agg.PerDescriptor[d] {
			add(row, l.Text(row.Key.Stratum))
		}
	}

	err := p.store.InsertBulk(ctx, records)
	if err == nil {
		res.Archived = true
		p.logger.Printf("Archived %d summary rows for run %s", len(records), idhash.ShortID(res.RunID))
		return nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("archive summary rows: %w", err)
	}

	p.logger.Printf("Run %s already archived, verifying", idhash.ShortID(res.RunID))
	report, err := verification.NewArchiveVerifier(p.store).VerifyRun(ctx, res.RunID, records)
	if err != nil {
		return err
	}
	res.Verification = report
	if !report.OK() {
		p.logger.Printf("WARN: archived run %s differs from this computation: %d divergent, %d missing, %d unexpected rows",
			idhash.ShortID(res.RunID), report.DivergentRows, len(report.Missing), len(report.Unexpected))
		for _, r := range report.Results {
			for _, d := range r.Divergences {
				p.logger.Printf("WARN: %s/%s/%s %s: archived %v, computed %v",
					r.Key.Descriptor, r.Key.Stratum, r.Key.Sex, d.Field, d.Expected, d.Actual)
			}
		}
	}
	return nil
}

func (p *Pipeline) writeDocument(res *Result, path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	p.record(res, domain.Artifact{Kind: domain.ArtifactDocument, Name: filepath.Base(path), Path: path})
	return nil
}

// placePDF moves the compiled PDF to the configured output path when it
// differs from the output directory.
func (p *Pipeline) placePDF(pdf domain.Artifact) (domain.Artifact, error) {
	target, err := filepath.Abs(p.cfg.OutputPath)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("resolve output path: %w", err)
	}
	if target == pdf.Path {
		return pdf, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return domain.Artifact{}, fmt.Errorf("create output path directory: %w", err)
	}
	if err := os.Rename(pdf.Path, target); err != nil {
		return domain.Artifact{}, fmt.Errorf("move %s: %w", pdf.Name, err)
	}
	return domain.Artifact{Kind: pdf.Kind, Name: filepath.Base(target), Path: target}, nil
}

func (p *Pipeline) record(res *Result, art domain.Artifact) domain.Artifact {
	res.Artifacts = append(res.Artifacts, art)
	p.metrics.RecordArtifact(string(art.Kind))
	return art
}

func countRows(agg *metrics.Result) int {
	n := len(agg.Overall)
	for _, rows := range agg.PerDescriptor {
		n += len(rows)
	}
	return n
}
