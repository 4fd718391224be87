// Command report builds a stratified trait report from a biobank measurement table.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"biobank-trait-report/internal/compiler"
	"biobank-trait-report/internal/config"
	"biobank-trait-report/internal/dataset"
	"biobank-trait-report/internal/domain"
	"biobank-trait-report/internal/pipeline"
	"biobank-trait-report/internal/storage/archive"
	"biobank-trait-report/internal/validation"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitInput   = 2 // configuration, schema or value errors
	exitCompile = 3
)

type options struct {
	configFile  string
	envFile     string
	useFixtures bool

	data            string
	measurementName string
	valueName       string
	valueDescriptor string
	sexColName      string
	biobank         string
	participantID   string
	descriptorTable string
	separator       string
	output          string
	outputDir       string
	compilerPath    string
	skipCompile     bool
	archiveDSN      string
	metricsTextfile string
	noWorkbook      bool
	noHTML          bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)
	cmd := newRootCommand(logger)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func newRootCommand(logger *log.Logger) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build a stratified descriptive-statistics report for one biobank trait",
		Long: `Build a stratified descriptive-statistics report for one numeric trait.

Every descriptor column named in the descriptor table gets a density plot and
a statistics table split by sex. For the AoU biobank, strata with fewer than
20 distinct participants are suppressed. The assembled LaTeX document is
compiled to the --output PDF unless --skip-compile is set.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, logger)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.data, "data", "d", "", "measurement table (delimited text or .xlsx)")
	f.StringVarP(&opts.measurementName, "measurement-name", "n", "", "trait name used in titles and file names")
	f.StringVar(&opts.valueName, "value-name", "", "column holding the numeric trait value")
	f.StringVar(&opts.valueDescriptor, "value-descriptor", "", "prose describing the trait")
	f.StringVarP(&opts.sexColName, "sex-col-name", "s", "", "column holding the sex category")
	f.StringVarP(&opts.biobank, "biobank", "b", "", "biobank identifier (AoU or UKBB)")
	f.StringVar(&opts.participantID, "participant-id", domain.DefaultParticipantIDColumn, "column holding the participant identifier")
	f.StringVar(&opts.descriptorTable, "descriptor-table", "", "table of descriptor names and descriptions")
	f.StringVar(&opts.separator, "separator", `\t`, "field delimiter of the input tables")
	f.StringVarP(&opts.output, "output", "o", "", "output PDF path")
	f.StringVar(&opts.outputDir, "output-dir", "", "directory for artifacts (default: directory of --output)")
	f.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	f.StringVar(&opts.envFile, "env-file", "", "dotenv file with BIOBANK_REPORT_* settings")
	f.StringVar(&opts.compilerPath, "compiler", config.DefaultCompilerPath, "LaTeX compiler executable")
	f.BoolVar(&opts.skipCompile, "skip-compile", false, "write the document source without compiling it")
	f.StringVar(&opts.archiveDSN, "archive-dsn", "", "archive summary rows to postgres:// or clickhouse://")
	f.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this textfile")
	f.BoolVar(&opts.noWorkbook, "no-workbook", false, "do not write the xlsx workbook")
	f.BoolVar(&opts.noHTML, "no-html", false, "do not write the HTML preview")
	f.BoolVar(&opts.useFixtures, "use-fixtures", false, "run against generated demo data")

	return cmd
}

func run(cmd *cobra.Command, opts *options, logger *log.Logger) error {
	ctx := cmd.Context()

	o := overrides(cmd, opts)
	if opts.useFixtures {
		if err := applyFixtures(&o, opts); err != nil {
			return err
		}
	}

	cfg, err := config.Load(opts.configFile, opts.envFile, o)
	if err != nil {
		return err
	}

	p := pipeline.New(cfg).WithLogger(logger)

	if cfg.ArchiveDSN != "" {
		arc, err := archive.Open(ctx, cfg.ArchiveDSN)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer arc.Close()
		logger.Printf("Archiving summary rows to %s", arc.Backend)
		p = p.WithStore(arc.Store)
	}

	res, err := p.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Report %s generated:\n", cfg.MeasurementName)
	for _, art := range res.Artifacts {
		fmt.Fprintf(out, "  - [%s] %s\n", art.Kind, art.Path)
	}
	if res.PDF == nil {
		fmt.Fprintf(out, "Compilation skipped; compile %s to produce %s\n", res.TexPath, cfg.OutputPath)
	}
	return nil
}

// overrides collects only the flags set on the command line, so config
// files and the environment keep their precedence over flag defaults.
func overrides(cmd *cobra.Command, opts *options) config.Overrides {
	f := cmd.Flags()
	str := func(name string, v *string) *string {
		if f.Changed(name) {
			return v
		}
		return nil
	}
	boolean := func(name string, v bool) *bool {
		if f.Changed(name) {
			return &v
		}
		return nil
	}
	negated := func(name string, v bool) *bool {
		if f.Changed(name) {
			b := !v
			return &b
		}
		return nil
	}

	return config.Overrides{
		DataPath:            str("data", &opts.data),
		MeasurementName:     str("measurement-name", &opts.measurementName),
		ValueColumn:         str("value-name", &opts.valueName),
		ValueDescription:    str("value-descriptor", &opts.valueDescriptor),
		SexColumn:           str("sex-col-name", &opts.sexColName),
		Biobank:             str("biobank", &opts.biobank),
		ParticipantIDColumn: str("participant-id", &opts.participantID),
		DescriptorTablePath: str("descriptor-table", &opts.descriptorTable),
		Separator:           str("separator", &opts.separator),
		OutputPath:          str("output", &opts.output),
		OutputDir:           str("output-dir", &opts.outputDir),
		CompilerPath:        str("compiler", &opts.compilerPath),
		SkipCompile:         boolean("skip-compile", opts.skipCompile),
		ArchiveDSN:          str("archive-dsn", &opts.archiveDSN),
		MetricsTextfile:     str("metrics-textfile", &opts.metricsTextfile),
		Workbook:            negated("no-workbook", opts.noWorkbook),
		HTMLPreview:         negated("no-html", opts.noHTML),
	}
}

// applyFixtures writes the demo tables and fills every input setting the
// command line left unset.
func applyFixtures(o *config.Overrides, opts *options) error {
	outDir := opts.outputDir
	if outDir == "" && opts.output != "" {
		outDir = filepath.Dir(opts.output)
	}
	if outDir == "" {
		outDir = "report_output"
	}

	dataPath, descPath, err := pipeline.WriteFixtures(filepath.Join(outDir, "fixtures"))
	if err != nil {
		return err
	}

	fill := func(dst **string, v string) {
		if *dst == nil {
			*dst = &v
		}
	}
	fill(&o.DataPath, dataPath)
	fill(&o.DescriptorTablePath, descPath)
	fill(&o.MeasurementName, "glucose")
	fill(&o.ValueColumn, pipeline.FixtureValueColumn)
	fill(&o.ValueDescription, "Fasting plasma glucose in mmol/L (generated demo data).")
	fill(&o.SexColumn, pipeline.FixtureSexColumn)
	fill(&o.Biobank, domain.BiobankAoU.String())
	fill(&o.Separator, `\t`)
	fill(&o.OutputPath, filepath.Join(outDir, "glucose_report.pdf"))
	return nil
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var (
		schemaErr  *validation.SchemaError
		biobankErr *validation.UnsupportedBiobankError
		valueErr   *dataset.ValueParseError
		compileErr *compiler.CompileError
	)
	switch {
	case errors.As(err, &compileErr):
		return exitCompile
	case errors.As(err, &schemaErr), errors.As(err, &biobankErr), errors.As(err, &valueErr),
		errors.Is(err, config.ErrInvalid):
		return exitInput
	}
	return exitFailure
}
