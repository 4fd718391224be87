// Package config builds the immutable report configuration.
//
// Values are layered, lowest precedence first: defaults, environment
// (BIOBANK_REPORT_*, optionally from a .env file), a YAML file, and finally
// explicit overrides from the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"biobank-trait-report/internal/domain"
)

// ErrInvalid is returned when the assembled configuration is incomplete or inconsistent.
var ErrInvalid = errors.New("invalid config")

// Environment variable prefix for all settings.
const envPrefix = "BIOBANK_REPORT_"

// Defaults.
const (
	DefaultSeparator    = "\t"
	DefaultCompilerPath = "pdflatex"
)

// Config is the complete, immutable report configuration.
// Build it once with Load and pass it by value.
type Config struct {
	DataPath            string `yaml:"data" validate:"required"`
	MeasurementName     string `yaml:"measurement_name" validate:"required"`
	ValueColumn         string `yaml:"value_name" validate:"required"`
	ValueDescription    string `yaml:"value_descriptor" validate:"required"`
	SexColumn           string `yaml:"sex_col_name" validate:"required"`
	Biobank             string `yaml:"biobank" validate:"required"`
	ParticipantIDColumn string `yaml:"participant_id" validate:"required"`
	DescriptorTablePath string `yaml:"descriptor_table" validate:"required"`
	Separator           string `yaml:"separator" validate:"required"`
	OutputPath          string `yaml:"output" validate:"required"`

	OutputDir       string `yaml:"output_dir"`
	CompilerPath    string `yaml:"compiler" validate:"required"`
	SkipCompile     bool   `yaml:"skip_compile"`
	ArchiveDSN      string `yaml:"archive_dsn"`
	MetricsTextfile string `yaml:"metrics_textfile"`
	Workbook        bool   `yaml:"workbook"`
	HTMLPreview     bool   `yaml:"html_preview"`
}

// Overrides carries explicitly set command-line values. Nil fields are unset.
type Overrides struct {
	DataPath            *string
	MeasurementName     *string
	ValueColumn         *string
	ValueDescription    *string
	SexColumn           *string
	Biobank             *string
	ParticipantIDColumn *string
	DescriptorTablePath *string
	Separator           *string
	OutputPath          *string
	OutputDir           *string
	CompilerPath        *string
	SkipCompile         *bool
	ArchiveDSN          *string
	MetricsTextfile     *string
	Workbook            *bool
	HTMLPreview         *bool
}

// Default returns a Config populated with defaults only.
func Default() Config {
	return Config{
		ParticipantIDColumn: domain.DefaultParticipantIDColumn,
		Separator:           DefaultSeparator,
		CompilerPath:        DefaultCompilerPath,
		Workbook:            true,
		HTMLPreview:         true,
	}
}

// Load builds and validates the configuration.
// configFile and envFile may be empty; a missing default .env is not an error.
func Load(configFile, envFile string, o Overrides) (Config, error) {
	cfg := Default()

	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg, os.LookupEnv)

	if configFile != "" {
		if err := applyFile(&cfg, configFile); err != nil {
			return Config{}, err
		}
	}

	applyOverrides(&cfg, o)
	cfg.Separator = DecodeSeparator(cfg.Separator)
	if cfg.OutputDir == "" && cfg.OutputPath != "" {
		cfg.OutputDir = filepath.Dir(cfg.OutputPath)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required fields and the output file extension.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s is required", ErrInvalid, yamlName(verrs[0].Field()))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !strings.HasSuffix(c.OutputPath, ".pdf") {
		return fmt.Errorf("%w: output %q must end in .pdf", ErrInvalid, c.OutputPath)
	}
	return nil
}

// Columns returns the input column set named by the configuration.
func (c Config) Columns(descriptors []string) domain.Columns {
	return domain.Columns{
		Value:         c.ValueColumn,
		Sex:           c.SexColumn,
		ParticipantID: c.ParticipantIDColumn,
		Descriptors:   descriptors,
	}
}

// TexPath returns the path of the assembled document source.
func (c Config) TexPath() string {
	return filepath.Join(c.OutputDir, strings.TrimSuffix(filepath.Base(c.OutputPath), ".pdf")+".tex")
}

// SeparatorRune returns the field delimiter as a rune.
func (c Config) SeparatorRune() rune {
	for _, r := range c.Separator {
		return r
	}
	return '\t'
}

// DecodeSeparator turns the escaped forms accepted on the command line into the delimiter.
func DecodeSeparator(sep string) string {
	switch sep {
	case "", `\t`, "tab", "TAB":
		return "\t"
	case "comma":
		return ","
	}
	return sep
}

var validate = validator.New()

func loadEnvFile(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	// Optional .env in the working directory
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(envPrefix + key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("PARTICIPANT_ID", &cfg.ParticipantIDColumn)
	str("SEPARATOR", &cfg.Separator)
	str("OUTPUT_DIR", &cfg.OutputDir)
	str("COMPILER", &cfg.CompilerPath)
	str("ARCHIVE_DSN", &cfg.ArchiveDSN)
	str("METRICS_TEXTFILE", &cfg.MetricsTextfile)
	boolean("SKIP_COMPILE", &cfg.SkipCompile)
	boolean("WORKBOOK", &cfg.Workbook)
	boolean("HTML_PREVIEW", &cfg.HTMLPreview)
}

func applyOverrides(cfg *Config, o Overrides) {
	setStr := func(src *string, dst *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(src *bool, dst *bool) {
		if src != nil {
			*dst = *src
		}
	}

	setStr(o.DataPath, &cfg.DataPath)
	setStr(o.MeasurementName, &cfg.MeasurementName)
	setStr(o.ValueColumn, &cfg.ValueColumn)
	setStr(o.ValueDescription, &cfg.ValueDescription)
	setStr(o.SexColumn, &cfg.SexColumn)
	setStr(o.Biobank, &cfg.Biobank)
	setStr(o.ParticipantIDColumn, &cfg.ParticipantIDColumn)
	setStr(o.DescriptorTablePath, &cfg.DescriptorTablePath)
	setStr(o.Separator, &cfg.Separator)
	setStr(o.OutputPath, &cfg.OutputPath)
	setStr(o.OutputDir, &cfg.OutputDir)
	setStr(o.CompilerPath, &cfg.CompilerPath)
	setBool(o.SkipCompile, &cfg.SkipCompile)
	setStr(o.ArchiveDSN, &cfg.ArchiveDSN)
	setStr(o.MetricsTextfile, &cfg.MetricsTextfile)
	setBool(o.Workbook, &cfg.Workbook)
	setBool(o.HTMLPreview, &cfg.HTMLPreview)
}

// yamlName maps a struct field name to its yaml key for error messages.
func yamlName(field string) string {
	if f, ok := configFields[field]; ok {
		return f
	}
	return field
}

var configFields = map[string]string{
	"DataPath":            "data",
	"MeasurementName":     "measurement_name",
	"ValueColumn":         "value_name",
	"ValueDescription":    "value_descriptor",
	"SexColumn":           "sex_col_name",
	"Biobank":             "biobank",
	"ParticipantIDColumn": "participant_id",
	"DescriptorTablePath": "descriptor_table",
	"Separator":           "separator",
	"OutputPath":          "output",
	"CompilerPath":        "compiler",
}
