package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func requiredOverrides() Overrides {
	return Overrides{
		DataPath:            ptr("data.tsv"),
		MeasurementName:     ptr("LDL"),
		ValueColumn:         ptr("value"),
		ValueDescription:    ptr("LDL cholesterol, mg/dL"),
		SexColumn:           ptr("sex"),
		Biobank:             ptr("UKBB"),
		DescriptorTablePath: ptr("descriptors.tsv"),
		OutputPath:          ptr("out/ldl_report.pdf"),
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "", requiredOverrides())
	require.NoError(t, err)

	assert.Equal(t, "person_id", cfg.ParticipantIDColumn)
	assert.Equal(t, "\t", cfg.Separator)
	assert.Equal(t, '\t', cfg.SeparatorRune())
	assert.Equal(t, "pdflatex", cfg.CompilerPath)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.True(t, cfg.Workbook)
	assert.True(t, cfg.HTMLPreview)
	assert.Equal(t, filepath.Join("out", "ldl_report.tex"), cfg.TexPath())
}

func TestLoad_MissingRequired(t *testing.T) {
	o := requiredOverrides()
	o.SexColumn = nil

	_, err := Load("", "", o)
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "sex_col_name")
}

func TestLoad_OutputMustBePDF(t *testing.T) {
	o := requiredOverrides()
	o.OutputPath = ptr("report.docx")

	_, err := Load("", "", o)
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), ".pdf")
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("BIOBANK_REPORT_COMPILER", "/env/pdflatex")
	t.Setenv("BIOBANK_REPORT_PARTICIPANT_ID", "env_pid")
	t.Setenv("BIOBANK_REPORT_WORKBOOK", "false")

	file := filepath.Join(dir, "report.yaml")
	require.NoError(t, os.WriteFile(file, []byte("participant_id: file_pid\nseparator: \",\"\nmeasurement_name: FILE\n"), 0644))

	cfg, err := Load(file, "", requiredOverrides())
	require.NoError(t, err)

	assert.Equal(t, "/env/pdflatex", cfg.CompilerPath, "env applies when nothing overrides it")
	assert.Equal(t, "file_pid", cfg.ParticipantIDColumn, "file overrides env")
	assert.Equal(t, ",", cfg.Separator)
	assert.Equal(t, "LDL", cfg.MeasurementName, "flags override file")
	assert.False(t, cfg.Workbook)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "report.env")
	require.NoError(t, os.WriteFile(envFile, []byte("BIOBANK_REPORT_ARCHIVE_DSN=postgres://u:p@db:5432/reports\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("BIOBANK_REPORT_ARCHIVE_DSN") })

	cfg, err := Load("", envFile, requiredOverrides())
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/reports", cfg.ArchiveDSN)
}

func TestLoad_BadConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte("biobank: [unterminated\n"), 0644))

	_, err := Load(file, "", requiredOverrides())
	require.Error(t, err)
}

func TestDecodeSeparator(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "\t"},
		{`\t`, "\t"},
		{"tab", "\t"},
		{"comma", ","},
		{";", ";"},
		{",", ","},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DecodeSeparator(tt.in), "input %q", tt.in)
	}
}
