package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"biobank-trait-report/internal/domain"
)

const sampleTSV = "person_id\tvalue\tsex\tsite\n" +
	"p1\t1.5\tMale\tA\n" +
	"p2\t\tFemale\tB\n" +
	"p3\tNA\tFemale\t\n"

func TestRead_TabDelimited(t *testing.T) {
	tbl, err := Read(strings.NewReader(sampleTSV), '\t')
	require.NoError(t, err)

	assert.Equal(t, []string{"person_id", "value", "sex", "site"}, tbl.Columns)
	assert.Equal(t, 3, tbl.Len())
	assert.True(t, tbl.HasColumn("site"))
	assert.False(t, tbl.HasColumn("age"))
}

func TestRead_RaggedRowsRejected(t *testing.T) {
	_, err := Read(strings.NewReader("a,b\n1,2,3\n"), ',')
	require.Error(t, err)
}

func TestRead_Empty(t *testing.T) {
	_, err := Read(strings.NewReader(""), '\t')
	require.ErrorIs(t, err, ErrEmptyTable)
}

func TestLoad_CustomSeparator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("person_id;value\np1;2\n"), 0644))

	tbl, err := Load(path, ';')
	require.NoError(t, err)
	assert.Equal(t, []string{"person_id", "value"}, tbl.Columns)
	assert.Equal(t, "2", tbl.Cell(0, 1))
}

func TestLoad_Workbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"person_id", "value", "sex"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"p1", "3.25", "Male"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"p2", "4"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := Load(path, '\t')
	require.NoError(t, err)
	assert.Equal(t, []string{"person_id", "value", "sex"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "3.25", tbl.Cell(0, 1))
	assert.Equal(t, "", tbl.Cell(1, 2))
}

func TestDescriptors(t *testing.T) {
	tbl, err := Read(strings.NewReader("site\tage_group\nRecruitment site\tAge at visit\n"), '\t')
	require.NoError(t, err)

	desc, err := Descriptors(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"site", "age_group"}, desc.Names())
	assert.Equal(t, "Age at visit", desc[1].Description)
}

func TestDescriptors_RequiresSingleRow(t *testing.T) {
	tbl, err := Read(strings.NewReader("site\none\ntwo\n"), '\t')
	require.NoError(t, err)

	_, err = Descriptors(tbl)
	require.Error(t, err)
}

func TestMeasurements(t *testing.T) {
	tbl, err := Read(strings.NewReader(sampleTSV), '\t')
	require.NoError(t, err)

	rows, err := Measurements(tbl, domain.Columns{
		Value:         "value",
		Sex:           "sex",
		ParticipantID: "person_id",
		Descriptors:   []string{"site"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 1.5, rows[0].Value)
	assert.Equal(t, "A", rows[0].Descriptors["site"])
	assert.True(t, math.IsNaN(rows[1].Value))
	assert.True(t, math.IsNaN(rows[2].Value))
	assert.Equal(t, domain.MissingStratum, rows[2].Descriptors["site"])
}

func TestMeasurements_NonNumericValue(t *testing.T) {
	tbl, err := Read(strings.NewReader("person_id\tvalue\tsex\np1\thigh\tMale\n"), '\t')
	require.NoError(t, err)

	_, err = Measurements(tbl, domain.Columns{Value: "value", Sex: "sex", ParticipantID: "person_id"})

	var parseErr *ValueParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 1, parseErr.Row)
	assert.Equal(t, "high", parseErr.Raw)
}
