package reporting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	dir := t.TempDir()
	sheets := []Sheet{
		{Name: "overall", Table: OverallTable(overallRows())},
		{Name: "site", Table: StratifiedTable(siteRows(), siteLabels(t))},
	}

	art, err := WriteWorkbook(sheets, dir, "glucose")
	require.NoError(t, err)
	assert.Equal(t, "glucose_tables.xlsx", art.Name)

	f, err := excelize.OpenFile(art.Path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"overall", "site"}, f.GetSheetList())

	v, err := f.GetCellValue("overall", "A4")
	require.NoError(t, err)
	assert.Equal(t, "ALL", v)

	v, err = f.GetCellValue("overall", "B4")
	require.NoError(t, err)
	assert.Equal(t, "4", v)

	v, err = f.GetCellValue("site", "A2")
	require.NoError(t, err)
	assert.Equal(t, "A\nN_obs=2\nN=2", v)

	v, err = f.GetCellValue("site", "C5")
	require.NoError(t, err)
	assert.Equal(t, "Nobs <20", v)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "a_b_c", sheetName("a/b:c"))
	assert.Equal(t, "sheet", sheetName(""))
	assert.Len(t, []rune(sheetName(strings.Repeat("x", 40))), maxSheetName)
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]struct{}{}

	assert.Equal(t, "overall", uniqueSheetName("overall", used))
	assert.Equal(t, "Overall_2", uniqueSheetName("Overall", used))

	long := strings.Repeat("y", maxSheetName)
	assert.Equal(t, long, uniqueSheetName(long, used))
	second := uniqueSheetName(long, used)
	assert.Len(t, second, maxSheetName)
	assert.True(t, strings.HasSuffix(second, "_2"))
}
