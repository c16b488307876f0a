package xlsx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadTable(t *testing.T) {
	content := workbook(t, "Periods", [][]any{
		{"Season", "Period", "Start"},
		{"Summer", "Peak", "14:00"},
		{},
		{"Summer", "Off-Peak", "20:00"},
	})

	table, err := Read(content, Options{SheetNameOrIndex: "periods", HasHeader: true, SkipEmptyRows: true})
	require.NoError(t, err)
	assert.Equal(t, "Periods", table.Sheet)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 4, table.Rows[1].Number)

	period := table.Column(NewHeaderIndex("name", "period"))
	assert.Equal(t, 1, period)
	assert.Equal(t, "Off-Peak", table.Rows[1].Value(period))
	assert.Equal(t, InvalidIndex, table.Column(NewHeaderIndex("missing")))
	assert.Equal(t, "", table.Rows[0].Value(InvalidIndex))
}

func TestReadMissingSheet(t *testing.T) {
	content := workbook(t, "Periods", [][]any{{"a"}})
	_, err := Read(content, Options{SheetNameOrIndex: "Tariff"})
	assert.ErrorContains(t, err, "not found")

	_, err = Read([]byte("not a workbook"), DefaultOptions())
	assert.Error(t, err)
}

func TestTimeOfDay(t *testing.T) {
	assert.Equal(t, "14:00", TimeOfDay("14:00"))
	assert.Equal(t, "12:00", TimeOfDay("0.5"))
	assert.Equal(t, "07:30", TimeOfDay("0.3125"))
	assert.Equal(t, "24:00", TimeOfDay("1"))
	assert.Equal(t, "soon", TimeOfDay("soon"))
}
