package xlsx

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Read loads one worksheet from workbook bytes
func Read(content []byte, options Options) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Excel file: %w", err)
	}
	defer f.Close()

	sheetName, err := selectSheet(f, options.SheetNameOrIndex)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", sheetName, err)
	}

	table := &Table{Sheet: sheetName}
	start := 0
	if options.HasHeader && len(rows) > 0 {
		table.Headers = make([]string, len(rows[0]))
		for i, cell := range rows[0] {
			table.Headers[i] = strings.TrimSpace(cell)
		}
		start = 1
	}

	for i := start; i < len(rows); i++ {
		if options.SkipEmptyRows && isEmptyRow(rows[i]) {
			continue
		}
		table.Rows = append(table.Rows, Row{Number: i + 1, Cells: rows[i]})
	}
	return table, nil
}

// SheetNames lists the worksheets in a workbook
func SheetNames(content []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Excel file: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// selectSheet selects the appropriate sheet from the workbook
func selectSheet(f *excelize.File, sheet any) (string, error) {
	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}

	switch v := sheet.(type) {
	case nil:
		return sheetList[0], nil
	case int:
		if v < 0 || v >= len(sheetList) {
			return "", fmt.Errorf("sheet index %d not found. Workbook has %d sheets", v, len(sheetList))
		}
		return sheetList[v], nil
	case string:
		for _, name := range sheetList {
			if strings.EqualFold(name, v) {
				return name, nil
			}
		}
		return "", fmt.Errorf("sheet %q not found. Available sheets: %s", v, strings.Join(sheetList, ", "))
	default:
		return sheetList[0], nil
	}
}

// Column resolves col against the table headers, returning InvalidIndex when
// the column is absent
func (t *Table) Column(col ColumnIndex) int {
	if col.IsNumeric() {
		return *col.Index
	}
	for _, want := range col.Headers {
		want = strings.ToLower(strings.TrimSpace(want))
		for i, h := range t.Headers {
			if strings.ToLower(h) == want {
				return i
			}
		}
	}
	return InvalidIndex
}

// Value returns the trimmed cell at idx, or "" when out of range
func (r Row) Value(idx int) string {
	if idx == InvalidIndex || idx >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[idx])
}

// isEmptyRow checks if a row is empty
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// TimeOfDay normalises a cell holding a time to "HH:MM". Cells formatted as
// text pass through; raw day fractions (0.5 = 12:00) are converted.
func TimeOfDay(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.Contains(value, ":") {
		return value
	}
	frac, err := strconv.ParseFloat(value, 64)
	if err != nil || frac < 0 || frac > 1 {
		return value
	}
	minutes := int(math.Round(frac * 24 * 60))
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
