package xlsx

// InvalidIndex marks a column that is not present
const InvalidIndex = -1

// ColumnIndex identifies a column by 0-based position or by header name
type ColumnIndex struct {
	// Index is the numeric column index (0-based)
	Index *int
	// Headers are accepted header names, matched case-insensitively
	Headers []string
}

// NewNumericIndex creates a column index from a numeric position
func NewNumericIndex(index int) ColumnIndex {
	return ColumnIndex{Index: &index}
}

// NewHeaderIndex creates a column index from one or more header names
func NewHeaderIndex(headers ...string) ColumnIndex {
	return ColumnIndex{Headers: headers}
}

// IsNumeric returns true if this is a numeric index
func (c ColumnIndex) IsNumeric() bool {
	return c.Index != nil
}

// IsHeader returns true if this is a header-based index
func (c ColumnIndex) IsHeader() bool {
	return len(c.Headers) > 0
}

// Options controls how a worksheet is read
type Options struct {
	// SheetNameOrIndex selects the worksheet (string name or int index).
	// Nil selects the first sheet.
	SheetNameOrIndex any
	// HasHeader indicates the first row holds column names
	HasHeader bool
	// SkipEmptyRows drops rows whose cells are all blank
	SkipEmptyRows bool
}

// DefaultOptions returns default options
func DefaultOptions() Options {
	return Options{
		HasHeader:     true,
		SkipEmptyRows: true,
	}
}

// Row is one data row with its 1-based worksheet row number
type Row struct {
	Number int
	Cells  []string
}

// Table is a worksheet read into memory
type Table struct {
	Sheet   string
	Headers []string
	Rows    []Row
}
