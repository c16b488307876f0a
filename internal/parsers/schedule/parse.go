package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tariffsync/tariff-service/internal/parsers/xlsx"
)

// Format is a schedule file format
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks a format from the file extension, falling back to
// sniffing the content
func DetectFormat(filename string, content []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	case ".xlsx", ".xlsm":
		return FormatXLSX
	}
	trimmed := bytes.TrimSpace(content)
	switch {
	case bytes.HasPrefix(content, []byte("PK\x03\x04")):
		return FormatXLSX
	case bytes.HasPrefix(trimmed, []byte("{")):
		return FormatJSON
	}
	return FormatYAML
}

// Parse reads a schedule file in any supported format
func Parse(content []byte, filename string) (File, error) {
	switch DetectFormat(filename, content) {
	case FormatJSON:
		return ParseJSON(content)
	case FormatXLSX:
		return ParseWorkbook(content)
	default:
		return ParseYAML(content)
	}
}

// ParseYAML decodes a YAML schedule. Unknown keys are rejected.
func ParseYAML(content []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("failed to parse YAML schedule: %w", err)
	}
	return f, nil
}

// ParseJSON decodes a JSON schedule. Unknown keys are rejected.
func ParseJSON(content []byte) (File, error) {
	var f File
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("failed to parse JSON schedule: %w", err)
	}
	return f, nil
}

// MarshalYAML renders f as YAML
func MarshalYAML(f File) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Workbook sheet names
const (
	SheetTariff  = "Tariff"
	SheetPeriods = "Periods"
)

var (
	colSeason = xlsx.NewHeaderIndex("season")
	colFrom   = xlsx.NewHeaderIndex("from", "season start")
	colTo     = xlsx.NewHeaderIndex("to", "season end")
	colPeriod = xlsx.NewHeaderIndex("period", "name")
	colDays   = xlsx.NewHeaderIndex("days")
	colStart  = xlsx.NewHeaderIndex("start", "from time")
	colEnd    = xlsx.NewHeaderIndex("end", "to time")
	colBuy    = xlsx.NewHeaderIndex("buy", "energy rate", "import")
	colSell   = xlsx.NewHeaderIndex("sell", "feed-in", "export")
	colDemand = xlsx.NewHeaderIndex("demand", "demand rate")
)

// RowError is a problem on one worksheet row
type RowError struct {
	Sheet string
	Row   int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %d: %v", e.Sheet, e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ParseWorkbook reads a spreadsheet schedule. The optional Tariff sheet
// holds Field/Value pairs for the tariff identity; the Periods sheet (or
// the first sheet) holds one row per period. Season dates only need to be
// given on a season's first row.
func ParseWorkbook(content []byte) (File, error) {
	sheets, err := xlsx.SheetNames(content)
	if err != nil {
		return File{}, err
	}

	var f File
	var errs []error
	periodsSheet := any(nil)
	for _, name := range sheets {
		switch {
		case strings.EqualFold(name, SheetTariff):
			if err := readTariffSheet(content, name, &f); err != nil {
				errs = append(errs, err)
			}
		case strings.EqualFold(name, SheetPeriods):
			periodsSheet = name
		}
	}
	if periodsSheet == nil {
		for _, name := range sheets {
			if !strings.EqualFold(name, SheetTariff) {
				periodsSheet = name
				break
			}
		}
	}
	if periodsSheet == nil {
		return File{}, fmt.Errorf("workbook has no periods sheet")
	}

	table, err := xlsx.Read(content, xlsx.Options{SheetNameOrIndex: periodsSheet, HasHeader: true, SkipEmptyRows: true})
	if err != nil {
		return File{}, err
	}
	for _, required := range []xlsx.ColumnIndex{colSeason, colPeriod, colDays, colStart, colEnd, colBuy} {
		if table.Column(required) == xlsx.InvalidIndex {
			return File{}, fmt.Errorf("sheet %s: missing column %q", table.Sheet, required.Headers[0])
		}
	}

	index := make(map[string]int)
	for _, row := range table.Rows {
		name := row.Value(table.Column(colSeason))
		if name == "" {
			errs = append(errs, &RowError{Sheet: table.Sheet, Row: row.Number, Err: errors.New("season is empty")})
			continue
		}
		from, to := row.Value(table.Column(colFrom)), row.Value(table.Column(colTo))

		i, ok := index[name]
		if !ok {
			i = len(f.Seasons)
			index[name] = i
			f.Seasons = append(f.Seasons, Season{Name: name, From: from, To: to})
		}
		season := &f.Seasons[i]
		if (from != "" && from != season.From) || (to != "" && to != season.To) {
			errs = append(errs, &RowError{Sheet: table.Sheet, Row: row.Number, Err: fmt.Errorf("season %q dates differ from its first row", name)})
			continue
		}

		period := Period{
			Name:  row.Value(table.Column(colPeriod)),
			Days:  row.Value(table.Column(colDays)),
			Start: xlsx.TimeOfDay(row.Value(table.Column(colStart))),
			End:   xlsx.TimeOfDay(row.Value(table.Column(colEnd))),
		}
		var rowErr error
		if period.Buy, rowErr = money(row.Value(table.Column(colBuy))); rowErr == nil {
			if period.Sell, rowErr = money(row.Value(table.Column(colSell))); rowErr == nil {
				period.Demand, rowErr = money(row.Value(table.Column(colDemand)))
			}
		}
		if rowErr != nil {
			errs = append(errs, &RowError{Sheet: table.Sheet, Row: row.Number, Err: rowErr})
			continue
		}
		season.Periods = append(season.Periods, period)
	}

	if len(errs) > 0 {
		return File{}, errors.Join(errs...)
	}
	return f, nil
}

func readTariffSheet(content []byte, sheet string, f *File) error {
	table, err := xlsx.Read(content, xlsx.Options{SheetNameOrIndex: sheet, SkipEmptyRows: true})
	if err != nil {
		return err
	}
	for _, row := range table.Rows {
		key := strings.ToLower(row.Value(0))
		value := row.Value(1)
		var err error
		switch key {
		case "name":
			f.Name = value
		case "utility":
			f.Utility = value
		case "code":
			f.Code = value
		case "currency":
			f.Currency = value
		case "daily charge", "daily_charge":
			f.DailyCharge, err = money(value)
		case "monthly charge", "monthly_charge":
			f.MonthlyCharge, err = money(value)
		}
		if err != nil {
			return &RowError{Sheet: table.Sheet, Row: row.Number, Err: err}
		}
	}
	return nil
}

func money(value string) (Money, error) {
	value = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "$"))
	if value == "" {
		return Money{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q", value)
	}
	return NewMoney(d), nil
}
