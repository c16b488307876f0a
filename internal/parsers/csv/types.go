package csv

import (
	"fmt"
	"time"

	"github.com/tariffsync/tariff-service/internal/amber"
	"github.com/tariffsync/tariff-service/internal/parsers/charset"
)

// Delimiter represents supported CSV delimiters
type Delimiter string

const (
	DelimiterComma     Delimiter = ","
	DelimiterSemicolon Delimiter = ";"
	DelimiterTab       Delimiter = "\t"
)

// PriceUnit is the unit of the price column
type PriceUnit string

const (
	// UnitCents is c/kWh, as the price API reports
	UnitCents PriceUnit = "c/kWh"
	// UnitDollars is $/kWh
	UnitDollars PriceUnit = "$/kWh"
)

// Field names a price row field
type Field string

const (
	FieldChannel   Field = "channel"
	FieldStartTime Field = "start_time"
	FieldEndTime   Field = "end_time"
	FieldPrice     Field = "price"
	FieldDuration  Field = "duration"
)

// headerAliases lists the accepted header names per field, lowercased
var headerAliases = map[Field][]string{
	FieldChannel:   {"channel", "channeltype", "channel_type"},
	FieldStartTime: {"start_time", "starttime", "start", "interval start", "interval_start"},
	FieldEndTime:   {"end_time", "endtime", "end", "nemtime", "nem_time", "interval end", "interval_end"},
	FieldPrice:     {"price", "perkwh", "per_kwh", "price (c/kwh)", "c/kwh", "price ($/kwh)", "$/kwh"},
	FieldDuration:  {"duration", "interval", "interval_minutes", "minutes"},
}

// Options represents CSV parser options
type Options struct {
	// Delimiter and Encoding are detected when empty
	Delimiter Delimiter
	Encoding  charset.Encoding
	HasHeader bool
	// Columns overrides header detection with explicit header names
	Columns       map[Field]string
	SkipEmptyRows bool
	QuoteChar     rune
	Unit          PriceUnit
	// Location applies to timestamps without a UTC offset
	Location *time.Location
	// Channel applies to every row when the file has no channel column
	Channel string
}

// DefaultOptions returns default CSV parser options
func DefaultOptions() Options {
	return Options{
		HasHeader:     true,
		SkipEmptyRows: true,
		QuoteChar:     '"',
		Unit:          UnitCents,
		Location:      time.UTC,
	}
}

// RowError is a problem with one data row
type RowError struct {
	Row     int
	Field   Field
	Value   string
	Message string
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
	return fmt.Sprintf("row %d %s %q: %s", e.Row, e.Field, e.Value, e.Message)
}

// Result is the outcome of parsing a price file
type Result struct {
	Prices    []amber.Price
	Errors    []RowError
	TotalRows int
	ValidRows int
}
