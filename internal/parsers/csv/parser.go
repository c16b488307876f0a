package csv

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tariffsync/tariff-service/internal/amber"
	"github.com/tariffsync/tariff-service/internal/parsers/charset"
)

// localLayouts are tried for timestamps without an offset
var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
}

// Parser reads interval price exports for offline replay
type Parser struct {
	options Options
}

// NewParser creates a new CSV parser with the given options
func NewParser(options Options) *Parser {
	if options.QuoteChar == 0 {
		options.QuoteChar = '"'
	}
	if options.Unit == "" {
		options.Unit = UnitCents
	}
	if options.Location == nil {
		options.Location = time.UTC
	}
	return &Parser{options: options}
}

// Parse parses CSV content into API-shaped prices. Rows with errors are
// reported in the result and skipped.
func (p *Parser) Parse(content []byte) (*Result, error) {
	opts := p.options

	if opts.Encoding == "" {
		opts.Encoding = charset.DetectEncoding(content)
	}
	decoded, err := charset.Decode(content, opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}

	if opts.Delimiter == "" {
		opts.Delimiter = DetectDelimiter(decoded)
	}

	rawRows := p.parseCSV(decoded, opts)
	if len(rawRows) == 0 {
		return &Result{}, nil
	}

	var headers []string
	dataStartRow := 0
	if opts.HasHeader {
		headers = rawRows[0]
		dataStartRow = 1
	}

	indices, err := buildColumnIndices(headers, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for i := dataStartRow; i < len(rawRows); i++ {
		rawRow := rawRows[i]
		rowNumber := i + 1

		if opts.SkipEmptyRows && isEmptyRow(rawRow) {
			continue
		}
		result.TotalRows++

		price, rowErr := p.mapRow(rawRow, rowNumber, indices, opts)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Prices = append(result.Prices, price)
		result.ValidRows++
	}

	log.Debug().
		Str("encoding", string(opts.Encoding)).
		Str("delimiter", string(opts.Delimiter)).
		Int("total", result.TotalRows).
		Int("valid", result.ValidRows).
		Msg("Parsed price CSV")
	return result, nil
}

func (p *Parser) parseCSV(content string, opts Options) [][]string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	rows := make([][]string, 0, len(lines))
	delimRune := rune(opts.Delimiter[0])

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			rows = append(rows, []string{})
			continue
		}
		fields := SplitCSVLine(line, delimRune, opts.QuoteChar)
		for i, f := range fields {
			fields[i] = strings.TrimSpace(f)
		}
		rows = append(rows, fields)
	}

	// drop trailing blank lines
	for len(rows) > 0 && isEmptyRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows
}

// buildColumnIndices resolves each field to a column. Without a header the
// columns are channel, end time, price, duration in that order.
func buildColumnIndices(headers []string, opts Options) (map[Field]int, error) {
	if len(headers) == 0 {
		return map[Field]int{FieldChannel: 0, FieldEndTime: 1, FieldPrice: 2, FieldDuration: 3}, nil
	}

	lookup := make(map[string]int, len(headers))
	for i, h := range headers {
		lookup[strings.ToLower(strings.TrimSpace(h))] = i
	}

	indices := make(map[Field]int)
	for field, aliases := range headerAliases {
		if name, ok := opts.Columns[field]; ok {
			idx, found := lookup[strings.ToLower(name)]
			if !found {
				return nil, fmt.Errorf("column %q for %s not found in header", name, field)
			}
			indices[field] = idx
			continue
		}
		for _, alias := range aliases {
			if idx, ok := lookup[alias]; ok {
				indices[field] = idx
				break
			}
		}
	}

	if _, ok := indices[FieldPrice]; !ok {
		return nil, fmt.Errorf("no price column in header %v", headers)
	}
	_, hasStart := indices[FieldStartTime]
	_, hasEnd := indices[FieldEndTime]
	if !hasStart && !hasEnd {
		return nil, fmt.Errorf("no start or end time column in header %v", headers)
	}
	if _, ok := indices[FieldChannel]; !ok && opts.Channel == "" {
		return nil, fmt.Errorf("no channel column in header and no default channel")
	}
	return indices, nil
}

func cell(row []string, indices map[Field]int, f Field) (string, bool) {
	idx, ok := indices[f]
	if !ok || idx >= len(row) || row[idx] == "" {
		return "", false
	}
	return row[idx], true
}

func (p *Parser) mapRow(row []string, rowNumber int, indices map[Field]int, opts Options) (amber.Price, *RowError) {
	fail := func(f Field, v, msg string) (amber.Price, *RowError) {
		return amber.Price{}, &RowError{Row: rowNumber, Field: f, Value: v, Message: msg}
	}

	price := amber.Price{Type: amber.IntervalActual}

	channel := opts.Channel
	if v, ok := cell(row, indices, FieldChannel); ok {
		channel = v
	}
	ch, ok := normalizeChannel(channel)
	if !ok {
		return fail(FieldChannel, channel, "unknown channel")
	}
	price.ChannelType = ch

	raw, ok := cell(row, indices, FieldPrice)
	if !ok {
		return fail(FieldPrice, "", "missing price")
	}
	value, err := ParsePrice(raw)
	if err != nil {
		return fail(FieldPrice, raw, err.Error())
	}
	if opts.Unit == UnitDollars {
		value = value.Mul(decimal.NewFromInt(100))
	}
	price.PerKwh = value

	if v, ok := cell(row, indices, FieldDuration); ok {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			return fail(FieldDuration, v, "duration must be a positive number of minutes")
		}
		price.Duration = minutes
	}

	var start, end time.Time
	if v, ok := cell(row, indices, FieldStartTime); ok {
		if start, err = parseTime(v, opts.Location); err != nil {
			return fail(FieldStartTime, v, err.Error())
		}
	}
	if v, ok := cell(row, indices, FieldEndTime); ok {
		if end, err = parseTime(v, opts.Location); err != nil {
			return fail(FieldEndTime, v, err.Error())
		}
		if _, err := time.Parse(time.RFC3339, v); err == nil {
			price.NemTime = v
		}
	}

	switch {
	case !start.IsZero() && !end.IsZero():
		if !end.After(start) {
			return fail(FieldEndTime, end.String(), "interval ends before it starts")
		}
		if price.Duration == 0 {
			price.Duration = int(end.Sub(start) / time.Minute)
		}
	case !start.IsZero():
		if price.Duration == 0 {
			return fail(FieldDuration, "", "a start time without an end time needs a duration")
		}
		end = start.Add(time.Duration(price.Duration) * time.Minute)
	case !end.IsZero():
		if price.Duration == 0 {
			price.Duration = 5
		}
		start = end.Add(-time.Duration(price.Duration) * time.Minute)
	default:
		return fail(FieldEndTime, "", "missing interval time")
	}

	price.StartTime = start
	price.EndTime = end
	price.Date = start.Format(time.DateOnly)
	return price, nil
}

func parseTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp")
}

func normalizeChannel(s string) (string, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "")) {
	case "general", "import", "buy", "e1":
		return amber.ChannelGeneral, true
	case "feedin", "export", "sell", "b1":
		return amber.ChannelFeedIn, true
	case "controlledload", "controlled", "e2":
		return amber.ChannelControlled, true
	}
	return "", false
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
