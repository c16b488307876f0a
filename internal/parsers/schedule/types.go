package schedule

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Money is a decimal that reads from JSON numbers or strings and YAML scalars
type Money struct {
	decimal.Decimal
}

// NewMoney wraps d
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MarshalJSON writes a bare fixed-point number
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON accepts 0.35 or "0.35"
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	m.Decimal = d
	return nil
}

// MarshalYAML writes the amount as a string to keep its precision
func (m Money) MarshalYAML() (any, error) {
	return m.Decimal.String(), nil
}

// UnmarshalYAML accepts any scalar that parses as a decimal
func (m *Money) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a scalar", value.Line)
	}
	s := strings.TrimSpace(value.Value)
	if s == "" || s == "~" || s == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid amount %q", value.Line, s)
	}
	m.Decimal = d
	return nil
}

// File is the authored form of a static schedule, shared by the YAML, JSON
// and spreadsheet importers, the HTTP API and the schedule store.
type File struct {
	Name          string   `json:"name" yaml:"name" jsonschema:"required"`
	Utility       string   `json:"utility,omitempty" yaml:"utility,omitempty"`
	Code          string   `json:"code,omitempty" yaml:"code,omitempty"`
	Currency      string   `json:"currency,omitempty" yaml:"currency,omitempty" jsonschema:"default=AUD"`
	DailyCharge   Money    `json:"daily_charge" yaml:"daily_charge"`
	MonthlyCharge Money    `json:"monthly_charge" yaml:"monthly_charge"`
	Seasons       []Season `json:"seasons" yaml:"seasons" jsonschema:"required,minItems=1"`
}

// Season is one calendar range and its periods. Dates are inclusive M/D.
type Season struct {
	Name    string   `json:"name" yaml:"name" jsonschema:"required"`
	From    string   `json:"from" yaml:"from" jsonschema:"required,example=11/1"`
	To      string   `json:"to" yaml:"to" jsonschema:"required,example=3/31"`
	Periods []Period `json:"periods" yaml:"periods" jsonschema:"required,minItems=1"`
}

// Period is one rule window. Days accepts "all", "weekdays", "weekends",
// a single day or a range such as "Fri-Mon". Start and End are HH:MM on a
// half hour; End may be "24:00", and an End before Start wraps midnight.
type Period struct {
	Name   string `json:"name" yaml:"name" jsonschema:"required"`
	Days   string `json:"days" yaml:"days" jsonschema:"required,example=weekdays"`
	Start  string `json:"start" yaml:"start" jsonschema:"required,pattern=^[0-2][0-9]:[03]0$"`
	End    string `json:"end" yaml:"end" jsonschema:"required,pattern=^[0-2][0-9]:[03]0$"`
	Buy    Money  `json:"buy" yaml:"buy"`
	Sell   Money  `json:"sell" yaml:"sell"`
	Demand Money  `json:"demand,omitempty" yaml:"demand,omitempty"`
}
