package csv

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice parses a price cell. It accepts "12.5", "-3,25", "$0.31",
// "1.234,56" and a trailing unit such as "c/kWh".
func ParsePrice(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty price value")
	}

	lower := strings.ToLower(cleaned)
	for _, suffix := range []string{"$/kwh", "c/kwh", "/kwh", "¢", "c"} {
		if strings.HasSuffix(lower, suffix) {
			lower = strings.TrimSpace(strings.TrimSuffix(lower, suffix))
			break
		}
	}
	cleaned = strings.Map(func(r rune) rune {
		if r == '$' || r == '€' || r == ' ' || r == '\u00A0' {
			return -1
		}
		return r
	}, lower)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("no numeric value found")
	}

	// A comma after the last dot is a decimal comma
	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	if lastComma > lastDot {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else if lastDot > lastComma {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price format: %w", err)
	}
	return d, nil
}
