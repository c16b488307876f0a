package tariff

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RatePlaces is the number of decimal places kept for a published rate
const RatePlaces = 4

// Rate validity reasons reported by InvalidRateError
const (
	ReasonNegativeBuy    = "negative buy rate"
	ReasonNegativeSell   = "negative sell rate"
	ReasonNegativeDemand = "negative demand rate"
	ReasonSellAboveBuy   = "sell rate above buy rate"
)

// RateKey is the set of rates attached to one grid cell, in currency units per kWh (demand per kW).
type RateKey struct {
	Buy    decimal.Decimal `json:"buy"`
	Sell   decimal.Decimal `json:"sell"`
	Demand decimal.Decimal `json:"demand"`
}

// NewRateKey parses decimal strings. An empty demand means zero.
func NewRateKey(buy, sell, demand string) (RateKey, error) {
	var r RateKey
	var err error
	if r.Buy, err = decimal.NewFromString(buy); err != nil {
		return RateKey{}, fmt.Errorf("buy rate %q: %w", buy, err)
	}
	if r.Sell, err = decimal.NewFromString(sell); err != nil {
		return RateKey{}, fmt.Errorf("sell rate %q: %w", sell, err)
	}
	if demand != "" {
		if r.Demand, err = decimal.NewFromString(demand); err != nil {
			return RateKey{}, fmt.Errorf("demand rate %q: %w", demand, err)
		}
	}
	return r, nil
}

// MustRateKey is NewRateKey for literals known to be valid
func MustRateKey(buy, sell, demand string) RateKey {
	r, err := NewRateKey(buy, sell, demand)
	if err != nil {
		panic(err)
	}
	return r
}

// Equal compares by value, so 0.25 equals 0.2500.
func (r RateKey) Equal(o RateKey) bool {
	return r.Buy.Equal(o.Buy) && r.Sell.Equal(o.Sell) && r.Demand.Equal(o.Demand)
}

// Violations lists every way r breaks 0 <= sell <= buy, demand >= 0.
func (r RateKey) Violations() []string {
	var reasons []string
	if r.Buy.IsNegative() {
		reasons = append(reasons, ReasonNegativeBuy)
	}
	if r.Sell.IsNegative() {
		reasons = append(reasons, ReasonNegativeSell)
	}
	if r.Demand.IsNegative() {
		reasons = append(reasons, ReasonNegativeDemand)
	}
	if r.Sell.GreaterThan(r.Buy) {
		reasons = append(reasons, ReasonSellAboveBuy)
	}
	return reasons
}

// Round rounds every component half away from zero to RatePlaces.
func (r RateKey) Round() RateKey {
	return RateKey{
		Buy:    r.Buy.Round(RatePlaces),
		Sell:   r.Sell.Round(RatePlaces),
		Demand: r.Demand.Round(RatePlaces),
	}
}

// Clamp applies the market-data policy: negatives become zero, then sell is
// lowered to buy. Buy is never raised to satisfy sell.
func (r RateKey) Clamp() (clamped RateKey, buyChanged, sellChanged bool) {
	if r.Buy.IsNegative() {
		r.Buy = decimal.Zero
		buyChanged = true
	}
	if r.Sell.IsNegative() {
		r.Sell = decimal.Zero
		sellChanged = true
	}
	if r.Demand.IsNegative() {
		r.Demand = decimal.Zero
	}
	if r.Sell.GreaterThan(r.Buy) {
		r.Sell = r.Buy
		sellChanged = true
	}
	return r, buyChanged, sellChanged
}

// canonical is a stable string key for grouping cells by value
func (r RateKey) canonical() string {
	return r.Buy.String() + "/" + r.Sell.String() + "/" + r.Demand.String()
}

func (r RateKey) String() string {
	s := fmt.Sprintf("buy=%s sell=%s", r.Buy.String(), r.Sell.String())
	if !r.Demand.IsZero() {
		s += " demand=" + r.Demand.String()
	}
	return s
}
