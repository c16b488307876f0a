package tariff

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// OverrideMode forces the controller to charge or discharge by flattening the grid
type OverrideMode string

const (
	OverrideNone      OverrideMode = ""
	OverrideCharge    OverrideMode = "charge"
	OverrideDischarge OverrideMode = "discharge"
)

// Fallback extremes used when a grid has no positive price on a side
var (
	fallbackMinBuy  = decimal.RequireFromString("0.05")
	fallbackMaxBuy  = decimal.RequireFromString("0.30")
	fallbackMaxSell = decimal.RequireFromString("0.20")
)

// ParseOverrideMode accepts "charge", "discharge" or an empty/"none" value
func ParseOverrideMode(s string) (OverrideMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return OverrideNone, nil
	case "charge":
		return OverrideCharge, nil
	case "discharge":
		return OverrideDischarge, nil
	}
	return OverrideNone, fmt.Errorf("unknown override mode %q", s)
}

// ApplyOverride returns a copy of g with every assigned cell set to one rate.
// Charge uses the cheapest positive buy price, discharge the dearest; both
// use the dearest positive sell price. The result is clamped so sell never
// exceeds buy.
func ApplyOverride(g *Grid, mode OverrideMode) *Grid {
	out := g.Clone()
	if mode == OverrideNone {
		return out
	}

	var minBuy, maxBuy, maxSell decimal.Decimal
	var haveBuy, haveSell bool
	g.each(func(_ Weekday, _ TimeSlot, c Cell) {
		if !c.Assigned {
			return
		}
		if c.Rate.Buy.IsPositive() {
			if !haveBuy || c.Rate.Buy.LessThan(minBuy) {
				minBuy = c.Rate.Buy
			}
			if !haveBuy || c.Rate.Buy.GreaterThan(maxBuy) {
				maxBuy = c.Rate.Buy
			}
			haveBuy = true
		}
		if c.Rate.Sell.IsPositive() {
			if !haveSell || c.Rate.Sell.GreaterThan(maxSell) {
				maxSell = c.Rate.Sell
			}
			haveSell = true
		}
	})
	if !haveBuy {
		minBuy, maxBuy = fallbackMinBuy, fallbackMaxBuy
	}
	if !haveSell {
		maxSell = fallbackMaxSell
	}

	rate := RateKey{Buy: maxBuy, Sell: maxSell}
	if mode == OverrideCharge {
		rate.Buy = minBuy
	}
	rate, _, _ = rate.Clamp()

	out.each(func(d Weekday, s TimeSlot, c Cell) {
		if c.Assigned {
			out.Set(d, s, c.Rule, RateKey{Buy: rate.Buy, Sell: rate.Sell, Demand: c.Rate.Demand})
		}
	})
	return out
}

// OverrideMeta swaps the document identity for the manual-control one so the
// controller's app visibly reflects the override.
func OverrideMeta(meta DocumentMeta, mode OverrideMode) DocumentMeta {
	switch mode {
	case OverrideCharge:
		meta.Code = "TARIFF_SYNC:MANUAL:CHARGE"
		meta.Name = "MANUAL CHARGE MODE (Tariff Sync)"
	case OverrideDischarge:
		meta.Code = "TARIFF_SYNC:MANUAL:DISCHARGE"
		meta.Name = "MANUAL DISCHARGE MODE (Tariff Sync)"
	default:
		return meta
	}
	meta.Utility = "Tariff Sync - Manual Control"
	meta.SellName = meta.Name
	return meta
}
