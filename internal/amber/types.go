package amber

import (
	"time"

	"github.com/shopspring/decimal"
)

// Channel types reported by the price API
const (
	ChannelGeneral    = "general"
	ChannelControlled = "controlledLoad"
	ChannelFeedIn     = "feedIn"
)

// Interval types reported by the price API
const (
	IntervalActual   = "ActualInterval"
	IntervalCurrent  = "CurrentInterval"
	IntervalForecast = "ForecastInterval"
)

// Site is an account site as returned by GET /sites
type Site struct {
	ID             string        `json:"id"`
	NMI            string        `json:"nmi"`
	Network        string        `json:"network"`
	Status         string        `json:"status"`
	IntervalLength int           `json:"intervalLength"`
	Channels       []SiteChannel `json:"channels"`
}

// SiteChannel is one metering channel of a site
type SiteChannel struct {
	Identifier string `json:"identifier"`
	Type       string `json:"type"`
	Tariff     string `json:"tariff"`
}

// AdvancedPrice is the retailer's low/predicted/high price band in c/kWh
type AdvancedPrice struct {
	Low       decimal.Decimal `json:"low"`
	Predicted decimal.Decimal `json:"predicted"`
	High      decimal.Decimal `json:"high"`
}

// Price is one interval from GET /sites/{id}/prices. Prices are c/kWh;
// feed-in prices are negative when the customer is paid.
type Price struct {
	Type          string          `json:"type"`
	Date          string          `json:"date"`
	Duration      int             `json:"duration"`
	StartTime     time.Time       `json:"startTime"`
	EndTime       time.Time       `json:"endTime"`
	NemTime       string          `json:"nemTime"`
	PerKwh        decimal.Decimal `json:"perKwh"`
	SpotPerKwh    decimal.Decimal `json:"spotPerKwh"`
	ChannelType   string          `json:"channelType"`
	Descriptor    string          `json:"descriptor,omitempty"`
	SpikeStatus   string          `json:"spikeStatus,omitempty"`
	AdvancedPrice *AdvancedPrice  `json:"advancedPrice,omitempty"`
}

// DollarsPerKwh converts the interval price to $/kWh from the customer's
// point of view: the predicted advanced price when present, otherwise perKwh,
// with the feed-in sign flipped so a paid export is positive.
func (p Price) DollarsPerKwh() decimal.Decimal {
	cents := p.PerKwh
	if p.AdvancedPrice != nil && !p.AdvancedPrice.Predicted.IsZero() {
		cents = p.AdvancedPrice.Predicted
	}
	if p.ChannelType == ChannelFeedIn {
		cents = cents.Neg()
	}
	return cents.Div(decimal.NewFromInt(100))
}
