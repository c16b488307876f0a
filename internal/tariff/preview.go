package tariff

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SchedulePreview is a human-readable summary of an authored schedule
type SchedulePreview struct {
	Name          string          `json:"name"`
	Utility       string          `json:"utility"`
	Code          string          `json:"code"`
	Currency      string          `json:"currency"`
	DailyCharge   string          `json:"daily_charge"`
	MonthlyCharge string          `json:"monthly_charge,omitempty"`
	Seasons       []SeasonPreview `json:"seasons"`
}

// SeasonPreview summarizes one season
type SeasonPreview struct {
	Name      string          `json:"name"`
	DateRange string          `json:"date_range"`
	Periods   []PeriodPreview `json:"periods"`
}

// PeriodPreview summarizes one rule
type PeriodPreview struct {
	Name       string `json:"name"`
	Time       string `json:"time"`
	Days       string `json:"days"`
	EnergyRate string `json:"energy_rate"`
	SellRate   string `json:"sell_rate"`
	DemandRate string `json:"demand_rate"`
}

// PreviewSchedule describes the schedule as authored without compiling it
func PreviewSchedule(s Schedule) SchedulePreview {
	currency := s.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	p := SchedulePreview{
		Name:        s.Name,
		Utility:     s.Utility,
		Code:        s.Code,
		Currency:    currency,
		DailyCharge: fmt.Sprintf("$%s/day", s.DailyCharge.StringFixed(2)),
		Seasons:     make([]SeasonPreview, 0, len(s.Seasons)),
	}
	if !s.MonthlyCharge.IsZero() {
		p.MonthlyCharge = fmt.Sprintf("$%s/month", s.MonthlyCharge.StringFixed(2))
	}

	for _, season := range s.Seasons {
		sp := SeasonPreview{
			Name:      season.Name,
			DateRange: season.Calendar.String(),
			Periods:   make([]PeriodPreview, 0, len(season.Rules)),
		}
		for i, rule := range season.Rules {
			sp.Periods = append(sp.Periods, PeriodPreview{
				Name:       ruleName(season, i),
				Time:       fmt.Sprintf("%s - %s", rule.From, rule.To),
				Days:       rule.Days.Label(),
				EnergyRate: perKWh(rule.Rate.Buy),
				SellRate:   perKWh(rule.Rate.Sell),
				DemandRate: demand(rule.Rate.Demand),
			})
		}
		p.Seasons = append(p.Seasons, sp)
	}
	return p
}

func perKWh(d decimal.Decimal) string {
	return fmt.Sprintf("$%s/kWh", d.StringFixed(RatePlaces))
}

func demand(d decimal.Decimal) string {
	if d.IsZero() {
		return "None"
	}
	return fmt.Sprintf("$%s/kW", d.StringFixed(2))
}
