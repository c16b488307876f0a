package tariff

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// DocumentVersion is the tariff document schema version
	DocumentVersion = 1
	// AllKey is the catch-all season and period name the controller expects
	AllKey = "ALL"
	// DailyChargeName labels the single daily supply charge
	DailyChargeName = "Supply Charge"
	// DefaultCurrency applies when no currency is configured
	DefaultCurrency = "AUD"
)

// Amount is a decimal that marshals as a bare JSON number in minimal
// fixed-point form (0.285, never 2.85e-1 or "0.285").
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a decimal
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("amount %s: %w", b, err)
	}
	a.Decimal = d
	return nil
}

// TariffDocument is the wire form uploaded to the battery controller
type TariffDocument struct {
	Version        int                    `json:"version"`
	Code           string                 `json:"code"`
	Name           string                 `json:"name"`
	Utility        string                 `json:"utility"`
	Currency       string                 `json:"currency"`
	DailyCharges   []Charge               `json:"daily_charges"`
	MonthlyCharges *Amount                `json:"monthly_charges,omitempty"`
	DemandCharges  map[string]SeasonRates `json:"demand_charges"`
	EnergyCharges  map[string]SeasonRates `json:"energy_charges"`
	Seasons        map[string]SeasonDoc   `json:"seasons"`
	SellTariff     *SellTariff            `json:"sell_tariff,omitempty"`
}

// SellTariff mirrors the season layout with export rates
type SellTariff struct {
	Name          string                 `json:"name"`
	Utility       string                 `json:"utility"`
	DailyCharges  []Charge               `json:"daily_charges"`
	DemandCharges map[string]SeasonRates `json:"demand_charges"`
	EnergyCharges map[string]SeasonRates `json:"energy_charges"`
	Seasons       map[string]SeasonDoc   `json:"seasons"`
}

// Charge is a named fixed charge
type Charge struct {
	Name   string  `json:"name"`
	Amount *Amount `json:"amount,omitempty"`
}

// SeasonRates maps period names to rates; an empty map renders as {}
type SeasonRates struct {
	Rates map[string]Amount `json:"rates,omitempty"`
}

// SeasonDoc is one season's calendar range and named periods
type SeasonDoc struct {
	FromMonth  int                  `json:"fromMonth"`
	FromDay    int                  `json:"fromDay"`
	ToMonth    int                  `json:"toMonth"`
	ToDay      int                  `json:"toDay"`
	TOUPeriods map[string]TOUPeriod `json:"tou_periods"`
}

// Placeholder reports whether the season carries no periods
func (s SeasonDoc) Placeholder() bool {
	return len(s.TOUPeriods) == 0
}

// TOUPeriod lists the windows sharing one rate
type TOUPeriod struct {
	Periods []PeriodWindow `json:"periods"`
}

// PeriodWindow is a day range crossed with a time range. Zero fields are
// omitted; toHour 0 with toMinute 0 means midnight at the end of the day.
type PeriodWindow struct {
	FromDayOfWeek int `json:"fromDayOfWeek,omitempty"`
	ToDayOfWeek   int `json:"toDayOfWeek,omitempty"`
	FromHour      int `json:"fromHour,omitempty"`
	FromMinute    int `json:"fromMinute,omitempty"`
	ToHour        int `json:"toHour,omitempty"`
	ToMinute      int `json:"toMinute,omitempty"`
}

func windowOf(r Rect) PeriodWindow {
	return PeriodWindow{
		FromDayOfWeek: int(r.Days.From),
		ToDayOfWeek:   int(r.Days.To),
		FromHour:      r.From.Hour(),
		FromMinute:    r.From.Minute(),
		ToHour:        r.To.Hour(),
		ToMinute:      r.To.Minute(),
	}
}

// rect converts a window back to grid coordinates; a 00:00 end means EndOfDay
func (w PeriodWindow) rect() (Rect, error) {
	days := DaySet{From: Weekday(w.FromDayOfWeek), To: Weekday(w.ToDayOfWeek)}
	if !days.Valid() {
		return Rect{}, fmt.Errorf("day of week %d-%d out of range", w.FromDayOfWeek, w.ToDayOfWeek)
	}
	from, err := SlotAt(w.FromHour, w.FromMinute)
	if err != nil {
		return Rect{}, err
	}
	if from == EndOfDay {
		return Rect{}, &MisalignedTimeError{Value: "24:00", Reason: "window cannot start at midnight end"}
	}
	to, err := SlotAt(w.ToHour, w.ToMinute)
	if err != nil {
		return Rect{}, err
	}
	if to == 0 {
		to = EndOfDay
	}
	return Rect{Days: days, From: from, To: to}, nil
}

// DocumentMeta is the document identity and fixed charges
type DocumentMeta struct {
	Name          string
	Utility       string
	Code          string
	Currency      string
	DailyCharge   decimal.Decimal
	MonthlyCharge decimal.Decimal
	// SellName defaults to Name with a "(Feed-in)" suffix
	SellName string
	// Placeholders are empty seasons added after the real ones, for
	// controllers that insist on a second season.
	Placeholders []string
}
