package tariff

import "github.com/shopspring/decimal"

// RuleWindow assigns one rate to a rectangle of the week.
// To < From wraps past midnight on each day of Days. An end of 0 after a
// later start means midnight.
type RuleWindow struct {
	Name string
	Days DaySet
	From TimeSlot
	To   TimeSlot
	Rate RateKey
}

// Rect returns the cells the rule covers
func (r RuleWindow) Rect() Rect {
	to := r.To
	if to == 0 && r.From > 0 {
		to = EndOfDay
	}
	return Rect{Days: r.Days, From: r.From, To: to}
}

// Season is an authored set of rules active over a calendar range
type Season struct {
	Name     string
	Calendar CalendarRange
	Rules    []RuleWindow
}

// Meta drops the rules
func (s Season) Meta() SeasonMeta {
	return SeasonMeta{Name: s.Name, Calendar: s.Calendar}
}

// Schedule is a complete static time-of-use tariff as authored by a user
type Schedule struct {
	Name          string
	Utility       string
	Code          string
	Currency      string
	DailyCharge   decimal.Decimal
	MonthlyCharge decimal.Decimal
	Seasons       []Season
}

// DocumentMeta derives the document identity from the schedule
func (s Schedule) DocumentMeta() DocumentMeta {
	return DocumentMeta{
		Name:          s.Name,
		Utility:       s.Utility,
		Code:          s.Code,
		Currency:      s.Currency,
		DailyCharge:   s.DailyCharge,
		MonthlyCharge: s.MonthlyCharge,
	}
}

// ActiveSeason returns the season whose calendar contains the month and day
func (s Schedule) ActiveSeason(month, day int) (Season, bool) {
	for _, season := range s.Seasons {
		if season.Calendar.Validate() != nil {
			continue
		}
		if season.Calendar.days()[ordinal(month, day)] {
			return season, true
		}
	}
	return Season{}, false
}
