package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tariffsync/tariff-service/internal/tariff"
)

// FieldError locates a problem in an authored schedule
type FieldError struct {
	Path string
	Err  error
}

func (e *FieldError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error { return e.Err }

// ToSchedule converts the authored form into engine types. Every field
// error is reported, joined with errors.Join.
func (f File) ToSchedule() (tariff.Schedule, error) {
	out := tariff.Schedule{
		Name:          f.Name,
		Utility:       f.Utility,
		Code:          f.Code,
		Currency:      f.Currency,
		DailyCharge:   f.DailyCharge.Decimal,
		MonthlyCharge: f.MonthlyCharge.Decimal,
	}

	var errs []error
	for i, s := range f.Seasons {
		path := fmt.Sprintf("seasons[%d]", i)
		season := tariff.Season{Name: s.Name}

		from, err := parseMonthDay(s.From)
		if err != nil {
			errs = append(errs, &FieldError{Path: path + ".from", Err: err})
		}
		to, err := parseMonthDay(s.To)
		if err != nil {
			errs = append(errs, &FieldError{Path: path + ".to", Err: err})
		}
		season.Calendar = tariff.CalendarRange{FromMonth: from[0], FromDay: from[1], ToMonth: to[0], ToDay: to[1]}

		for j, p := range s.Periods {
			ppath := fmt.Sprintf("%s.periods[%d]", path, j)
			rule := tariff.RuleWindow{
				Name: p.Name,
				Rate: tariff.RateKey{Buy: p.Buy.Decimal, Sell: p.Sell.Decimal, Demand: p.Demand.Decimal},
			}
			if rule.Days, err = tariff.ParseDaySet(p.Days); err != nil {
				errs = append(errs, &FieldError{Path: ppath + ".days", Err: err})
			}
			if rule.From, err = tariff.ParseSlot(p.Start); err != nil {
				errs = append(errs, &FieldError{Path: ppath + ".start", Err: err})
			}
			if rule.To, err = tariff.ParseSlot(p.End); err != nil {
				errs = append(errs, &FieldError{Path: ppath + ".end", Err: err})
			}
			season.Rules = append(season.Rules, rule)
		}
		out.Seasons = append(out.Seasons, season)
	}
	if len(errs) > 0 {
		return tariff.Schedule{}, errors.Join(errs...)
	}
	return out, nil
}

// FromSchedule renders engine types back to the authored form
func FromSchedule(s tariff.Schedule) File {
	f := File{
		Name:          s.Name,
		Utility:       s.Utility,
		Code:          s.Code,
		Currency:      s.Currency,
		DailyCharge:   NewMoney(s.DailyCharge),
		MonthlyCharge: NewMoney(s.MonthlyCharge),
	}
	for _, season := range s.Seasons {
		out := Season{
			Name: season.Name,
			From: fmt.Sprintf("%d/%d", season.Calendar.FromMonth, season.Calendar.FromDay),
			To:   fmt.Sprintf("%d/%d", season.Calendar.ToMonth, season.Calendar.ToDay),
		}
		for _, r := range season.Rules {
			out.Periods = append(out.Periods, Period{
				Name:   r.Name,
				Days:   r.Days.String(),
				Start:  r.From.String(),
				End:    r.To.String(),
				Buy:    NewMoney(r.Rate.Buy),
				Sell:   NewMoney(r.Rate.Sell),
				Demand: NewMoney(r.Rate.Demand),
			})
		}
		f.Seasons = append(f.Seasons, out)
	}
	return f
}

// parseMonthDay reads "M/D" or "MM-DD"
func parseMonthDay(s string) ([2]int, error) {
	s = strings.TrimSpace(s)
	sep := "/"
	if !strings.Contains(s, sep) {
		sep = "-"
	}
	m, d, ok := strings.Cut(s, sep)
	if !ok {
		return [2]int{}, fmt.Errorf("invalid date %q, want M/D", s)
	}
	month, err := strconv.Atoi(strings.TrimSpace(m))
	if err != nil {
		return [2]int{}, fmt.Errorf("invalid month in %q", s)
	}
	day, err := strconv.Atoi(strings.TrimSpace(d))
	if err != nil {
		return [2]int{}, fmt.Errorf("invalid day in %q", s)
	}
	return [2]int{month, day}, nil
}

// Validate converts the file and reports every schedule problem at once
func (f File) Validate() error {
	s, err := f.ToSchedule()
	if err != nil {
		return err
	}
	return tariff.CheckSchedule(s)
}

// Compile converts, compiles and serializes the file into a document
func (f File) Compile() (*tariff.TariffDocument, []tariff.SeasonGrid, error) {
	s, err := f.ToSchedule()
	if err != nil {
		return nil, nil, err
	}
	seasons, err := tariff.CompileSchedule(s)
	if err != nil {
		return nil, nil, err
	}
	doc, err := tariff.ToDocument(s.DocumentMeta(), seasons)
	if err != nil {
		return nil, nil, err
	}
	return doc, seasons, nil
}
