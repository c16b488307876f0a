package tariff

import (
	"fmt"
	"time"
)

// calendarYear is a leap year so that 29 February is addressable
const calendarYear = 2024

// CalendarRange is an inclusive month/day range. A range whose start falls
// after its end wraps over New Year (e.g. 11/1 - 3/31).
type CalendarRange struct {
	FromMonth int `json:"fromMonth" yaml:"from_month"`
	FromDay   int `json:"fromDay" yaml:"from_day"`
	ToMonth   int `json:"toMonth" yaml:"to_month"`
	ToDay     int `json:"toDay" yaml:"to_day"`
}

// FullYear spans 1 January to 31 December
var FullYear = CalendarRange{FromMonth: 1, FromDay: 1, ToMonth: 12, ToDay: 31}

// Validate checks that both ends are real calendar days
func (c CalendarRange) Validate() error {
	if err := checkMonthDay(c.FromMonth, c.FromDay); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := checkMonthDay(c.ToMonth, c.ToDay); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	return nil
}

func checkMonthDay(month, day int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("month %d out of range", month)
	}
	last := time.Date(calendarYear, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day < 1 || day > last {
		return fmt.Errorf("day %d out of range for month %d", day, month)
	}
	return nil
}

func ordinal(month, day int) int {
	return time.Date(calendarYear, time.Month(month), day, 0, 0, 0, 0, time.UTC).YearDay()
}

// days marks every covered day of the (leap) year, indexed by YearDay
func (c CalendarRange) days() [367]bool {
	var set [367]bool
	from, to := ordinal(c.FromMonth, c.FromDay), ordinal(c.ToMonth, c.ToDay)
	for d := from; ; d = d%366 + 1 {
		set[d] = true
		if d == to {
			break
		}
	}
	return set
}

// Overlaps reports whether the two ranges share at least one day.
// Both ranges must be valid.
func (c CalendarRange) Overlaps(o CalendarRange) bool {
	a, b := c.days(), o.days()
	for d := 1; d <= 366; d++ {
		if a[d] && b[d] {
			return true
		}
	}
	return false
}

// Contains reports whether t's calendar day falls inside the range
func (c CalendarRange) Contains(t time.Time) bool {
	if c.Validate() != nil {
		return false
	}
	return c.days()[ordinal(int(t.Month()), t.Day())]
}

func (c CalendarRange) String() string {
	return fmt.Sprintf("%d/%d - %d/%d", c.FromMonth, c.FromDay, c.ToMonth, c.ToDay)
}
