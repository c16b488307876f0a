package tariff

import (
	"fmt"
	"strings"
	"time"
)

const (
	// SlotMinutes is the length of one tariff slot
	SlotMinutes = 30
	// SlotsPerDay is the number of half-hour slots in a day
	SlotsPerDay = 24 * 60 / SlotMinutes
	// DaysPerWeek is the number of rows in a weekly grid
	DaysPerWeek = 7
)

// TimeSlot indexes a half-hour of the day: slot k covers [k*30min, k*30min+30min).
// Used as the exclusive end of a window, EndOfDay (48) means midnight.
type TimeSlot int

// EndOfDay is the exclusive end of the last slot of a day
const EndOfDay TimeSlot = SlotsPerDay

// SlotAt converts a wall-clock boundary into a slot index.
// 24:00 is accepted and maps to EndOfDay.
func SlotAt(hour, minute int) (TimeSlot, error) {
	label := fmt.Sprintf("%02d:%02d", hour, minute)
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, &MisalignedTimeError{Value: label, Reason: "not a time of day"}
	}
	if minute%SlotMinutes != 0 {
		return 0, &MisalignedTimeError{Value: label, Reason: "not on a 30-minute boundary"}
	}
	return TimeSlot((hour*60 + minute) / SlotMinutes), nil
}

// ParseSlot parses an "HH:MM" boundary
func ParseSlot(s string) (TimeSlot, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &hour, &minute); err != nil {
		return 0, &MisalignedTimeError{Value: s, Reason: "expected HH:MM"}
	}
	return SlotAt(hour, minute)
}

// SlotOf returns the slot containing t's wall-clock time in its own location.
func SlotOf(t time.Time) TimeSlot {
	return TimeSlot((t.Hour()*60 + t.Minute()) / SlotMinutes)
}

// Hour returns the wall-clock hour of the slot start. EndOfDay wraps to 0.
func (s TimeSlot) Hour() int {
	return (int(s) * SlotMinutes / 60) % 24
}

// Minute returns the wall-clock minute of the slot start
func (s TimeSlot) Minute() int {
	return int(s) * SlotMinutes % 60
}

// Valid reports whether s is a slot start in [0,48)
func (s TimeSlot) Valid() bool {
	return s >= 0 && s < EndOfDay
}

// String renders the slot start as HH:MM
func (s TimeSlot) String() string {
	if s == EndOfDay {
		return "24:00"
	}
	return fmt.Sprintf("%02d:%02d", s.Hour(), s.Minute())
}

// PeriodKey is the wire name used for a single half-hour period
func (s TimeSlot) PeriodKey() string {
	return fmt.Sprintf("PERIOD_%02d_%02d", s.Hour(), s.Minute())
}

// Weekday is a day of the week on the controller's convention: Monday is 0.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [DaysPerWeek]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekdayOf converts a time's weekday to the Monday-first convention
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % DaysPerWeek)
}

// ParseWeekday accepts short or long English day names, case-insensitively
func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, short := range weekdayNames {
		if len(name) >= 3 && strings.HasPrefix(name, strings.ToLower(short)) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// Valid reports whether d is a real day
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// DaySet is an inclusive range of weekdays. From > To wraps through Sunday,
// so Fri-Mon means {Fri, Sat, Sun, Mon}.
type DaySet struct {
	From Weekday `json:"from"`
	To   Weekday `json:"to"`
}

var (
	// AllWeek covers Monday through Sunday
	AllWeek = DaySet{From: Monday, To: Sunday}
	// Weekdays covers Monday through Friday
	Weekdays = DaySet{From: Monday, To: Friday}
	// Weekends covers Saturday and Sunday
	Weekends = DaySet{From: Saturday, To: Sunday}
)

// ParseDaySet parses "Mon-Fri", "Sat", "Fri-Mon" or the words "all", "weekdays", "weekends".
func ParseDaySet(s string) (DaySet, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "all week", "everyday", "daily":
		return AllWeek, nil
	case "weekdays":
		return Weekdays, nil
	case "weekends":
		return Weekends, nil
	}
	from, to, found := strings.Cut(s, "-")
	first, err := ParseWeekday(from)
	if err != nil {
		return DaySet{}, err
	}
	if !found {
		return DaySet{From: first, To: first}, nil
	}
	last, err := ParseWeekday(to)
	if err != nil {
		return DaySet{}, err
	}
	return DaySet{From: first, To: last}, nil
}

// Valid reports whether both ends are real days
func (s DaySet) Valid() bool {
	return s.From.Valid() && s.To.Valid()
}

// Wraps reports whether the range runs through Sunday into Monday
func (s DaySet) Wraps() bool {
	return s.To < s.From
}

// Contains reports whether d falls inside the range
func (s DaySet) Contains(d Weekday) bool {
	if s.Wraps() {
		return d >= s.From || d <= s.To
	}
	return d >= s.From && d <= s.To
}

// Days lists the covered days starting at From
func (s DaySet) Days() []Weekday {
	if !s.Valid() {
		return nil
	}
	days := make([]Weekday, 0, DaysPerWeek)
	for d := s.From; ; d = (d + 1) % DaysPerWeek {
		days = append(days, d)
		if d == s.To {
			break
		}
	}
	return days
}

func (s DaySet) String() string {
	if s.From == s.To {
		return s.From.String()
	}
	return s.From.String() + "-" + s.To.String()
}

// Label is the friendly form used in previews
func (s DaySet) Label() string {
	switch s {
	case AllWeek:
		return "All week"
	case Weekdays:
		return "Weekdays"
	case Weekends:
		return "Weekends"
	}
	return s.String()
}
