package tariff

import (
	"fmt"
	"strings"
)

// Staleness reasons reported by StaleDataError
const (
	ReasonNoSamples     = "no samples"
	ReasonBeyondHorizon = "beyond forecast horizon"
)

// GapError reports grid cells that no rule assigned
type GapError struct {
	Season  string
	Missing []Rect
}

func (e *GapError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		parts[i] = r.String()
	}
	return fmt.Sprintf("season %q: uncovered %s", e.Season, strings.Join(parts, ", "))
}

// OverlapError reports the first cell claimed by two rules
type OverlapError struct {
	Season string
	Day    Weekday
	Slot   TimeSlot
	Rule1  string
	Rule2  string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("season %q: rules %q and %q both cover %s %s",
		e.Season, e.Rule1, e.Rule2, e.Day, e.Slot)
}

// SeasonOverlapError reports two seasons whose calendar ranges intersect
type SeasonOverlapError struct {
	Season1 string
	Season2 string
}

func (e *SeasonOverlapError) Error() string {
	return fmt.Sprintf("seasons %q and %q overlap", e.Season1, e.Season2)
}

// InvalidRateError reports a rate that breaks 0 <= sell <= buy, demand >= 0
type InvalidRateError struct {
	Season  string
	Rule    string
	Rate    RateKey
	Reasons []string
	Where   []Rect
}

func (e *InvalidRateError) Error() string {
	msg := fmt.Sprintf("season %q rule %q: %s (%s)", e.Season, e.Rule, strings.Join(e.Reasons, ", "), e.Rate)
	if len(e.Where) > 0 {
		where := make([]string, len(e.Where))
		for i, r := range e.Where {
			where[i] = r.String()
		}
		msg += " at " + strings.Join(where, ", ")
	}
	return msg
}

// StaleDataError reports a slot the price feed cannot fill
type StaleDataError struct {
	Slot       TimeSlot
	HorizonDay HorizonDay
	Channel    Channel
	Reason     string
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("stale %s data for slot %s (%s): %s", e.Channel, e.Slot, e.HorizonDay, e.Reason)
}

// MisalignedTimeError reports a time that is not on the expected boundary
type MisalignedTimeError struct {
	Value  string
	Reason string
}

func (e *MisalignedTimeError) Error() string {
	return fmt.Sprintf("misaligned time %s: %s", e.Value, e.Reason)
}

// InvalidRuleError reports a rule window that cannot be expanded
type InvalidRuleError struct {
	Season string
	Rule   string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("season %q rule %q: %s", e.Season, e.Rule, e.Reason)
}

// CalendarError reports an impossible season date range
type CalendarError struct {
	Season string
	Err    error
}

func (e *CalendarError) Error() string {
	return fmt.Sprintf("season %q calendar: %v", e.Season, e.Err)
}

func (e *CalendarError) Unwrap() error { return e.Err }

// ValidationErrors collects every violation found in one validation pass
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	if len(v) == 1 {
		return v[0].Error()
	}
	parts := make([]string, len(v))
	for i, err := range v {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%d violations: %s", len(v), strings.Join(parts, "; "))
}

// Unwrap exposes each violation to errors.Is and errors.As
func (v ValidationErrors) Unwrap() []error { return v }
