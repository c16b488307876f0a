package tariff

import (
	"errors"
	"fmt"
)

// ErrNoSeasons is returned for a schedule without seasons
var ErrNoSeasons = errors.New("schedule has no seasons")

// CompileSeason expands a season's rules onto a fresh grid. Rules are applied
// in authoring order; the first cell claimed twice is reported, scanning
// day-major then slot-minor. A grid is returned only when every cell is
// assigned exactly once.
func CompileSeason(season Season) (*Grid, error) {
	for i, rule := range season.Rules {
		if err := checkRule(season.Name, ruleName(season, i), rule); err != nil {
			return nil, err
		}
	}

	// owners holds up to two claiming rule indices per cell, offset by one
	var owners [DaysPerWeek][SlotsPerDay][2]int
	for i, rule := range season.Rules {
		rule.Rect().Each(func(d Weekday, s TimeSlot) {
			o := &owners[d][s]
			switch {
			case o[0] == 0:
				o[0] = i + 1
			case o[1] == 0:
				o[1] = i + 1
			}
		})
	}

	grid := NewGrid()
	var missing cellMask
	for d := range DaysPerWeek {
		for s := range SlotsPerDay {
			o := owners[d][s]
			if o[1] != 0 {
				return nil, &OverlapError{
					Season: season.Name,
					Day:    Weekday(d),
					Slot:   TimeSlot(s),
					Rule1:  ruleName(season, o[0]-1),
					Rule2:  ruleName(season, o[1]-1),
				}
			}
			if o[0] == 0 {
				missing[d][s] = true
				continue
			}
			rule := season.Rules[o[0]-1]
			grid.Set(Weekday(d), TimeSlot(s), ruleName(season, o[0]-1), rule.Rate)
		}
	}
	if missing.any() {
		return nil, &GapError{Season: season.Name, Missing: missing.rects()}
	}
	return grid, nil
}

// CompileSchedule checks the season calendars and compiles every season
func CompileSchedule(schedule Schedule) ([]SeasonGrid, error) {
	if len(schedule.Seasons) == 0 {
		return nil, ErrNoSeasons
	}
	seen := make(map[string]bool, len(schedule.Seasons))
	for _, season := range schedule.Seasons {
		if season.Name == "" {
			return nil, &InvalidRuleError{Reason: "season has no name"}
		}
		if seen[season.Name] {
			return nil, &InvalidRuleError{Season: season.Name, Reason: "duplicate season name"}
		}
		seen[season.Name] = true
		if err := season.Calendar.Validate(); err != nil {
			return nil, &CalendarError{Season: season.Name, Err: err}
		}
	}
	if err := checkSeasonOverlap(metas(schedule.Seasons)); err != nil {
		return nil, err
	}

	out := make([]SeasonGrid, 0, len(schedule.Seasons))
	for _, season := range schedule.Seasons {
		grid, err := CompileSeason(season)
		if err != nil {
			return nil, err
		}
		out = append(out, SeasonGrid{Season: season.Meta(), Grid: grid})
	}
	return out, nil
}

func checkRule(season, name string, rule RuleWindow) error {
	if !rule.Days.Valid() {
		return &InvalidRuleError{Season: season, Rule: name, Reason: fmt.Sprintf("invalid day range %d-%d", rule.Days.From, rule.Days.To)}
	}
	if !rule.From.Valid() {
		return &InvalidRuleError{Season: season, Rule: name, Reason: fmt.Sprintf("start slot %d out of range", rule.From)}
	}
	if rule.To < 0 || rule.To > EndOfDay {
		return &InvalidRuleError{Season: season, Rule: name, Reason: fmt.Sprintf("end slot %d out of range", rule.To)}
	}
	if rule.From == rule.To {
		return &InvalidRuleError{Season: season, Rule: name, Reason: "empty window"}
	}
	if reasons := rule.Rate.Violations(); len(reasons) > 0 {
		return &InvalidRateError{Season: season, Rule: name, Rate: rule.Rate, Reasons: reasons, Where: []Rect{rule.Rect()}}
	}
	return nil
}

func ruleName(season Season, i int) string {
	if name := season.Rules[i].Name; name != "" {
		return name
	}
	return fmt.Sprintf("rule %d", i+1)
}

func metas(seasons []Season) []SeasonMeta {
	out := make([]SeasonMeta, len(seasons))
	for i, s := range seasons {
		out[i] = s.Meta()
	}
	return out
}

// checkSeasonOverlap returns the first pair of intersecting calendars.
// Calendars must already be valid.
func checkSeasonOverlap(seasons []SeasonMeta) error {
	for i := range seasons {
		for j := i + 1; j < len(seasons); j++ {
			if seasons[i].Calendar.Overlaps(seasons[j].Calendar) {
				return &SeasonOverlapError{Season1: seasons[i].Name, Season2: seasons[j].Name}
			}
		}
	}
	return nil
}
