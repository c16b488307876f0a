package tariff

import "strings"

// Validate checks compiled seasons before they are serialized. Unlike the
// compilers it does not stop at the first problem: every gap, invalid rate,
// bad calendar and overlapping season pair is collected. It returns nil or a
// ValidationErrors.
func Validate(seasons []SeasonGrid) error {
	var errs ValidationErrors
	if len(seasons) == 0 {
		return ValidationErrors{ErrNoSeasons}
	}

	valid := make([]SeasonMeta, 0, len(seasons))
	for _, sg := range seasons {
		if err := sg.Season.Calendar.Validate(); err != nil {
			errs = append(errs, &CalendarError{Season: sg.Season.Name, Err: err})
		} else {
			valid = append(valid, sg.Season)
		}

		if sg.Grid == nil {
			var all cellMask
			for d := range DaysPerWeek {
				for s := range SlotsPerDay {
					all[d][s] = true
				}
			}
			errs = append(errs, &GapError{Season: sg.Season.Name, Missing: all.rects()})
			continue
		}
		if missing := sg.Grid.Missing(); len(missing) > 0 {
			errs = append(errs, &GapError{Season: sg.Season.Name, Missing: missing})
		}
		errs = append(errs, invalidRates(sg)...)
	}

	for i := range valid {
		for j := i + 1; j < len(valid); j++ {
			if valid[i].Calendar.Overlaps(valid[j].Calendar) {
				errs = append(errs, &SeasonOverlapError{Season1: valid[i].Name, Season2: valid[j].Name})
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// invalidRates groups offending cells by rule and rate so each bad rule is
// reported once with the rectangles it occupies.
func invalidRates(sg SeasonGrid) []error {
	type group struct {
		rule    string
		rate    RateKey
		reasons []string
		mask    cellMask
	}
	var order []string
	groups := make(map[string]*group)
	sg.Grid.each(func(d Weekday, s TimeSlot, c Cell) {
		if !c.Assigned {
			return
		}
		reasons := c.Rate.Violations()
		if len(reasons) == 0 {
			return
		}
		key := c.Rule + "\x00" + c.Rate.canonical() + "\x00" + strings.Join(reasons, ",")
		g, ok := groups[key]
		if !ok {
			g = &group{rule: c.Rule, rate: c.Rate, reasons: reasons}
			groups[key] = g
			order = append(order, key)
		}
		g.mask[d][s] = true
	})

	errs := make([]error, 0, len(order))
	for _, key := range order {
		g := groups[key]
		errs = append(errs, &InvalidRateError{
			Season:  sg.Season.Name,
			Rule:    g.rule,
			Rate:    g.rate,
			Reasons: g.reasons,
			Where:   g.mask.rects(),
		})
	}
	return errs
}

// CheckSchedule reports every problem in an authored schedule in one pass.
// Each season is checked on its own, so a gap in one season does not hide a
// bad rate in another. It returns nil or a ValidationErrors.
func CheckSchedule(schedule Schedule) error {
	if len(schedule.Seasons) == 0 {
		return ValidationErrors{ErrNoSeasons}
	}

	var errs ValidationErrors
	seen := make(map[string]bool, len(schedule.Seasons))
	valid := make([]SeasonMeta, 0, len(schedule.Seasons))
	for _, season := range schedule.Seasons {
		switch {
		case season.Name == "":
			errs = append(errs, &InvalidRuleError{Reason: "season has no name"})
		case seen[season.Name]:
			errs = append(errs, &InvalidRuleError{Season: season.Name, Reason: "duplicate season name"})
		}
		seen[season.Name] = true

		if err := season.Calendar.Validate(); err != nil {
			errs = append(errs, &CalendarError{Season: season.Name, Err: err})
		} else {
			valid = append(valid, season.Meta())
		}
		errs = append(errs, seasonViolations(season)...)
	}

	for i := range valid {
		for j := i + 1; j < len(valid); j++ {
			if valid[i].Calendar.Overlaps(valid[j].Calendar) {
				errs = append(errs, &SeasonOverlapError{Season1: valid[i].Name, Season2: valid[j].Name})
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// seasonViolations collects rule errors, one overlap per pair of rules and
// the uncovered cells. Coverage is skipped when a rule window is malformed.
func seasonViolations(season Season) []error {
	var errs []error
	malformed := false
	for i, rule := range season.Rules {
		err := checkRule(season.Name, ruleName(season, i), rule)
		if err == nil {
			continue
		}
		errs = append(errs, err)
		if _, ok := err.(*InvalidRuleError); ok {
			malformed = true
		}
	}
	if malformed {
		return errs
	}

	var owners [DaysPerWeek][SlotsPerDay]int
	reported := make(map[[2]int]bool)
	for i, rule := range season.Rules {
		rule.Rect().Each(func(d Weekday, s TimeSlot) {
			o := &owners[d][s]
			if *o == 0 {
				*o = i + 1
				return
			}
			pair := [2]int{*o - 1, i}
			if reported[pair] {
				return
			}
			reported[pair] = true
			errs = append(errs, &OverlapError{
				Season: season.Name,
				Day:    d,
				Slot:   s,
				Rule1:  ruleName(season, pair[0]),
				Rule2:  ruleName(season, pair[1]),
			})
		})
	}

	var missing cellMask
	for d := range DaysPerWeek {
		for s := range SlotsPerDay {
			missing[d][s] = owners[d][s] == 0
		}
	}
	if missing.any() {
		errs = append(errs, &GapError{Season: season.Name, Missing: missing.rects()})
	}
	return errs
}
