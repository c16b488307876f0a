package tariff

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsCompiledSchedule(t *testing.T) {
	grid, err := CompileSeason(exampleSeason(t))
	require.NoError(t, err)

	assert.NoError(t, Validate([]SeasonGrid{{Season: SeasonMeta{Name: "Summer", Calendar: FullYear}, Grid: grid}}))
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	bad := NewGrid()
	bad.Fill(Rect{Days: AllWeek, From: 0, To: 20}, "Night", MustRateKey("0.10", "0.20", ""))
	bad.Fill(Rect{Days: Weekdays, From: 20, To: 40}, "Day", MustRateKey("-0.05", "0", "-1"))

	seasons := []SeasonGrid{
		{Season: SeasonMeta{Name: "Summer", Calendar: CalendarRange{FromMonth: 1, FromDay: 1, ToMonth: 6, ToDay: 30}}, Grid: bad},
		{Season: SeasonMeta{Name: "Winter", Calendar: CalendarRange{FromMonth: 6, FromDay: 1, ToMonth: 12, ToDay: 31}}, Grid: nil},
		{Season: SeasonMeta{Name: "Broken", Calendar: CalendarRange{FromMonth: 2, FromDay: 30, ToMonth: 3, ToDay: 1}}, Grid: nil},
	}

	err := Validate(seasons)
	require.Error(t, err)

	var violations ValidationErrors
	require.True(t, errors.As(err, &violations))

	var gaps, rates, overlaps, calendars int
	for _, v := range violations {
		switch v.(type) {
		case *GapError:
			gaps++
		case *InvalidRateError:
			rates++
		case *SeasonOverlapError:
			overlaps++
		case *CalendarError:
			calendars++
		}
	}
	assert.Equal(t, 3, gaps)
	assert.Equal(t, 2, rates)
	assert.Equal(t, 1, overlaps)
	assert.Equal(t, 1, calendars)

	var rateErr *InvalidRateError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "Night", rateErr.Rule)
	assert.Equal(t, []Rect{{Days: AllWeek, From: 0, To: 20}}, rateErr.Where)
}

func TestValidateReportsAllReasons(t *testing.T) {
	grid := NewGrid()
	grid.Fill(Rect{Days: AllWeek, From: 0, To: EndOfDay}, "Flat", MustRateKey("-0.05", "0", "-1"))

	err := Validate([]SeasonGrid{{Season: SeasonMeta{Name: "S", Calendar: FullYear}, Grid: grid}})

	var rateErr *InvalidRateError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, []string{ReasonNegativeBuy, ReasonNegativeDemand, ReasonSellAboveBuy}, rateErr.Reasons)
}

func TestValidateNoSeasons(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), ErrNoSeasons)
}

func TestRateBoundsOnAcceptedGrids(t *testing.T) {
	grid, err := CompileSeason(exampleSeason(t))
	require.NoError(t, err)
	grid.each(func(_ Weekday, _ TimeSlot, c Cell) {
		assert.False(t, c.Rate.Sell.IsNegative())
		assert.False(t, c.Rate.Sell.GreaterThan(c.Rate.Buy))
		assert.False(t, c.Rate.Demand.IsNegative())
	})
}

func TestCheckScheduleReportsEverySeason(t *testing.T) {
	schedule := Schedule{Name: "Two", Seasons: []Season{
		{Name: "Summer", Calendar: CalendarRange{FromMonth: 11, FromDay: 1, ToMonth: 4, ToDay: 30}, Rules: []RuleWindow{
			{Name: "Morning", Days: AllWeek, From: 0, To: 24, Rate: MustRateKey("0.2", "0.05", "")},
		}},
		{Name: "Winter", Calendar: CalendarRange{FromMonth: 4, FromDay: 1, ToMonth: 10, ToDay: 31}, Rules: []RuleWindow{
			{Name: "Flat", Days: AllWeek, From: 0, To: EndOfDay, Rate: MustRateKey("0.2", "0.5", "")},
			{Name: "Late", Days: Weekends, From: 44, To: 0, Rate: MustRateKey("0.1", "0", "")},
		}},
	}}

	err := CheckSchedule(schedule)

	var violations ValidationErrors
	require.True(t, errors.As(err, &violations))
	require.Len(t, violations, 4)

	var gap *GapError
	require.ErrorAs(t, violations[0], &gap)
	assert.Equal(t, "Summer", gap.Season)
	assert.Equal(t, []Rect{{Days: AllWeek, From: 24, To: EndOfDay}}, gap.Missing)

	var rateErr *InvalidRateError
	require.ErrorAs(t, violations[1], &rateErr)
	assert.Equal(t, "Winter", rateErr.Season)
	assert.Equal(t, "Flat", rateErr.Rule)

	var overlap *OverlapError
	require.ErrorAs(t, violations[2], &overlap)
	assert.Equal(t, "Flat", overlap.Rule1)
	assert.Equal(t, "Late", overlap.Rule2)
	assert.Equal(t, Saturday, overlap.Day)

	var seasons *SeasonOverlapError
	require.ErrorAs(t, violations[3], &seasons)
	assert.Equal(t, "Summer", seasons.Season1)
}

func TestCheckScheduleMalformedRuleSkipsCoverage(t *testing.T) {
	err := CheckSchedule(Schedule{Seasons: []Season{{Name: "S", Calendar: FullYear, Rules: []RuleWindow{
		{Name: "Broken", Days: AllWeek, From: 10, To: 10, Rate: MustRateKey("0.1", "0", "")},
	}}}})

	var violations ValidationErrors
	require.True(t, errors.As(err, &violations))
	require.Len(t, violations, 1)
	var invalid *InvalidRuleError
	assert.ErrorAs(t, violations[0], &invalid)
}

func TestCheckScheduleAcceptsValid(t *testing.T) {
	assert.NoError(t, CheckSchedule(Schedule{Seasons: []Season{exampleSeason(t)}}))
	assert.ErrorIs(t, CheckSchedule(Schedule{}), ErrNoSeasons)
}
