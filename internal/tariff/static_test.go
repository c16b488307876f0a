package tariff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slot(t *testing.T, hhmm string) TimeSlot {
	t.Helper()
	s, err := ParseSlot(hhmm)
	require.NoError(t, err)
	return s
}

// exampleSeason is the four-period residential schedule used across tests
func exampleSeason(t *testing.T) Season {
	return Season{
		Name:     "Summer",
		Calendar: FullYear,
		Rules: []RuleWindow{
			{Name: "Peak", Days: Weekdays, From: slot(t, "14:00"), To: slot(t, "20:00"), Rate: MustRateKey("0.35", "0.05", "")},
			{Name: "Shoulder", Days: Weekdays, From: slot(t, "07:00"), To: slot(t, "14:00"), Rate: MustRateKey("0.25", "0.05", "")},
			{Name: "Off-Peak", Days: Weekdays, From: slot(t, "20:00"), To: slot(t, "07:00"), Rate: MustRateKey("0.15", "0.05", "")},
			{Name: "Weekend", Days: Weekends, From: 0, To: EndOfDay, Rate: MustRateKey("0.20", "0.05", "")},
		},
	}
}

func TestCompileSeasonPartition(t *testing.T) {
	grid, err := CompileSeason(exampleSeason(t))
	require.NoError(t, err)

	assert.True(t, grid.Complete())
	assert.Equal(t, DaysPerWeek*SlotsPerDay, grid.Assigned())

	assert.Equal(t, "Peak", grid.Cell(Wednesday, 28).Rule)
	assert.Equal(t, "Shoulder", grid.Cell(Monday, 14).Rule)
	assert.Equal(t, "Off-Peak", grid.Cell(Friday, 47).Rule)
	assert.Equal(t, "Off-Peak", grid.Cell(Tuesday, 0).Rule)
	assert.Equal(t, "Off-Peak", grid.Cell(Monday, 13).Rule)
	assert.Equal(t, "Weekend", grid.Cell(Saturday, 0).Rule)
	assert.Equal(t, "Weekend", grid.Cell(Sunday, 47).Rule)
	assert.True(t, grid.Cell(Thursday, 30).Rate.Buy.Equal(MustRateKey("0.35", "0", "").Buy))
}

func TestCompileSeasonGapReportsRemovedRule(t *testing.T) {
	season := exampleSeason(t)
	removed := season.Rules[2]
	season.Rules = append(season.Rules[:2], season.Rules[3:]...)

	_, err := CompileSeason(season)

	var gap *GapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "Summer", gap.Season)
	require.Len(t, gap.Missing, 1)
	assert.Equal(t, removed.Rect(), gap.Missing[0])
	assert.Equal(t, 5*(8+14), gap.Missing[0].Cells())
}

func TestCompileSeasonOverlapAtWednesday14(t *testing.T) {
	season := Season{
		Name:     "Summer",
		Calendar: FullYear,
		Rules: []RuleWindow{
			{Name: "Day", Days: AllWeek, From: 0, To: EndOfDay, Rate: MustRateKey("0.30", "0.05", "")},
			{Name: "Wednesday Special", Days: DaySet{From: Wednesday, To: Wednesday}, From: 28, To: 30, Rate: MustRateKey("0.10", "0.05", "")},
		},
	}

	_, err := CompileSeason(season)

	var overlap *OverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, Wednesday, overlap.Day)
	assert.Equal(t, TimeSlot(28), overlap.Slot)
	assert.Equal(t, "Day", overlap.Rule1)
	assert.Equal(t, "Wednesday Special", overlap.Rule2)
}

func TestCompileSeasonRejectsBadRules(t *testing.T) {
	tests := []struct {
		name string
		rule RuleWindow
	}{
		{"empty window", RuleWindow{Name: "x", Days: AllWeek, From: 10, To: 10, Rate: MustRateKey("0.1", "0", "")}},
		{"start out of range", RuleWindow{Name: "x", Days: AllWeek, From: 48, To: 2, Rate: MustRateKey("0.1", "0", "")}},
		{"midnight to midnight", RuleWindow{Name: "x", Days: AllWeek, From: 0, To: 0, Rate: MustRateKey("0.1", "0", "")}},
		{"end negative", RuleWindow{Name: "x", Days: AllWeek, From: 4, To: -1, Rate: MustRateKey("0.1", "0", "")}},
		{"bad day", RuleWindow{Name: "x", Days: DaySet{From: Monday, To: 9}, From: 0, To: EndOfDay, Rate: MustRateKey("0.1", "0", "")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSeason(Season{Name: "S", Calendar: FullYear, Rules: []RuleWindow{tt.rule}})
			var invalid *InvalidRuleError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestCompileSeasonEndAtMidnightAsZero(t *testing.T) {
	season := Season{Name: "S", Calendar: FullYear, Rules: []RuleWindow{
		{Name: "Day", Days: AllWeek, From: 0, To: 40, Rate: MustRateKey("0.2", "0", "")},
		{Name: "Evening", Days: AllWeek, From: 40, To: 0, Rate: MustRateKey("0.4", "0", "")},
	}}

	grid, err := CompileSeason(season)
	require.NoError(t, err)
	assert.True(t, grid.Complete())
	assert.Equal(t, "Evening", grid.Cell(Sunday, 47).Rule)
	assert.Equal(t, "Day", grid.Cell(Monday, 0).Rule)
	assert.Equal(t, Rect{Days: AllWeek, From: 40, To: EndOfDay}, season.Rules[1].Rect())
}

func TestCompileSeasonNeverClamps(t *testing.T) {
	season := Season{Name: "S", Calendar: FullYear, Rules: []RuleWindow{
		{Name: "Flat", Days: AllWeek, From: 0, To: EndOfDay, Rate: MustRateKey("0.10", "0.12", "")},
	}}

	_, err := CompileSeason(season)

	var rateErr *InvalidRateError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, []string{ReasonSellAboveBuy}, rateErr.Reasons)
	assert.Equal(t, "Flat", rateErr.Rule)
}

func TestCompileSeasonWrapAppliesPerDay(t *testing.T) {
	// A Mon-Sun wrap rule covers 20:00-24:00 and 00:00-07:00 of every day
	season := Season{Name: "S", Calendar: FullYear, Rules: []RuleWindow{
		{Name: "Night", Days: AllWeek, From: 40, To: 14, Rate: MustRateKey("0.1", "0", "")},
		{Name: "Day", Days: AllWeek, From: 14, To: 40, Rate: MustRateKey("0.3", "0", "")},
	}}

	grid, err := CompileSeason(season)
	require.NoError(t, err)
	assert.Equal(t, "Night", grid.Cell(Sunday, 47).Rule)
	assert.Equal(t, "Night", grid.Cell(Monday, 0).Rule)
}

func TestCompileSchedule(t *testing.T) {
	summer := exampleSeason(t)
	summer.Calendar = CalendarRange{FromMonth: 10, FromDay: 1, ToMonth: 3, ToDay: 31}
	winter := exampleSeason(t)
	winter.Name = "Winter"
	winter.Calendar = CalendarRange{FromMonth: 4, FromDay: 1, ToMonth: 9, ToDay: 30}

	t.Run("disjoint seasons", func(t *testing.T) {
		grids, err := CompileSchedule(Schedule{Name: "Test", Seasons: []Season{summer, winter}})
		require.NoError(t, err)
		require.Len(t, grids, 2)
		assert.Equal(t, "Summer", grids[0].Season.Name)
		assert.True(t, grids[1].Grid.Complete())
	})

	t.Run("overlapping seasons", func(t *testing.T) {
		w := winter
		w.Calendar.FromMonth = 3
		_, err := CompileSchedule(Schedule{Name: "Test", Seasons: []Season{summer, w}})
		var overlap *SeasonOverlapError
		require.ErrorAs(t, err, &overlap)
		assert.Equal(t, "Summer", overlap.Season1)
		assert.Equal(t, "Winter", overlap.Season2)
	})

	t.Run("impossible date", func(t *testing.T) {
		w := winter
		w.Calendar.ToDay = 31
		_, err := CompileSchedule(Schedule{Name: "Test", Seasons: []Season{summer, w}})
		var cal *CalendarError
		assert.ErrorAs(t, err, &cal)
	})

	t.Run("no seasons", func(t *testing.T) {
		_, err := CompileSchedule(Schedule{Name: "Test"})
		assert.ErrorIs(t, err, ErrNoSeasons)
	})
}

func TestActiveSeason(t *testing.T) {
	summer := Season{Name: "Summer", Calendar: CalendarRange{FromMonth: 11, FromDay: 1, ToMonth: 3, ToDay: 31}}
	winter := Season{Name: "Winter", Calendar: CalendarRange{FromMonth: 4, FromDay: 1, ToMonth: 10, ToDay: 31}}
	s := Schedule{Seasons: []Season{summer, winter}}

	got, ok := s.ActiveSeason(1, 15)
	require.True(t, ok)
	assert.Equal(t, "Summer", got.Name)

	got, ok = s.ActiveSeason(7, 1)
	require.True(t, ok)
	assert.Equal(t, "Winter", got.Name)
}
