package tariff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotAt(t *testing.T) {
	tests := []struct {
		hour, minute int
		want         TimeSlot
		wantErr      bool
	}{
		{0, 0, 0, false},
		{14, 0, 28, false},
		{23, 30, 47, false},
		{24, 0, EndOfDay, false},
		{7, 15, 0, true},
		{24, 30, 0, true},
		{-1, 0, 0, true},
	}
	for _, tt := range tests {
		got, err := SlotAt(tt.hour, tt.minute)
		if tt.wantErr {
			var misaligned *MisalignedTimeError
			assert.ErrorAs(t, err, &misaligned, "%02d:%02d", tt.hour, tt.minute)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestSlotLabels(t *testing.T) {
	assert.Equal(t, "PERIOD_20_00", TimeSlot(40).PeriodKey())
	assert.Equal(t, "PERIOD_23_30", TimeSlot(47).PeriodKey())
	assert.Equal(t, "14:30", TimeSlot(29).String())
	assert.Equal(t, "24:00", EndOfDay.String())
	assert.Equal(t, 0, EndOfDay.Hour())
}

func TestWeekdayOf(t *testing.T) {
	// 2025-01-13 is a Monday
	assert.Equal(t, Monday, WeekdayOf(time.Date(2025, 1, 13, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, Sunday, WeekdayOf(time.Date(2025, 1, 19, 12, 0, 0, 0, time.UTC)))
}

func TestDaySet(t *testing.T) {
	wrap := DaySet{From: Friday, To: Monday}
	assert.Equal(t, []Weekday{Friday, Saturday, Sunday, Monday}, wrap.Days())
	assert.True(t, wrap.Contains(Sunday))
	assert.False(t, wrap.Contains(Wednesday))
	assert.Equal(t, "Fri-Mon", wrap.String())
	assert.Equal(t, "Weekdays", Weekdays.Label())

	parsed, err := ParseDaySet("sat-sun")
	require.NoError(t, err)
	assert.Equal(t, Weekends, parsed)

	parsed, err = ParseDaySet("Wednesday")
	require.NoError(t, err)
	assert.Equal(t, DaySet{From: Wednesday, To: Wednesday}, parsed)

	_, err = ParseDaySet("Funday")
	assert.Error(t, err)
}

func TestMaskRects(t *testing.T) {
	t.Run("wrapping day run", func(t *testing.T) {
		var m cellMask
		Rect{Days: DaySet{From: Saturday, To: Monday}, From: 10, To: 12}.Each(func(d Weekday, s TimeSlot) {
			m[d][s] = true
		})
		assert.Equal(t, []Rect{{Days: DaySet{From: Saturday, To: Monday}, From: 10, To: 12}}, m.rects())
	})

	t.Run("distinct rows", func(t *testing.T) {
		var m cellMask
		m[Monday][0] = true
		m[Wednesday][0] = true
		m[Wednesday][1] = true
		got := m.rects()
		assert.Equal(t, []Rect{
			{Days: DaySet{From: Monday, To: Monday}, From: 0, To: 1},
			{Days: DaySet{From: Wednesday, To: Wednesday}, From: 0, To: 2},
		}, got)
	})

	t.Run("union equals mask", func(t *testing.T) {
		var m cellMask
		for d := range DaysPerWeek {
			for s := range SlotsPerDay {
				m[d][s] = (d*7+s*3)%5 < 2
			}
		}
		var union cellMask
		count := 0
		for _, r := range m.rects() {
			r.Each(func(d Weekday, s TimeSlot) {
				assert.False(t, union[d][s], "cell %s %s covered twice", d, s)
				union[d][s] = true
				count++
			})
		}
		assert.Equal(t, m, union)
		assert.Greater(t, count, 0)
	})
}

func TestCalendarRange(t *testing.T) {
	summer := CalendarRange{FromMonth: 11, FromDay: 1, ToMonth: 3, ToDay: 31}
	winter := CalendarRange{FromMonth: 4, FromDay: 1, ToMonth: 10, ToDay: 31}
	assert.False(t, summer.Overlaps(winter))
	assert.True(t, summer.Overlaps(FullYear))
	assert.True(t, summer.Contains(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)))
	assert.False(t, summer.Contains(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "11/1 - 3/31", summer.String())

	assert.NoError(t, CalendarRange{FromMonth: 2, FromDay: 29, ToMonth: 3, ToDay: 1}.Validate())
	assert.Error(t, CalendarRange{FromMonth: 13, FromDay: 1, ToMonth: 3, ToDay: 1}.Validate())
	assert.Error(t, CalendarRange{FromMonth: 4, FromDay: 31, ToMonth: 5, ToDay: 1}.Validate())
}

func TestGridEqualIgnoresRuleNames(t *testing.T) {
	a := NewGrid()
	a.Fill(Rect{Days: AllWeek, From: 0, To: EndOfDay}, "A", MustRateKey("0.2", "0.1", ""))
	b := NewGrid()
	b.Fill(Rect{Days: AllWeek, From: 0, To: EndOfDay}, "B", MustRateKey("0.2000", "0.10", "0"))
	assert.True(t, a.Equal(b))

	b.Set(Sunday, 47, "B", MustRateKey("0.3", "0.1", ""))
	assert.False(t, a.Equal(b))
}

func TestGridIgnoresOutOfRangeCells(t *testing.T) {
	g := NewGrid()
	assert.False(t, g.Set(Weekday(7), 0, "x", MustRateKey("0.1", "0", "")))
	assert.False(t, g.Set(Monday, EndOfDay, "x", MustRateKey("0.1", "0", "")))
	assert.False(t, g.Set(Monday, -1, "x", MustRateKey("0.1", "0", "")))
	assert.True(t, g.Set(Monday, 0, "x", MustRateKey("0.1", "0", "")))

	assert.Equal(t, Cell{}, g.Cell(Weekday(-1), 0))
	assert.Equal(t, Cell{}, g.Cell(Sunday, 48))
	assert.Equal(t, 1, g.Assigned())
}
