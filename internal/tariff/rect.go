package tariff

import (
	"fmt"
	"sort"
)

// Rect is a day range crossed with a slot range. To < From wraps past
// midnight on every day of Days; To == EndOfDay runs to midnight.
type Rect struct {
	Days DaySet   `json:"days"`
	From TimeSlot `json:"from"`
	To   TimeSlot `json:"to"`
}

// Wraps reports whether the slot range crosses midnight
func (r Rect) Wraps() bool {
	return r.To < r.From
}

// Each visits every covered cell
func (r Rect) Each(fn func(Weekday, TimeSlot)) {
	for _, d := range r.Days.Days() {
		if r.Wraps() {
			for s := r.From; s < EndOfDay; s++ {
				fn(d, s)
			}
			for s := TimeSlot(0); s < r.To; s++ {
				fn(d, s)
			}
			continue
		}
		for s := r.From; s < r.To; s++ {
			fn(d, s)
		}
	}
}

// Cells counts the covered cells
func (r Rect) Cells() int {
	n := 0
	r.Each(func(Weekday, TimeSlot) { n++ })
	return n
}

func (r Rect) String() string {
	return fmt.Sprintf("%s %s-%s", r.Days, r.From, r.To)
}

// cellMask marks a subset of the weekly grid
type cellMask [DaysPerWeek][SlotsPerDay]bool

func (m *cellMask) any() bool {
	for d := range DaysPerWeek {
		if rowAny(m[d]) {
			return true
		}
	}
	return false
}

func rowAny(row [SlotsPerDay]bool) bool {
	for _, v := range row {
		if v {
			return true
		}
	}
	return false
}

// rects decomposes the mask into rectangles whose union is exactly the mask.
// Days with identical rows are grouped, the group is split into wrap-aware
// runs of consecutive days, and each row into wrap-aware runs of slots.
func (m *cellMask) rects() []Rect {
	var out []Rect
	var grouped [DaysPerWeek]bool
	for d := range DaysPerWeek {
		if grouped[d] || !rowAny(m[d]) {
			continue
		}
		days := []Weekday{Weekday(d)}
		grouped[d] = true
		for e := d + 1; e < DaysPerWeek; e++ {
			if !grouped[e] && m[e] == m[d] {
				days = append(days, Weekday(e))
				grouped[e] = true
			}
		}
		for _, dr := range dayRuns(days) {
			for _, sr := range slotRuns(m[d]) {
				out = append(out, Rect{Days: dr, From: sr.From, To: sr.To})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Days.From != out[j].Days.From {
			return out[i].Days.From < out[j].Days.From
		}
		return out[i].From < out[j].From
	})
	return out
}

// dayRuns splits ascending days into consecutive ranges, joining a run that
// ends on Sunday with one that starts on Monday.
func dayRuns(days []Weekday) []DaySet {
	var runs []DaySet
	for _, d := range days {
		if n := len(runs); n > 0 && runs[n-1].To+1 == d {
			runs[n-1].To = d
			continue
		}
		runs = append(runs, DaySet{From: d, To: d})
	}
	if n := len(runs); n > 1 && runs[0].From == Monday && runs[n-1].To == Sunday {
		runs[n-1].To = runs[0].To
		runs = runs[1:]
	}
	return runs
}

type slotRun struct {
	From, To TimeSlot
}

// slotRuns splits a row into half-open runs, joining a run that reaches
// midnight with one that starts at midnight.
func slotRuns(row [SlotsPerDay]bool) []slotRun {
	var runs []slotRun
	for s := 0; s < SlotsPerDay; s++ {
		if !row[s] {
			continue
		}
		if n := len(runs); n > 0 && runs[n-1].To == TimeSlot(s) {
			runs[n-1].To++
			continue
		}
		runs = append(runs, slotRun{From: TimeSlot(s), To: TimeSlot(s + 1)})
	}
	if n := len(runs); n > 1 && runs[0].From == 0 && runs[n-1].To == EndOfDay {
		runs[n-1].To = runs[0].To
		runs = runs[1:]
	}
	return runs
}
