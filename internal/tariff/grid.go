package tariff

// Cell is one half-hour of one weekday. Rule names the rule or period that
// assigned it and becomes the period name when the grid is serialized.
type Cell struct {
	Assigned bool
	Rate     RateKey
	Rule     string
}

// Grid is the canonical 7x48 weekly tariff. Rows are Monday-first weekdays,
// columns are half-hour slots.
type Grid struct {
	cells [DaysPerWeek][SlotsPerDay]Cell
}

// NewGrid returns an empty grid
func NewGrid() *Grid {
	return &Grid{}
}

// Cell returns the cell at (day, slot). Out of range coordinates return an
// unassigned cell.
func (g *Grid) Cell(day Weekday, slot TimeSlot) Cell {
	if !day.Valid() || !slot.Valid() {
		return Cell{}
	}
	return g.cells[day][slot]
}

// Set assigns a cell and reports whether (day, slot) is on the grid
func (g *Grid) Set(day Weekday, slot TimeSlot, rule string, rate RateKey) bool {
	if !day.Valid() || !slot.Valid() {
		return false
	}
	g.cells[day][slot] = Cell{Assigned: true, Rate: rate, Rule: rule}
	return true
}

// Fill assigns every cell of r
func (g *Grid) Fill(r Rect, rule string, rate RateKey) {
	r.Each(func(d Weekday, s TimeSlot) {
		g.Set(d, s, rule, rate)
	})
}

// Assigned counts assigned cells
func (g *Grid) Assigned() int {
	n := 0
	g.each(func(_ Weekday, _ TimeSlot, c Cell) {
		if c.Assigned {
			n++
		}
	})
	return n
}

// Complete reports whether all 336 cells are assigned
func (g *Grid) Complete() bool {
	return g.Assigned() == DaysPerWeek*SlotsPerDay
}

// Missing returns the unassigned cells as rectangles
func (g *Grid) Missing() []Rect {
	m := g.mask(func(c Cell) bool { return !c.Assigned })
	return m.rects()
}

// Equal compares assignment and rates cell for cell. Rule names are ignored.
func (g *Grid) Equal(o *Grid) bool {
	if g == nil || o == nil {
		return g == o
	}
	for d := range DaysPerWeek {
		for s := range SlotsPerDay {
			a, b := g.cells[d][s], o.cells[d][s]
			if a.Assigned != b.Assigned || (a.Assigned && !a.Rate.Equal(b.Rate)) {
				return false
			}
		}
	}
	return true
}

// Clone returns an independent copy
func (g *Grid) Clone() *Grid {
	c := *g
	return &c
}

// each visits cells day-major, slot-minor
func (g *Grid) each(fn func(Weekday, TimeSlot, Cell)) {
	for d := range DaysPerWeek {
		for s := range SlotsPerDay {
			fn(Weekday(d), TimeSlot(s), g.cells[d][s])
		}
	}
}

func (g *Grid) mask(pred func(Cell) bool) cellMask {
	var m cellMask
	g.each(func(d Weekday, s TimeSlot, c Cell) {
		m[d][s] = pred(c)
	})
	return m
}

// SeasonMeta identifies a season and the part of the year it covers
type SeasonMeta struct {
	Name     string        `json:"name"`
	Calendar CalendarRange `json:"calendar"`
}

// SeasonGrid pairs a season with its compiled grid
type SeasonGrid struct {
	Season SeasonMeta
	Grid   *Grid
}
