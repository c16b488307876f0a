package tariff

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// ErrNilDocument is returned when parsing a nil document
var ErrNilDocument = errors.New("nil tariff document")

// period is a group of cells sharing a rule name and rate
type period struct {
	name  string
	rate  RateKey
	rects []Rect
}

// seasonPeriods groups a complete grid into named periods in order of first
// appearance. Cells without a rule name are grouped per slot and named after it.
func seasonPeriods(g *Grid) []period {
	type group struct {
		rule string
		rate RateKey
		mask cellMask
	}
	var order []string
	groups := make(map[string]*group)
	g.each(func(d Weekday, s TimeSlot, c Cell) {
		rule := c.Rule
		if rule == "" {
			rule = s.PeriodKey()
		}
		key := rule + "\x00" + c.Rate.canonical()
		grp, ok := groups[key]
		if !ok {
			grp = &group{rule: rule, rate: c.Rate}
			groups[key] = grp
			order = append(order, key)
		}
		grp.mask[d][s] = true
	})

	used := make(map[string]bool, len(order))
	out := make([]period, 0, len(order))
	for _, key := range order {
		grp := groups[key]
		name := grp.rule
		for n := 2; used[name]; n++ {
			name = grp.rule + "_" + strconv.Itoa(n)
		}
		used[name] = true
		out = append(out, period{name: name, rate: grp.rate, rects: grp.mask.rects()})
	}
	return out
}

func allRates() map[string]SeasonRates {
	return map[string]SeasonRates{
		AllKey: {Rates: map[string]Amount{AllKey: NewAmount(decimal.Zero)}},
	}
}

func charge(name string, amount decimal.Decimal) Charge {
	c := Charge{Name: name}
	if !amount.IsZero() {
		a := NewAmount(amount)
		c.Amount = &a
	}
	return c
}

// ToDocument renders validated seasons into a tariff document. The seasons
// are validated again first, so an invalid grid never produces a document.
func ToDocument(meta DocumentMeta, seasons []SeasonGrid) (*TariffDocument, error) {
	if err := Validate(seasons); err != nil {
		return nil, err
	}

	currency := meta.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	sellName := meta.SellName
	if sellName == "" {
		sellName = meta.Name + " (Feed-in)"
	}

	doc := &TariffDocument{
		Version:       DocumentVersion,
		Code:          meta.Code,
		Name:          meta.Name,
		Utility:       meta.Utility,
		Currency:      currency,
		DailyCharges:  []Charge{charge(DailyChargeName, meta.DailyCharge)},
		DemandCharges: allRates(),
		EnergyCharges: allRates(),
		Seasons:       make(map[string]SeasonDoc, len(seasons)+len(meta.Placeholders)),
	}
	if !meta.MonthlyCharge.IsZero() {
		a := NewAmount(meta.MonthlyCharge)
		doc.MonthlyCharges = &a
	}
	sell := &SellTariff{
		Name:          sellName,
		Utility:       meta.Utility,
		DailyCharges:  []Charge{{Name: DailyChargeName}},
		DemandCharges: allRates(),
		EnergyCharges: allRates(),
		Seasons:       make(map[string]SeasonDoc, len(seasons)+len(meta.Placeholders)),
	}

	for _, sg := range seasons {
		name := sg.Season.Name
		if _, dup := doc.Seasons[name]; dup || name == AllKey {
			return nil, &InvalidRuleError{Season: name, Reason: "duplicate or reserved season name"}
		}

		sd := SeasonDoc{
			FromMonth:  sg.Season.Calendar.FromMonth,
			FromDay:    sg.Season.Calendar.FromDay,
			ToMonth:    sg.Season.Calendar.ToMonth,
			ToDay:      sg.Season.Calendar.ToDay,
			TOUPeriods: make(map[string]TOUPeriod),
		}
		buy := make(map[string]Amount)
		export := make(map[string]Amount)
		var demand map[string]Amount
		for _, p := range seasonPeriods(sg.Grid) {
			windows := make([]PeriodWindow, len(p.rects))
			for i, r := range p.rects {
				windows[i] = windowOf(r)
			}
			sd.TOUPeriods[p.name] = TOUPeriod{Periods: windows}
			buy[p.name] = NewAmount(p.rate.Buy)
			export[p.name] = NewAmount(p.rate.Sell)
			if !p.rate.Demand.IsZero() {
				if demand == nil {
					demand = make(map[string]Amount)
				}
				demand[p.name] = NewAmount(p.rate.Demand)
			}
		}

		doc.Seasons[name] = sd
		doc.EnergyCharges[name] = SeasonRates{Rates: buy}
		doc.DemandCharges[name] = SeasonRates{Rates: demand}
		sell.Seasons[name] = sd
		sell.EnergyCharges[name] = SeasonRates{Rates: export}
		sell.DemandCharges[name] = SeasonRates{Rates: maps.Clone(demand)}
	}

	for _, name := range meta.Placeholders {
		if _, dup := doc.Seasons[name]; dup {
			continue
		}
		empty := SeasonDoc{TOUPeriods: map[string]TOUPeriod{}}
		doc.Seasons[name] = empty
		doc.EnergyCharges[name] = SeasonRates{}
		doc.DemandCharges[name] = SeasonRates{}
		sell.Seasons[name] = empty
		sell.EnergyCharges[name] = SeasonRates{}
		sell.DemandCharges[name] = SeasonRates{}
	}

	doc.SellTariff = sell
	return doc, nil
}

// FromDocument parses a document back into compiled seasons, ordered by
// calendar start. Placeholder seasons and the ALL entries are ignored.
// Windows are re-expanded through CompileSeason, so overlapping or
// incomplete documents are rejected with the same errors as authored rules.
func FromDocument(doc *TariffDocument) ([]SeasonGrid, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}

	names := make([]string, 0, len(doc.Seasons))
	for name, sd := range doc.Seasons {
		if name == AllKey || sd.Placeholder() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]SeasonGrid, 0, len(names))
	for _, name := range names {
		sd := doc.Seasons[name]
		season := Season{
			Name:     name,
			Calendar: CalendarRange{FromMonth: sd.FromMonth, FromDay: sd.FromDay, ToMonth: sd.ToMonth, ToDay: sd.ToDay},
		}
		if err := season.Calendar.Validate(); err != nil {
			return nil, &CalendarError{Season: name, Err: err}
		}

		periods := make([]string, 0, len(sd.TOUPeriods))
		for pn := range sd.TOUPeriods {
			periods = append(periods, pn)
		}
		sort.Strings(periods)

		for _, pn := range periods {
			rate, err := documentRate(doc, name, pn)
			if err != nil {
				return nil, err
			}
			for _, w := range sd.TOUPeriods[pn].Periods {
				r, err := w.rect()
				if err != nil {
					return nil, fmt.Errorf("season %q period %q: %w", name, pn, err)
				}
				season.Rules = append(season.Rules, RuleWindow{Name: pn, Days: r.Days, From: r.From, To: r.To, Rate: rate})
			}
		}

		grid, err := CompileSeason(season)
		if err != nil {
			return nil, err
		}
		out = append(out, SeasonGrid{Season: season.Meta(), Grid: grid})
	}
	if len(out) == 0 {
		return nil, ErrNoSeasons
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Season.Calendar, out[j].Season.Calendar
		return ordinal(a.FromMonth, a.FromDay) < ordinal(b.FromMonth, b.FromDay)
	})
	if err := checkSeasonOverlap(seasonMetas(out)); err != nil {
		return nil, err
	}
	return out, nil
}

func documentRate(doc *TariffDocument, season, name string) (RateKey, error) {
	buy, ok := doc.EnergyCharges[season].Rates[name]
	if !ok {
		return RateKey{}, fmt.Errorf("season %q period %q: no energy charge", season, name)
	}
	rate := RateKey{Buy: buy.Decimal}
	if doc.SellTariff != nil {
		if sell, ok := doc.SellTariff.EnergyCharges[season].Rates[name]; ok {
			rate.Sell = sell.Decimal
		}
	}
	if demand, ok := doc.DemandCharges[season].Rates[name]; ok {
		rate.Demand = demand.Decimal
	}
	return rate, nil
}

func seasonMetas(seasons []SeasonGrid) []SeasonMeta {
	out := make([]SeasonMeta, len(seasons))
	for i, sg := range seasons {
		out[i] = sg.Season
	}
	return out
}

// Rules recovers the grid as one rule per rectangle of each period, in the
// order the serializer would name them
func (sg SeasonGrid) Rules() []RuleWindow {
	var rules []RuleWindow
	for _, p := range seasonPeriods(sg.Grid) {
		for _, r := range p.rects {
			rules = append(rules, RuleWindow{Name: p.name, Days: r.Days, From: r.From, To: r.To, Rate: p.rate})
		}
	}
	return rules
}

// DocumentSchedule decodes a document into an editable schedule
func DocumentSchedule(doc *TariffDocument) (Schedule, error) {
	seasons, err := FromDocument(doc)
	if err != nil {
		return Schedule{}, err
	}
	s := Schedule{
		Name:     doc.Name,
		Utility:  doc.Utility,
		Code:     doc.Code,
		Currency: doc.Currency,
	}
	for _, c := range doc.DailyCharges {
		if c.Amount != nil {
			s.DailyCharge = s.DailyCharge.Add(c.Amount.Decimal)
		}
	}
	if doc.MonthlyCharges != nil {
		s.MonthlyCharge = doc.MonthlyCharges.Decimal
	}
	for _, sg := range seasons {
		s.Seasons = append(s.Seasons, Season{Name: sg.Season.Name, Calendar: sg.Season.Calendar, Rules: sg.Rules()})
	}
	return s, nil
}
