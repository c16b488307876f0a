package tariff

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultIntervalMinutes is the market interval assumed when a sample omits it
	DefaultIntervalMinutes = 5
	// DefaultForecastHorizon bounds how far ahead a published slot may be sourced
	DefaultForecastHorizon = 24 * time.Hour
)

// Channel distinguishes the import (buy) and export (sell) price series
type Channel string

const (
	Import Channel = "import"
	Export Channel = "export"
)

// HorizonDay is the calendar day a sample or slot belongs to, relative to now
type HorizonDay int

const (
	Today HorizonDay = iota
	Tomorrow
)

func (h HorizonDay) String() string {
	switch h {
	case Today:
		return "today"
	case Tomorrow:
		return "tomorrow"
	}
	return fmt.Sprintf("HorizonDay(%d)", int(h))
}

// PriceSample is one market interval price. EndTime is the interval end in
// local market time; Price is already in currency units per kWh with the
// export sign convention applied.
type PriceSample struct {
	EndTime         time.Time       `json:"endTime"`
	Price           decimal.Decimal `json:"price"`
	IntervalMinutes int             `json:"intervalMinutes,omitempty"`
}

// PriceFeed holds the four sample series a dynamic grid is built from
type PriceFeed struct {
	ImportToday    []PriceSample `json:"importToday"`
	ImportTomorrow []PriceSample `json:"importTomorrow"`
	ExportToday    []PriceSample `json:"exportToday"`
	ExportTomorrow []PriceSample `json:"exportTomorrow"`
}

// DynamicOptions tunes CompileDynamic
type DynamicOptions struct {
	// AdvanceNoticeSlots shifts each published slot to show the price this
	// many slots later, so the controller sees changes early.
	AdvanceNoticeSlots int
	// Horizon defaults to DefaultForecastHorizon
	Horizon time.Duration
	// Location defaults to now's location
	Location *time.Location
}

// Bucket is the average of the samples falling into one half-hour
type Bucket struct {
	Price    decimal.Decimal
	Samples  int
	Expected int
}

// Partial reports whether fewer samples arrived than the interval implies
func (b Bucket) Partial() bool {
	return b.Samples > 0 && b.Samples < b.Expected
}

// SlotSource records where a published slot's price came from
type SlotSource struct {
	Slot          TimeSlot
	Day           HorizonDay
	SourceDay     HorizonDay
	SourceSlot    TimeSlot
	ImportSamples int
	ExportSamples int
	Partial       bool
	BuyClamped    bool
	SellClamped   bool
}

// DynamicResult is a compiled dynamic grid plus per-slot provenance
type DynamicResult struct {
	Grid    *Grid
	Sources [SlotsPerDay]SlotSource
}

// PartialSlots counts slots averaged from an incomplete bucket
func (r *DynamicResult) PartialSlots() int {
	n := 0
	for _, s := range r.Sources {
		if s.Partial {
			n++
		}
	}
	return n
}

// ClampedSlots counts slots whose buy or sell price was clamped
func (r *DynamicResult) ClampedSlots() int {
	n := 0
	for _, s := range r.Sources {
		if s.BuyClamped || s.SellClamped {
			n++
		}
	}
	return n
}

// TomorrowSlots counts slots sourced from tomorrow's forecast
func (r *DynamicResult) TomorrowSlots() int {
	n := 0
	for _, s := range r.Sources {
		if s.SourceDay == Tomorrow {
			n++
		}
	}
	return n
}

// CompileDynamic builds a rolling 24-hour grid from a price feed. Slot k is
// filled from today when k >= slotOf(now) - advance notice, otherwise from
// tomorrow, and shows the price of slot k + advance notice. Every weekday
// row carries the same 48 rates.
func CompileDynamic(now time.Time, feed PriceFeed, opts DynamicOptions) (*DynamicResult, error) {
	loc := opts.Location
	if loc == nil {
		loc = now.Location()
	}
	horizon := opts.Horizon
	if horizon <= 0 {
		horizon = DefaultForecastHorizon
	}
	notice := opts.AdvanceNoticeSlots
	if notice < 0 || notice >= SlotsPerDay {
		return nil, fmt.Errorf("advance notice of %d slots is out of range", notice)
	}

	now = now.In(loc)
	days := [2]time.Time{
		time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc),
		time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, loc),
	}

	var imports, exports [2][SlotsPerDay]Bucket
	var err error
	series := []struct {
		samples []PriceSample
		into    *[SlotsPerDay]Bucket
		day     HorizonDay
	}{
		{feed.ImportToday, &imports[Today], Today},
		{feed.ImportTomorrow, &imports[Tomorrow], Tomorrow},
		{feed.ExportToday, &exports[Today], Today},
		{feed.ExportTomorrow, &exports[Tomorrow], Tomorrow},
	}
	for _, s := range series {
		if *s.into, err = Resample(s.samples, days[s.day]); err != nil {
			return nil, fmt.Errorf("%s samples: %w", s.day, err)
		}
	}

	current := int(SlotOf(now))
	result := &DynamicResult{Grid: NewGrid()}
	for k := range SlotsPerDay {
		day := Today
		if k < current-notice {
			day = Tomorrow
		}
		srcDay, src := day, k+notice
		if src >= SlotsPerDay {
			srcDay, src = day+1, src-SlotsPerDay
		}
		slot := TimeSlot(k)
		if srcDay > Tomorrow {
			return nil, &StaleDataError{Slot: slot, HorizonDay: srcDay, Channel: Import, Reason: ReasonBeyondHorizon}
		}

		start := time.Date(days[srcDay].Year(), days[srcDay].Month(), days[srcDay].Day(), 0, src*SlotMinutes, 0, 0, loc)
		if start.Sub(now) > horizon {
			return nil, &StaleDataError{Slot: slot, HorizonDay: srcDay, Channel: Import, Reason: ReasonBeyondHorizon}
		}

		imp, exp := imports[srcDay][src], exports[srcDay][src]
		if imp.Samples == 0 {
			return nil, &StaleDataError{Slot: slot, HorizonDay: srcDay, Channel: Import, Reason: ReasonNoSamples}
		}
		if exp.Samples == 0 {
			return nil, &StaleDataError{Slot: slot, HorizonDay: srcDay, Channel: Export, Reason: ReasonNoSamples}
		}

		rate := RateKey{Buy: imp.Price, Sell: exp.Price}.Round()
		rate, buyClamped, sellClamped := rate.Clamp()
		for d := range DaysPerWeek {
			result.Grid.Set(Weekday(d), slot, slot.PeriodKey(), rate)
		}
		result.Sources[k] = SlotSource{
			Slot:          slot,
			Day:           day,
			SourceDay:     srcDay,
			SourceSlot:    TimeSlot(src),
			ImportSamples: imp.Samples,
			ExportSamples: exp.Samples,
			Partial:       imp.Partial() || exp.Partial(),
			BuyClamped:    buyClamped,
			SellClamped:   sellClamped,
		}
	}
	return result, nil
}

// Resample averages samples into half-hour buckets for the day starting at
// midnight. A sample belongs to the bucket containing its interval start,
// so a 5-minute sample ending 20:05 lands in 20:00.
func Resample(samples []PriceSample, midnight time.Time) ([SlotsPerDay]Bucket, error) {
	var buckets [SlotsPerDay]Bucket
	sums := make([]decimal.Decimal, SlotsPerDay)
	loc := midnight.Location()
	y, m, d := midnight.Date()

	for _, sample := range samples {
		interval := sample.IntervalMinutes
		if interval == 0 {
			interval = DefaultIntervalMinutes
		}
		if interval < 0 || SlotMinutes%interval != 0 {
			return buckets, &MisalignedTimeError{
				Value:  fmt.Sprintf("%d minutes", interval),
				Reason: "interval does not divide 30 minutes",
			}
		}

		end := sample.EndTime.In(loc)
		if end.Second() != 0 || end.Nanosecond() != 0 || end.Minute()%interval != 0 {
			return buckets, &MisalignedTimeError{
				Value:  end.Format(time.RFC3339),
				Reason: fmt.Sprintf("not on a %d-minute boundary", interval),
			}
		}
		start := end.Add(-time.Duration(interval) * time.Minute)
		if sy, sm, sd := start.Date(); sy != y || sm != m || sd != d {
			return buckets, &MisalignedTimeError{
				Value:  end.Format(time.RFC3339),
				Reason: "interval starts outside " + midnight.Format(time.DateOnly),
			}
		}

		k := SlotOf(start)
		sums[k] = sums[k].Add(sample.Price)
		buckets[k].Samples++
		buckets[k].Expected = max(buckets[k].Expected, SlotMinutes/interval)
	}

	for k := range buckets {
		if n := buckets[k].Samples; n > 0 {
			buckets[k].Price = sums[k].Div(decimal.NewFromInt(int64(n)))
		}
	}
	return buckets, nil
}

const (
	// DynamicSeason is the single full-year season a dynamic grid publishes as
	DynamicSeason = "Summer"
	// DynamicPlaceholder is the empty companion season some controllers require
	DynamicPlaceholder = "Winter"
)

// Seasons wraps the grid as one full-year season
func (r *DynamicResult) Seasons() []SeasonGrid {
	return []SeasonGrid{{
		Season: SeasonMeta{Name: DynamicSeason, Calendar: FullYear},
		Grid:   r.Grid,
	}}
}

// DynamicDocument renders a dynamic grid with the empty placeholder season
func DynamicDocument(meta DocumentMeta, grid *Grid) (*TariffDocument, error) {
	meta.Placeholders = append(meta.Placeholders, DynamicPlaceholder)
	if meta.SellName == "" {
		meta.SellName = meta.Name
	}
	return ToDocument(meta, []SeasonGrid{{
		Season: SeasonMeta{Name: DynamicSeason, Calendar: FullYear},
		Grid:   grid,
	}})
}
