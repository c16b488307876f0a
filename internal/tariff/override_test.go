package tariff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overrideGrid() *Grid {
	g := NewGrid()
	g.Fill(Rect{Days: AllWeek, From: 0, To: 16}, "Night", MustRateKey("0.12", "0.03", ""))
	g.Fill(Rect{Days: AllWeek, From: 16, To: 32}, "Day", MustRateKey("0.25", "0.08", ""))
	g.Fill(Rect{Days: AllWeek, From: 32, To: EndOfDay}, "Evening", MustRateKey("0.40", "0.15", ""))
	return g
}

func TestApplyOverrideCharge(t *testing.T) {
	g := overrideGrid()
	out := ApplyOverride(g, OverrideCharge)

	rate := out.Cell(Tuesday, 40).Rate
	assert.Equal(t, "0.12", rate.Buy.String())
	// max sell 0.15 exceeds min buy, so sell is clamped to buy
	assert.Equal(t, "0.12", rate.Sell.String())
	assert.Equal(t, "0.4", g.Cell(Tuesday, 40).Rate.Buy.String(), "input grid untouched")
	assert.NoError(t, Validate([]SeasonGrid{{Season: SeasonMeta{Name: "S", Calendar: FullYear}, Grid: out}}))
}

func TestApplyOverrideDischarge(t *testing.T) {
	out := ApplyOverride(overrideGrid(), OverrideDischarge)

	rate := out.Cell(Monday, 0).Rate
	assert.Equal(t, "0.4", rate.Buy.String())
	assert.Equal(t, "0.15", rate.Sell.String())
}

func TestApplyOverrideFallbacks(t *testing.T) {
	g := NewGrid()
	g.Fill(Rect{Days: AllWeek, From: 0, To: EndOfDay}, "Free", MustRateKey("0", "0", ""))

	out := ApplyOverride(g, OverrideDischarge)
	rate := out.Cell(Monday, 0).Rate
	assert.Equal(t, "0.3", rate.Buy.String())
	assert.Equal(t, "0.2", rate.Sell.String())
}

func TestApplyOverrideNone(t *testing.T) {
	g := overrideGrid()
	assert.True(t, g.Equal(ApplyOverride(g, OverrideNone)))
}

func TestParseOverrideMode(t *testing.T) {
	mode, err := ParseOverrideMode("Charge")
	require.NoError(t, err)
	assert.Equal(t, OverrideCharge, mode)

	mode, err = ParseOverrideMode("")
	require.NoError(t, err)
	assert.Equal(t, OverrideNone, mode)

	_, err = ParseOverrideMode("boost")
	assert.Error(t, err)
}

func TestOverrideMeta(t *testing.T) {
	meta := OverrideMeta(DocumentMeta{Name: "Amber", Code: "TARIFF_SYNC:AMBER"}, OverrideCharge)
	assert.Equal(t, "TARIFF_SYNC:MANUAL:CHARGE", meta.Code)
	assert.Equal(t, meta.Name, meta.SellName)

	unchanged := OverrideMeta(DocumentMeta{Name: "Amber"}, OverrideNone)
	assert.Equal(t, "Amber", unchanged.Name)
}

func TestPreviewSchedule(t *testing.T) {
	schedule := Schedule{
		Name:        "Residential",
		Utility:     "Energex",
		DailyCharge: MustRateKey("1.1", "0", "").Buy,
		Seasons:     []Season{exampleSeason(t)},
	}

	p := PreviewSchedule(schedule)
	assert.Equal(t, "AUD", p.Currency)
	assert.Equal(t, "$1.10/day", p.DailyCharge)
	require.Len(t, p.Seasons, 1)
	assert.Equal(t, "1/1 - 12/31", p.Seasons[0].DateRange)
	require.Len(t, p.Seasons[0].Periods, 4)

	offPeak := p.Seasons[0].Periods[2]
	assert.Equal(t, "Off-Peak", offPeak.Name)
	assert.Equal(t, "20:00 - 07:00", offPeak.Time)
	assert.Equal(t, "Weekdays", offPeak.Days)
	assert.Equal(t, "$0.1500/kWh", offPeak.EnergyRate)
	assert.Equal(t, "None", offPeak.DemandRate)

	assert.Equal(t, "Weekends", p.Seasons[0].Periods[3].Days)
	assert.Equal(t, "00:00 - 24:00", p.Seasons[0].Periods[3].Time)
}

func TestFingerprint(t *testing.T) {
	grid, err := CompileSeason(exampleSeason(t))
	require.NoError(t, err)
	seasons := []SeasonGrid{{Season: SeasonMeta{Name: "Summer", Calendar: FullYear}, Grid: grid}}

	a, err := ToDocument(exampleMeta(), seasons)
	require.NoError(t, err)
	b, err := ToDocument(exampleMeta(), seasons)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 64)

	changed := ApplyOverride(grid, OverrideCharge)
	c, err := ToDocument(exampleMeta(), []SeasonGrid{{Season: seasons[0].Season, Grid: changed}})
	require.NoError(t, err)
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
	assert.Empty(t, Fingerprint(nil))
}
