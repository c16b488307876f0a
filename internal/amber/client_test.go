package amber

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tariffsync/tariff-service/config"
	"github.com/tariffsync/tariff-service/internal/http/ratelimit"
	"github.com/tariffsync/tariff-service/internal/tariff"
)

var brisbane = time.FixedZone("AEST", 10*3600)

// apiPrices renders two days of 30-minute intervals the way the API does:
// UTC start/end times with a one-second start offset and a NEM-local nemTime.
func apiPrices(day time.Time, general, feedIn float64) []map[string]any {
	var out []map[string]any
	for d := range 2 {
		for k := range tariff.SlotsPerDay {
			end := day.AddDate(0, 0, d).Add(time.Duration(k+1) * 30 * time.Minute)
			start := end.Add(-30 * time.Minute).Add(time.Second)
			for _, ch := range []struct {
				name  string
				price float64
			}{{ChannelGeneral, general + float64(d)}, {ChannelFeedIn, -feedIn}} {
				out = append(out, map[string]any{
					"type":        IntervalForecast,
					"duration":    30,
					"startTime":   start.UTC().Format(time.RFC3339),
					"endTime":     end.UTC().Format(time.RFC3339),
					"nemTime":     end.Format(time.RFC3339),
					"perKwh":      ch.price,
					"channelType": ch.name,
				})
			}
		}
	}
	return out
}

func newTestServer(t *testing.T, day time.Time) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/sites", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]Site{{ID: "closed", Status: "closed"}, {ID: "S1", Status: "active"}})
	})
	mux.HandleFunc("/sites/S1/prices", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, day.Format(time.DateOnly), r.URL.Query().Get("startDate"))
		assert.Equal(t, day.AddDate(0, 0, 1).Format(time.DateOnly), r.URL.Query().Get("endDate"))
		json.NewEncoder(w).Encode(apiPrices(day, 30, 5))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(baseURL string) *Client {
	rl := ratelimit.Config{MaxRetries: 0, InitialBackoffMs: 1, MaxBackoffMs: 1}
	return NewClient(config.AmberConfig{BaseURL: baseURL, APIToken: "token"}, rl, zerolog.Nop())
}

func TestFetchFeedCompiles(t *testing.T) {
	day := time.Date(2025, 1, 13, 0, 0, 0, 0, brisbane)
	srv := newTestServer(t, day)
	now := day.Add(14*time.Hour + 15*time.Minute)

	feed, loc, err := testClient(srv.URL).FetchFeed(context.Background(), "", now, time.UTC)
	require.NoError(t, err)

	_, offset := time.Date(2025, 1, 13, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 10*3600, offset)
	assert.Len(t, feed.ImportToday, tariff.SlotsPerDay)
	assert.Len(t, feed.ExportTomorrow, tariff.SlotsPerDay)

	result, err := tariff.CompileDynamic(now, feed, tariff.DynamicOptions{Location: loc})
	require.NoError(t, err)
	assert.Equal(t, "0.3", result.Grid.Cell(tariff.Monday, 28).Rate.Buy.String())
	assert.Equal(t, "0.31", result.Grid.Cell(tariff.Monday, 0).Rate.Buy.String())
	assert.Equal(t, "0.05", result.Grid.Cell(tariff.Monday, 0).Rate.Sell.String())
}

func TestResolveSitePrefersExplicit(t *testing.T) {
	c := testClient("http://unused.invalid")
	id, err := c.ResolveSite(context.Background(), "given")
	require.NoError(t, err)
	assert.Equal(t, "given", id)
}

func TestPricesPropagatesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Prices(context.Background(), "S1", time.Now(), time.Now())
	var fetchErr *ratelimit.FetchRetryError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusForbidden, fetchErr.LastStatus)
}

func TestDollarsPerKwh(t *testing.T) {
	general := Price{ChannelType: ChannelGeneral, PerKwh: decimal.RequireFromString("28.5")}
	assert.Equal(t, "0.285", general.DollarsPerKwh().String())

	feedIn := Price{ChannelType: ChannelFeedIn, PerKwh: decimal.RequireFromString("-7.2")}
	assert.Equal(t, "0.072", feedIn.DollarsPerKwh().String())

	advanced := Price{
		ChannelType:   ChannelGeneral,
		PerKwh:        decimal.RequireFromString("40"),
		AdvancedPrice: &AdvancedPrice{Predicted: decimal.RequireFromString("35")},
	}
	assert.Equal(t, "0.35", advanced.DollarsPerKwh().String())
}

func TestFeedLocationHalfHourOffset(t *testing.T) {
	loc := FeedLocation([]Price{{NemTime: "2025-01-13T10:30:00+09:30"}}, time.UTC)
	_, offset := time.Date(2025, 1, 13, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 9*3600+1800, offset)
	assert.Equal(t, "NEM+0930", loc.String())

	assert.Equal(t, time.UTC, FeedLocation(nil, time.UTC))
}

func TestBuildFeedSplitsByIntervalStart(t *testing.T) {
	day := time.Date(2025, 1, 13, 0, 0, 0, 0, brisbane)
	prices := []Price{
		// 23:55-24:00 belongs to today even though it ends at midnight
		{ChannelType: ChannelGeneral, Duration: 5, EndTime: day.AddDate(0, 0, 1), PerKwh: decimal.NewFromInt(20)},
		{ChannelType: ChannelGeneral, Duration: 5, EndTime: day.AddDate(0, 0, 1).Add(5 * time.Minute), PerKwh: decimal.NewFromInt(21)},
		{ChannelType: ChannelControlled, Duration: 5, EndTime: day.Add(time.Hour), PerKwh: decimal.NewFromInt(9)},
		{ChannelType: ChannelFeedIn, Duration: 5, EndTime: day.AddDate(0, 0, 3), PerKwh: decimal.NewFromInt(-3)},
	}

	feed := BuildFeed(prices, day.Add(12*time.Hour), brisbane)
	require.Len(t, feed.ImportToday, 1)
	assert.Equal(t, "0.2", feed.ImportToday[0].Price.String())
	require.Len(t, feed.ImportTomorrow, 1)
	assert.Empty(t, feed.ExportToday)
	assert.Empty(t, feed.ExportTomorrow)
}
