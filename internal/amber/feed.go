package amber

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tariffsync/tariff-service/internal/tariff"
)

// FeedLocation derives the market zone from the nemTime offset of the first
// price. Offsets such as +09:30 are kept exactly. Falls back to fallback when
// no price carries a parseable nemTime.
func FeedLocation(prices []Price, fallback *time.Location) *time.Location {
	for _, p := range prices {
		if p.NemTime == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, p.NemTime)
		if err != nil {
			continue
		}
		_, offset := t.Zone()
		return time.FixedZone(fmt.Sprintf("NEM%+03d%02d", offset/3600, abs(offset%3600)/60), offset)
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// BuildFeed splits API prices into today's and tomorrow's import and export
// series relative to now in loc. Each price is assigned to the local day its
// interval starts on; prices on other days and controlled-load prices are
// dropped. Samples are returned in end-time order.
func BuildFeed(prices []Price, now time.Time, loc *time.Location) tariff.PriceFeed {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	tomorrow := today.AddDate(0, 0, 1)

	var feed tariff.PriceFeed
	for _, p := range prices {
		interval := p.Duration
		if interval <= 0 {
			interval = tariff.DefaultIntervalMinutes
		}
		end := p.EndTime.In(loc)
		start := end.Add(-time.Duration(interval) * time.Minute)
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

		sample := tariff.PriceSample{
			EndTime:         end,
			Price:           p.DollarsPerKwh(),
			IntervalMinutes: interval,
		}
		switch {
		case p.ChannelType == ChannelGeneral && day.Equal(today):
			feed.ImportToday = append(feed.ImportToday, sample)
		case p.ChannelType == ChannelGeneral && day.Equal(tomorrow):
			feed.ImportTomorrow = append(feed.ImportTomorrow, sample)
		case p.ChannelType == ChannelFeedIn && day.Equal(today):
			feed.ExportToday = append(feed.ExportToday, sample)
		case p.ChannelType == ChannelFeedIn && day.Equal(tomorrow):
			feed.ExportTomorrow = append(feed.ExportTomorrow, sample)
		}
	}
	for _, series := range []*[]tariff.PriceSample{&feed.ImportToday, &feed.ImportTomorrow, &feed.ExportToday, &feed.ExportTomorrow} {
		s := *series
		sort.SliceStable(s, func(i, j int) bool { return s[i].EndTime.Before(s[j].EndTime) })
	}
	return feed
}

// FetchFeed fetches today's and tomorrow's prices for a site and localises
// them. The returned location is the one the feed was split in.
func (c *Client) FetchFeed(ctx context.Context, siteID string, now time.Time, loc *time.Location) (tariff.PriceFeed, *time.Location, error) {
	local := now.In(loc)
	prices, err := c.Prices(ctx, siteID, local, local.AddDate(0, 0, 1))
	if err != nil {
		return tariff.PriceFeed{}, nil, err
	}
	if len(prices) == 0 {
		return tariff.PriceFeed{}, nil, fmt.Errorf("price API returned no intervals")
	}

	feedLoc := FeedLocation(prices, loc)
	feed := BuildFeed(prices, now, feedLoc)
	c.logger.Info().
		Str("zone", feedLoc.String()).
		Int("import_today", len(feed.ImportToday)).
		Int("import_tomorrow", len(feed.ImportTomorrow)).
		Int("export_today", len(feed.ExportToday)).
		Int("export_tomorrow", len(feed.ExportTomorrow)).
		Msg("Built price feed")
	return feed, feedLoc, nil
}
